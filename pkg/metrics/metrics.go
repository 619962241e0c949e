// Package metrics defines the Prometheus collectors used across DocPulse and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	DocumentsIngested *prometheus.CounterVec
	DocumentsRejected *prometheus.CounterVec
	OverallScore      *prometheus.HistogramVec
	SignalsTotal      *prometheus.CounterVec
	CorpusSize        prometheus.Gauge

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter

	ReportsGenerated    *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New registers the collectors with the default registry, which is what
// the scrape endpoint serves.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

const namespace = "docpulse"

var (
	latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	scoreBuckets   = []float64{20, 40, 60, 70, 80, 90, 100}
	resultBuckets  = []float64{0, 1, 5, 10, 25, 50, 100, 500}
)

func counter(sub, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help})
}

func counterVec(sub, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help}, labels)
}

func gauge(sub, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help})
}

func histogramVec(sub, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Subsystem: sub, Name: name, Help: help, Buckets: buckets}, labels)
}

// NewWithRegistry registers the collectors with reg. Tests pass a fresh
// registry so repeated construction does not panic.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal:    counterVec("http", "requests_total", "HTTP requests by method, route pattern and status.", "method", "path", "status"),
		HTTPRequestDuration:  histogramVec("http", "request_duration_seconds", "HTTP request latency.", latencyBuckets, "method", "path"),
		HTTPRequestsInFlight: gauge("http", "requests_in_flight", "HTTP requests being served."),

		DocumentsIngested: counterVec("ingest", "documents_total", "Documents scored and stored, by scoring policy.", "policy"),
		DocumentsRejected: counterVec("ingest", "rejected_total", "Ingestion items rejected, by reason (validation, storage).", "reason"),
		OverallScore:      histogramVec("ingest", "overall_score", "Overall staleness score assigned at ingestion.", scoreBuckets, "policy"),
		SignalsTotal:      counterVec("ingest", "signals_total", "Risk signals raised at ingestion, by type.", "type"),
		CorpusSize:        gauge("search", "corpus_documents", "Documents in the corpus at the last search."),

		SearchQueriesTotal: counterVec("search", "queries_total", "Search queries by result type (hit, miss, zero_result, error).", "result_type"),
		SearchLatency:      histogramVec("search", "latency_seconds", "Search latency by cache status.", latencyBuckets[:9], "cache_status"),
		SearchResultsCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "results",
			Help: "Matching documents per search.", Buckets: resultBuckets,
		}),
		CacheHitsTotal:   counter("cache", "hits_total", "Search cache hits."),
		CacheMissesTotal: counter("cache", "misses_total", "Search cache misses."),

		ReportsGenerated: counterVec("reports", "generated_total", "Reports generated, by report type.", "type"),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
		m.DocumentsIngested, m.DocumentsRejected, m.OverallScore, m.SignalsTotal, m.CorpusSize,
		m.SearchQueriesTotal, m.SearchLatency, m.SearchResultsCount, m.CacheHitsTotal, m.CacheMissesTotal,
		m.ReportsGenerated, m.CircuitBreakerState,
	)
	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CacheObserver counts search cache hits and misses.
type CacheObserver struct {
	m *Metrics
}

// Cache returns an observer feeding the cache counters.
func (m *Metrics) Cache() CacheObserver {
	return CacheObserver{m: m}
}

func (o CacheObserver) Hit()  { o.m.CacheHitsTotal.Inc() }
func (o CacheObserver) Miss() { o.m.CacheMissesTotal.Inc() }

// SetBreakerState records a circuit breaker state (0 closed, 1 open,
// 2 half-open).
func (m *Metrics) SetBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
