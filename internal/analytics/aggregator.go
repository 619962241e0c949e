package analytics

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/pkg/kafka"
)

// maxLatencies bounds the latency window used for percentiles.
const maxLatencies = 10000

type AggregatedStats struct {
	TotalSearches     int64          `json:"total_searches"`
	CacheHits         int64          `json:"cache_hits"`
	CacheMisses       int64          `json:"cache_misses"`
	ZeroResultCount   int64          `json:"zero_result_count"`
	AvgLatencyMs      float64        `json:"avg_latency_ms"`
	P50LatencyMs      int64          `json:"p50_latency_ms"`
	P95LatencyMs      int64          `json:"p95_latency_ms"`
	P99LatencyMs      int64          `json:"p99_latency_ms"`
	TopQueries        []QueryCount   `json:"top_queries"`
	ZeroResultQueries []QueryCount   `json:"zero_result_queries"`
	TopFilterFields   []QueryCount   `json:"top_filter_fields"`
	QueriesPerMinute  float64        `json:"queries_per_minute"`
	ReportsGenerated  map[string]int `json:"reports_generated"`
	Ingestion         IngestionStats `json:"ingestion"`
}

// IngestionStats summarises corpus changes seen on the document events topic.
type IngestionStats struct {
	DocumentsIngested int64   `json:"documents_ingested"`
	DocumentsDeleted  int64   `json:"documents_deleted"`
	WorkspaceImports  int64   `json:"workspace_imports"`
	AvgIngestedScore  float64 `json:"avg_ingested_score"`
	HighRiskIngested  int64   `json:"high_risk_ingested"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	filterFields      map[string]int64
	reports           map[string]int
	ingestion         IngestionStats
	scoreSum          float64
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		filterFields:      make(map[string]int64),
		reports:           make(map[string]int),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

type envelope struct {
	Type string `json:"type"`
}

// HandleEvent returns a kafka.MessageHandler that records analytics and
// document events. Undecodable messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		env, err := kafka.DecodeJSON[envelope](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch env.Type {
		case string(EventSearch), string(EventCacheHit), string(EventCacheMiss), string(EventZeroResult):
			if ev, err := kafka.DecodeJSON[SearchEvent](value); err == nil {
				agg.RecordSearch(ev)
			}
		case string(EventReport):
			if ev, err := kafka.DecodeJSON[ReportEvent](value); err == nil {
				agg.RecordReport(ev)
			}
		case ingestion.EventDocumentsIngested, ingestion.EventDocumentDeleted, ingestion.EventWorkspaceImported:
			if ev, err := kafka.DecodeJSON[ingestion.DocumentEvent](value); err == nil {
				agg.RecordDocumentEvent(ev)
			}
		default:
			agg.logger.Debug("ignoring event", "type", env.Type)
		}
		return nil
	}
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.queryCounts[event.Query]++
	if event.TotalCount == 0 {
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	}
	for _, f := range event.FilterFields {
		a.filterFields[f]++
	}
	if len(a.latencies) >= maxLatencies {
		a.latencies = a.latencies[1:]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
}

func (a *Aggregator) RecordReport(event ReportEvent) {
	a.mu.Lock()
	a.reports[event.ReportType]++
	a.mu.Unlock()
}

func (a *Aggregator) RecordDocumentEvent(event ingestion.DocumentEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case ingestion.EventDocumentsIngested:
		a.ingestion.DocumentsIngested += int64(event.Count)
		for _, s := range event.Scores {
			a.scoreSum += s
			if document.RiskFor(s) == document.RiskHigh {
				a.ingestion.HighRiskIngested++
			}
		}
	case ingestion.EventDocumentDeleted:
		a.ingestion.DocumentsDeleted += int64(event.Count)
	case ingestion.EventWorkspaceImported:
		a.ingestion.WorkspaceImports++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches,
		CacheHits:        a.cacheHits,
		CacheMisses:      a.cacheMisses,
		ZeroResultCount:  a.zeroResults,
		ReportsGenerated: make(map[string]int, len(a.reports)),
		Ingestion:        a.ingestion,
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	stats.TopFilterFields = topN(a.filterFields, 10)
	for k, v := range a.reports {
		stats.ReportsGenerated[k] = v
	}
	if a.ingestion.DocumentsIngested > 0 {
		stats.Ingestion.AvgIngestedScore = a.scoreSum / float64(a.ingestion.DocumentsIngested)
	}
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n largest counts. Ties order by key so output is stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
