// Package middleware holds the HTTP wrappers every DocPulse service mounts:
// request IDs, request metrics and the per-request deadline.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adrian-1-cardona/DocPulse/pkg/metrics"
)

// Metrics records request totals, latency and in-flight count for everything
// except health probes. Routes are labelled by their mux pattern so document
// IDs never become label values.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbe(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			m.HTTPRequestsInFlight.Inc()
			rec := &recorder{ResponseWriter: w}
			began := time.Now()

			defer func() {
				m.HTTPRequestsInFlight.Dec()
				route := r.Pattern
				if route == "" {
					route = "unmatched"
				}
				m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code())).Inc()
				m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(began).Seconds())
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

func isProbe(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// recorder remembers the first status written through it.
type recorder struct {
	http.ResponseWriter
	status int
}

func (rw *recorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *recorder) code() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func (rw *recorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
