package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/analytics"
	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/cache"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/executor"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/parser"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
	"github.com/adrian-1-cardona/DocPulse/pkg/logger"
	"github.com/adrian-1-cardona/DocPulse/pkg/metrics"
	"github.com/adrian-1-cardona/DocPulse/pkg/middleware"
	"github.com/adrian-1-cardona/DocPulse/pkg/resilience"
)

type SearchExecutor interface {
	Execute(ctx context.Context, q *parser.Query) (*executor.SearchResult, error)
	Get(ctx context.Context, id string) (document.Document, error)
}

// Tracker receives analytics events.
type Tracker interface {
	Track(event any)
}

type Config struct {
	Limits  parser.Limits
	Timeout time.Duration
}

type Handler struct {
	executor SearchExecutor
	cache    *cache.QueryCache
	tracker  Tracker
	metrics  *metrics.Metrics
	cfg      Config
	logger   *slog.Logger
}

// New creates a search handler. queryCache, tracker and m may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, tracker Tracker, m *metrics.Metrics, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Handler{
		executor: exec,
		cache:    queryCache,
		tracker:  tracker,
		metrics:  m,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.SearchGet)
	mux.HandleFunc("POST /api/v1/search", h.SearchPost)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) SearchGet(w http.ResponseWriter, r *http.Request) {
	q, err := parser.ParseURL(r.URL.Query(), h.cfg.Limits)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.search(w, r, q)
}

func (h *Handler) SearchPost(w http.ResponseWriter, r *http.Request) {
	q, err := parser.Decode(http.MaxBytesReader(w, r.Body, 1<<20), h.cfg.Limits)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.search(w, r, q)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, q *parser.Query) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var result *executor.SearchResult
	cacheHit := false
	err := resilience.WithTimeout(ctx, h.cfg.Timeout, "search", func(ctx context.Context) error {
		var err error
		if h.cache != nil {
			result, cacheHit, err = h.cache.GetOrCompute(ctx, q, func() (*executor.SearchResult, error) {
				return h.executor.Execute(ctx, q)
			})
		} else {
			result, err = h.executor.Execute(ctx, q)
		}
		return err
	})
	latency := time.Since(start)
	if err != nil {
		h.observe("error", "none", latency, nil)
		log.Error("search execution failed", "query", parser.Describe(q), "error", err)
		h.fail(w, r, err)
		return
	}

	cacheStatus := "miss"
	resultType := "miss"
	if cacheHit {
		cacheStatus, resultType = "hit", "hit"
	}
	if result.TotalCount == 0 {
		resultType = "zero_result"
	}
	h.observe(resultType, cacheStatus, latency, result)

	log.Info("search completed",
		"query", result.Description,
		"total_count", result.TotalCount,
		"returned", len(result.Documents),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.track(ctx, q, result, cacheHit, latency)
	w.Header().Set("X-Cache", cacheStatus)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.executor.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  h.cache.State().String(),
	})
}

// CacheInvalidate bumps the cache generation; ?purge=true also deletes the
// stored entries.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	gen, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache invalidation failed")
		return
	}
	resp := map[string]any{"status": "invalidated", "generation": gen}
	if r.URL.Query().Get("purge") == "true" {
		deleted, err := h.cache.Purge(r.Context())
		if err != nil {
			h.logger.Warn("cache purge failed", "error", err)
		}
		resp["keys_deleted"] = deleted
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) observe(resultType, cacheStatus string, latency time.Duration, res *executor.SearchResult) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	if res != nil {
		h.metrics.SearchResultsCount.Observe(float64(res.TotalCount))
		if res.CorpusSize > 0 {
			h.metrics.CorpusSize.Set(float64(res.CorpusSize))
		}
	}
}

func (h *Handler) track(ctx context.Context, q *parser.Query, res *executor.SearchResult, cacheHit bool, latency time.Duration) {
	if h.tracker == nil {
		return
	}
	eventType := analytics.EventCacheMiss
	switch {
	case res.TotalCount == 0:
		eventType = analytics.EventZeroResult
	case cacheHit:
		eventType = analytics.EventCacheHit
	}
	fields := make([]string, len(q.Filters))
	for i, f := range q.Filters {
		fields[i] = f.Field
	}
	h.tracker.Track(analytics.SearchEvent{
		Type:         eventType,
		Query:        res.Description,
		Terms:        q.Terms(),
		FilterFields: fields,
		TotalCount:   res.TotalCount,
		Returned:     len(res.Documents),
		LatencyMs:    latency.Milliseconds(),
		CacheHit:     cacheHit,
		Timestamp:    time.Now().UTC(),
		RequestID:    middleware.GetRequestID(ctx),
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	switch {
	case errors.Is(err, apperrors.ErrTimeout):
		h.writeError(w, http.StatusGatewayTimeout, "search timed out")
	case status >= http.StatusInternalServerError:
		logger.FromContext(r.Context()).Error("search request failed", "error", err)
		h.writeError(w, status, "search failed")
	default:
		h.writeError(w, status, err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
