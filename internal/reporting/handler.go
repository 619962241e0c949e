package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/analytics"
	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
	"github.com/adrian-1-cardona/DocPulse/pkg/logger"
	"github.com/adrian-1-cardona/DocPulse/pkg/metrics"
	"github.com/adrian-1-cardona/DocPulse/pkg/middleware"
)

// Store is the slice of store.Store reports need.
type Store interface {
	List(ctx context.Context) ([]document.Document, error)
	AppendAudit(ctx context.Context, entry store.AuditEntry) error
	SaveSnapshot(ctx context.Context, snap store.Snapshot) error
	ListSnapshots(ctx context.Context, limit int) ([]store.Snapshot, error)
}

// Tracker receives analytics events.
type Tracker interface {
	Track(event any)
}

// MetricsResponse is the JSON form of GET /api/v1/reports/metrics.
type MetricsResponse struct {
	Team            string          `json:"team,omitempty"`
	Metrics         DocumentMetrics `json:"metrics"`
	Recommendations []string        `json:"recommendations"`
}

// GenerateRequest is the body of POST /api/v1/reports.
type GenerateRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type Handler struct {
	store     Store
	generator *Generator
	tracker   Tracker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewHandler serves reports over st. tracker and m may be nil.
func NewHandler(st Store, gen *Generator, tracker Tracker, m *metrics.Metrics) *Handler {
	if gen == nil {
		gen = NewGenerator()
	}
	return &Handler{
		store:     st,
		generator: gen,
		tracker:   tracker,
		metrics:   m,
		logger:    slog.Default().With("component", "report-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/reports/metrics", h.Metrics)
	mux.HandleFunc("GET /api/v1/reports/teams", h.Teams)
	mux.HandleFunc("POST /api/v1/reports", h.Generate)
	mux.HandleFunc("GET /api/v1/reports", h.List)
}

// Metrics returns corpus metrics with recommendations. ?team= narrows to one
// team; ?format=csv renders the CSV sheet instead of JSON.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, r, "loading corpus failed", err)
		return
	}
	team := r.URL.Query().Get("team")
	if team != "" {
		docs = FilterTeam(docs, team)
	}
	m := ComputeMetrics(docs)

	switch r.URL.Query().Get("format") {
	case "", "json":
		h.writeJSON(w, http.StatusOK, MetricsResponse{Team: team, Metrics: m, Recommendations: Recommendations(m)})
	case "csv":
		var buf bytes.Buffer
		if err := WriteCSV(&buf, m, team); err != nil {
			h.fail(w, r, "rendering csv failed", err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="docpulse-metrics.csv"`)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	default:
		h.writeError(w, http.StatusBadRequest, "format must be json or csv")
	}
}

func (h *Handler) Teams(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, r, "loading corpus failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"teams": TeamMetrics(docs)})
}

// Generate builds a report, stores it as a snapshot and records the audit
// entry. A failed snapshot write fails the request; audit and analytics are
// best effort.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := ParseType(req.Type)
	if err != nil {
		h.fail(w, r, "invalid report type", err)
		return
	}
	docs, err := h.store.List(ctx)
	if err != nil {
		h.fail(w, r, "loading corpus failed", err)
		return
	}

	actor := middleware.Actor(r)
	report := h.generator.Generate(docs, t, req.Name, actor)
	if err := Persist(ctx, h.store, report, len(docs)); err != nil {
		h.fail(w, r, "saving report failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.ReportsGenerated.WithLabelValues(string(t)).Inc()
	}
	if h.tracker != nil {
		h.tracker.Track(analytics.ReportEvent{
			Type:       analytics.EventReport,
			ReportType: string(t),
			Documents:  len(docs),
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(ctx),
		})
	}

	logger.FromContext(ctx).Info("report generated", "report_id", report.ID, "type", t, "documents", len(docs))
	h.writeJSON(w, http.StatusCreated, report)
}

// List returns the latest stored reports, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	snaps, err := h.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "listing reports failed", err)
		return
	}
	if snaps == nil {
		snaps = []store.Snapshot{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"reports": snaps})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error(msg, "error", err, "status_code", status)
		h.writeError(w, status, msg)
		return
	}
	h.writeError(w, status, err.Error())
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
