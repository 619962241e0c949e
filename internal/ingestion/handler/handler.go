package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/adrian-1-cardona/DocPulse/internal/document"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/pipeline"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/publisher"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/validator"
	"github.com/adrian-1-cardona/DocPulse/internal/workspace"
	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
	"github.com/adrian-1-cardona/DocPulse/pkg/logger"
	"github.com/adrian-1-cardona/DocPulse/pkg/middleware"
	"github.com/adrian-1-cardona/DocPulse/pkg/tracing"
)

const (
	maxDocumentBody = 1 << 20
	maxImportBody   = 64 << 20
)

type Handler struct {
	pipeline     *pipeline.Pipeline
	publisher    *publisher.Publisher
	maxBatchSize int
	logger       *slog.Logger
}

func New(p *pipeline.Pipeline, pub *publisher.Publisher, maxBatchSize int) *Handler {
	if maxBatchSize <= 0 {
		maxBatchSize = 500
	}
	return &Handler{
		pipeline:     p,
		publisher:    pub,
		maxBatchSize: maxBatchSize,
		logger:       slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the ingestion routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("POST /api/v1/documents/batch", h.IngestBatch)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
	mux.HandleFunc("POST /api/v1/workspace/import", h.Import)
	mux.HandleFunc("GET /api/v1/workspace/export", h.Export)
	mux.HandleFunc("GET /api/v1/workspace/backup", h.Backup)
	mux.HandleFunc("GET /api/v1/audit", h.Audit)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBody)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc, err := h.pipeline.Ingest(&req)
	if err != nil {
		var ve *validator.ValidationError
		if errors.As(err, &ve) {
			h.publisher.Rejected(1)
			h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"fields": ve.Fields,
			})
			return
		}
		h.fail(w, r, "scoring failed", err)
		return
	}

	if err := h.publisher.Ingested(ctx, middleware.Actor(r), doc); err != nil {
		h.fail(w, r, "ingestion failed", err)
		return
	}
	log.Info("document ingested",
		"doc_id", doc.ID,
		"overall_score", doc.OverallScore,
		"risk", doc.Risk(),
		"signals", len(doc.Signals),
	)
	h.writeJSON(w, http.StatusCreated, doc)
}

// IngestBatch scores every item independently. 200 when all succeed, 207 on
// partial success, 422 when every item failed.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBody)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Documents) == 0 {
		h.writeError(w, http.StatusBadRequest, "documents must not be empty")
		return
	}
	if len(req.Documents) > h.maxBatchSize {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("batch exceeds %d documents", h.maxBatchSize))
		return
	}

	ctx, span := tracing.StartSpan(ctx, "ingest.batch", middleware.GetRequestID(ctx))
	span.SetAttr("items", len(req.Documents))
	results := h.pipeline.IngestBatch(ctx, req.Documents)

	docs := make([]document.Document, 0, len(results))
	for _, res := range results {
		if res.Document != nil {
			docs = append(docs, *res.Document)
		}
	}
	resp := pipeline.Summarize(results)
	h.publisher.Rejected(resp.Failed)

	if err := h.publisher.Ingested(ctx, middleware.Actor(r), docs...); err != nil {
		span.End(err)
		span.Log(log)
		h.fail(w, r, "batch ingestion failed", err)
		return
	}
	span.SetAttr("succeeded", resp.Succeeded)
	span.End(nil)
	span.Log(log)

	log.Info("batch ingested", "succeeded", resp.Succeeded, "failed", resp.Failed)

	status := http.StatusOK
	switch {
	case resp.Succeeded == 0:
		status = http.StatusUnprocessableEntity
	case resp.Failed > 0:
		status = http.StatusMultiStatus
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.publisher.Deleted(r.Context(), middleware.Actor(r), id); err != nil {
		h.fail(w, r, "delete failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "import payload too large")
		return
	}
	docs, err := workspace.Import(data)
	if err != nil {
		h.fail(w, r, "import failed", err)
		return
	}
	if err := h.publisher.Imported(r.Context(), middleware.Actor(r), docs); err != nil {
		h.fail(w, r, "import failed", err)
		return
	}
	logger.FromContext(r.Context()).Info("workspace imported", "documents", len(docs))
	h.writeJSON(w, http.StatusOK, ingestion.ImportResponse{Imported: len(docs)})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := h.publisher.Store().List(ctx)
	if err != nil {
		h.fail(w, r, "export failed", err)
		return
	}
	now := time.Now().UTC()
	data, err := workspace.Marshal(workspace.Export(docs, now))
	if err != nil {
		h.fail(w, r, "export failed", err)
		return
	}
	h.publisher.Exported(ctx, middleware.Actor(r), len(docs))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="docpulse-workspace-%s.json"`, now.Format(document.LastUpdatedLayout)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	b, err := workspace.TakeBackup(r.Context(), h.publisher.Store(), time.Now())
	if err != nil {
		h.fail(w, r, "backup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.publisher.Store().ListAudit(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "audit listing failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps err to its HTTP status. Client errors echo the message; server
// errors are logged and answered generically.
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
