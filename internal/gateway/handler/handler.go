// Package handler implements the gateway's own endpoints: reverse proxies
// to the DocPulse services and API key administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/adrian-1-cardona/DocPulse/internal/access"
	"github.com/adrian-1-cardona/DocPulse/internal/auth/apikey"
	gwmw "github.com/adrian-1-cardona/DocPulse/internal/gateway/middleware"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	pkgmw "github.com/adrian-1-cardona/DocPulse/pkg/middleware"
)

// Config holds the upstream service URLs and the key defaults.
type Config struct {
	IngestionURL     string
	SearcherURL      string
	AnalyticsURL     string
	DefaultRateLimit int
}

// KeyManager administers API keys.
type KeyManager interface {
	CreateKey(ctx context.Context, nk apikey.NewKey) (*apikey.Created, error)
	ListKeys(ctx context.Context) ([]apikey.KeyInfo, error)
	RevokeKey(ctx context.Context, id string) error
}

// Auditor records key administration. It may be nil.
type Auditor interface {
	AppendAudit(ctx context.Context, entry store.AuditEntry) error
}

type Handler struct {
	ingestionProxy *httputil.ReverseProxy
	searchProxy    *httputil.ReverseProxy
	analyticsProxy *httputil.ReverseProxy
	keys           KeyManager
	audit          Auditor
	defaultLimit   int
	logger         *slog.Logger
}

func New(cfg Config, keys KeyManager, audit Auditor) (*Handler, error) {
	h := &Handler{
		keys:         keys,
		audit:        audit,
		defaultLimit: cfg.DefaultRateLimit,
		logger:       slog.Default().With("component", "gateway-handler"),
	}
	if h.defaultLimit <= 0 {
		h.defaultLimit = 600
	}
	var err error
	if h.ingestionProxy, err = h.newProxy("ingestion", cfg.IngestionURL); err != nil {
		return nil, err
	}
	if h.searchProxy, err = h.newProxy("searcher", cfg.SearcherURL); err != nil {
		return nil, err
	}
	if h.analyticsProxy, err = h.newProxy("analytics", cfg.AnalyticsURL); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handler) newProxy(name, target string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s upstream url %q", name, target)
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		h.logger.Error("upstream request failed", "upstream", name, "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusBadGateway, name+" service unavailable")
	}
	return p, nil
}

func (h *Handler) Ingestion() http.Handler { return h.ingestionProxy }
func (h *Handler) Searcher() http.Handler  { return h.searchProxy }
func (h *Handler) Analytics() http.Handler { return h.analyticsProxy }

// Me describes the calling key and what it may do.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	info := gwmw.GetKeyInfo(r.Context())
	if info == nil {
		h.writeError(w, http.StatusUnauthorized, "missing api key")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"key":         info,
		"permissions": info.Role.Permissions(),
	})
}

type createKeyRequest struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	RateLimit int    `json:"rate_limit"`
	ExpiresIn string `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
}

// CreateAPIKey returns the raw key once; only its hash is stored.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Role == "" {
		req.Role = string(access.RoleViewer)
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RateLimit <= 0 {
		req.RateLimit = h.defaultLimit
	}
	nk := apikey.NewKey{Name: req.Name, Role: role, RateLimit: req.RateLimit}
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid expires_in duration")
			return
		}
		t := time.Now().Add(d).UTC()
		nk.ExpiresAt = &t
	}

	created, err := h.keys.CreateKey(r.Context(), nk)
	if err != nil {
		h.logger.Error("failed to create api key", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create api key")
		return
	}
	h.record(r, "create", created.ID, map[string]string{"name": created.Name, "role": string(created.Role)})
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		h.logger.Error("failed to list api keys", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list api keys")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.keys.RevokeKey(r.Context(), id)
	if errors.Is(err, apikey.ErrInvalidKey) {
		h.writeError(w, http.StatusNotFound, "api key not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to revoke api key", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to revoke api key")
		return
	}
	h.record(r, "revoke", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "gateway"})
}

func (h *Handler) record(r *http.Request, op, target string, details map[string]string) {
	if h.audit == nil {
		return
	}
	if details == nil {
		details = map[string]string{}
	}
	details["op"] = op
	err := h.audit.AppendAudit(r.Context(), store.AuditEntry{
		ID:      uuid.NewString(),
		Action:  store.ActionKeyAdmin,
		Actor:   pkgmw.Actor(r),
		Target:  target,
		At:      time.Now().UTC(),
		Details: details,
	})
	if err != nil {
		h.logger.Warn("audit append failed", "action", store.ActionKeyAdmin, "error", err)
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
