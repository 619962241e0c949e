package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/access"
	"github.com/adrian-1-cardona/DocPulse/internal/auth/apikey"
	"github.com/adrian-1-cardona/DocPulse/internal/auth/ratelimit"
	gwhandler "github.com/adrian-1-cardona/DocPulse/internal/gateway/handler"
	"github.com/adrian-1-cardona/DocPulse/internal/store"
	"github.com/adrian-1-cardona/DocPulse/pkg/metrics"
	pkgmw "github.com/adrian-1-cardona/DocPulse/pkg/middleware"
)

type fakeKeys struct {
	mu      sync.Mutex
	byRaw   map[string]*apikey.KeyInfo
	revoked []string
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{byRaw: map[string]*apikey.KeyInfo{
		"admin-raw":  {ID: "k-admin", Name: "ops", Role: access.RoleAdmin, RateLimit: 100},
		"editor-raw": {ID: "k-editor", Name: "writer", Role: access.RoleEditor, RateLimit: 100},
		"viewer-raw": {ID: "k-viewer", Name: "reader", Role: access.RoleViewer, RateLimit: 100},
		"slow-raw":   {ID: "k-slow", Name: "slow", Role: access.RoleViewer, RateLimit: 1},
	}}
}

func (f *fakeKeys) Validate(_ context.Context, raw string) (*apikey.KeyInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if raw == "expired-raw" {
		return nil, apikey.ErrExpiredKey
	}
	info, ok := f.byRaw[raw]
	if !ok {
		return nil, apikey.ErrInvalidKey
	}
	return info, nil
}

func (f *fakeKeys) CreateKey(_ context.Context, nk apikey.NewKey) (*apikey.Created, error) {
	return &apikey.Created{
		KeyInfo: apikey.KeyInfo{ID: "k-new", Name: nk.Name, Role: nk.Role, RateLimit: nk.RateLimit, IsActive: true},
		Key:     "dp_new",
	}, nil
}

func (f *fakeKeys) ListKeys(context.Context) ([]apikey.KeyInfo, error) {
	return []apikey.KeyInfo{{ID: "k-admin"}}, nil
}

func (f *fakeKeys) RevokeKey(_ context.Context, id string) error {
	if id != "k-viewer" {
		return apikey.ErrInvalidKey
	}
	f.mu.Lock()
	f.revoked = append(f.revoked, id)
	f.mu.Unlock()
	return nil
}

type auditLog struct {
	mu      sync.Mutex
	entries []store.AuditEntry
}

func (a *auditLog) AppendAudit(_ context.Context, e store.AuditEntry) error {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
	return nil
}

// upstream echoes which service answered and the actor it saw.
func upstream(t *testing.T, name string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"service": name,
			"path":    r.URL.Path,
			"actor":   r.Header.Get(pkgmw.HeaderActor),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type gateway struct {
	handler http.Handler
	keys    *fakeKeys
	audit   *auditLog
}

func newGateway(t *testing.T, authEnabled bool) gateway {
	t.Helper()
	keys := newFakeKeys()
	audit := &auditLog{}
	h, err := gwhandler.New(gwhandler.Config{
		IngestionURL: upstream(t, "ingestion").URL,
		SearcherURL:  upstream(t, "searcher").URL,
		AnalyticsURL: upstream(t, "analytics").URL,
	}, keys, audit)
	require.NoError(t, err)

	limiter := ratelimit.New(time.Minute)
	t.Cleanup(limiter.Stop)
	opts := Options{
		Limiter:        limiter,
		AllowedOrigins: []string{"https://docs.example.com"},
		Metrics:        metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
	if authEnabled {
		opts.Validator = keys
	}
	return gateway{handler: New(h, opts), keys: keys, audit: audit}
}

func (g gateway) do(method, target, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHealthNeedsNoKey(t *testing.T) {
	g := newGateway(t, true)
	assert.Equal(t, http.StatusOK, g.do(http.MethodGet, "/health", "", "").Code)
}

func TestAuthFailures(t *testing.T) {
	g := newGateway(t, true)
	assert.Equal(t, http.StatusUnauthorized, g.do(http.MethodGet, "/api/v1/search", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, g.do(http.MethodGet, "/api/v1/search", "bogus", "").Code)

	rec := g.do(http.MethodGet, "/api/v1/search", "expired-raw", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestRoutesReachTheRightService(t *testing.T) {
	g := newGateway(t, true)
	tests := []struct {
		method, path, service string
	}{
		{http.MethodGet, "/api/v1/search?q=x", "searcher"},
		{http.MethodGet, "/api/v1/documents/abc", "searcher"},
		{http.MethodPost, "/api/v1/reports", "searcher"},
		{http.MethodPost, "/api/v1/documents", "ingestion"},
		{http.MethodGet, "/api/v1/workspace/export", "ingestion"},
		{http.MethodGet, "/api/v1/analytics", "analytics"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := g.do(tt.method, tt.path, "editor-raw", "{}")
			require.Equal(t, http.StatusOK, rec.Code)
			got := decode(t, rec)
			assert.Equal(t, tt.service, got["service"])
			assert.Equal(t, "writer", got["actor"])
		})
	}
}

func TestActorHeaderCannotBeSpoofed(t *testing.T) {
	g := newGateway(t, true)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set("X-API-Key", "viewer-raw")
	req.Header.Set(pkgmw.HeaderActor, "ops")
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reader", decode(t, rec)["actor"])
}

func TestPermissionsPerRole(t *testing.T) {
	g := newGateway(t, true)
	tests := []struct {
		key, method, path string
		want              int
	}{
		{"viewer-raw", http.MethodPost, "/api/v1/documents", http.StatusForbidden},
		{"viewer-raw", http.MethodPost, "/api/v1/reports", http.StatusForbidden},
		{"viewer-raw", http.MethodGet, "/api/v1/workspace/export", http.StatusForbidden},
		{"viewer-raw", http.MethodGet, "/api/v1/reports/metrics", http.StatusOK},
		{"editor-raw", http.MethodDelete, "/api/v1/documents/abc", http.StatusForbidden},
		{"editor-raw", http.MethodPost, "/api/v1/workspace/import", http.StatusForbidden},
		{"editor-raw", http.MethodGet, "/api/v1/admin/keys", http.StatusForbidden},
		{"admin-raw", http.MethodDelete, "/api/v1/documents/abc", http.StatusOK},
		{"admin-raw", http.MethodPost, "/api/v1/workspace/import", http.StatusOK},
		{"admin-raw", http.MethodPost, "/api/v1/cache/invalidate", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.key+" "+tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, g.do(tt.method, tt.path, tt.key, "").Code)
		})
	}
}

func TestRateLimitPerKey(t *testing.T) {
	g := newGateway(t, true)
	assert.Equal(t, http.StatusOK, g.do(http.MethodGet, "/api/v1/search", "slow-raw", "").Code)

	rec := g.do(http.MethodGet, "/api/v1/search", "slow-raw", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, g.do(http.MethodGet, "/api/v1/search", "viewer-raw", "").Code)
}

func TestKeyAdministration(t *testing.T) {
	g := newGateway(t, true)

	rec := g.do(http.MethodPost, "/api/v1/admin/keys", "admin-raw", `{"name":"ci","role":"editor","rate_limit":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created apikey.Created
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "dp_new", created.Key)
	assert.Equal(t, access.RoleEditor, created.Role)

	assert.Equal(t, http.StatusBadRequest,
		g.do(http.MethodPost, "/api/v1/admin/keys", "admin-raw", `{"name":"ci","role":"root"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		g.do(http.MethodPost, "/api/v1/admin/keys", "admin-raw", `{"role":"viewer"}`).Code)

	assert.Equal(t, http.StatusOK, g.do(http.MethodGet, "/api/v1/admin/keys", "admin-raw", "").Code)
	assert.Equal(t, http.StatusNoContent, g.do(http.MethodDelete, "/api/v1/admin/keys/k-viewer", "admin-raw", "").Code)
	assert.Equal(t, http.StatusNotFound, g.do(http.MethodDelete, "/api/v1/admin/keys/nope", "admin-raw", "").Code)

	require.Len(t, g.audit.entries, 2)
	assert.Equal(t, store.ActionKeyAdmin, g.audit.entries[0].Action)
	assert.Equal(t, "ops", g.audit.entries[0].Actor)
	assert.Equal(t, "revoke", g.audit.entries[1].Details["op"])
}

func TestMe(t *testing.T) {
	g := newGateway(t, true)
	rec := g.do(http.MethodGet, "/api/v1/me", "viewer-raw", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Key         apikey.KeyInfo      `json:"key"`
		Permissions []access.Permission `json:"permissions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "k-viewer", out.Key.ID)
	assert.Equal(t, []access.Permission{access.DocumentsRead, access.Search, access.ReportsRead}, out.Permissions)
}

func TestAuthDisabledActsAsAnonymousAdmin(t *testing.T) {
	g := newGateway(t, false)
	rec := g.do(http.MethodDelete, "/api/v1/documents/abc", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", decode(t, rec)["actor"])
}

func TestCORSPreflight(t *testing.T) {
	g := newGateway(t, true)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set("Origin", "https://docs.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://docs.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpstreamDownIsBadGateway(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	h, err := gwhandler.New(gwhandler.Config{
		IngestionURL: deadURL,
		SearcherURL:  deadURL,
		AnalyticsURL: deadURL,
	}, newFakeKeys(), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	New(h, Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestInvalidUpstreamURL(t *testing.T) {
	_, err := gwhandler.New(gwhandler.Config{IngestionURL: "not a url"}, newFakeKeys(), nil)
	assert.Error(t, err)
}
