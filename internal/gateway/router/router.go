// Package router wires the gateway routes, their permissions and the
// middleware chain.
package router

import (
	"net/http"

	"github.com/adrian-1-cardona/DocPulse/internal/access"
	gwhandler "github.com/adrian-1-cardona/DocPulse/internal/gateway/handler"
	gwmw "github.com/adrian-1-cardona/DocPulse/internal/gateway/middleware"
	"github.com/adrian-1-cardona/DocPulse/pkg/metrics"
	pkgmw "github.com/adrian-1-cardona/DocPulse/pkg/middleware"
)

// Options configures the middleware chain. A nil Validator disables
// authentication; every caller is then the anonymous admin.
type Options struct {
	Validator        gwmw.KeyValidator
	Limiter          gwmw.Limiter
	DefaultRateLimit int
	AllowedOrigins   []string
	Metrics          *metrics.Metrics
}

type route struct {
	pattern    string
	permission access.Permission
	upstream   func(*gwhandler.Handler) http.Handler
}

func ingestion(h *gwhandler.Handler) http.Handler { return h.Ingestion() }
func searcher(h *gwhandler.Handler) http.Handler  { return h.Searcher() }
func analytics(h *gwhandler.Handler) http.Handler { return h.Analytics() }

// routes is the proxied route table with the permission each requires.
var routes = []route{
	{"POST /api/v1/documents", access.DocumentsWrite, ingestion},
	{"POST /api/v1/documents/batch", access.DocumentsWrite, ingestion},
	{"DELETE /api/v1/documents/{id}", access.DocumentsDelete, ingestion},
	{"POST /api/v1/workspace/import", access.WorkspaceImport, ingestion},
	{"GET /api/v1/workspace/export", access.WorkspaceExport, ingestion},
	{"GET /api/v1/workspace/backup", access.WorkspaceExport, ingestion},
	{"GET /api/v1/audit", access.KeysManage, ingestion},

	{"GET /api/v1/documents/{id}", access.DocumentsRead, searcher},
	{"GET /api/v1/search", access.Search, searcher},
	{"POST /api/v1/search", access.Search, searcher},
	{"GET /api/v1/reports", access.ReportsRead, searcher},
	{"GET /api/v1/reports/metrics", access.ReportsRead, searcher},
	{"GET /api/v1/reports/teams", access.ReportsRead, searcher},
	{"POST /api/v1/reports", access.ReportsGenerate, searcher},
	{"GET /api/v1/cache/stats", access.Search, searcher},
	{"POST /api/v1/cache/invalidate", access.KeysManage, searcher},

	{"GET /api/v1/analytics", access.ReportsRead, analytics},
	{"GET /api/v1/analytics/snapshots", access.ReportsRead, analytics},
}

// New builds the gateway handler. The chain, outermost first, is
// RequestID, CORS, Auth, RateLimit, then per route the metrics and the
// permission check.
func New(h *gwhandler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, p access.Permission, next http.Handler) {
		if p != "" {
			next = gwmw.Require(p, next)
		}
		if opts.Metrics != nil {
			next = pkgmw.Metrics(opts.Metrics)(next)
		}
		mux.Handle(pattern, next)
	}

	handle("GET /health", "", http.HandlerFunc(h.Health))
	for _, rt := range routes {
		handle(rt.pattern, rt.permission, rt.upstream(h))
	}
	handle("GET /api/v1/me", "", http.HandlerFunc(h.Me))
	handle("POST /api/v1/admin/keys", access.KeysManage, http.HandlerFunc(h.CreateAPIKey))
	handle("GET /api/v1/admin/keys", access.KeysManage, http.HandlerFunc(h.ListAPIKeys))
	handle("DELETE /api/v1/admin/keys/{id}", access.KeysManage, http.HandlerFunc(h.RevokeAPIKey))

	var chain http.Handler = mux
	if opts.Limiter != nil {
		chain = gwmw.RateLimit(opts.Limiter, opts.DefaultRateLimit)(chain)
	}
	chain = gwmw.Auth(opts.Validator)(chain)
	chain = gwmw.CORS(gwmw.NewCORSConfig(opts.AllowedOrigins))(chain)
	return pkgmw.RequestID(chain)
}
