// Package middleware provides the gateway's authentication, permission,
// CORS and rate limiting middleware.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adrian-1-cardona/DocPulse/internal/access"
	"github.com/adrian-1-cardona/DocPulse/internal/auth/apikey"
	pkgmw "github.com/adrian-1-cardona/DocPulse/pkg/middleware"
)

type contextKey string

const apiKeyInfoKey contextKey = "api_key_info"

// KeyValidator resolves a raw API key.
type KeyValidator interface {
	Validate(ctx context.Context, rawKey string) (*apikey.KeyInfo, error)
}

// AnonymousAdmin is attached to every request when authentication is
// disabled for local development.
var AnonymousAdmin = &apikey.KeyInfo{ID: "anonymous", Name: "anonymous", Role: access.RoleAdmin, IsActive: true}

// Auth validates the API key and records the caller. Keys come from
// "Authorization: Bearer", X-API-Key or the api_key query parameter. Any
// client-supplied actor header is replaced. A nil validator disables
// authentication. Health and metrics endpoints are exempt.
func Auth(validator KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(pkgmw.HeaderActor)
			if exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			info := AnonymousAdmin
			if validator != nil {
				key := extractAPIKey(r)
				if key == "" {
					writeError(w, http.StatusUnauthorized, "missing api key")
					return
				}
				var err error
				info, err = validator.Validate(r.Context(), key)
				switch {
				case errors.Is(err, apikey.ErrInvalidKey):
					writeError(w, http.StatusUnauthorized, "invalid api key")
					return
				case errors.Is(err, apikey.ErrExpiredKey):
					writeError(w, http.StatusUnauthorized, "expired api key")
					return
				case err != nil:
					slog.Error("api key validation failed", "error", err)
					writeError(w, http.StatusInternalServerError, "authentication error")
					return
				}
			}

			r.Header.Set(pkgmw.HeaderActor, info.Name)
			ctx := context.WithValue(r.Context(), apiKeyInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require allows the request only when the caller's role grants p.
func Require(p access.Permission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := GetKeyInfo(r.Context())
		if info == nil {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}
		if !info.Role.Can(p) {
			writeError(w, http.StatusForbidden, "role "+string(info.Role)+" lacks permission "+string(p))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetKeyInfo returns the authenticated key, or nil.
func GetKeyInfo(ctx context.Context) *apikey.KeyInfo {
	info, _ := ctx.Value(apiKeyInfoKey).(*apikey.KeyInfo)
	return info
}

// WithKeyInfo attaches info to ctx.
func WithKeyInfo(ctx context.Context, info *apikey.KeyInfo) context.Context {
	return context.WithValue(ctx, apiKeyInfoKey, info)
}

func exempt(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics"
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
