package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// Limiter reserves one request for a key, returning the wait until the next
// token when none is available.
type Limiter interface {
	Reserve(key string, limit int) time.Duration
}

// RateLimit enforces each key's rate_limit. Requests without key info were
// exempted by Auth and pass through. defaultLimit applies to keys stored
// without a limit.
func RateLimit(limiter Limiter, defaultLimit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := GetKeyInfo(r.Context())
			if info == nil || info == AnonymousAdmin {
				next.ServeHTTP(w, r)
				return
			}
			limit := info.RateLimit
			if limit <= 0 {
				limit = defaultLimit
			}
			if wait := limiter.Reserve(info.ID, limit); wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
