package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/adrian-1-cardona/DocPulse/pkg/logger"
)

// HeaderRequestID carries the request ID between the gateway and services.
const HeaderRequestID = "X-Request-ID"

// RequestID propagates an incoming X-Request-ID or mints a new one, stores it
// in the request context, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		r.Header.Set(HeaderRequestID, id)
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID returns the request ID attached by RequestID.
func GetRequestID(ctx context.Context) string {
	return logger.RequestID(ctx)
}

// HeaderActor names the authenticated caller. The gateway sets it after key
// validation; services record it in the audit trail.
const HeaderActor = "X-DocPulse-Actor"

// Actor returns the caller recorded by the gateway.
func Actor(r *http.Request) string {
	return r.Header.Get(HeaderActor)
}
