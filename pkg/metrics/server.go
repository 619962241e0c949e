package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// StartServer binds a dedicated scrape listener for service on port. The
// bind happens before returning so a taken port is reported to the caller;
// serving continues in the background until the returned func is called.
func StartServer(service string, port int) (func(context.Context) error, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("metrics listener for %s: %w", service, err)
	}

	srv := &http.Server{
		Handler:           scrapeMux(service),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	log := slog.With("component", "metrics", "service", service)
	go func() {
		log.Info("scrape endpoint listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("scrape endpoint stopped", "error", err)
		}
	}()

	return srv.Shutdown, nil
}

func scrapeMux(service string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service": service,
			"scrape":  "/metrics",
		})
	})
	return mux
}
