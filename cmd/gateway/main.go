// Command gateway starts the API gateway service.
//
// The gateway is the single entry point for external clients. It
// authenticates requests with API keys (SHA-256 hashes stored in
// PostgreSQL), enforces the permission each route requires for the key's
// role, applies per-key rate limits, and proxies to the ingestion, search
// and analytics services. Key administration lives under /api/v1/admin/keys.
//
// Usage:
//
//	go run ./cmd/gateway [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adrian-1-cardona/DocPulse/internal/auth/apikey"
	"github.com/adrian-1-cardona/DocPulse/internal/auth/ratelimit"
	gwhandler "github.com/adrian-1-cardona/DocPulse/internal/gateway/handler"
	gwmw "github.com/adrian-1-cardona/DocPulse/internal/gateway/middleware"
	"github.com/adrian-1-cardona/DocPulse/internal/gateway/router"
	pgstore "github.com/adrian-1-cardona/DocPulse/internal/store/postgres"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	"github.com/adrian-1-cardona/DocPulse/pkg/logger"
	"github.com/adrian-1-cardona/DocPulse/pkg/metrics"
	"github.com/adrian-1-cardona/DocPulse/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting gateway service",
		"port", cfg.Gateway.Port,
		"ingestion_url", cfg.Gateway.IngestionURL,
		"searcher_url", cfg.Gateway.SearcherURL,
		"analytics_url", cfg.Gateway.AnalyticsURL,
		"auth_enabled", cfg.Gateway.AuthEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	keys := apikey.NewValidator(db)
	if err := keys.Migrate(ctx); err != nil {
		slog.Error("failed to migrate api key schema", "error", err)
		os.Exit(1)
	}

	var audit gwhandler.Auditor
	if cfg.Storage.Driver == "postgres" {
		st, err := pgstore.New(ctx, db)
		if err != nil {
			slog.Error("failed to open audit store", "error", err)
			os.Exit(1)
		}
		audit = st
	}

	h, err := gwhandler.New(gwhandler.Config{
		IngestionURL:     cfg.Gateway.IngestionURL,
		SearcherURL:      cfg.Gateway.SearcherURL,
		AnalyticsURL:     cfg.Gateway.AnalyticsURL,
		DefaultRateLimit: cfg.Gateway.DefaultRateLimit,
	}, keys, audit)
	if err != nil {
		slog.Error("invalid gateway configuration", "error", err)
		os.Exit(1)
	}

	opts := router.Options{
		DefaultRateLimit: cfg.Gateway.DefaultRateLimit,
		AllowedOrigins:   cfg.Gateway.AllowedOrigins,
	}
	if cfg.Gateway.AuthEnabled {
		limiter := ratelimit.New(cfg.Gateway.RateWindow)
		defer limiter.Stop()
		opts.Validator = keys
		opts.Limiter = limiter
	} else {
		slog.Warn("authentication disabled; every request runs as " + gwmw.AnonymousAdmin.Name)
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.New()
		shutdownMetrics, err := metrics.StartServer("gateway", cfg.Metrics.Port)
		if err != nil {
			slog.Warn("metrics endpoint disabled", "error", err)
		} else {
			defer shutdownMetrics(context.Background())
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler:      router.New(h, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("gateway listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway stopped")
}
