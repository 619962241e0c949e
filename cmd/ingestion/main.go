// Command ingestion starts the document ingestion HTTP service.
//
// The service validates and scores document metadata, persists the scored
// documents to the configured store, and publishes document events to Kafka
// so searchers can invalidate their caches. It also owns workspace import,
// export and backup, and the audit trail.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/handler"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/pipeline"
	"github.com/adrian-1-cardona/DocPulse/internal/ingestion/publisher"
	"github.com/adrian-1-cardona/DocPulse/internal/scoring"
	"github.com/adrian-1-cardona/DocPulse/internal/store/backend"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	"github.com/adrian-1-cardona/DocPulse/pkg/health"
	"github.com/adrian-1-cardona/DocPulse/pkg/kafka"
	"github.com/adrian-1-cardona/DocPulse/pkg/logger"
	"github.com/adrian-1-cardona/DocPulse/pkg/metrics"
	"github.com/adrian-1-cardona/DocPulse/pkg/middleware"
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
	slog.Info("starting ingestion service", "port", cfg.Server.Port, "policy", cfg.Scoring.Policy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := scoring.ByName(cfg.Scoring.Policy)
	if err != nil {
		slog.Error("invalid scoring policy", "error", err)
		os.Exit(1)
	}

	opened, err := backend.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer opened.Close()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentEvents)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics, err := metrics.StartServer("ingestion", cfg.Metrics.Port)
		if err != nil {
			slog.Warn("metrics endpoint disabled", "error", err)
		} else {
			defer shutdownMetrics(context.Background())
		}
	}

	p := pipeline.New(policy,
		pipeline.WithConcurrency(cfg.Scoring.BatchConcurrency),
		pipeline.WithIntake(cfg.Intake),
	)
	pub := publisher.New(opened.Store, producer, m)
	h := handler.New(p, pub, cfg.Scoring.MaxBatchSize)

	checker := health.NewChecker()
	checker.Register("store", health.PingCheck(opened.Store, true))
	checker.Register("kafka", health.PingCheck(producer, false))

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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

	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
