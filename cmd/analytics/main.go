// Command analytics starts the activity aggregation service.
//
// It consumes search and report events from the analytics topic and corpus
// changes from the document events topic, aggregates them in memory (query
// volume, latency percentiles, cache hit rate, zero-result and top queries,
// documents ingested and deleted), and serves them at GET /api/v1/analytics.
// When Postgres is the storage driver, periodic snapshots are persisted and
// listed at GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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
	"time"

	"github.com/joho/godotenv"

	"github.com/adrian-1-cardona/DocPulse/internal/analytics"
	"github.com/adrian-1-cardona/DocPulse/internal/analytics/aggregator"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	"github.com/adrian-1-cardona/DocPulse/pkg/health"
	"github.com/adrian-1-cardona/DocPulse/pkg/kafka"
	"github.com/adrian-1-cardona/DocPulse/pkg/logger"
	"github.com/adrian-1-cardona/DocPulse/pkg/metrics"
	"github.com/adrian-1-cardona/DocPulse/pkg/middleware"
	"github.com/adrian-1-cardona/DocPulse/pkg/postgres"
)

const snapshotInterval = 5 * time.Minute

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
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	handle := analytics.HandleEvent(agg)
	group := kafka.WithGroupID(cfg.Kafka.ConsumerGroup + "-analytics")

	consumers := []*kafka.Consumer{
		kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, handle, group),
		kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents, handle, group),
	}
	for _, c := range consumers {
		defer c.Close()
		go func() {
			if err := c.Start(ctx); err != nil {
				slog.Error("analytics consumer stopped", "error", err)
			}
		}()
	}
	slog.Info("analytics consumers started",
		"topics", []string{cfg.Kafka.Topics.AnalyticsEvents, cfg.Kafka.Topics.DocumentEvents},
	)

	checker := health.NewChecker()

	var snapshots analytics.SnapshotLister
	if cfg.Storage.Driver == "postgres" {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer db.Close()
			st, err := aggregator.NewStore(ctx, db)
			if err != nil {
				slog.Error("failed to prepare analytics snapshot store", "error", err)
				os.Exit(1)
			}
			st.StartPeriodicSave(ctx, agg, snapshotInterval)
			snapshots = st
			checker.Register("postgres", health.PingCheck(db, false))
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics, err := metrics.StartServer("analytics", cfg.Metrics.Port)
		if err != nil {
			slog.Warn("metrics endpoint disabled", "error", err)
		} else {
			defer shutdownMetrics(context.Background())
		}
	}

	h := analytics.NewHandler(agg, snapshots)

	mux := http.NewServeMux()
	h.Register(mux)
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
