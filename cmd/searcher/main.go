// Command searcher serves search, document lookup and reporting over the
// scored corpus. Results are cached in Redis behind a circuit breaker; the
// cache is invalidated by document events consumed from Kafka. Search and
// report activity is shipped to the analytics topic.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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

	"github.com/adrian-1-cardona/DocPulse/internal/analytics"
	"github.com/adrian-1-cardona/DocPulse/internal/reporting"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/cache"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/executor"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/handler"
	"github.com/adrian-1-cardona/DocPulse/internal/searcher/parser"
	"github.com/adrian-1-cardona/DocPulse/internal/store/backend"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	"github.com/adrian-1-cardona/DocPulse/pkg/health"
	"github.com/adrian-1-cardona/DocPulse/pkg/kafka"
	"github.com/adrian-1-cardona/DocPulse/pkg/logger"
	"github.com/adrian-1-cardona/DocPulse/pkg/metrics"
	"github.com/adrian-1-cardona/DocPulse/pkg/middleware"
	pkgredis "github.com/adrian-1-cardona/DocPulse/pkg/redis"
	"github.com/adrian-1-cardona/DocPulse/pkg/resilience"
)

const matchShards = 8

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
	slog.Info("starting search service", "port", cfg.Server.Port, "shards", matchShards)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opened, err := backend.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer opened.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics, err := metrics.StartServer("searcher", cfg.Metrics.Port)
		if err != nil {
			slog.Warn("metrics endpoint disabled", "error", err)
		} else {
			defer shutdownMetrics(context.Background())
		}
	}

	checker := health.NewChecker()
	checker.Register("store", health.PingCheck(opened.Store, true))

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		checker.Register("redis", health.PingCheck(nil, false))
	} else {
		defer redisClient.Close()
		checker.Register("redis", health.PingCheck(redisClient, false))

		breakerCfg := resilience.CircuitBreakerConfig{}
		if m != nil {
			breakerCfg.OnStateChange = func(name string, to resilience.State) {
				m.SetBreakerState(name, int(to))
			}
		}
		opts := []cache.Option{
			cache.WithMissCheck(pkgredis.IsNilError),
			cache.WithBreaker(resilience.NewCircuitBreaker("search-cache", breakerCfg)),
		}
		if m != nil {
			opts = append(opts, cache.WithObserver(m.Cache()))
		}
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, opts...)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)

		// Every instance must see every invalidation, so each gets its own group.
		host, _ := os.Hostname()
		invalidations := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents,
			queryCache.HandleDocumentEvent,
			kafka.WithGroupID(fmt.Sprintf("%s-searcher-%s-%d", cfg.Kafka.ConsumerGroup, host, os.Getpid())),
		)
		defer invalidations.Close()
		go func() {
			if err := invalidations.Start(ctx); err != nil {
				slog.Error("document event consumer stopped", "error", err)
			}
		}()
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 100, 0)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	exec := executor.New(opened.Store, matchShards)
	searchH := handler.New(exec, queryCache, collector, m, handler.Config{
		Limits: parser.Limits{
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxResults:   cfg.Search.MaxResults,
		},
		Timeout: cfg.Search.Timeout,
	})
	reportH := reporting.NewHandler(opened.Store, reporting.NewGenerator(), collector, m)

	mux := http.NewServeMux()
	searchH.Register(mux)
	reportH.Register(mux)
	mux.HandleFunc("GET /health", searchH.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
