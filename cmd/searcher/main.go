package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/concordance/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/tracing"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "num_shards", cfg.Indexer.NumShards)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tok := tokenizer.New(tokenizer.Options{
		Stem:            cfg.Tokenizer.Stem,
		RemoveStopWords: cfg.Tokenizer.RemoveStopWords,
		MinLength:       cfg.Tokenizer.MinLength,
	})
	router, err := shard.NewRouter(cfg.Indexer, cfg.Indexer.NumShards, tok, m)
	if err != nil {
		slog.Error("failed to open shards", "error", err)
		os.Exit(1)
	}
	defer router.Close()
	slog.Info("shards opened", "data_dir", cfg.Indexer.DataDir)

	var (
		queryCache  *cache.QueryCache
		redisClient *pkgredis.Client
	)
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	go reloadLoop(ctx, router, queryCache, cfg.Indexer.ReloadInterval)

	aggregator := analytics.NewAggregator(10)
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer producer.Close()
	collector := analytics.NewCollector(producer, aggregator, 10000, 100, 5*time.Second)
	collector.Start(ctx)
	defer collector.Close()

	checker := health.NewChecker()
	checker.Register("shards", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d shards, %d segments", router.NumShards(), segmentCount(router)),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, search stats will not be persisted", "error", err)
	} else {
		defer db.Close()
		hostname, _ := os.Hostname()
		store := snapshot.NewStore(db, hostname)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("stats snapshot schema unavailable", "error", err)
		} else {
			store.StartPeriodicSave(ctx, aggregator, snapshotInterval)
			checker.Register("postgres", health.Ping(db.Ping, health.StatusDegraded))
		}
	}

	shards := make([]executor.Index, 0, router.NumShards())
	for _, e := range router.Engines() {
		shards = append(shards, e)
	}
	exec := executor.NewSharded(shards, tok, cfg.Search.TimeoutPerShard)
	h := handler.New(exec, handler.Config{
		DefaultLimit:  cfg.Search.DefaultLimit,
		MaxResults:    cfg.Search.MaxResults,
		MaxConcurrent: cfg.Search.MaxConcurrentQueries,
		Cache:         queryCache,
		Tracker:       collector,
		Tracer:        tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate),
		Metrics:       m,
	})

	var limiter *ratelimit.Limiter
	if cfg.Search.RateLimitPerMinute > 0 {
		limiter = ratelimit.New(cfg.Search.RateLimitPerMinute, time.Minute)
		limiter.StartCleanup(ctx, 5*time.Minute)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	analytics.NewHandler(aggregator).Register(mux)
	checker.RegisterRoutes(mux)

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.CORS(middleware.DefaultCORSConfig()),
			middleware.RateLimit(limiter),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port, reg)
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			_ = shutdownMetrics(shutdownCtx)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// reloadLoop picks up segments flushed by the indexer. Cached results are
// dropped whenever new segments appear, since they may now be incomplete.
func reloadLoop(ctx context.Context, router *shard.Router, queryCache *cache.QueryCache, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			added, err := router.ReloadAll()
			if err != nil {
				slog.Error("segment reload failed", "error", err)
			}
			if added == 0 {
				continue
			}
			slog.Info("new segments loaded", "segments", added)
			if queryCache != nil {
				if err := queryCache.Invalidate(ctx); err != nil {
					slog.Error("cache invalidation after reload failed", "error", err)
				}
			}
		}
	}
}

func segmentCount(router *shard.Router) int {
	n := 0
	for _, e := range router.Engines() {
		n += e.SegmentCount()
	}
	return n
}
