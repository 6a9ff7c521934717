// Command analytics aggregates the search events that every searcher
// publishes to Kafka and serves cluster-wide statistics at
// GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator(20)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("lag %d", consumer.Lag())}
	})

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, cluster stats will not be persisted", "error", err)
	} else {
		defer db.Close()
		store := snapshot.NewStore(db, "cluster")
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("stats snapshot schema unavailable", "error", err)
		} else {
			store.StartPeriodicSave(ctx, aggregator, time.Minute)
			checker.Register("postgres", health.Ping(db.Ping, health.StatusDegraded))
		}
	}

	mux := http.NewServeMux()
	analytics.NewHandler(aggregator).Register(mux)
	checker.RegisterRoutes(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.CORS(middleware.DefaultCORSConfig())),
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
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
