// Command gateway starts the public entry point of the cluster. It applies
// per-client rate limiting and CORS, proxies requests to the ingestion,
// searcher and analytics services, and serves document status from the
// Postgres registry when one is reachable.
//
// Usage:
//
//	go run ./cmd/gateway [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/gateway"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/ingestion/registry"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/ratelimit"
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
	slog.Info("starting gateway service",
		"port", cfg.Gateway.Port,
		"ingestion_url", cfg.Gateway.IngestionURL,
		"searcher_url", cfg.Gateway.SearcherURL,
		"analytics_url", cfg.Gateway.AnalyticsURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()

	var docs gateway.DocumentLookup
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, document lookups disabled", "error", err)
	} else {
		defer db.Close()
		docs = registry.New(db)
		checker.Register("postgres", health.Ping(db.Ping, health.StatusDegraded))
	}

	gw, err := gateway.New(gateway.Config{
		IngestionURL: cfg.Gateway.IngestionURL,
		SearcherURL:  cfg.Gateway.SearcherURL,
		AnalyticsURL: cfg.Gateway.AnalyticsURL,
	}, docs)
	if err != nil {
		slog.Error("invalid gateway config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	checker.Register("searcher", health.Ping(backendLive(client, cfg.Gateway.SearcherURL), health.StatusDown))
	checker.Register("ingestion", health.Ping(backendLive(client, cfg.Gateway.IngestionURL), health.StatusDegraded))
	checker.Register("analytics", health.Ping(backendLive(client, cfg.Gateway.AnalyticsURL), health.StatusDegraded))

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	var limiter *ratelimit.Limiter
	if cfg.Search.RateLimitPerMinute > 0 {
		limiter = ratelimit.New(cfg.Search.RateLimitPerMinute, time.Minute)
		limiter.StartCleanup(ctx, 5*time.Minute)
	}

	mux := http.NewServeMux()
	gw.Register(mux)
	checker.RegisterRoutes(mux)

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.CORS(middleware.DefaultCORSConfig()),
			middleware.RateLimit(limiter),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port, promReg)
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

	slog.Info("gateway service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway service stopped")
}

// backendLive probes a backend's liveness endpoint.
func backendLive(client *http.Client, base string) func(context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health/live", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s returned %d", base, resp.StatusCode)
		}
		return nil
	}
}
