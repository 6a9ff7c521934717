package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/ingestion/registry"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/metrics"
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
	slog.Info("starting indexer service", "num_shards", cfg.Indexer.NumShards)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for shardID, engine := range router.Engines() {
		engine.StartFlushLoop(ctx)
		slog.Debug("flush loop started", "shard_id", shardID)
	}

	// Status updates are best effort: without Postgres documents are still
	// indexed, the registry just keeps reporting them as pending.
	var status consumer.StatusUpdater
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, document status will not be updated", "error", err)
	} else {
		defer db.Close()
		status = registry.New(db)
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, consumer.HandleMessage(router, status))
	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := consumer.New(kafkaConsumer).Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("flushing all shards before shutdown")
	if err := router.FlushAll(); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	slog.Info("indexer service stopped")
}
