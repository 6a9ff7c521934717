// Package consumer reads ingest events from Kafka and indexes them into the
// shard that the ingestion service assigned.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/resilience"
)

// Router resolves a shard ID to its engine.
type Router interface {
	Route(shardID int) (*indexer.Engine, error)
}

// StatusUpdater records the outcome of indexing a document.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, docID, status string) error
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that indexes each ingest event
// into its shard. status may be nil. Undecodable events and documents the
// engine rejects as invalid are dropped so they do not block the partition;
// an unknown shard is a permanent failure, anything else is retried.
func HandleMessage(router Router, status StatusUpdater) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		engine, err := router.Route(event.ShardID)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("routing shard %d: %w", event.ShardID, err))
		}

		logger.Debug("processing ingest event",
			"doc_id", event.DocumentID,
			"shard_id", event.ShardID,
		)

		if err := engine.IndexDocument(toDocument(event)); err != nil {
			updateDocStatus(ctx, status, event.DocumentID, ingestion.StatusFailed, logger)
			if errors.Is(err, apperrors.ErrInvalidInput) {
				logger.Warn("document rejected by indexer",
					"doc_id", event.DocumentID,
					"error", err,
				)
				return nil
			}
			return fmt.Errorf("indexing document %s in shard %d: %w", event.DocumentID, event.ShardID, err)
		}

		updateDocStatus(ctx, status, event.DocumentID, ingestion.StatusIndexed, logger)
		logger.Info("document indexed",
			"doc_id", event.DocumentID,
			"shard_id", event.ShardID,
		)
		return nil
	}
}

func toDocument(event ingestion.IngestEvent) indexer.Document {
	doc := indexer.Document{
		ID:    event.DocumentID,
		Title: event.Title,
		Body:  event.Body,
	}
	for _, a := range event.Annotations {
		doc.Annotations = append(doc.Annotations, indexer.Annotation{
			Name:  a.Name,
			Start: a.Start,
			End:   a.End,
			Value: a.Value,
		})
	}
	return doc
}

func updateDocStatus(ctx context.Context, status StatusUpdater, docID, value string, logger *slog.Logger) {
	if status == nil {
		return
	}
	if err := status.UpdateStatus(ctx, docID, value); err != nil {
		logger.Error("failed to update document status",
			"doc_id", docID,
			"status", value,
			"error", err,
		)
	}
}
