// Package publisher registers documents and publishes ingest events to Kafka
// for downstream indexing. It performs content-hash-based shard assignment
// and supports idempotent writes.
package publisher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/concordance/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/concordance/internal/ingestion/registry"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/resilience"
)

// Registry is the document table the publisher writes through.
type Registry interface {
	Insert(ctx context.Context, rec registry.Record) error
	FindByIdempotencyKey(ctx context.Context, key string) (*ingestion.IngestResponse, error)
}

// EventPublisher sends events to the ingest topic.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher coordinates document registration and Kafka event production.
type Publisher struct {
	registry  Registry
	producer  EventPublisher
	numShards int
	retry     resilience.RetryConfig
	logger    *slog.Logger
}

// New creates a Publisher distributing documents over numShards shards.
func New(reg Registry, producer EventPublisher, numShards int) *Publisher {
	if numShards <= 0 {
		numShards = 1
	}
	return &Publisher{
		registry:  reg,
		producer:  producer,
		numShards: numShards,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
		},
		logger: slog.Default().With("component", "publisher"),
	}
}

// Ingest registers the document, assigns a shard, and publishes an
// IngestEvent. Duplicate idempotency keys return the original response
// without re-registration.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	if req.IdempotencyKey != "" {
		existing, err := p.registry.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
		if existing != nil {
			p.logger.Info("duplicate ingestion detected",
				"idempotency_key", req.IdempotencyKey,
				"existing_id", existing.DocumentID,
			)
			return existing, nil
		}
	}

	contentHash := fmt.Sprintf("%x", sha256.Sum256([]byte(req.Title+"\x00"+req.Body)))
	shardID := assignShard(contentHash, p.numShards)
	docID := uuid.NewString()
	err := p.registry.Insert(ctx, registry.Record{
		ID:             docID,
		Title:          req.Title,
		ContentHash:    contentHash,
		ContentSize:    len(req.Body),
		ShardID:        shardID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}

	event := kafka.Event{
		Key: strconv.Itoa(shardID),
		Value: ingestion.IngestEvent{
			DocumentID:  docID,
			Title:       req.Title,
			Body:        req.Body,
			Annotations: req.Annotations,
			ShardID:     shardID,
			IngestedAt:  time.Now().UTC(),
		},
	}
	err = resilience.Retry(ctx, "publish-ingest-event", p.retry, func(ctx context.Context) error {
		return p.producer.Publish(ctx, event)
	})
	if err != nil {
		p.logger.Error("failed to publish to kafka, document stuck in PENDING",
			"doc_id", docID,
			"shard_id", shardID,
			"error", err,
		)
	}
	return &ingestion.IngestResponse{
		DocumentID: docID,
		Status:     ingestion.StatusPending,
		ShardID:    shardID,
	}, nil
}

// assignShard deterministically maps a content hash to a shard ID.
func assignShard(contentHash string, numShards int) int {
	var hash uint64
	for i := 0; i < 8 && i < len(contentHash); i++ {
		hash = hash<<8 | uint64(contentHash[i])
	}
	return int(hash % uint64(numShards))
}
