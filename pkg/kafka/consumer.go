// Package kafka wraps segmentio/kafka-go with JSON producers and a
// consumer-group loop that commits each message after its handler succeeds.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/resilience"
)

// MessageHandler processes one message. Errors are retried with backoff
// unless marked with resilience.Permanent.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer feeds one topic to a MessageHandler as a member of the configured
// consumer group.
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// NewConsumer joins cfg.ConsumerGroup on topic. A group with no committed
// offsets starts from the oldest retained message, so events published
// before the first consumer came up are still processed.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
			StartOffset: kafka.FirstOffset,
		}),
		handler: handler,
		retry:   resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second},
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled and then closes the reader. A
// message whose handler fails permanently, or keeps failing after the
// retries, is logged and committed so it cannot stall its partition.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		if !c.process(ctx, msg) {
			break
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
	c.logger.Info("consumer stopping", "reason", ctx.Err())
	return c.reader.Close()
}

// process runs the handler with retries. It returns false when ctx ended
// before the message was settled, leaving it uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	err := resilience.Retry(ctx, "handle-message", c.retry, func(ctx context.Context) error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	c.logger.Error("dropping message",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"error", err,
	)
	return true
}

// Lag is the reader's last reported lag, for health checks.
func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}

// DecodeJSON unmarshals a message value into T. Its errors are permanent:
// redelivering the same bytes cannot succeed.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, resilience.Permanent(fmt.Errorf("decoding kafka message: %w", err))
	}
	return v, nil
}
