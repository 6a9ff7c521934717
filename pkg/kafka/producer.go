package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/concordance/pkg/config"
)

// Event is one message to publish. Events sharing a Key land on the same
// partition and keep their relative order; Value is encoded as JSON.
type Event struct {
	Key   string
	Value any
}

// Producer writes JSON events to a single topic, waiting for all in-sync
// replicas to acknowledge each write.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              100,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish writes a single event synchronously.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.PublishBatch(ctx, []Event{event})
}

// PublishBatch writes events in one call. Nothing is written if any event
// fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, size, err := encode(events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("write failed", "messages", len(msgs), "error", err)
		return fmt.Errorf("writing %d messages to %s: %w", len(msgs), p.writer.Topic, err)
	}
	p.logger.Debug("published", "messages", len(msgs), "bytes", size)
	return nil
}

func encode(events []Event) ([]kafka.Message, int, error) {
	msgs := make([]kafka.Message, len(events))
	size := 0
	for i, e := range events {
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding event %q: %w", e.Key, err)
		}
		msgs[i] = kafka.Message{Key: []byte(e.Key), Value: value}
		size += len(value)
	}
	return msgs, size, nil
}

func (p *Producer) Topic() string {
	return p.writer.Topic
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
