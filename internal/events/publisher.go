// Package events publishes marketplace events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Aidin1998/nftmarket/internal/market"
)

// Publisher delivers committed marketplace events.
type Publisher interface {
	Publish(ctx context.Context, events []market.Event) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic, keyed by token so that
// all events for one token land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.CRC32Balancer{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
		},
		logger: logger,
	}
}

// Publish writes one Kafka message per event.
func (p *KafkaPublisher) Publish(ctx context.Context, evts []market.Event) error {
	if len(evts) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evts))
	for _, ev := range evts {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		key := ev.Attributes["token_id"]
		if key == "" {
			key = ev.ID.String()
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(key),
			Value: data,
			Time:  ev.EmittedAt,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(ev.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("failed to publish events",
			zap.Int("count", len(msgs)),
			zap.Error(err))
		return err
	}
	p.logger.Debug("published events", zap.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher logs events instead of delivering them. Used when no
// brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates the logging fallback publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs each event at debug level.
func (p *LogPublisher) Publish(ctx context.Context, evts []market.Event) error {
	for _, ev := range evts {
		p.logger.Debug("event",
			zap.String("id", ev.ID.String()),
			zap.String("type", ev.Type),
			zap.Any("attributes", ev.Attributes))
	}
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
