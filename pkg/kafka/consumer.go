// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer serialises events as JSON, while the
// consumer decodes them via a pluggable MessageHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinesync/cinesync/pkg/config"
	"github.com/cinesync/cinesync/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message. A non-nil
// return is logged but the message is still acknowledged: a poisoned
// message must not block the queue.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler. One message is in flight at a time; the offset is
// committed only after the handler returns, which yields at-least-once
// delivery.
type Consumer struct {
	cfg            config.KafkaConfig
	topic          string
	handler        MessageHandler
	reconnectDelay time.Duration
	logger         *slog.Logger

	// session runs one broker session; swapped out in tests.
	session func(ctx context.Context) error
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	c := &Consumer{
		cfg:            cfg,
		topic:          topic,
		handler:        handler,
		reconnectDelay: delay,
		logger:         logger.WithComponent("kafka-consumer").With("topic", topic),
	}
	c.session = c.consumeSession
	return c
}

// Run consumes messages until ctx is cancelled. Connection-level failures
// are not fatal: the reader is closed, the failure is logged, and a fresh
// session is opened after the reconnect delay.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		}
		c.logger.Error("broker session failed, reconnecting",
			"error", err,
			"delay", c.reconnectDelay,
		)
		select {
		case <-time.After(c.reconnectDelay):
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// consumeSession opens a reader and processes messages until a
// connection-level error or ctx cancellation.
func (c *Consumer) consumeSession(ctx context.Context) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		Topic:       c.topic,
		GroupID:     c.cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	defer reader.Close()

	c.logger.Info("consuming", "group", c.cfg.ConsumerGroup)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("fetching message: %w", err)
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Error("failed to process message, acknowledging anyway",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("committing offset %d: %w", msg.Offset, err)
		}
	}
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
