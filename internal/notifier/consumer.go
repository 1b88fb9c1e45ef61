// Package notifier drains the user-event queue and dispatches side effects
// per event type. Messages are acknowledged after handling, success or
// caught failure, so delivery is at-least-once and a poisoned message never
// blocks the queue. Unrecognised event names are logged and dropped:
// retrying cannot make them recognised. There is no dead-letter routing.
package notifier

import (
	"context"
	"log/slog"

	"github.com/cinesync/cinesync/internal/events"
	"github.com/cinesync/cinesync/internal/notifier/mailer"
	"github.com/cinesync/cinesync/pkg/config"
	"github.com/cinesync/cinesync/pkg/kafka"
	"github.com/cinesync/cinesync/pkg/logger"
	"github.com/cinesync/cinesync/pkg/metrics"
)

// Consumer wraps the Kafka consumer with the notification dispatch logic.
type Consumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a Consumer for the user-event topic. A nil metrics disables
// the Prometheus counters.
func New(cfg config.KafkaConfig, m mailer.Mailer, collectors *metrics.Metrics) *Consumer {
	return &Consumer{
		consumer: kafka.NewConsumer(cfg, cfg.UserEventTopic, HandleMessage(m, collectors)),
		logger:   logger.WithComponent("notifier"),
	}
}

// Run consumes until ctx is cancelled, reconnecting on broker failures.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("notifier starting")
	return c.consumer.Run(ctx)
}

// HandleMessage returns the per-message handler. Every path returns nil so
// the consumer acknowledges the message: decode and send failures are
// caught and logged here rather than redelivered forever.
func HandleMessage(m mailer.Mailer, collectors *metrics.Metrics) kafka.MessageHandler {
	log := logger.WithComponent("notifier")
	consumed := func(event, outcome string) {
		if collectors != nil {
			collectors.EventsConsumedTotal.WithLabelValues(event, outcome).Inc()
		}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		envelope, err := kafka.DecodeJSON[events.Envelope](value)
		if err != nil {
			log.Error("failed to decode event envelope",
				"key", string(key),
				"error", err,
			)
			consumed("malformed", "error")
			return nil
		}

		switch envelope.Event {
		case events.EventUserRegistered:
			event, err := kafka.DecodeJSON[events.UserRegistered](value)
			if err != nil {
				log.Error("failed to decode UserRegistered event", "error", err)
				consumed(envelope.Event, "error")
				return nil
			}
			if err := m.SendWelcome(ctx, event.UserID, event.Email); err != nil {
				log.Error("failed to send welcome notification",
					"user_id", event.UserID,
					"error", err,
				)
				consumed(envelope.Event, "error")
				return nil
			}
			consumed(envelope.Event, "ok")
			log.Info("welcome notification sent",
				"user_id", event.UserID,
				"email", event.Email,
			)
		default:
			log.Warn("unknown event type, dropping", "event", envelope.Event)
			consumed(envelope.Event, "unknown")
		}
		return nil
	}
}
