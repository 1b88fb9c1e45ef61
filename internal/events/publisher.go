package events

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/cinesync/cinesync/pkg/config"
	"github.com/cinesync/cinesync/pkg/kafka"
	"github.com/cinesync/cinesync/pkg/logger"
	"github.com/cinesync/cinesync/pkg/metrics"
	"github.com/cinesync/cinesync/pkg/resilience"
)

// Producer is the transport the publisher writes through. pkg/kafka.Producer
// implements it; tests substitute a recorder.
type Producer interface {
	Publish(ctx context.Context, event kafka.Event) error
	Close() error
}

// Publisher is a best-effort domain event publisher. Publishing is
// fire-and-forget relative to the triggering request: a lost event never
// rolls back the business transaction that produced it.
type Publisher struct {
	cfg       config.KafkaConfig
	producer  Producer
	metrics   *metrics.Metrics
	connected atomic.Bool
	closed    atomic.Bool
	logger    *slog.Logger
}

// NewPublisher creates a Publisher over the given producer. Call Connect
// before publishing; until then every event is dropped. A nil metrics
// disables the Prometheus counters.
func NewPublisher(cfg config.KafkaConfig, producer Producer, m *metrics.Metrics) *Publisher {
	return &Publisher{
		cfg:      cfg,
		producer: producer,
		metrics:  m,
		logger:   logger.WithComponent("event-publisher"),
	}
}

// Connect verifies broker reachability with a bounded fixed-delay retry.
// Exhausting the retries is fatal: the caller should abort startup.
func (p *Publisher) Connect(ctx context.Context) error {
	err := resilience.Retry(ctx, "broker-connect",
		resilience.Fixed(p.cfg.ConnectRetries, p.cfg.ConnectDelay),
		func() error {
			return kafka.Ping(ctx, p.cfg.Brokers)
		})
	if err != nil {
		return err
	}
	p.connected.Store(true)
	p.logger.Info("connected to broker", "brokers", p.cfg.Brokers)
	return nil
}

// UserRegistered publishes a registration event. When the publisher is not
// connected, or the write fails, the event is logged and dropped; no error
// reaches the caller.
func (p *Publisher) UserRegistered(ctx context.Context, userID int64, email string) {
	if !p.connected.Load() {
		p.logger.Error("not connected, dropping event",
			"event", EventUserRegistered,
			"user_id", userID,
		)
		if p.metrics != nil {
			p.metrics.EventsDroppedTotal.Inc()
		}
		return
	}
	err := p.producer.Publish(ctx, kafka.Event{
		Key:   strconv.FormatInt(userID, 10),
		Value: NewUserRegistered(userID, email),
	})
	if err != nil {
		p.logger.Error("failed to publish event, dropping",
			"event", EventUserRegistered,
			"user_id", userID,
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.EventsPublishedTotal.WithLabelValues(EventUserRegistered, "error").Inc()
		}
		return
	}
	if p.metrics != nil {
		p.metrics.EventsPublishedTotal.WithLabelValues(EventUserRegistered, "ok").Inc()
	}
	p.logger.Info("event published", "event", EventUserRegistered, "user_id", userID)
}

// Close releases the producer, whether or not Connect ever succeeded. Safe
// to call more than once.
func (p *Publisher) Close() error {
	p.connected.Store(false)
	if p.closed.Swap(true) {
		return nil
	}
	return p.producer.Close()
}
