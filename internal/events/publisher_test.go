package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cinesync/cinesync/pkg/config"
	"github.com/cinesync/cinesync/pkg/kafka"
)

// recordingProducer captures published events.
type recordingProducer struct {
	published []kafka.Event
	err       error
	closed    int
}

func (r *recordingProducer) Publish(ctx context.Context, event kafka.Event) error {
	if r.err != nil {
		return r.err
	}
	r.published = append(r.published, event)
	return nil
}

func (r *recordingProducer) Close() error {
	r.closed++
	return nil
}

func testKafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{
		Brokers:        []string{"127.0.0.1:1"},
		UserEventTopic: "user-events",
		ConnectRetries: 2,
		ConnectDelay:   10 * time.Millisecond,
	}
}

// TestUserRegisteredDroppedWhenUnconnected verifies fire-and-forget: with no
// broker connection the event is dropped silently and nothing is published.
func TestUserRegisteredDroppedWhenUnconnected(t *testing.T) {
	producer := &recordingProducer{}
	p := NewPublisher(testKafkaConfig(), producer, nil)

	p.UserRegistered(context.Background(), 42, "ripley@example.com")

	if len(producer.published) != 0 {
		t.Errorf("expected no publish while unconnected, got %d", len(producer.published))
	}
}

// TestUserRegisteredPublishes verifies the wire shape of the event once
// connected: partition key is the user id, payload is the flat JSON object.
func TestUserRegisteredPublishes(t *testing.T) {
	producer := &recordingProducer{}
	p := NewPublisher(testKafkaConfig(), producer, nil)
	p.connected.Store(true)

	p.UserRegistered(context.Background(), 42, "ripley@example.com")

	if len(producer.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(producer.published))
	}
	event := producer.published[0]
	if event.Key != "42" {
		t.Errorf("expected key 42, got %q", event.Key)
	}

	raw, err := json.Marshal(event.Value)
	if err != nil {
		t.Fatalf("marshaling event value: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshaling wire value: %v", err)
	}
	if wire["event"] != "UserRegistered" {
		t.Errorf("expected event discriminator UserRegistered, got %v", wire["event"])
	}
	if wire["user_id"] != float64(42) {
		t.Errorf("expected user_id 42, got %v", wire["user_id"])
	}
	if wire["email"] != "ripley@example.com" {
		t.Errorf("expected email field, got %v", wire["email"])
	}
}

// TestUserRegisteredSwallowsPublishError verifies a broker write failure is
// logged and dropped, never surfaced to the registration path.
func TestUserRegisteredSwallowsPublishError(t *testing.T) {
	producer := &recordingProducer{err: errors.New("broker write failed")}
	p := NewPublisher(testKafkaConfig(), producer, nil)
	p.connected.Store(true)

	// Must not panic or propagate; UserRegistered has no error return.
	p.UserRegistered(context.Background(), 42, "ripley@example.com")
}

// TestConnectExhaustsRetries verifies the bounded connect: unreachable
// brokers fail after the configured attempts and leave the publisher
// unconnected.
func TestConnectExhaustsRetries(t *testing.T) {
	producer := &recordingProducer{}
	p := NewPublisher(testKafkaConfig(), producer, nil)

	start := time.Now()
	err := p.Connect(context.Background())
	if err == nil {
		t.Fatal("expected connect to fail against an unreachable broker")
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected at least one retry delay, finished in %v", elapsed)
	}
	if p.connected.Load() {
		t.Error("publisher must stay unconnected after a failed connect")
	}

	p.UserRegistered(context.Background(), 42, "ripley@example.com")
	if len(producer.published) != 0 {
		t.Error("expected events to be dropped after a failed connect")
	}
}

// TestCloseIdempotent verifies Close is safe to call repeatedly and only
// closes the producer once.
func TestCloseIdempotent(t *testing.T) {
	producer := &recordingProducer{}
	p := NewPublisher(testKafkaConfig(), producer, nil)
	p.connected.Store(true)

	for i := 0; i < 3; i++ {
		if err := p.Close(); err != nil {
			t.Fatalf("close %d failed: %v", i, err)
		}
	}
	if producer.closed != 1 {
		t.Errorf("expected producer closed once, got %d", producer.closed)
	}
}

// TestCloseWithoutConnect verifies the producer is released even when
// Connect never succeeded, so startup failures do not leak writers.
func TestCloseWithoutConnect(t *testing.T) {
	producer := &recordingProducer{}
	p := NewPublisher(testKafkaConfig(), producer, nil)

	if err := p.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if producer.closed != 1 {
		t.Errorf("expected producer closed once, got %d", producer.closed)
	}
}
