package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSPublisher publishes domain events to a NATS JetStream stream. Subjects
// are the event names (order.placed, order.canceled, ...), all captured by
// the ORDERS stream's "order.>" wildcard.
type NATSPublisher struct {
	js jetstream.JetStream
}

// NewNATSPublisher connects the given NATS connection to JetStream and
// ensures the ORDERS stream exists.
func NewNATSPublisher(ctx context.Context, nc *nats.Conn) (*NATSPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "ORDERS",
		Subjects:  []string{"order.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ORDERS stream: %w", err)
	}

	return &NATSPublisher{js: js}, nil
}

// Publish sends the event to its subject as a JSON message.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Name, err)
	}

	if _, err := p.js.Publish(ctx, event.Name, data); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Name, err)
	}

	return nil
}
