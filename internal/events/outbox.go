package events

import (
	"context"
	"time"
)

// Outbox buffers events raised during a transaction. Events are handed to the
// publisher only after the transaction commits, so consumers are never
// notified of effects that were rolled back. An Outbox is scoped to a single
// operation invocation and is not safe for concurrent use.
type Outbox struct {
	pending []Event
}

// NewOutbox creates an empty transaction-scoped event buffer.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Emit appends an event to the buffer.
func (o *Outbox) Emit(name string, payload map[string]any) {
	o.pending = append(o.pending, Event{
		Name:       name,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
}

// Pending returns the buffered events in emission order.
func (o *Outbox) Pending() []Event {
	return o.pending
}

// Discard drops all buffered events. Called when the transaction rolls back.
func (o *Outbox) Discard() {
	o.pending = nil
}

// Flush publishes all buffered events in order and clears the buffer.
// The first publish failure stops the flush and is returned; already
// published events are not retracted.
func (o *Outbox) Flush(ctx context.Context, pub Publisher) error {
	for i, event := range o.pending {
		if err := pub.Publish(ctx, event); err != nil {
			o.pending = o.pending[i:]
			return err
		}
	}
	o.pending = nil
	return nil
}
