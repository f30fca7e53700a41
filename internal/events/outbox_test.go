package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/vanir/internal/events"
)

func TestOutboxFlush(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes in emission order and clears the buffer", func(t *testing.T) {
		outbox := events.NewOutbox()
		outbox.Emit(events.OrderPlaced, map[string]any{"id": "order_1"})
		outbox.Emit(events.OrderGiftCardCreated, map[string]any{"id": "gift_1"})

		pub := events.NewMemoryPublisher()
		assert.NoError(t, outbox.Flush(ctx, pub))

		assert.Equal(t, []string{events.OrderPlaced, events.OrderGiftCardCreated}, pub.Names())
		assert.Empty(t, outbox.Pending())

		published := pub.Published()
		assert.Equal(t, "order_1", published[0].Payload["id"])
		assert.False(t, published[0].OccurredAt.IsZero())
	})

	t.Run("stops at the first failure and retains the rest", func(t *testing.T) {
		outbox := events.NewOutbox()
		outbox.Emit(events.OrderPlaced, nil)
		outbox.Emit(events.OrderUpdated, nil)
		outbox.Emit(events.OrderCompleted, nil)

		pub := events.NewMemoryPublisher()
		pub.PublishFunc = func(ctx context.Context, event events.Event) error {
			if event.Name == events.OrderUpdated {
				return errors.New("broker unavailable")
			}
			return nil
		}

		err := outbox.Flush(ctx, pub)
		assert.Error(t, err)

		// The failed event and everything after it stay pending.
		pending := outbox.Pending()
		assert.Len(t, pending, 2)
		assert.Equal(t, events.OrderUpdated, pending[0].Name)
		assert.Equal(t, events.OrderCompleted, pending[1].Name)
		assert.Equal(t, []string{events.OrderPlaced}, pub.Names())
	})

	t.Run("flush of an empty outbox is a no-op", func(t *testing.T) {
		outbox := events.NewOutbox()
		pub := events.NewMemoryPublisher()
		assert.NoError(t, outbox.Flush(ctx, pub))
		assert.Empty(t, pub.Names())
	})
}

func TestOutboxDiscard(t *testing.T) {
	outbox := events.NewOutbox()
	outbox.Emit(events.OrderPlaced, nil)
	outbox.Emit(events.OrderUpdated, nil)

	outbox.Discard()
	assert.Empty(t, outbox.Pending())

	pub := events.NewMemoryPublisher()
	assert.NoError(t, outbox.Flush(context.Background(), pub))
	assert.Empty(t, pub.Names())
}
