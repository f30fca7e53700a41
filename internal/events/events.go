package events

import (
	"context"
	"time"
)

// Order event names. Consumers subscribe to these subjects.
const (
	OrderPlaced               = "order.placed"
	OrderUpdated              = "order.updated"
	OrderCompleted            = "order.completed"
	OrderCanceled             = "order.canceled"
	OrderFulfillmentCreated   = "order.fulfillment_created"
	OrderFulfillmentCanceled  = "order.fulfillment_canceled"
	OrderShipmentCreated      = "order.shipment_created"
	OrderPaymentCaptured      = "order.payment_captured"
	OrderPaymentCaptureFailed = "order.payment_capture_failed"
	OrderRefundCreated        = "order.refund_created"
	OrderItemsReturned        = "order.items_returned"
	OrderReturnActionRequired = "order.return_action_required"
	OrderGiftCardCreated      = "order.gift_card_created"
)

// Event is a domain event ready for publication.
type Event struct {
	Name       string         `json:"name"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher delivers committed domain events to external consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
