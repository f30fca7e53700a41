package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability
// of the order lifecycle.
type BusinessMetrics struct {
	// Orders
	OrdersPlaced    *prometheus.CounterVec
	OrdersCompleted *prometheus.CounterVec
	OrdersCanceled  *prometheus.CounterVec
	OrderValue      *prometheus.HistogramVec
	OrderItemCount  *prometheus.HistogramVec

	// Payments
	PaymentsCaptured      *prometheus.CounterVec
	PaymentCaptureFailed  *prometheus.CounterVec

	// Refunds
	RefundsIssued *prometheus.CounterVec
	RefundAmount  *prometheus.CounterVec

	// Fulfillment
	FulfillmentsCreated  *prometheus.CounterVec
	FulfillmentsCanceled *prometheus.CounterVec
	ShipmentsCreated     *prometheus.CounterVec
	ReturnsReceived      *prometheus.CounterVec

	// Gift cards
	GiftCardsRedeemed *prometheus.CounterVec

	// Events
	EventsPublished     *prometheus.CounterVec
	EventPublishFailed  *prometheus.CounterVec
}

// NewBusinessMetrics creates and registers all business metrics
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "vanir"
	}

	subsystem := "orders"

	m := &BusinessMetrics{
		OrdersPlaced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "placed_total",
				Help:      "Total orders created from carts",
			},
			[]string{"region_id"},
		),
		OrdersCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "completed_total",
				Help:      "Total orders marked completed",
			},
			[]string{"region_id"},
		),
		OrdersCanceled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "canceled_total",
				Help:      "Total orders canceled",
			},
			[]string{"region_id"},
		),
		OrderValue: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "value_cents",
				Help:      "Order total distribution in currency minor units",
				Buckets:   []float64{1000, 2500, 5000, 7500, 10000, 15000, 25000, 50000, 100000},
			},
			[]string{"currency_code"},
		),
		OrderItemCount: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "item_count",
				Help:      "Number of line items per order",
				Buckets:   []float64{1, 2, 3, 5, 10, 15, 20},
			},
			[]string{"region_id"},
		),
		PaymentsCaptured: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payments_captured_total",
				Help:      "Total payments captured",
			},
			[]string{"provider_id"},
		),
		PaymentCaptureFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_capture_failed_total",
				Help:      "Total payment capture failures",
			},
			[]string{"provider_id"},
		),
		RefundsIssued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refunds_issued_total",
				Help:      "Total refunds issued to customers",
			},
			[]string{"reason"},
		),
		RefundAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refund_amount_cents",
				Help:      "Total refund amount in currency minor units",
			},
			[]string{"currency_code"},
		),
		FulfillmentsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fulfillments_created_total",
				Help:      "Total fulfillments created",
			},
			[]string{"provider_id"},
		),
		FulfillmentsCanceled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fulfillments_canceled_total",
				Help:      "Total fulfillments canceled",
			},
			[]string{"provider_id"},
		),
		ShipmentsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "shipments_created_total",
				Help:      "Total shipments registered",
			},
			[]string{"provider_id"},
		),
		ReturnsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "returns_received_total",
				Help:      "Total returns received",
			},
			[]string{"region_id"},
		),
		GiftCardsRedeemed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gift_cards_redeemed_total",
				Help:      "Total gift card redemptions during order creation",
			},
			[]string{"region_id"},
		),
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "events_published_total",
				Help:      "Total domain events published",
			},
			[]string{"event"},
		),
		EventPublishFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "event_publish_failed_total",
				Help:      "Total domain event publish failures",
			},
			[]string{"event"},
		),
	}

	return m
}
