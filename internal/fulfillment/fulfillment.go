// Package fulfillment defines the contract for fulfillment providers and a
// simple in-memory implementation used for development and testing.
package fulfillment

import (
	"context"

	"github.com/dukerupert/vanir/internal/domain"
)

// CreateOptions carries flags for a provider-side create call.
type CreateOptions struct {
	NoNotification bool
	Metadata       map[string]any
}

// Provider abstracts a fulfillment backend (a carrier integration or a
// warehouse system).
type Provider interface {
	// CreateFulfillment registers fulfillments for a subset of the order's
	// line items. A provider may split the requested items across several
	// fulfillments.
	CreateFulfillment(ctx context.Context, order *domain.Order, items []domain.FulfillmentItem, opts CreateOptions) ([]domain.Fulfillment, error)

	// CreateShipment marks the fulfillment shipped and attaches tracking links.
	CreateShipment(ctx context.Context, fulfillmentID string, trackingLinks []domain.TrackingLink, opts CreateOptions) (*domain.Fulfillment, error)

	// CancelFulfillment cancels a fulfillment with the provider.
	CancelFulfillment(ctx context.Context, fulfillmentID string) (*domain.Fulfillment, error)
}
