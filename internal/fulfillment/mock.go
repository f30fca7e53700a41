package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/vanir/internal/domain"
)

// MockProvider is a mock fulfillment provider for testing. By default it
// creates a single fulfillment per request and tracks everything it has
// created; Func fields override individual operations.
type MockProvider struct {
	CreateFulfillmentFunc func(ctx context.Context, order *domain.Order, items []domain.FulfillmentItem, opts CreateOptions) ([]domain.Fulfillment, error)
	CreateShipmentFunc    func(ctx context.Context, fulfillmentID string, trackingLinks []domain.TrackingLink, opts CreateOptions) (*domain.Fulfillment, error)
	CancelFulfillmentFunc func(ctx context.Context, fulfillmentID string) (*domain.Fulfillment, error)

	// Created holds every fulfillment created through the default path.
	Created map[string]*domain.Fulfillment

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockProvider creates a new mock fulfillment provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Created: make(map[string]*domain.Fulfillment),
	}
}

func (m *MockProvider) CreateFulfillment(ctx context.Context, order *domain.Order, items []domain.FulfillmentItem, opts CreateOptions) ([]domain.Fulfillment, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateFulfillment(%s, %d items)", order.ID, len(items)))

	if m.CreateFulfillmentFunc != nil {
		return m.CreateFulfillmentFunc(ctx, order, items, opts)
	}

	f := domain.Fulfillment{
		ID:             "ful_" + uuid.New().String(),
		OrderID:        order.ID,
		Items:          items,
		NoNotification: opts.NoNotification,
		Metadata:       opts.Metadata,
	}
	for i := range f.Items {
		f.Items[i].FulfillmentID = f.ID
	}
	m.Created[f.ID] = &f
	return []domain.Fulfillment{f}, nil
}

func (m *MockProvider) CreateShipment(ctx context.Context, fulfillmentID string, trackingLinks []domain.TrackingLink, opts CreateOptions) (*domain.Fulfillment, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateShipment(%s)", fulfillmentID))

	if m.CreateShipmentFunc != nil {
		return m.CreateShipmentFunc(ctx, fulfillmentID, trackingLinks, opts)
	}

	f, ok := m.Created[fulfillmentID]
	if !ok {
		f = &domain.Fulfillment{ID: fulfillmentID}
		m.Created[fulfillmentID] = f
	}
	now := time.Now().UTC()
	f.ShippedAt = &now
	f.TrackingLinks = trackingLinks
	f.NoNotification = opts.NoNotification
	return f, nil
}

func (m *MockProvider) CancelFulfillment(ctx context.Context, fulfillmentID string) (*domain.Fulfillment, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CancelFulfillment(%s)", fulfillmentID))

	if m.CancelFulfillmentFunc != nil {
		return m.CancelFulfillmentFunc(ctx, fulfillmentID)
	}

	f, ok := m.Created[fulfillmentID]
	if !ok {
		f = &domain.Fulfillment{ID: fulfillmentID}
		m.Created[fulfillmentID] = f
	}
	now := time.Now().UTC()
	f.CanceledAt = &now
	return f, nil
}
