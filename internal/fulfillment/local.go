package fulfillment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/vanir/internal/domain"
)

// LocalProvider is an in-process fulfillment provider for development and
// deployments without a carrier integration. Each request becomes a single
// fulfillment tracked in memory.
type LocalProvider struct {
	mu      sync.Mutex
	created map[string]*domain.Fulfillment
}

// NewLocalProvider creates a local fulfillment provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{
		created: make(map[string]*domain.Fulfillment),
	}
}

func (p *LocalProvider) CreateFulfillment(ctx context.Context, order *domain.Order, items []domain.FulfillmentItem, opts CreateOptions) ([]domain.Fulfillment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

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
	p.created[f.ID] = &f
	return []domain.Fulfillment{f}, nil
}

func (p *LocalProvider) CreateShipment(ctx context.Context, fulfillmentID string, trackingLinks []domain.TrackingLink, opts CreateOptions) (*domain.Fulfillment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := p.get(fulfillmentID)
	now := time.Now().UTC()
	f.ShippedAt = &now
	f.TrackingLinks = trackingLinks
	f.NoNotification = opts.NoNotification
	return f, nil
}

func (p *LocalProvider) CancelFulfillment(ctx context.Context, fulfillmentID string) (*domain.Fulfillment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := p.get(fulfillmentID)
	now := time.Now().UTC()
	f.CanceledAt = &now
	return f, nil
}

func (p *LocalProvider) get(fulfillmentID string) *domain.Fulfillment {
	f, ok := p.created[fulfillmentID]
	if !ok {
		f = &domain.Fulfillment{ID: fulfillmentID}
		p.created[fulfillmentID] = f
	}
	return f
}
