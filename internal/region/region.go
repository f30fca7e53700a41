// Package region exposes lookup of region settings (tax rate, currency,
// permitted countries) used during order updates and totals decoration.
package region

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukerupert/vanir/internal/domain"
)

// Service retrieves region configuration.
type Service interface {
	// Retrieve loads a region with its countries.
	Retrieve(ctx context.Context, regionID string) (*domain.Region, error)
}

// MemoryService is an in-memory region store for development and testing.
type MemoryService struct {
	mu      sync.RWMutex
	regions map[string]*domain.Region
}

// NewMemoryService creates an empty in-memory region service.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		regions: make(map[string]*domain.Region),
	}
}

// Add registers a region.
func (s *MemoryService) Add(r *domain.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions[r.ID] = r
}

func (s *MemoryService) Retrieve(ctx context.Context, regionID string) (*domain.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.regions[regionID]
	if !ok {
		return nil, domain.NotFound("region.Retrieve", "region", regionID)
	}
	cp := *r
	return &cp, nil
}

// MockService is a mock region service for testing with overridable behavior.
type MockService struct {
	RetrieveFunc func(ctx context.Context, regionID string) (*domain.Region, error)

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

func (m *MockService) Retrieve(ctx context.Context, regionID string) (*domain.Region, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Retrieve(%s)", regionID))

	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, regionID)
	}
	return &domain.Region{ID: regionID, TaxRate: 0, CurrencyCode: "usd"}, nil
}
