// Package inventory defines the narrow contract the order core needs from
// the inventory subsystem: confirming that stock exists and applying signed
// adjustments.
package inventory

import (
	"context"
	"sync"

	"github.com/dukerupert/vanir/internal/domain"
)

// Service confirms and adjusts stock levels for product variants.
type Service interface {
	// ConfirmInventory fails with a domain error if fewer than quantity units
	// of the variant are in stock.
	ConfirmInventory(ctx context.Context, variantID string, quantity int64) error

	// AdjustInventory applies a signed delta to the variant's stock level.
	AdjustInventory(ctx context.Context, variantID string, delta int64) error
}

// MemoryService tracks stock levels in memory. Variants without a tracked
// level are treated as infinitely stocked, which mirrors untracked variants
// in the catalog.
type MemoryService struct {
	mu     sync.Mutex
	levels map[string]int64
}

// NewMemoryService creates a memory inventory seeded with the given levels.
func NewMemoryService(levels map[string]int64) *MemoryService {
	copied := make(map[string]int64, len(levels))
	for k, v := range levels {
		copied[k] = v
	}
	return &MemoryService{levels: copied}
}

// ConfirmInventory checks the tracked level for the variant.
func (s *MemoryService) ConfirmInventory(ctx context.Context, variantID string, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	level, tracked := s.levels[variantID]
	if !tracked {
		return nil
	}
	if level < quantity {
		return domain.Errorf(domain.EINVALID, "inventory.confirm",
			"variant %s does not have the required inventory", variantID)
	}
	return nil
}

// AdjustInventory applies the delta to the tracked level.
func (s *MemoryService) AdjustInventory(ctx context.Context, variantID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, tracked := s.levels[variantID]; !tracked {
		return nil
	}
	s.levels[variantID] += delta
	return nil
}

// Level returns the tracked stock level for a variant. Test helper.
func (s *MemoryService) Level(variantID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[variantID]
}
