package inventory

import (
	"context"
	"fmt"
)

// MockService is a mock inventory service for testing. The default behavior
// accepts every confirmation and adjustment; individual calls can be
// overridden via the Func fields.
type MockService struct {
	ConfirmInventoryFunc func(ctx context.Context, variantID string, quantity int64) error
	AdjustInventoryFunc  func(ctx context.Context, variantID string, delta int64) error

	// Adjustments records every applied delta per variant.
	Adjustments map[string]int64

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockService creates a new mock inventory service.
func NewMockService() *MockService {
	return &MockService{
		Adjustments: make(map[string]int64),
	}
}

// ConfirmInventory records the call and applies the override if set.
func (m *MockService) ConfirmInventory(ctx context.Context, variantID string, quantity int64) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("ConfirmInventory(%s, %d)", variantID, quantity))

	if m.ConfirmInventoryFunc != nil {
		return m.ConfirmInventoryFunc(ctx, variantID, quantity)
	}
	return nil
}

// AdjustInventory records the call and applies the override if set.
func (m *MockService) AdjustInventory(ctx context.Context, variantID string, delta int64) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("AdjustInventory(%s, %d)", variantID, delta))

	if m.AdjustInventoryFunc != nil {
		return m.AdjustInventoryFunc(ctx, variantID, delta)
	}

	m.Adjustments[variantID] += delta
	return nil
}
