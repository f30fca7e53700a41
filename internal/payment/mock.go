package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/vanir/internal/domain"
)

// MockProvider is a mock payment provider for testing. Default behavior
// simulates an authorized payment that captures, cancels and refunds
// successfully; Func fields override individual operations.
type MockProvider struct {
	GetStatusFunc      func(ctx context.Context, p *domain.Payment) (string, error)
	UpdatePaymentFunc  func(ctx context.Context, paymentID string, orderID string) error
	CancelPaymentFunc  func(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	CapturePaymentFunc func(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	RefundPaymentFunc  func(ctx context.Context, payments []domain.Payment, amount int64, reason, note string) (*domain.Refund, error)

	// Refunds stores created refunds.
	Refunds []*domain.Refund

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockProvider creates a new mock payment provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// GetStatus reports authorized unless overridden.
func (m *MockProvider) GetStatus(ctx context.Context, p *domain.Payment) (string, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetStatus(%s)", p.ID))

	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, p)
	}
	return StatusAuthorized, nil
}

// UpdatePayment records the order link.
func (m *MockProvider) UpdatePayment(ctx context.Context, paymentID string, orderID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("UpdatePayment(%s, %s)", paymentID, orderID))

	if m.UpdatePaymentFunc != nil {
		return m.UpdatePaymentFunc(ctx, paymentID, orderID)
	}
	return nil
}

// CancelPayment marks the payment canceled. Re-canceling is a no-op.
func (m *MockProvider) CancelPayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CancelPayment(%s)", p.ID))

	if m.CancelPaymentFunc != nil {
		return m.CancelPaymentFunc(ctx, p)
	}

	if p.CanceledAt == nil {
		now := time.Now().UTC()
		p.CanceledAt = &now
	}
	return p, nil
}

// CapturePayment stamps captured_at.
func (m *MockProvider) CapturePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CapturePayment(%s)", p.ID))

	if m.CapturePaymentFunc != nil {
		return m.CapturePaymentFunc(ctx, p)
	}

	now := time.Now().UTC()
	p.CapturedAt = &now
	return p, nil
}

// RefundPayment creates a refund against the first payment's order.
func (m *MockProvider) RefundPayment(ctx context.Context, payments []domain.Payment, amount int64, reason, note string) (*domain.Refund, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("RefundPayment(%d, %s)", amount, reason))

	if m.RefundPaymentFunc != nil {
		return m.RefundPaymentFunc(ctx, payments, amount, reason, note)
	}

	var orderID string
	if len(payments) > 0 {
		orderID = payments[0].OrderID
	}

	refund := &domain.Refund{
		ID:        "ref_" + uuid.New().String(),
		OrderID:   orderID,
		Amount:    amount,
		Reason:    reason,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	m.Refunds = append(m.Refunds, refund)
	return refund, nil
}
