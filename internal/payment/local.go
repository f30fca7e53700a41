package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/vanir/internal/domain"
)

// LocalProvider is an in-process payment provider for development and single
// node deployments without a real payment gateway. Payments are considered
// authorized as soon as they exist; captures and refunds always succeed.
type LocalProvider struct{}

// NewLocalProvider creates a local payment provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (p *LocalProvider) GetStatus(ctx context.Context, pay *domain.Payment) (string, error) {
	if pay.CanceledAt != nil {
		return StatusCanceled, nil
	}
	return StatusAuthorized, nil
}

func (p *LocalProvider) UpdatePayment(ctx context.Context, paymentID string, orderID string) error {
	return nil
}

func (p *LocalProvider) CancelPayment(ctx context.Context, pay *domain.Payment) (*domain.Payment, error) {
	if pay.CanceledAt == nil {
		now := time.Now().UTC()
		pay.CanceledAt = &now
	}
	return pay, nil
}

func (p *LocalProvider) CapturePayment(ctx context.Context, pay *domain.Payment) (*domain.Payment, error) {
	now := time.Now().UTC()
	pay.CapturedAt = &now
	return pay, nil
}

func (p *LocalProvider) RefundPayment(ctx context.Context, payments []domain.Payment, amount int64, reason, note string) (*domain.Refund, error) {
	var orderID string
	if len(payments) > 0 {
		orderID = payments[0].OrderID
	}
	return &domain.Refund{
		ID:        "ref_" + uuid.New().String(),
		OrderID:   orderID,
		Amount:    amount,
		Reason:    reason,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}, nil
}
