// Package payment defines the contract the order core needs from the payment
// provider subsystem. Provider-specific integrations (Stripe, PayPal, ...)
// live behind this interface and are out of scope for the core.
package payment

import (
	"context"

	"github.com/dukerupert/vanir/internal/domain"
)

// Payment status values reported by GetStatus.
const (
	StatusAuthorized     = "authorized"
	StatusPending        = "pending"
	StatusRequiresAction = "requires_more"
	StatusError          = "error"
	StatusCanceled       = "canceled"
)

// Provider processes payments. All operations participate in the caller's
// transactional scope: a failure propagates and rolls the operation back.
type Provider interface {
	// GetStatus reports the provider-side status of a payment.
	GetStatus(ctx context.Context, p *domain.Payment) (string, error)

	// UpdatePayment links a payment to an order.
	UpdatePayment(ctx context.Context, paymentID string, orderID string) error

	// CancelPayment voids an authorized payment. Canceling an already
	// canceled payment is a no-op.
	CancelPayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error)

	// CapturePayment captures an authorized payment, setting captured_at.
	CapturePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error)

	// RefundPayment refunds amount across the given payments and returns the
	// created refund.
	RefundPayment(ctx context.Context, payments []domain.Payment, amount int64, reason, note string) (*domain.Refund, error)
}
