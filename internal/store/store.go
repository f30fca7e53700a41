// Package store defines the persistence boundary of the order core. The
// storage schema is an implementation detail of each Store; the order service
// only depends on these interfaces and on the scoped-transaction contract of
// RunInTx.
package store

import (
	"context"
	"errors"

	"github.com/dukerupert/vanir/internal/domain"
)

// Sentinel errors returned by repositories. The service layer maps them to
// domain errors with operation context.
var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
)

// Selector filters order queries. Zero-valued fields are ignored; set fields
// are ANDed together. Q is OR-expanded to shipping address first name, order
// email and display id, case-insensitive, and ANDed with the rest.
type Selector struct {
	ID                string
	CartID            string
	ExternalID        string
	Email             string
	CustomerID        string
	Status            domain.OrderStatus
	FulfillmentStatus domain.FulfillmentStatus
	PaymentStatus     domain.PaymentStatus
	DisplayID         *int64
	Q                 string
}

// ListConfig controls pagination and ordering of list queries.
type ListConfig struct {
	Skip        int
	Take        int
	OldestFirst bool
}

// DefaultListConfig is the pagination applied when the caller passes a zero
// config: newest first, first 50.
func DefaultListConfig() ListConfig {
	return ListConfig{Skip: 0, Take: 50}
}

// OrderRepo persists the order aggregate: the order row plus its exclusively
// owned line items, shipping methods, fulfillments, payments, refunds,
// returns, swaps, claims, addresses and gift card transaction records.
type OrderRepo interface {
	// Create persists a new order and assigns its display id. Returns
	// ErrDuplicate if an order already exists for the order's cart.
	Create(ctx context.Context, order *domain.Order) error

	// Get returns the full aggregate for the given order id.
	Get(ctx context.Context, id string) (*domain.Order, error)

	// GetByCartID returns the order created from the given cart.
	GetByCartID(ctx context.Context, cartID string) (*domain.Order, error)

	// GetByExternalID returns the order with the given external id.
	GetByExternalID(ctx context.Context, externalID string) (*domain.Order, error)

	// Save persists the aggregate's current state.
	Save(ctx context.Context, order *domain.Order) error

	// List returns the orders matching selector, paginated by config.
	List(ctx context.Context, selector Selector, config ListConfig) ([]*domain.Order, error)

	// Count returns the number of orders matching selector.
	Count(ctx context.Context, selector Selector) (int64, error)
}

// CartRepo reads and updates carts. Cart contents are owned by the external
// cart subsystem; the order core only stamps completion and clears payment
// authorization.
type CartRepo interface {
	Get(ctx context.Context, id string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
}

// GiftCardRepo mutates shared gift card balances and records consumption
// transactions.
type GiftCardRepo interface {
	Get(ctx context.Context, id string) (*domain.GiftCard, error)
	Save(ctx context.Context, card *domain.GiftCard) error
	CreateTransaction(ctx context.Context, tx *domain.GiftCardTransaction) error
}

// DraftOrderRepo resolves draft orders for draft-order carts.
type DraftOrderRepo interface {
	GetByCartID(ctx context.Context, cartID string) (*domain.DraftOrder, error)
}

// Tx is the set of repositories bound to one transactional execution context.
type Tx interface {
	Orders() OrderRepo
	Carts() CartRepo
	GiftCards() GiftCardRepo
	DraftOrders() DraftOrderRepo
}

// Store provides transactional access to the repositories. Repositories
// obtained from the Store directly run in auto-commit mode; repositories
// obtained inside RunInTx share one transaction that commits when fn returns
// nil and rolls back in full when fn returns an error.
type Store interface {
	Tx

	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
