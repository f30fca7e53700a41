package store

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/vanir/internal/domain"
)

// MemoryStore is an in-memory Store used in tests and local development.
// RunInTx snapshots all state up front and restores it when fn fails, giving
// the same all-or-nothing visibility as a database transaction.
type MemoryStore struct {
	mu sync.RWMutex

	orders        map[string]*domain.Order
	ordersByCart  map[string]string
	carts         map[string]*domain.Cart
	giftCards     map[string]*domain.GiftCard
	giftCardTxs   []*domain.GiftCardTransaction
	draftOrders   map[string]*domain.DraftOrder
	nextDisplayID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:        map[string]*domain.Order{},
		ordersByCart:  map[string]string{},
		carts:         map[string]*domain.Cart{},
		giftCards:     map[string]*domain.GiftCard{},
		draftOrders:   map[string]*domain.DraftOrder{},
		nextDisplayID: 1,
	}
}

type memorySnapshot struct {
	Orders        map[string]*domain.Order
	OrdersByCart  map[string]string
	Carts         map[string]*domain.Cart
	GiftCards     map[string]*domain.GiftCard
	GiftCardTxs   []*domain.GiftCardTransaction
	DraftOrders   map[string]*domain.DraftOrder
	NextDisplayID int64
}

// snapshot and restore round-trip the full state through JSON. All domain
// aggregates are JSON-serializable, and test-sized data keeps this cheap.
func (s *MemoryStore) snapshot() memorySnapshot {
	var snap memorySnapshot
	data, _ := json.Marshal(memorySnapshot{
		Orders:        s.orders,
		OrdersByCart:  s.ordersByCart,
		Carts:         s.carts,
		GiftCards:     s.giftCards,
		GiftCardTxs:   s.giftCardTxs,
		DraftOrders:   s.draftOrders,
		NextDisplayID: s.nextDisplayID,
	})
	_ = json.Unmarshal(data, &snap)
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.orders = snap.Orders
	s.ordersByCart = snap.OrdersByCart
	s.carts = snap.Carts
	s.giftCards = snap.GiftCards
	s.giftCardTxs = snap.GiftCardTxs
	s.draftOrders = snap.DraftOrders
	s.nextDisplayID = snap.NextDisplayID
}

// RunInTx executes fn against the store, rolling all state back if fn
// returns an error. Transactions are serialized; the single logical writer
// matches the scheduling model of the order core.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, (*memoryTx)(s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// memoryTx exposes the repositories without re-locking; it only exists
// inside RunInTx, which holds the write lock.
type memoryTx MemoryStore

func (t *memoryTx) Orders() OrderRepo           { return &memoryOrderRepo{s: (*MemoryStore)(t)} }
func (t *memoryTx) Carts() CartRepo             { return &memoryCartRepo{s: (*MemoryStore)(t)} }
func (t *memoryTx) GiftCards() GiftCardRepo     { return &memoryGiftCardRepo{s: (*MemoryStore)(t)} }
func (t *memoryTx) DraftOrders() DraftOrderRepo { return &memoryDraftOrderRepo{s: (*MemoryStore)(t)} }

// Auto-commit access: reads and writes outside RunInTx take the lock per call
// in the repo methods themselves via the same repo types. The memory
// implementation's repos do not lock; direct use is only safe from the
// single-threaded test harness, which mirrors how the service always routes
// mutations through RunInTx.

func (s *MemoryStore) Orders() OrderRepo           { return &memoryOrderRepo{s: s} }
func (s *MemoryStore) Carts() CartRepo             { return &memoryCartRepo{s: s} }
func (s *MemoryStore) GiftCards() GiftCardRepo     { return &memoryGiftCardRepo{s: s} }
func (s *MemoryStore) DraftOrders() DraftOrderRepo { return &memoryDraftOrderRepo{s: s} }

// GiftCardTransactions returns all recorded gift card transactions. Test
// helper.
func (s *MemoryStore) GiftCardTransactions() []*domain.GiftCardTransaction {
	out := make([]*domain.GiftCardTransaction, len(s.giftCardTxs))
	copy(out, s.giftCardTxs)
	return out
}

func cloneOrder(o *domain.Order) *domain.Order {
	data, _ := json.Marshal(o)
	var out domain.Order
	_ = json.Unmarshal(data, &out)
	return &out
}

func cloneCart(c *domain.Cart) *domain.Cart {
	data, _ := json.Marshal(c)
	var out domain.Cart
	_ = json.Unmarshal(data, &out)
	return &out
}

type memoryOrderRepo struct {
	s *MemoryStore
}

func (r *memoryOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	if order.CartID != "" {
		if _, exists := r.s.ordersByCart[order.CartID]; exists {
			return ErrDuplicate
		}
	}

	now := time.Now().UTC()
	order.DisplayID = r.s.nextDisplayID
	r.s.nextDisplayID++
	order.CreatedAt = now
	order.UpdatedAt = now

	r.s.orders[order.ID] = cloneOrder(order)
	if order.CartID != "" {
		r.s.ordersByCart[order.CartID] = order.ID
	}
	return nil
}

func (r *memoryOrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, ok := r.s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *memoryOrderRepo) GetByCartID(ctx context.Context, cartID string) (*domain.Order, error) {
	id, ok := r.s.ordersByCart[cartID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *memoryOrderRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.Order, error) {
	for _, order := range r.s.orders {
		if order.ExternalID == externalID {
			return cloneOrder(order), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryOrderRepo) Save(ctx context.Context, order *domain.Order) error {
	if _, ok := r.s.orders[order.ID]; !ok {
		return ErrNotFound
	}
	order.UpdatedAt = time.Now().UTC()
	r.s.orders[order.ID] = cloneOrder(order)
	return nil
}

func matchesSelector(order *domain.Order, sel Selector) bool {
	if sel.ID != "" && order.ID != sel.ID {
		return false
	}
	if sel.CartID != "" && order.CartID != sel.CartID {
		return false
	}
	if sel.ExternalID != "" && order.ExternalID != sel.ExternalID {
		return false
	}
	if sel.Email != "" && !strings.EqualFold(order.Email, sel.Email) {
		return false
	}
	if sel.CustomerID != "" && order.CustomerID != sel.CustomerID {
		return false
	}
	if sel.Status != "" && order.Status != sel.Status {
		return false
	}
	if sel.FulfillmentStatus != "" && order.FulfillmentStatus != sel.FulfillmentStatus {
		return false
	}
	if sel.PaymentStatus != "" && order.PaymentStatus != sel.PaymentStatus {
		return false
	}
	if sel.DisplayID != nil && order.DisplayID != *sel.DisplayID {
		return false
	}
	if sel.Q != "" && !matchesSearch(order, sel.Q) {
		return false
	}
	return true
}

// matchesSearch implements the q expansion: shipping address first name OR
// order email OR display id, case-insensitive.
func matchesSearch(order *domain.Order, q string) bool {
	needle := strings.ToLower(q)
	if order.ShippingAddress != nil &&
		strings.Contains(strings.ToLower(order.ShippingAddress.FirstName), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(order.Email), needle) {
		return true
	}
	return strconv.FormatInt(order.DisplayID, 10) == q
}

func (r *memoryOrderRepo) List(ctx context.Context, sel Selector, config ListConfig) ([]*domain.Order, error) {
	var matched []*domain.Order
	for _, order := range r.s.orders {
		if matchesSelector(order, sel) {
			matched = append(matched, cloneOrder(order))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if config.OldestFirst {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if config.Take == 0 {
		config = ListConfig{Skip: config.Skip, Take: DefaultListConfig().Take, OldestFirst: config.OldestFirst}
	}
	if config.Skip >= len(matched) {
		return nil, nil
	}
	matched = matched[config.Skip:]
	if len(matched) > config.Take {
		matched = matched[:config.Take]
	}
	return matched, nil
}

func (r *memoryOrderRepo) Count(ctx context.Context, sel Selector) (int64, error) {
	var count int64
	for _, order := range r.s.orders {
		if matchesSelector(order, sel) {
			count++
		}
	}
	return count, nil
}

type memoryCartRepo struct {
	s *MemoryStore
}

func (r *memoryCartRepo) Get(ctx context.Context, id string) (*domain.Cart, error) {
	cart, ok := r.s.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCart(cart), nil
}

func (r *memoryCartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	r.s.carts[cart.ID] = cloneCart(cart)
	return nil
}

type memoryGiftCardRepo struct {
	s *MemoryStore
}

func (r *memoryGiftCardRepo) Get(ctx context.Context, id string) (*domain.GiftCard, error) {
	card, ok := r.s.giftCards[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *card
	return &copied, nil
}

func (r *memoryGiftCardRepo) Save(ctx context.Context, card *domain.GiftCard) error {
	copied := *card
	r.s.giftCards[card.ID] = &copied
	return nil
}

func (r *memoryGiftCardRepo) CreateTransaction(ctx context.Context, tx *domain.GiftCardTransaction) error {
	// Transactions reference the order they were consumed against, matching
	// the foreign key the schema declares.
	if tx.OrderID != "" {
		if _, ok := r.s.orders[tx.OrderID]; !ok {
			return ErrNotFound
		}
	}
	copied := *tx
	r.s.giftCardTxs = append(r.s.giftCardTxs, &copied)
	return nil
}

type memoryDraftOrderRepo struct {
	s *MemoryStore
}

func (r *memoryDraftOrderRepo) GetByCartID(ctx context.Context, cartID string) (*domain.DraftOrder, error) {
	for _, draft := range r.s.draftOrders {
		if draft.CartID == cartID {
			copied := *draft
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// SaveDraftOrder seeds a draft order. Test helper.
func (s *MemoryStore) SaveDraftOrder(draft *domain.DraftOrder) {
	copied := *draft
	s.draftOrders[draft.ID] = &copied
}
