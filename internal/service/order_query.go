package service

import (
	"context"
	"errors"

	"github.com/dukerupert/vanir/internal/domain"
	"github.com/dukerupert/vanir/internal/store"
)

// QueryConfig controls retrieval: the selected fields (persisted columns
// and/or derived total fields) and pagination.
type QueryConfig struct {
	// Select lists requested field names. Derived total fields in the list
	// route decoration through the legacy field-by-field path. Empty means
	// everything, decorated through the modern single-pass path.
	Select []string

	Skip        int
	Take        int
	OldestFirst bool
}

// splitSelect partitions the selected field names into persisted columns and
// derived total fields.
func splitSelect(selects []string) (persisted []string, totalFields []TotalField) {
	for _, name := range selects {
		if f, ok := ParseTotalField(name); ok {
			totalFields = append(totalFields, f)
			continue
		}
		persisted = append(persisted, name)
	}
	return persisted, totalFields
}

func listConfig(cfg QueryConfig) store.ListConfig {
	lc := store.DefaultListConfig()
	if cfg.Skip > 0 {
		lc.Skip = cfg.Skip
	}
	if cfg.Take > 0 {
		lc.Take = cfg.Take
	}
	lc.OldestFirst = cfg.OldestFirst
	return lc
}

// decorateFor routes an order through the decoration mode the requested
// fields call for: the legacy path when explicit total fields were selected,
// the modern full pass when nothing specific was asked, and no decoration at
// all when only persisted columns were requested.
func (s *orderService) decorateFor(order *domain.Order, cfg QueryConfig) *domain.Order {
	if len(cfg.Select) == 0 {
		return s.DecorateTotals(order)
	}
	_, totalFields := splitSelect(cfg.Select)
	if len(totalFields) == 0 {
		return order
	}
	return s.DecorateTotals(order, totalFields...)
}

func (s *orderService) List(ctx context.Context, selector store.Selector, cfg QueryConfig) ([]*domain.Order, error) {
	const op = "order.List"

	orders, err := s.store.Orders().List(ctx, selector, listConfig(cfg))
	if err != nil {
		return nil, domain.Internal(err, op, "listing orders")
	}
	for _, order := range orders {
		s.decorateFor(order, cfg)
	}
	return orders, nil
}

func (s *orderService) ListAndCount(ctx context.Context, selector store.Selector, cfg QueryConfig) ([]*domain.Order, int64, error) {
	const op = "order.ListAndCount"

	orders, err := s.store.Orders().List(ctx, selector, listConfig(cfg))
	if err != nil {
		return nil, 0, domain.Internal(err, op, "listing orders")
	}
	count, err := s.store.Orders().Count(ctx, selector)
	if err != nil {
		return nil, 0, domain.Internal(err, op, "counting orders")
	}
	for _, order := range orders {
		s.decorateFor(order, cfg)
	}
	return orders, count, nil
}

func (s *orderService) Retrieve(ctx context.Context, orderID string, cfg QueryConfig) (*domain.Order, error) {
	const op = "order.Retrieve"

	order, err := s.store.Orders().Get(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound(op, "order", orderID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "loading order")
	}
	return s.decorateFor(order, cfg), nil
}

func (s *orderService) RetrieveWithTotals(ctx context.Context, orderID string, cfg QueryConfig) (*domain.Order, error) {
	const op = "order.RetrieveWithTotals"

	order, err := s.store.Orders().Get(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound(op, "order", orderID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "loading order")
	}

	// Explicitly selected total fields keep their legacy field-by-field
	// semantics; otherwise the full breakdown is attached in one pass.
	if _, totalFields := splitSelect(cfg.Select); len(totalFields) > 0 {
		return s.DecorateTotals(order, totalFields...), nil
	}
	return s.DecorateTotals(order), nil
}

func (s *orderService) RetrieveByCartID(ctx context.Context, cartID string) (*domain.Order, error) {
	const op = "order.RetrieveByCartID"

	order, err := s.store.Orders().GetByCartID(ctx, cartID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound(op, "order", cartID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "loading order")
	}
	return s.DecorateTotals(order), nil
}

func (s *orderService) RetrieveByExternalID(ctx context.Context, externalID string) (*domain.Order, error) {
	const op = "order.RetrieveByExternalID"

	order, err := s.store.Orders().GetByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NotFound(op, "order", externalID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "loading order")
	}
	return s.DecorateTotals(order), nil
}
