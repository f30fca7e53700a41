// Package postgres implements the store interfaces on PostgreSQL. Order
// aggregates are persisted as JSONB documents with the filterable columns
// (cart id, external id, email, statuses, display id) maintained alongside
// for indexing; the storage schema is private to this package.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/vanir/internal/domain"
	"github.com/dukerupert/vanir/internal/store"
)

const pgUniqueViolation = "23505"

// querier is satisfied by both pgxpool.Pool and pgx.Tx, so the repositories
// run unchanged in auto-commit and transactional mode.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL-backed order store.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// NewStore creates a PostgreSQL store on the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Orders() store.OrderRepo         { return &orderRepo{q: s.pool} }
func (s *Store) Carts() store.CartRepo           { return &cartRepo{q: s.pool} }
func (s *Store) GiftCards() store.GiftCardRepo   { return &giftCardRepo{q: s.pool} }
func (s *Store) DraftOrders() store.DraftOrderRepo { return &draftOrderRepo{q: s.pool} }

// RunInTx executes fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise; the deferred rollback is a no-op
// after commit.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	q querier
}

func (t *pgTx) Orders() store.OrderRepo           { return &orderRepo{q: t.q} }
func (t *pgTx) Carts() store.CartRepo             { return &cartRepo{q: t.q} }
func (t *pgTx) GiftCards() store.GiftCardRepo     { return &giftCardRepo{q: t.q} }
func (t *pgTx) DraftOrders() store.DraftOrderRepo { return &draftOrderRepo{q: t.q} }

type orderRepo struct {
	q querier
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	// The display id is allocated first so the stored document already
	// carries it.
	if err := r.q.QueryRow(ctx, `SELECT nextval('order_display_id_seq')`).Scan(&order.DisplayID); err != nil {
		return fmt.Errorf("allocating display id: %w", err)
	}

	doc, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encoding order: %w", err)
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO orders (id, display_id, cart_id, external_id, email, status,
			fulfillment_status, payment_status, created_at, updated_at, doc)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.DisplayID, order.CartID, order.ExternalID, order.Email,
		order.Status, order.FulfillmentStatus, order.PaymentStatus,
		order.CreatedAt, order.UpdatedAt, doc,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return store.ErrDuplicate
		}
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func (r *orderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.getBy(ctx, `SELECT doc FROM orders WHERE id = $1`, id)
}

func (r *orderRepo) GetByCartID(ctx context.Context, cartID string) (*domain.Order, error) {
	return r.getBy(ctx, `SELECT doc FROM orders WHERE cart_id = $1`, cartID)
}

func (r *orderRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.Order, error) {
	return r.getBy(ctx, `SELECT doc FROM orders WHERE external_id = $1`, externalID)
}

func (r *orderRepo) getBy(ctx context.Context, query, arg string) (*domain.Order, error) {
	var doc []byte
	if err := r.q.QueryRow(ctx, query, arg).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	var order domain.Order
	if err := json.Unmarshal(doc, &order); err != nil {
		return nil, fmt.Errorf("decoding order: %w", err)
	}
	return &order, nil
}

func (r *orderRepo) Save(ctx context.Context, order *domain.Order) error {
	doc, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encoding order: %w", err)
	}

	tag, err := r.q.Exec(ctx, `
		UPDATE orders
		SET cart_id = NULLIF($2, ''), external_id = NULLIF($3, ''), email = $4,
			status = $5, fulfillment_status = $6, payment_status = $7,
			updated_at = $8, doc = $9
		WHERE id = $1`,
		order.ID, order.CartID, order.ExternalID, order.Email,
		order.Status, order.FulfillmentStatus, order.PaymentStatus,
		order.UpdatedAt, doc,
	)
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *orderRepo) List(ctx context.Context, selector store.Selector, config store.ListConfig) ([]*domain.Order, error) {
	where, args := buildWhere(selector)

	direction := "DESC"
	if config.OldestFirst {
		direction = "ASC"
	}
	query := fmt.Sprintf(`SELECT doc FROM orders %s ORDER BY created_at %s OFFSET %d LIMIT %d`,
		where, direction, config.Skip, config.Take)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		var order domain.Order
		if err := json.Unmarshal(doc, &order); err != nil {
			return nil, fmt.Errorf("decoding order: %w", err)
		}
		orders = append(orders, &order)
	}
	return orders, rows.Err()
}

func (r *orderRepo) Count(ctx context.Context, selector store.Selector) (int64, error) {
	where, args := buildWhere(selector)

	var count int64
	err := r.q.QueryRow(ctx, `SELECT count(*) FROM orders `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return count, nil
}

// buildWhere translates a selector into a WHERE clause. Set fields are ANDed;
// the free-text q expands to shipping address first name, email or display id
// and is ANDed with the rest as one OR group.
func buildWhere(sel store.Selector) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if sel.ID != "" {
		add("id = $%d", sel.ID)
	}
	if sel.CartID != "" {
		add("cart_id = $%d", sel.CartID)
	}
	if sel.ExternalID != "" {
		add("external_id = $%d", sel.ExternalID)
	}
	if sel.Email != "" {
		add("email = $%d", sel.Email)
	}
	if sel.CustomerID != "" {
		add("doc->>'customer_id' = $%d", sel.CustomerID)
	}
	if sel.Status != "" {
		add("status = $%d", string(sel.Status))
	}
	if sel.FulfillmentStatus != "" {
		add("fulfillment_status = $%d", string(sel.FulfillmentStatus))
	}
	if sel.PaymentStatus != "" {
		add("payment_status = $%d", string(sel.PaymentStatus))
	}
	if sel.DisplayID != nil {
		add("display_id = $%d", *sel.DisplayID)
	}
	if sel.Q != "" {
		args = append(args, sel.Q)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(doc->'shipping_address'->>'first_name' ILIKE '%%' || $%d || '%%'"+
				" OR email ILIKE '%%' || $%d || '%%'"+
				" OR display_id::text = $%d)", n, n, n))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

type cartRepo struct {
	q querier
}

func (r *cartRepo) Get(ctx context.Context, id string) (*domain.Cart, error) {
	var doc []byte
	if err := r.q.QueryRow(ctx, `SELECT doc FROM carts WHERE id = $1`, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("loading cart: %w", err)
	}
	var cart domain.Cart
	if err := json.Unmarshal(doc, &cart); err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}
	return &cart, nil
}

func (r *cartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	doc, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encoding cart: %w", err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO carts (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`,
		cart.ID, doc)
	if err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}
	return nil
}

type giftCardRepo struct {
	q querier
}

func (r *giftCardRepo) Get(ctx context.Context, id string) (*domain.GiftCard, error) {
	var doc []byte
	if err := r.q.QueryRow(ctx, `SELECT doc FROM gift_cards WHERE id = $1`, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("loading gift card: %w", err)
	}
	var card domain.GiftCard
	if err := json.Unmarshal(doc, &card); err != nil {
		return nil, fmt.Errorf("decoding gift card: %w", err)
	}
	return &card, nil
}

func (r *giftCardRepo) Save(ctx context.Context, card *domain.GiftCard) error {
	doc, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("encoding gift card: %w", err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO gift_cards (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`,
		card.ID, doc)
	if err != nil {
		return fmt.Errorf("saving gift card: %w", err)
	}
	return nil
}

func (r *giftCardRepo) CreateTransaction(ctx context.Context, tx *domain.GiftCardTransaction) error {
	doc, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encoding gift card transaction: %w", err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO gift_card_transactions (id, gift_card_id, order_id, created_at, doc)
		VALUES ($1, $2, $3, $4, $5)`,
		tx.ID, tx.GiftCardID, tx.OrderID, tx.CreatedAt, doc)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return store.ErrDuplicate
		}
		return fmt.Errorf("inserting gift card transaction: %w", err)
	}
	return nil
}

type draftOrderRepo struct {
	q querier
}

func (r *draftOrderRepo) GetByCartID(ctx context.Context, cartID string) (*domain.DraftOrder, error) {
	var doc []byte
	if err := r.q.QueryRow(ctx, `SELECT doc FROM draft_orders WHERE cart_id = $1`, cartID).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("loading draft order: %w", err)
	}
	var draft domain.DraftOrder
	if err := json.Unmarshal(doc, &draft); err != nil {
		return nil, fmt.Errorf("decoding draft order: %w", err)
	}
	return &draft, nil
}
