package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/vanir/internal/domain"
	"github.com/dukerupert/vanir/internal/store"
)

func TestMemoryOrderRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("create assigns display ids in sequence", func(t *testing.T) {
		s := store.NewMemoryStore()

		a := &domain.Order{ID: "order_a"}
		b := &domain.Order{ID: "order_b"}
		assert.NoError(t, s.Orders().Create(ctx, a))
		assert.NoError(t, s.Orders().Create(ctx, b))

		assert.Equal(t, int64(1), a.DisplayID)
		assert.Equal(t, int64(2), b.DisplayID)
		assert.False(t, a.CreatedAt.IsZero())
	})

	t.Run("one order per cart", func(t *testing.T) {
		s := store.NewMemoryStore()

		assert.NoError(t, s.Orders().Create(ctx, &domain.Order{ID: "order_a", CartID: "cart_1"}))
		err := s.Orders().Create(ctx, &domain.Order{ID: "order_b", CartID: "cart_1"})
		assert.True(t, errors.Is(err, store.ErrDuplicate))

		got, err := s.Orders().GetByCartID(ctx, "cart_1")
		assert.NoError(t, err)
		assert.Equal(t, "order_a", got.ID)
	})

	t.Run("get returns an isolated copy", func(t *testing.T) {
		s := store.NewMemoryStore()
		assert.NoError(t, s.Orders().Create(ctx, &domain.Order{
			ID:    "order_a",
			Items: []domain.LineItem{{ID: "item_1", Quantity: 1}},
		}))

		got, err := s.Orders().Get(ctx, "order_a")
		assert.NoError(t, err)
		got.Items[0].Quantity = 99

		again, err := s.Orders().Get(ctx, "order_a")
		assert.NoError(t, err)
		assert.Equal(t, int64(1), again.Items[0].Quantity)
	})

	t.Run("save requires an existing order", func(t *testing.T) {
		s := store.NewMemoryStore()
		err := s.Orders().Save(ctx, &domain.Order{ID: "order_ghost"})
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("get by external id", func(t *testing.T) {
		s := store.NewMemoryStore()
		assert.NoError(t, s.Orders().Create(ctx, &domain.Order{ID: "order_a", ExternalID: "ext-1"}))

		got, err := s.Orders().GetByExternalID(ctx, "ext-1")
		assert.NoError(t, err)
		assert.Equal(t, "order_a", got.ID)

		_, err = s.Orders().GetByExternalID(ctx, "ext-2")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})
}

func TestMemoryOrderList(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, s *store.MemoryStore, n int) {
		t.Helper()
		base := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < n; i++ {
			order := &domain.Order{ID: fmt.Sprintf("order_%03d", i)}
			assert.NoError(t, s.Orders().Create(ctx, order))
			order.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			assert.NoError(t, s.Orders().Save(ctx, order))
		}
	}

	t.Run("zero config defaults to first 50 newest first", func(t *testing.T) {
		s := store.NewMemoryStore()
		seed(t, s, 60)

		orders, err := s.Orders().List(ctx, store.Selector{}, store.ListConfig{})
		assert.NoError(t, err)
		assert.Len(t, orders, 50)
		assert.Equal(t, "order_059", orders[0].ID)
	})

	t.Run("skip and take", func(t *testing.T) {
		s := store.NewMemoryStore()
		seed(t, s, 5)

		orders, err := s.Orders().List(ctx, store.Selector{}, store.ListConfig{Skip: 2, Take: 2, OldestFirst: true})
		assert.NoError(t, err)
		assert.Len(t, orders, 2)
		assert.Equal(t, "order_002", orders[0].ID)
		assert.Equal(t, "order_003", orders[1].ID)
	})

	t.Run("skip past the end", func(t *testing.T) {
		s := store.NewMemoryStore()
		seed(t, s, 3)

		orders, err := s.Orders().List(ctx, store.Selector{}, store.ListConfig{Skip: 10, Take: 10})
		assert.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("count ignores pagination", func(t *testing.T) {
		s := store.NewMemoryStore()
		seed(t, s, 5)

		count, err := s.Orders().Count(ctx, store.Selector{})
		assert.NoError(t, err)
		assert.Equal(t, int64(5), count)
	})

	t.Run("selector fields are ANDed", func(t *testing.T) {
		s := store.NewMemoryStore()
		assert.NoError(t, s.Orders().Create(ctx, &domain.Order{
			ID: "order_a", Email: "anna@example.com", Status: domain.OrderStatusCompleted,
		}))
		assert.NoError(t, s.Orders().Create(ctx, &domain.Order{
			ID: "order_b", Email: "anna@example.com", Status: domain.OrderStatusPending,
		}))

		orders, err := s.Orders().List(ctx, store.Selector{
			Email:  "anna@example.com",
			Status: domain.OrderStatusCompleted,
		}, store.ListConfig{})
		assert.NoError(t, err)
		assert.Len(t, orders, 1)
		assert.Equal(t, "order_a", orders[0].ID)
	})

	t.Run("q matches name, email or display id", func(t *testing.T) {
		s := store.NewMemoryStore()
		assert.NoError(t, s.Orders().Create(ctx, &domain.Order{
			ID:              "order_a",
			Email:           "bo@example.com",
			ShippingAddress: &domain.Address{FirstName: "Annabel"},
		}))
		assert.NoError(t, s.Orders().Create(ctx, &domain.Order{
			ID:    "order_b",
			Email: "anna@shop.test",
		}))

		// Substring of the first name and of the email.
		orders, err := s.Orders().List(ctx, store.Selector{Q: "anna"}, store.ListConfig{})
		assert.NoError(t, err)
		assert.Len(t, orders, 2)

		// Display id requires an exact match.
		orders, err = s.Orders().List(ctx, store.Selector{Q: "1"}, store.ListConfig{})
		assert.NoError(t, err)
		assert.Len(t, orders, 1)
		assert.Equal(t, int64(1), orders[0].DisplayID)
	})
}

func TestMemoryRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit keeps all writes", func(t *testing.T) {
		s := store.NewMemoryStore()

		err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.Orders().Create(ctx, &domain.Order{ID: "order_a"}); err != nil {
				return err
			}
			return tx.Carts().Save(ctx, &domain.Cart{ID: "cart_1"})
		})
		assert.NoError(t, err)

		_, err = s.Orders().Get(ctx, "order_a")
		assert.NoError(t, err)
		_, err = s.Carts().Get(ctx, "cart_1")
		assert.NoError(t, err)
	})

	t.Run("error rolls back every write", func(t *testing.T) {
		s := store.NewMemoryStore()
		assert.NoError(t, s.GiftCards().Save(ctx, &domain.GiftCard{ID: "gift_1", Balance: 500}))

		sentinel := errors.New("boom")
		err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.Orders().Create(ctx, &domain.Order{ID: "order_a", CartID: "cart_1"}); err != nil {
				return err
			}
			card, err := tx.GiftCards().Get(ctx, "gift_1")
			if err != nil {
				return err
			}
			card.Balance = 0
			if err := tx.GiftCards().Save(ctx, card); err != nil {
				return err
			}
			return sentinel
		})
		assert.True(t, errors.Is(err, sentinel))

		_, err = s.Orders().Get(ctx, "order_a")
		assert.True(t, errors.Is(err, store.ErrNotFound))
		_, err = s.Orders().GetByCartID(ctx, "cart_1")
		assert.True(t, errors.Is(err, store.ErrNotFound))

		card, err := s.GiftCards().Get(ctx, "gift_1")
		assert.NoError(t, err)
		assert.Equal(t, int64(500), card.Balance)
	})

	t.Run("display id sequence rolls back too", func(t *testing.T) {
		s := store.NewMemoryStore()

		_ = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.Orders().Create(ctx, &domain.Order{ID: "order_a"}); err != nil {
				return err
			}
			return errors.New("boom")
		})

		order := &domain.Order{ID: "order_b"}
		assert.NoError(t, s.Orders().Create(ctx, order))
		assert.Equal(t, int64(1), order.DisplayID)
	})
}

func TestMemoryGiftCardRepo(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	card := &domain.GiftCard{ID: "gift_1", Code: "AAAA-BBBB-CCCC-DDDD", Value: 1000, Balance: 1000}
	assert.NoError(t, s.GiftCards().Save(ctx, card))

	got, err := s.GiftCards().Get(ctx, "gift_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), got.Balance)

	_, err = s.GiftCards().Get(ctx, "gift_missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	// A transaction references an order, so the order has to exist first.
	err = s.GiftCards().CreateTransaction(ctx, &domain.GiftCardTransaction{
		ID: "gct_1", GiftCardID: "gift_1", OrderID: "order_1", Amount: 250,
	})
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Empty(t, s.GiftCardTransactions())

	assert.NoError(t, s.Orders().Create(ctx, &domain.Order{ID: "order_1"}))
	assert.NoError(t, s.GiftCards().CreateTransaction(ctx, &domain.GiftCardTransaction{
		ID: "gct_1", GiftCardID: "gift_1", OrderID: "order_1", Amount: 250,
	}))
	txs := s.GiftCardTransactions()
	assert.Len(t, txs, 1)
	assert.Equal(t, int64(250), txs[0].Amount)
}

func TestMemoryDraftOrderRepo(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	s.SaveDraftOrder(&domain.DraftOrder{ID: "dorder_1", CartID: "cart_1", NoNotificationOrder: true})

	draft, err := s.DraftOrders().GetByCartID(ctx, "cart_1")
	assert.NoError(t, err)
	assert.Equal(t, "dorder_1", draft.ID)
	assert.True(t, draft.NoNotificationOrder)

	_, err = s.DraftOrders().GetByCartID(ctx, "cart_other")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
