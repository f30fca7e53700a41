package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/vanir/internal/domain"
	"github.com/dukerupert/vanir/internal/service"
)

// decoratedOrder is a fixture with taxed items, untaxed shipping, a discount
// adjustment and a captured payment: subtotal 2500, discount 200, shipping
// 500, tax 230, total 3030.
func decoratedOrder() *domain.Order {
	captured := time.Now().UTC()
	return &domain.Order{
		ID:           "order_1",
		CurrencyCode: "usd",
		Items: []domain.LineItem{
			{
				ID:          "item_1",
				Quantity:    2,
				UnitPrice:   1000,
				TaxLines:    []domain.TaxLine{{Rate: 10}},
				Adjustments: []domain.LineItemAdjustment{{Amount: 200}},
			},
			{
				ID:        "item_2",
				Quantity:  1,
				UnitPrice: 500,
				TaxLines:  []domain.TaxLine{{Rate: 10}},
			},
		},
		ShippingMethods: []domain.ShippingMethod{{ID: "sm_1", Price: 500}},
		Payments:        []domain.Payment{{ID: "pay_1", Amount: 3030, CapturedAt: &captured}},
		Refunds:         []domain.Refund{{ID: "ref_1", Amount: 30}},
	}
}

func TestDecorateTotals(t *testing.T) {
	env := newTestEnv(nil)

	t.Run("single pass computes the full breakdown", func(t *testing.T) {
		order := env.svc.DecorateTotals(decoratedOrder())

		assert.Equal(t, int64(2500), order.Subtotal)
		assert.Equal(t, int64(200), order.DiscountTotal)
		assert.Equal(t, int64(500), order.ShippingTotal)
		// item taxes only: (2000-200)*10% + 500*10% = 180 + 50
		assert.Equal(t, int64(230), order.TaxTotal)
		assert.Equal(t, int64(3030), order.Total)
		assert.Equal(t, int64(3030), order.PaidTotal)
		assert.Equal(t, int64(30), order.RefundedTotal)
		assert.Equal(t, int64(3000), order.RefundableAmount)

		// Per-item breakdowns are attached alongside.
		assert.Equal(t, int64(2000), order.Items[0].Subtotal)
		assert.Equal(t, int64(200), order.Items[0].DiscountTotal)
		assert.Equal(t, int64(180), order.Items[0].TaxTotal)
		assert.Equal(t, int64(1980), order.Items[0].Total)
		assert.Equal(t, int64(1980), order.Items[0].Refundable)
		assert.Equal(t, int64(500), order.ShippingMethods[0].Total)
	})

	t.Run("gift card transactions reduce total and tax", func(t *testing.T) {
		order := decoratedOrder()
		rate := 10.0
		order.GiftCardTransactions = []domain.GiftCardTransaction{
			{ID: "gct_1", Amount: 500, IsTaxable: true, TaxRate: &rate},
		}
		env.svc.DecorateTotals(order)

		assert.Equal(t, int64(500), order.GiftCardTotal)
		assert.Equal(t, int64(50), order.GiftCardTaxTotal)
		assert.Equal(t, int64(180), order.TaxTotal)
		// 2500 + 500 + 180 - (500 + 200)
		assert.Equal(t, int64(2480), order.Total)
	})

	t.Run("returned quantity shrinks the refundable amount", func(t *testing.T) {
		order := decoratedOrder()
		order.Items[0].ReturnedQuantity = 1
		env.svc.DecorateTotals(order)

		// One remaining unit: 1000 - scaled discount 100, plus 10% tax.
		assert.Equal(t, int64(990), order.Items[0].Refundable)
	})

	t.Run("swap and claim additional items get refundable amounts", func(t *testing.T) {
		order := decoratedOrder()
		order.Swaps = []domain.Swap{{
			ID:              "swap_1",
			AdditionalItems: []domain.LineItem{{ID: "item_s", Quantity: 1, UnitPrice: 300}},
		}}
		order.Claims = []domain.ClaimOrder{{
			ID:              "claim_1",
			AdditionalItems: []domain.LineItem{{ID: "item_c", Quantity: 2, UnitPrice: 100}},
		}}
		env.svc.DecorateTotals(order)

		assert.Equal(t, int64(300), order.Swaps[0].AdditionalItems[0].Refundable)
		assert.Equal(t, int64(200), order.Claims[0].AdditionalItems[0].Refundable)
	})

	t.Run("nil order", func(t *testing.T) {
		assert.Nil(t, env.svc.DecorateTotals(nil))
	})
}

func TestDecorateTotalsFieldList(t *testing.T) {
	env := newTestEnv(nil)

	t.Run("computes only the requested fields", func(t *testing.T) {
		order := env.svc.DecorateTotals(decoratedOrder(),
			service.TotalFieldShippingTotal, service.TotalFieldPaidTotal)

		assert.Equal(t, int64(500), order.ShippingTotal)
		assert.Equal(t, int64(3030), order.PaidTotal)

		// Unrequested fields stay untouched.
		assert.Equal(t, int64(0), order.Subtotal)
		assert.Equal(t, int64(0), order.TaxTotal)
		assert.Equal(t, int64(0), order.Total)
	})

	t.Run("total refreshes its inputs regardless of request order", func(t *testing.T) {
		order := env.svc.DecorateTotals(decoratedOrder(), service.TotalFieldTotal)

		assert.Equal(t, int64(2500), order.Subtotal)
		assert.Equal(t, int64(230), order.TaxTotal)
		assert.Equal(t, int64(3030), order.Total)
	})

	t.Run("matches the single-pass breakdown field by field", func(t *testing.T) {
		modern := env.svc.DecorateTotals(decoratedOrder())
		legacy := env.svc.DecorateTotals(decoratedOrder(),
			service.TotalFieldSubtotal,
			service.TotalFieldDiscountTotal,
			service.TotalFieldShippingTotal,
			service.TotalFieldGiftCardTotal,
			service.TotalFieldTaxTotal,
			service.TotalFieldTotal,
			service.TotalFieldPaidTotal,
			service.TotalFieldRefundedTotal,
			service.TotalFieldRefundableAmount,
			service.TotalFieldItemsRefundable,
		)

		assert.Equal(t, modern.Subtotal, legacy.Subtotal)
		assert.Equal(t, modern.DiscountTotal, legacy.DiscountTotal)
		assert.Equal(t, modern.ShippingTotal, legacy.ShippingTotal)
		assert.Equal(t, modern.GiftCardTotal, legacy.GiftCardTotal)
		assert.Equal(t, modern.TaxTotal, legacy.TaxTotal)
		assert.Equal(t, modern.Total, legacy.Total)
		assert.Equal(t, modern.PaidTotal, legacy.PaidTotal)
		assert.Equal(t, modern.RefundedTotal, legacy.RefundedTotal)
		assert.Equal(t, modern.RefundableAmount, legacy.RefundableAmount)
		for i := range modern.Items {
			assert.Equal(t, modern.Items[i].Refundable, legacy.Items[i].Refundable)
		}
	})
}

func TestParseTotalField(t *testing.T) {
	tests := []struct {
		name string
		want service.TotalField
		ok   bool
	}{
		{"subtotal", service.TotalFieldSubtotal, true},
		{"total", service.TotalFieldTotal, true},
		{"items.refundable", service.TotalFieldItemsRefundable, true},
		{"swaps.additional_items.refundable", service.TotalFieldSwapsRefundable, true},
		{"email", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := service.ParseTotalField(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
