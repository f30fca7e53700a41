package totals_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/vanir/internal/domain"
	"github.com/dukerupert/vanir/internal/totals"
)

func floatPtr(f float64) *float64 { return &f }

func TestLineItemTotals(t *testing.T) {
	calc := totals.NewCalculator()

	tests := []struct {
		name string
		item domain.LineItem
		cc   totals.CalculationContext
		want totals.LineItemTotals
	}{
		{
			name: "no tax no discount",
			item: domain.LineItem{UnitPrice: 1000, Quantity: 2},
			cc:   totals.CalculationContext{},
			want: totals.LineItemTotals{UnitPrice: 1000, Subtotal: 2000, Total: 2000},
		},
		{
			name: "tax lines sum before applying",
			item: domain.LineItem{
				UnitPrice: 1000,
				Quantity:  1,
				TaxLines: []domain.TaxLine{
					{Rate: 10},
					{Rate: 5},
				},
			},
			cc:   totals.CalculationContext{},
			want: totals.LineItemTotals{UnitPrice: 1000, Subtotal: 1000, TaxTotal: 150, Total: 1150},
		},
		{
			name: "adjustments reduce the taxable base",
			item: domain.LineItem{
				UnitPrice:   1000,
				Quantity:    2,
				TaxLines:    []domain.TaxLine{{Rate: 10}},
				Adjustments: []domain.LineItemAdjustment{{Amount: 500}},
			},
			cc:   totals.CalculationContext{},
			want: totals.LineItemTotals{UnitPrice: 1000, Subtotal: 2000, DiscountTotal: 500, TaxTotal: 150, Total: 1650},
		},
		{
			name: "legacy flat rate applies only without tax lines",
			item: domain.LineItem{UnitPrice: 1000, Quantity: 1},
			cc:   totals.CalculationContext{TaxRate: floatPtr(25)},
			want: totals.LineItemTotals{UnitPrice: 1000, Subtotal: 1000, TaxTotal: 250, Total: 1250},
		},
		{
			name: "tax lines win over the legacy rate",
			item: domain.LineItem{
				UnitPrice: 1000,
				Quantity:  1,
				TaxLines:  []domain.TaxLine{{Rate: 10}},
			},
			cc:   totals.CalculationContext{TaxRate: floatPtr(25)},
			want: totals.LineItemTotals{UnitPrice: 1000, Subtotal: 1000, TaxTotal: 100, Total: 1100},
		},
		{
			name: "region rate is not an implicit fallback",
			item: domain.LineItem{UnitPrice: 1000, Quantity: 1},
			cc:   totals.CalculationContext{Region: &domain.Region{TaxRate: 20}},
			want: totals.LineItemTotals{UnitPrice: 1000, Subtotal: 1000, Total: 1000},
		},
		{
			name: "half-up rounding",
			item: domain.LineItem{
				UnitPrice: 105,
				Quantity:  1,
				TaxLines:  []domain.TaxLine{{Rate: 5}},
			},
			cc: totals.CalculationContext{},
			// 105 * 0.05 = 5.25 -> 5
			want: totals.LineItemTotals{UnitPrice: 105, Subtotal: 105, TaxTotal: 5, Total: 110},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.LineItemTotals(tt.item, tt.cc)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLineItemRefund(t *testing.T) {
	calc := totals.NewCalculator()

	tests := []struct {
		name             string
		item             domain.LineItem
		originalQuantity int64
		cc               totals.CalculationContext
		want             int64
	}{
		{
			name:             "full quantity refunds the item total",
			item:             domain.LineItem{UnitPrice: 1000, Quantity: 2, TaxLines: []domain.TaxLine{{Rate: 10}}},
			originalQuantity: 2,
			want:             2200,
		},
		{
			name:             "partial quantity scales adjustments",
			item:             domain.LineItem{UnitPrice: 1000, Quantity: 1, Adjustments: []domain.LineItemAdjustment{{Amount: 400}}},
			originalQuantity: 2,
			// subtotal 1000, discount 400*1/2 = 200
			want: 800,
		},
		{
			name:             "zero remaining quantity",
			item:             domain.LineItem{UnitPrice: 1000, Quantity: 0},
			originalQuantity: 2,
			want:             0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.LineItemRefund(tt.item, tt.originalQuantity, tt.cc)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShippingMethodTotals(t *testing.T) {
	calc := totals.NewCalculator()

	t.Run("with tax lines", func(t *testing.T) {
		got := calc.ShippingMethodTotals(domain.ShippingMethod{
			Price:    500,
			TaxLines: []domain.TaxLine{{Rate: 10}},
		}, totals.CalculationContext{})
		assert.Equal(t, totals.ShippingMethodTotals{Price: 500, Subtotal: 500, TaxTotal: 50, Total: 550}, got)
	})

	t.Run("without tax lines and without legacy rate", func(t *testing.T) {
		got := calc.ShippingMethodTotals(domain.ShippingMethod{Price: 500}, totals.CalculationContext{})
		assert.Equal(t, totals.ShippingMethodTotals{Price: 500, Subtotal: 500, Total: 500}, got)
	})
}

func TestGiftCardTotals(t *testing.T) {
	calc := totals.NewCalculator()

	tests := []struct {
		name         string
		base         int64
		region       *domain.Region
		giftCards    []domain.GiftCard
		transactions []domain.GiftCardTransaction
		want         totals.GiftCardTotals
	}{
		{
			name: "no cards",
			base: 1000,
			want: totals.GiftCardTotals{},
		},
		{
			name:      "balance below base",
			base:      1000,
			giftCards: []domain.GiftCard{{Balance: 300}, {Balance: 200}},
			want:      totals.GiftCardTotals{Total: 500},
		},
		{
			name:      "balance capped at base",
			base:      400,
			giftCards: []domain.GiftCard{{Balance: 300}, {Balance: 200}},
			want:      totals.GiftCardTotals{Total: 400},
		},
		{
			name:      "negative base clamps to zero",
			base:      -100,
			giftCards: []domain.GiftCard{{Balance: 300}},
			want:      totals.GiftCardTotals{},
		},
		{
			name:      "taxable region taxes the covered amount",
			base:      1000,
			region:    &domain.Region{TaxRate: 10, GiftCardsTaxable: true},
			giftCards: []domain.GiftCard{{Balance: 500}},
			want:      totals.GiftCardTotals{Total: 500, TaxTotal: 50},
		},
		{
			name:      "non-taxable region",
			base:      1000,
			region:    &domain.Region{TaxRate: 10},
			giftCards: []domain.GiftCard{{Balance: 500}},
			want:      totals.GiftCardTotals{Total: 500},
		},
		{
			name:      "transactions are authoritative over balances",
			base:      1000,
			giftCards: []domain.GiftCard{{Balance: 9999}},
			transactions: []domain.GiftCardTransaction{
				{Amount: 300},
				{Amount: 200, IsTaxable: true, TaxRate: floatPtr(10)},
			},
			want: totals.GiftCardTotals{Total: 500, TaxTotal: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.GiftCardTotals(tt.base, tt.region, tt.giftCards, tt.transactions)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildContext(t *testing.T) {
	calc := totals.NewCalculator()
	rate := 12.5
	order := &domain.Order{
		Region:    &domain.Region{ID: "reg_1", TaxRate: 12.5},
		Discounts: []domain.Discount{{ID: "disc_1"}},
		TaxRate:   &rate,
	}

	cc := calc.BuildContext(order, true)
	assert.Equal(t, order.Region, cc.Region)
	assert.Equal(t, order.Discounts, cc.Discounts)
	assert.Equal(t, &rate, cc.TaxRate)
	assert.True(t, cc.ExcludeShipping)
}
