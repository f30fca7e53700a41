// Package totals computes monetary breakdowns for line items, shipping
// methods, gift cards and refundable amounts. All functions are pure; amounts
// are in the order currency's minor unit and tax rates are percentages.
package totals

import (
	"github.com/shopspring/decimal"

	"github.com/dukerupert/vanir/internal/domain"
)

// CalculationContext carries the pricing rules in effect for one order.
type CalculationContext struct {
	Region    *domain.Region
	Discounts []domain.Discount

	// TaxRate is a legacy flat-rate override applied when an item or shipping
	// method carries no tax lines. Nil means fall back to the region rate.
	TaxRate *float64

	// ExcludeShipping skips shipping methods when building the context for
	// item-only computations.
	ExcludeShipping bool
}

// LineItemTotals is the monetary breakdown of a single line item.
type LineItemTotals struct {
	UnitPrice     int64
	Subtotal      int64
	DiscountTotal int64
	TaxTotal      int64
	Total         int64
}

// ShippingMethodTotals is the monetary breakdown of a single shipping method.
type ShippingMethodTotals struct {
	Price    int64
	Subtotal int64
	TaxTotal int64
	Total    int64
}

// GiftCardTotals is the amount covered by gift cards and the tax on that
// amount.
type GiftCardTotals struct {
	Total    int64
	TaxTotal int64
}

// Calculator derives totals from order data. It holds no state and performs
// no I/O.
type Calculator struct{}

// NewCalculator creates a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// BuildContext assembles the calculation context for an order.
func (c *Calculator) BuildContext(order *domain.Order, excludeShipping bool) CalculationContext {
	return CalculationContext{
		Region:          order.Region,
		Discounts:       order.Discounts,
		TaxRate:         order.TaxRate,
		ExcludeShipping: excludeShipping,
	}
}

// taxRateFor resolves the effective tax rate for an entity: the sum of its
// tax lines when present, else the legacy flat rate from the context.
func taxRateFor(taxLines []domain.TaxLine, cc CalculationContext) float64 {
	if len(taxLines) > 0 {
		var rate float64
		for _, line := range taxLines {
			rate += line.Rate
		}
		return rate
	}
	if cc.TaxRate != nil {
		return *cc.TaxRate
	}
	return 0
}

// applyRate computes round(amount * rate / 100) with half-up rounding.
func applyRate(amount int64, rate float64) int64 {
	if amount == 0 || rate == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(rate)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// LineItemTotals computes the breakdown for one line item at its full
// quantity.
func (c *Calculator) LineItemTotals(item domain.LineItem, cc CalculationContext) LineItemTotals {
	subtotal := item.UnitPrice * item.Quantity

	var discount int64
	for _, adj := range item.Adjustments {
		discount += adj.Amount
	}

	taxable := subtotal - discount
	tax := applyRate(taxable, taxRateFor(item.TaxLines, cc))

	return LineItemTotals{
		UnitPrice:     item.UnitPrice,
		Subtotal:      subtotal,
		DiscountTotal: discount,
		TaxTotal:      tax,
		Total:         taxable + tax,
	}
}

// LineItemRefund computes the refundable amount for a line item: the item
// total scaled to the still-refundable quantity. Callers pass the item with
// quantity reduced by the already returned quantity; adjustments are scaled
// by the same fraction of the original quantity.
func (c *Calculator) LineItemRefund(item domain.LineItem, originalQuantity int64, cc CalculationContext) int64 {
	if item.Quantity <= 0 || originalQuantity <= 0 {
		return 0
	}

	subtotal := item.UnitPrice * item.Quantity

	var fullDiscount int64
	for _, adj := range item.Adjustments {
		fullDiscount += adj.Amount
	}
	discount := decimal.NewFromInt(fullDiscount).
		Mul(decimal.NewFromInt(item.Quantity)).
		Div(decimal.NewFromInt(originalQuantity)).
		Round(0).
		IntPart()

	taxable := subtotal - discount
	tax := applyRate(taxable, taxRateFor(item.TaxLines, cc))

	return taxable + tax
}

// ShippingMethodTotals computes the breakdown for one shipping method.
func (c *Calculator) ShippingMethodTotals(method domain.ShippingMethod, cc CalculationContext) ShippingMethodTotals {
	tax := applyRate(method.Price, taxRateFor(method.TaxLines, cc))

	return ShippingMethodTotals{
		Price:    method.Price,
		Subtotal: method.Price,
		TaxTotal: tax,
		Total:    method.Price + tax,
	}
}

// GiftCardTotals computes the amount of giftCardableAmount covered by the
// order's gift cards. When transactions already exist (the cards were
// consumed at order creation) their recorded amounts and rates are
// authoritative; otherwise the live card balances are capped at the base
// amount. The covered amount is taxable only if the region marks gift cards
// taxable.
func (c *Calculator) GiftCardTotals(
	giftCardableAmount int64,
	region *domain.Region,
	giftCards []domain.GiftCard,
	transactions []domain.GiftCardTransaction,
) GiftCardTotals {
	if len(transactions) > 0 {
		var result GiftCardTotals
		for _, tx := range transactions {
			result.Total += tx.Amount
			if tx.IsTaxable && tx.TaxRate != nil {
				result.TaxTotal += applyRate(tx.Amount, *tx.TaxRate)
			}
		}
		return result
	}

	if len(giftCards) == 0 {
		return GiftCardTotals{}
	}

	var balance int64
	for _, gc := range giftCards {
		balance += gc.Balance
	}

	total := balance
	if total > giftCardableAmount {
		total = giftCardableAmount
	}
	if total < 0 {
		total = 0
	}

	var tax int64
	if region != nil && region.GiftCardsTaxable {
		tax = applyRate(total, region.TaxRate)
	}

	return GiftCardTotals{Total: total, TaxTotal: tax}
}
