package service

import (
	"github.com/dukerupert/vanir/internal/domain"
	"github.com/dukerupert/vanir/internal/totals"
)

// TotalField identifies one derived monetary field that legacy decoration can
// compute in isolation. Each field maps to a pure computation over the order
// graph; fields are independent of one another except Total, which needs a
// refreshed subtotal and is therefore always computed last.
type TotalField string

const (
	TotalFieldShippingTotal    TotalField = "shipping_total"
	TotalFieldGiftCardTotal    TotalField = "gift_card_total"
	TotalFieldDiscountTotal    TotalField = "discount_total"
	TotalFieldTaxTotal         TotalField = "tax_total"
	TotalFieldSubtotal         TotalField = "subtotal"
	TotalFieldTotal            TotalField = "total"
	TotalFieldRefundedTotal    TotalField = "refunded_total"
	TotalFieldPaidTotal        TotalField = "paid_total"
	TotalFieldRefundableAmount TotalField = "refundable_amount"
	TotalFieldItemsRefundable  TotalField = "items.refundable"
	TotalFieldSwapsRefundable  TotalField = "swaps.additional_items.refundable"
	TotalFieldClaimsRefundable TotalField = "claims.additional_items.refundable"
)

var totalFieldBySelect = map[string]TotalField{
	string(TotalFieldShippingTotal):    TotalFieldShippingTotal,
	string(TotalFieldGiftCardTotal):    TotalFieldGiftCardTotal,
	string(TotalFieldDiscountTotal):    TotalFieldDiscountTotal,
	string(TotalFieldTaxTotal):         TotalFieldTaxTotal,
	string(TotalFieldSubtotal):         TotalFieldSubtotal,
	string(TotalFieldTotal):            TotalFieldTotal,
	string(TotalFieldRefundedTotal):    TotalFieldRefundedTotal,
	string(TotalFieldPaidTotal):        TotalFieldPaidTotal,
	string(TotalFieldRefundableAmount): TotalFieldRefundableAmount,
	string(TotalFieldItemsRefundable):  TotalFieldItemsRefundable,
	string(TotalFieldSwapsRefundable):  TotalFieldSwapsRefundable,
	string(TotalFieldClaimsRefundable): TotalFieldClaimsRefundable,
}

// ParseTotalField maps a selected field name to its TotalField, reporting
// whether the name is a derived total field at all.
func ParseTotalField(name string) (TotalField, bool) {
	f, ok := totalFieldBySelect[name]
	return f, ok
}

// DecorateTotals attaches derived monetary fields to the order snapshot.
// Persisted state is never touched. With no explicit fields the full
// breakdown is computed in a single pass; with a field list only the
// requested fields are computed, one at a time.
func (s *orderService) DecorateTotals(order *domain.Order, fields ...TotalField) *domain.Order {
	if order == nil {
		return nil
	}
	if len(fields) > 0 {
		s.decorateTotalsLegacy(order, fields)
		return order
	}

	cc := s.calc.BuildContext(order, false)

	var subtotal, discountTotal, itemTax int64
	for i := range order.Items {
		item := &order.Items[i]
		lt := s.calc.LineItemTotals(*item, cc)
		item.Subtotal = lt.Subtotal
		item.DiscountTotal = lt.DiscountTotal
		item.TaxTotal = lt.TaxTotal
		item.Total = lt.Total
		item.Refundable = s.itemRefundable(*item, cc)

		subtotal += lt.Subtotal
		discountTotal += lt.DiscountTotal
		itemTax += lt.TaxTotal
	}

	var shippingTotal, shippingTax int64
	for i := range order.ShippingMethods {
		method := &order.ShippingMethods[i]
		mt := s.calc.ShippingMethodTotals(*method, cc)
		method.Subtotal = mt.Subtotal
		method.TaxTotal = mt.TaxTotal
		method.Total = mt.Total

		shippingTotal += mt.Subtotal
		shippingTax += mt.TaxTotal
	}

	gc := s.calc.GiftCardTotals(subtotal-discountTotal, order.Region, order.GiftCards, order.GiftCardTransactions)

	for i := range order.Swaps {
		for j := range order.Swaps[i].AdditionalItems {
			item := &order.Swaps[i].AdditionalItems[j]
			item.Refundable = s.itemRefundable(*item, cc)
		}
	}
	for i := range order.Claims {
		for j := range order.Claims[i].AdditionalItems {
			item := &order.Claims[i].AdditionalItems[j]
			item.Refundable = s.itemRefundable(*item, cc)
		}
	}

	order.Subtotal = subtotal
	order.DiscountTotal = discountTotal
	order.ShippingTotal = shippingTotal
	order.GiftCardTotal = gc.Total
	order.GiftCardTaxTotal = gc.TaxTotal
	order.TaxTotal = itemTax + shippingTax - gc.TaxTotal
	order.Total = subtotal + shippingTotal + order.TaxTotal - (gc.Total + discountTotal)
	order.PaidTotal = paidTotal(order)
	order.RefundedTotal = refundedTotal(order)
	order.RefundableAmount = order.PaidTotal - order.RefundedTotal
	return order
}

// decorateTotalsLegacy folds the requested fields over the order. Total is
// deferred to the end regardless of its position in the request.
func (s *orderService) decorateTotalsLegacy(order *domain.Order, fields []TotalField) {
	cc := s.calc.BuildContext(order, false)

	totalRequested := false
	for _, f := range fields {
		if f == TotalFieldTotal {
			totalRequested = true
			continue
		}
		s.applyTotalField(order, f, cc)
	}
	if totalRequested {
		s.applyTotalField(order, TotalFieldSubtotal, cc)
		s.applyTotalField(order, TotalFieldDiscountTotal, cc)
		s.applyTotalField(order, TotalFieldShippingTotal, cc)
		s.applyTotalField(order, TotalFieldGiftCardTotal, cc)
		s.applyTotalField(order, TotalFieldTaxTotal, cc)
		order.Total = order.Subtotal + order.ShippingTotal + order.TaxTotal -
			(order.GiftCardTotal + order.DiscountTotal)
	}
}

// applyTotalField computes exactly one derived field.
func (s *orderService) applyTotalField(order *domain.Order, field TotalField, cc totals.CalculationContext) {
	switch field {
	case TotalFieldShippingTotal:
		shipping, _ := s.shippingSums(order, cc)
		order.ShippingTotal = shipping

	case TotalFieldGiftCardTotal:
		subtotal, discount, _ := s.itemSums(order, cc)
		gc := s.calc.GiftCardTotals(subtotal-discount, order.Region, order.GiftCards, order.GiftCardTransactions)
		order.GiftCardTotal = gc.Total
		order.GiftCardTaxTotal = gc.TaxTotal

	case TotalFieldDiscountTotal:
		_, discount, _ := s.itemSums(order, cc)
		order.DiscountTotal = discount

	case TotalFieldTaxTotal:
		subtotal, discount, itemTax := s.itemSums(order, cc)
		_, shippingTax := s.shippingSums(order, cc)
		gc := s.calc.GiftCardTotals(subtotal-discount, order.Region, order.GiftCards, order.GiftCardTransactions)
		order.TaxTotal = itemTax + shippingTax - gc.TaxTotal

	case TotalFieldSubtotal:
		var subtotal int64
		for i := range order.Items {
			item := &order.Items[i]
			lt := s.calc.LineItemTotals(*item, cc)
			item.Subtotal = lt.Subtotal
			item.DiscountTotal = lt.DiscountTotal
			item.TaxTotal = lt.TaxTotal
			item.Total = lt.Total
			subtotal += lt.Subtotal
		}
		order.Subtotal = subtotal

	case TotalFieldRefundedTotal:
		order.RefundedTotal = refundedTotal(order)

	case TotalFieldPaidTotal:
		order.PaidTotal = paidTotal(order)

	case TotalFieldRefundableAmount:
		order.RefundableAmount = paidTotal(order) - refundedTotal(order)

	case TotalFieldItemsRefundable:
		for i := range order.Items {
			item := &order.Items[i]
			item.Refundable = s.itemRefundable(*item, cc)
		}

	case TotalFieldSwapsRefundable:
		for i := range order.Swaps {
			for j := range order.Swaps[i].AdditionalItems {
				item := &order.Swaps[i].AdditionalItems[j]
				item.Refundable = s.itemRefundable(*item, cc)
			}
		}

	case TotalFieldClaimsRefundable:
		for i := range order.Claims {
			for j := range order.Claims[i].AdditionalItems {
				item := &order.Claims[i].AdditionalItems[j]
				item.Refundable = s.itemRefundable(*item, cc)
			}
		}
	}
}

// itemRefundable computes the refundable amount for the not-yet-returned
// fraction of a line item.
func (s *orderService) itemRefundable(item domain.LineItem, cc totals.CalculationContext) int64 {
	remaining := item.Quantity - item.ReturnedQuantity
	if remaining <= 0 {
		return 0
	}
	scaled := item
	scaled.Quantity = remaining
	return s.calc.LineItemRefund(scaled, item.Quantity, cc)
}

func (s *orderService) itemSums(order *domain.Order, cc totals.CalculationContext) (subtotal, discount, tax int64) {
	for _, item := range order.Items {
		lt := s.calc.LineItemTotals(item, cc)
		subtotal += lt.Subtotal
		discount += lt.DiscountTotal
		tax += lt.TaxTotal
	}
	return subtotal, discount, tax
}

func (s *orderService) shippingSums(order *domain.Order, cc totals.CalculationContext) (shipping, tax int64) {
	for _, method := range order.ShippingMethods {
		mt := s.calc.ShippingMethodTotals(method, cc)
		shipping += mt.Subtotal
		tax += mt.TaxTotal
	}
	return shipping, tax
}

func paidTotal(order *domain.Order) int64 {
	var paid int64
	for _, p := range order.Payments {
		paid += p.Amount
	}
	return paid
}

func refundedTotal(order *domain.Order) int64 {
	var refunded int64
	for _, r := range order.Refunds {
		refunded += r.Amount
	}
	return refunded
}
