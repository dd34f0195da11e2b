// internal/domain/cart/totals.go
package cart

import "github.com/shopspring/decimal"

// TaxRate is the VAT applied on the cart page to (subtotal - discount).
var TaxRate = decimal.NewFromFloat(0.18)

// Totals are the derived amounts of a cart state.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discountAmount"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

// Subtotal is sum(unit_price * quantity).
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// ItemCount is sum(quantity).
func ItemCount(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// ComputeTotals derives totals:
//
//	total = max(0, (subtotal - discount) * (1 + tax_rate) + shipping)
func ComputeTotals(s State) Totals {
	subtotal := Subtotal(s.Items)
	discount := decimal.Zero
	if s.Coupon != nil {
		discount = s.Coupon.DiscountFor(subtotal)
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(TaxRate).Round(2)

	total := taxable.Add(tax).Add(s.Shipping)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:  subtotal.Round(2),
		Discount:  discount.Round(2),
		Tax:       tax,
		Shipping:  s.Shipping.Round(2),
		Total:     total.Round(2),
		ItemCount: ItemCount(s.Items),
	}
}
