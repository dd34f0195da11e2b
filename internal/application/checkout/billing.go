// internal/application/checkout/billing.go
package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	coupondom "storefront/internal/domain/coupon"
	orderdom "storefront/internal/domain/order"
)

// BillingForm is what the shopper entered on the checkout page.
// It is kept across failures so a retry never loses it.
type BillingForm struct {
	Contact       orderdom.ContactInfo `json:"contact"`
	TermsAccepted bool                 `json:"termsAccepted"`
	Newsletter    bool                 `json:"newsletter"`
}

// Validate checks the mandatory contact fields and the terms flag.
func (f BillingForm) Validate(v *validator.Validate) error {
	c := f.Contact.Normalize()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, lowerFirst(fe.Field()))
			}
			sort.Strings(fields)
			return fmt.Errorf("%w: %s", ErrBillingInvalid, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrBillingInvalid, err)
	}
	if !f.TermsAccepted {
		return ErrTermsNotAccepted
	}
	return nil
}

// BillingTotals are the checkout-page amounts. No tax is applied here.
type BillingTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// computeBillingTotals is subtotal - sum(discount_amount), floored at zero.
func computeBillingTotals(items []orderdom.ItemSnapshot, applied []coupondom.Applied) BillingTotals {
	subtotal := orderdom.Subtotal(items)
	discount := coupondom.Aggregate(applied)
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return BillingTotals{
		Subtotal: subtotal.Round(2),
		Discount: discount.Round(2),
		Total:    total.Round(2),
	}
}

func (t BillingTotals) toOrder() orderdom.Totals {
	return orderdom.Totals{Subtotal: t.Subtotal, Discount: t.Discount, Total: t.Total}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
