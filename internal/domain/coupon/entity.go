// internal/domain/coupon/entity.go
package coupon

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Type is the discount strategy of a coupon.
type Type string

const (
	// Percentage takes value percent off the subtotal.
	Percentage Type = "percentage"
	// Fixed takes a flat amount off, capped at the subtotal.
	Fixed Type = "fixed"
)

var (
	ErrInvalidCode  = errors.New("coupon: invalid code")
	ErrInvalidType  = errors.New("coupon: invalid type")
	ErrInvalidValue = errors.New("coupon: invalid value")
)

// CodeRe is the accepted shape of a coupon code before it is sent for validation.
var CodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

var hundred = decimal.NewFromInt(100)

// Coupon is a coupon applied to the signed-in cart.
// DiscountAmount is derived from the cart subtotal whenever totals are recomputed.
type Coupon struct {
	Code           string          `json:"code"`
	Type           Type            `json:"type"`
	Value          decimal.Decimal `json:"value"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// Applied is a coupon accepted by the coupon service.
// The service is authoritative for DiscountAmount; it is never re-derived locally.
type Applied struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Description    string          `json:"description,omitempty"`

	// Type and Value are reported by the service when known.
	Type  Type            `json:"type,omitempty"`
	Value decimal.Decimal `json:"value"`
}

// ToCoupon converts a service-validated coupon into a cart coupon.
// Without a reported type the discount amount is applied as a fixed value.
func (a Applied) ToCoupon(subtotal decimal.Decimal) (Coupon, error) {
	switch a.Type {
	case Percentage, Fixed:
		return New(a.Code, a.Type, a.Value, subtotal)
	default:
		return New(a.Code, Fixed, a.DiscountAmount, subtotal)
	}
}

// NormalizeCode trims and upper-cases a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode rejects malformed codes.
func ValidateCode(code string) error {
	if !CodeRe.MatchString(strings.TrimSpace(code)) {
		return ErrInvalidCode
	}
	return nil
}

// New builds a coupon and computes its discount against subtotal.
func New(code string, t Type, value decimal.Decimal, subtotal decimal.Decimal) (Coupon, error) {
	c := Coupon{
		Code:  NormalizeCode(code),
		Type:  t,
		Value: value,
	}
	if err := c.validate(); err != nil {
		return Coupon{}, err
	}
	c.DiscountAmount = c.DiscountFor(subtotal)
	return c, nil
}

// DiscountFor returns the discount this coupon grants on subtotal.
//   - percentage: subtotal * value / 100
//   - fixed: min(value, subtotal)
func (c Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsNegative() || subtotal.IsZero() {
		return decimal.Zero
	}
	switch c.Type {
	case Percentage:
		return subtotal.Mul(c.Value).Div(hundred).Round(2)
	case Fixed:
		return decimal.Min(c.Value, subtotal)
	default:
		return decimal.Zero
	}
}

// WithSubtotal returns a copy whose DiscountAmount is re-derived for subtotal.
func (c Coupon) WithSubtotal(subtotal decimal.Decimal) Coupon {
	c.DiscountAmount = c.DiscountFor(subtotal)
	return c
}

func (c Coupon) validate() error {
	if err := ValidateCode(c.Code); err != nil {
		return err
	}
	switch c.Type {
	case Percentage:
		if c.Value.IsNegative() || c.Value.GreaterThan(hundred) {
			return ErrInvalidValue
		}
	case Fixed:
		if c.Value.IsNegative() {
			return ErrInvalidValue
		}
	default:
		return ErrInvalidType
	}
	return nil
}

// Aggregate sums the discount of every applied coupon.
func Aggregate(applied []Applied) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range applied {
		sum = sum.Add(a.DiscountAmount)
	}
	return sum
}
