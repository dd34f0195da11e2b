// internal/domain/cart/command.go
package cart

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	coupondom "storefront/internal/domain/coupon"
	productdom "storefront/internal/domain/product"
)

// Command is the closed set of cart mutations.
// Only the types in this file implement it.
type Command interface {
	isCommand()
	// Name is used for logging.
	Name() string
}

type AddItem struct {
	LineID   string // assigned by the caller when a new line is created
	Product  productdom.Product
	Quantity int
}

type RemoveItem struct {
	LineID string
}

type SetQuantity struct {
	LineID   string
	Quantity int
}

type ClearCart struct{}

type ApplyCoupon struct {
	Coupon coupondom.Coupon
}

type RemoveCoupon struct{}

type SetShipping struct {
	Cost decimal.Decimal
}

func (AddItem) isCommand()      {}
func (RemoveItem) isCommand()   {}
func (SetQuantity) isCommand()  {}
func (ClearCart) isCommand()    {}
func (ApplyCoupon) isCommand()  {}
func (RemoveCoupon) isCommand() {}
func (SetShipping) isCommand()  {}

func (AddItem) Name() string      { return "add" }
func (RemoveItem) Name() string   { return "remove" }
func (SetQuantity) Name() string  { return "setQuantity" }
func (ClearCart) Name() string    { return "clear" }
func (ApplyCoupon) Name() string  { return "applyCoupon" }
func (RemoveCoupon) Name() string { return "removeCoupon" }
func (SetShipping) Name() string  { return "setShipping" }

// Reduce applies cmd to s and returns the next state. s is not modified.
// Invalid input (unknown line, bad product) leaves the state unchanged apart from the timestamp.
// The coupon discount is re-derived against the new subtotal after every command.
func Reduce(s State, cmd Command, now time.Time) State {
	next := s.Clone()

	switch c := cmd.(type) {
	case AddItem:
		next = reduceAdd(next, c)
	case RemoveItem:
		if idx := next.FindLine(c.LineID); idx >= 0 {
			next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
		}
	case SetQuantity:
		idx := next.FindLine(c.LineID)
		if idx < 0 {
			break
		}
		if c.Quantity <= 0 {
			next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
		} else {
			next.Items[idx].Quantity = productdom.ClampQuantity(c.Quantity)
		}
	case ClearCart:
		next.Items = []LineItem{}
		next.Coupon = nil
		next.Shipping = decimal.Zero
	case ApplyCoupon:
		cp := c.Coupon
		next.Coupon = &cp
	case RemoveCoupon:
		next.Coupon = nil
	case SetShipping:
		if !c.Cost.IsNegative() {
			next.Shipping = c.Cost
		}
	default:
		panic("cart: unhandled command " + cmd.Name())
	}

	if next.Coupon != nil {
		cp := next.Coupon.WithSubtotal(Subtotal(next.Items))
		next.Coupon = &cp
	}
	next.touch(now)
	return next
}

func reduceAdd(s State, c AddItem) State {
	p := c.Product.Normalize()
	if p.Validate() != nil {
		return s
	}
	qty := productdom.ClampQuantity(c.Quantity)
	if qty < 1 {
		qty = 1
	}

	if idx := s.FindProduct(p.ID); idx >= 0 {
		s.Items[idx].Quantity = productdom.AddQuantity(s.Items[idx].Quantity, qty)
		return s
	}

	lineID := strings.TrimSpace(c.LineID)
	if lineID == "" {
		lineID = p.ID
	}
	s.Items = append(s.Items, LineItem{
		LineID:    lineID,
		ProductID: p.ID,
		Title:     p.Title,
		UnitPrice: p.Price,
		Quantity:  qty,
		Product:   p,
	})
	return s
}
