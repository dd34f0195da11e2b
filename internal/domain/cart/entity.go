// internal/domain/cart/entity.go
package cart

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	coupondom "storefront/internal/domain/coupon"
	productdom "storefront/internal/domain/product"
)

var (
	ErrInvalidCart = errors.New("cart: invalid")
)

// DefaultCartTTL is the inactivity window after which a persisted cart may be expired by storage TTL.
const DefaultCartTTL = 30 * 24 * time.Hour

// LineItem is one line of the signed-in cart.
// Quantity is always >= 1; a line that would drop below 1 is removed instead.
type LineItem struct {
	LineID    string          `json:"lineId"`
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`

	// Product keeps the full snapshot so checkout can build order requests without a catalog lookup.
	Product productdom.Product `json:"product"`
}

// State is the signed-in shopper's cart.
//   - Items keep insertion order
//   - Coupon is optional (at most one on the cart page)
//   - Shipping is added after tax
type State struct {
	Items     []LineItem        `json:"items"`
	Coupon    *coupondom.Coupon `json:"coupon,omitempty"`
	Shipping  decimal.Decimal   `json:"shipping"`
	UpdatedAt time.Time         `json:"updatedAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Empty returns an empty cart state.
func Empty() State {
	return State{Items: []LineItem{}}
}

// IsEmpty reports whether the cart holds no items.
func (s State) IsEmpty() bool {
	return len(s.Items) == 0
}

// ShouldPersist reports whether the state deserves a stored record.
// An empty cart without a coupon is deleted from storage instead of written.
func (s State) ShouldPersist() bool {
	return !s.IsEmpty() || s.Coupon != nil
}

// FindLine returns the index of lineID, or -1.
func (s State) FindLine(lineID string) int {
	id := strings.TrimSpace(lineID)
	for i := range s.Items {
		if s.Items[i].LineID == id {
			return i
		}
	}
	return -1
}

// FindProduct returns the index of the line holding productID, or -1.
func (s State) FindProduct(productID string) int {
	id := strings.TrimSpace(productID)
	for i := range s.Items {
		if s.Items[i].ProductID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers cannot mutate store state through a snapshot.
func (s State) Clone() State {
	out := s
	out.Items = cloneItems(s.Items)
	if s.Coupon != nil {
		c := *s.Coupon
		out.Coupon = &c
	}
	return out
}

func (s *State) touch(now time.Time) {
	if now.IsZero() {
		return
	}
	s.UpdatedAt = now.UTC()
	s.ExpiresAt = s.UpdatedAt.Add(DefaultCartTTL)
}

// Normalize drops lines that break the quantity invariant and merges duplicate products.
// Used on data loaded from storage written by older versions.
func (s State) Normalize() State {
	out := s.Clone()
	merged := make([]LineItem, 0, len(out.Items))
	seen := map[string]int{}
	for _, it := range out.Items {
		pid := strings.TrimSpace(it.ProductID)
		if pid == "" || it.Quantity < 1 || it.UnitPrice.IsNegative() {
			continue
		}
		if idx, ok := seen[pid]; ok {
			merged[idx].Quantity = productdom.AddQuantity(merged[idx].Quantity, it.Quantity)
			continue
		}
		it.ProductID = pid
		it.Quantity = productdom.ClampQuantity(it.Quantity)
		seen[pid] = len(merged)
		merged = append(merged, it)
	}
	out.Items = merged
	if out.Shipping.IsNegative() {
		out.Shipping = decimal.Zero
	}
	return out
}

func cloneItems(src []LineItem) []LineItem {
	if len(src) == 0 {
		return []LineItem{}
	}
	cp := make([]LineItem, len(src))
	copy(cp, src)
	return cp
}
