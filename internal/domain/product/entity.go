// internal/domain/product/entity.go
package product

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidID    = errors.New("product: invalid id")
	ErrInvalidPrice = errors.New("product: invalid price")
)

// CatalogIDRe is the external catalog identifier format (24 hex characters).
// Guest carts may still hold ids from before the catalog moved to this format.
var CatalogIDRe = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// Product is the purchasable snapshot carried between guest and signed-in carts.
type Product struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Artist   string          `json:"artist,omitempty"`
	ImageURL string          `json:"imageUrl,omitempty"`
}

// MaxQuantity caps the quantity of a single cart line.
const MaxQuantity = 999

// ErrQuantityTooLarge is returned to callers that ask for more than MaxQuantity.
var ErrQuantityTooLarge = errors.New("product: quantity exceeds limit")

// AddQuantity returns cur+add capped at MaxQuantity. Negative inputs count as 0.
func AddQuantity(cur, add int) int {
	cur, add = ClampQuantity(cur), ClampQuantity(add)
	if add > MaxQuantity-cur {
		return MaxQuantity
	}
	return cur + add
}

// ClampQuantity bounds q to [0, MaxQuantity].
func ClampQuantity(q int) int {
	switch {
	case q < 0:
		return 0
	case q > MaxQuantity:
		return MaxQuantity
	}
	return q
}

// IsCatalogID reports whether id matches the catalog identifier format.
func IsCatalogID(id string) bool {
	return CatalogIDRe.MatchString(strings.TrimSpace(id))
}

// Normalize trims string fields.
func (p Product) Normalize() Product {
	p.ID = strings.TrimSpace(p.ID)
	p.Title = strings.TrimSpace(p.Title)
	p.Artist = strings.TrimSpace(p.Artist)
	p.ImageURL = strings.TrimSpace(p.ImageURL)
	return p
}

// Validate checks the fields every cart needs: an id and a non-negative price.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrInvalidID
	}
	if p.Price.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}
