// internal/domain/order/entity.go
package order

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ========================================
// Snapshot structs
// ========================================

// ItemSnapshot is a purchased item as sent to the order service.
type ItemSnapshot struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// ContactInfo is the billing contact collected at checkout.
// Address fields are optional because every product is digital.
type ContactInfo struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=40"`

	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// FullName joins first and last name.
func (c ContactInfo) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Normalize trims every field.
func (c ContactInfo) Normalize() ContactInfo {
	return ContactInfo{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Email:     strings.TrimSpace(c.Email),
		Phone:     strings.TrimSpace(c.Phone),
		Street:    strings.TrimSpace(c.Street),
		City:      strings.TrimSpace(c.City),
		State:     strings.TrimSpace(c.State),
		ZipCode:   strings.TrimSpace(c.ZipCode),
		Country:   strings.TrimSpace(c.Country),
	}
}

// Customer identifies who places a signed-in order.
type Customer struct {
	UserID  string      `json:"userId"`
	Contact ContactInfo `json:"contact"`
}

// Totals are the checkout-page amounts: subtotal - coupon discounts, no tax.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Request is the full signed-in order request.
type Request struct {
	Customer    Customer       `json:"customer"`
	Items       []ItemSnapshot `json:"items"`
	Totals      Totals         `json:"totals"`
	CouponCodes []string       `json:"couponCodes,omitempty"`
}

// DownloadGrant gives access to one purchased file.
type DownloadGrant struct {
	ProductID  string     `json:"productId"`
	Title      string     `json:"title,omitempty"`
	URL        string     `json:"url,omitempty"`
	ObjectPath string     `json:"objectPath,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// PurchaseResult is returned for one purchased product.
type PurchaseResult struct {
	ProductID string         `json:"productId"`
	OrderID   string         `json:"orderId"`
	Download  *DownloadGrant `json:"download,omitempty"`
}

// Confirmation is a completed order.
type Confirmation struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber,omitempty"`
	Status      string          `json:"status,omitempty"`
	Downloads   []DownloadGrant `json:"downloads,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// VerifiedOrder is the payload returned by guest verification.
type VerifiedOrder struct {
	OrderNumber string          `json:"orderNumber"`
	Email       string          `json:"email"`
	Items       []ItemSnapshot  `json:"items"`
	Downloads   []DownloadGrant `json:"downloads,omitempty"`
	Status      string          `json:"status,omitempty"`
}

// ========================================
// Errors
// ========================================

var (
	ErrInvalidItems        = errors.New("order: invalid items")
	ErrInvalidItemSnapshot = errors.New("order: invalid item snapshot")
)

// ========================================
// Helpers
// ========================================

// Subtotal is sum(unit_price * quantity).
func Subtotal(items []ItemSnapshot) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// ValidateItems requires at least one item with an id, quantity >= 1 and a non-negative price.
func ValidateItems(items []ItemSnapshot) error {
	if len(items) == 0 {
		return ErrInvalidItems
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity < 1 || it.UnitPrice.IsNegative() {
			return ErrInvalidItemSnapshot
		}
	}
	return nil
}

// CloneItems copies items.
func CloneItems(items []ItemSnapshot) []ItemSnapshot {
	if len(items) == 0 {
		return []ItemSnapshot{}
	}
	out := make([]ItemSnapshot, len(items))
	copy(out, items)
	return out
}
