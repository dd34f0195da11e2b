// internal/domain/guestcart/entity.go
package guestcart

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	productdom "storefront/internal/domain/product"
)

// DefaultGuestCartTTL bounds how long an abandoned guest cart is kept.
const DefaultGuestCartTTL = 14 * 24 * time.Hour

// Entry is one product held by a guest.
// The product id is the key: a guest never holds two lines for the same product.
type Entry struct {
	Product  productdom.Product `json:"product"`
	Quantity int                `json:"quantity"`
	AddedAt  time.Time          `json:"addedAt"`
}

// State is the anonymous shopper's cart.
type State struct {
	Entries   map[string]Entry `json:"entries"`
	UpdatedAt time.Time        `json:"updatedAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

func Empty() State {
	return State{Entries: map[string]Entry{}}
}

func (s State) IsEmpty() bool {
	return len(s.Entries) == 0
}

// Total is sum(price * quantity).
func (s State) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range s.Entries {
		sum = sum.Add(e.Product.Price.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}
	return sum
}

// Count is sum(quantity).
func (s State) Count() int {
	n := 0
	for _, e := range s.Entries {
		n += e.Quantity
	}
	return n
}

// Has reports whether productID is in the cart.
func (s State) Has(productID string) bool {
	_, ok := s.Entries[strings.TrimSpace(productID)]
	return ok
}

// Add merges qty into the entry for p, creating it when absent.
func (s *State) Add(p productdom.Product, qty int, now time.Time) bool {
	p = p.Normalize()
	if p.Validate() != nil {
		return false
	}
	qty = productdom.ClampQuantity(qty)
	if qty < 1 {
		qty = 1
	}
	s.ensure()

	if e, ok := s.Entries[p.ID]; ok {
		e.Quantity = productdom.AddQuantity(e.Quantity, qty)
		e.Product = p
		s.Entries[p.ID] = e
	} else {
		s.Entries[p.ID] = Entry{Product: p, Quantity: qty, AddedAt: now.UTC()}
	}
	s.touch(now)
	return true
}

// SetQuantity sets the quantity for productID; qty <= 0 removes the entry.
// Returns false when the product is not in the cart.
func (s *State) SetQuantity(productID string, qty int, now time.Time) bool {
	id := strings.TrimSpace(productID)
	e, ok := s.Entries[id]
	if !ok {
		return false
	}
	if qty <= 0 {
		delete(s.Entries, id)
	} else {
		e.Quantity = productdom.ClampQuantity(qty)
		s.Entries[id] = e
	}
	s.touch(now)
	return true
}

// Remove deletes productID. Returns false when it was not present.
func (s *State) Remove(productID string, now time.Time) bool {
	id := strings.TrimSpace(productID)
	if _, ok := s.Entries[id]; !ok {
		return false
	}
	delete(s.Entries, id)
	s.touch(now)
	return true
}

// Clear drops every entry.
func (s *State) Clear(now time.Time) {
	s.Entries = map[string]Entry{}
	s.touch(now)
}

// DropInvalid removes entries whose product id is not a catalog id and returns the dropped ids.
func (s *State) DropInvalid(now time.Time) []string {
	var dropped []string
	for id := range s.Entries {
		if !productdom.IsCatalogID(id) {
			dropped = append(dropped, id)
		}
	}
	if len(dropped) == 0 {
		return nil
	}
	for _, id := range dropped {
		delete(s.Entries, id)
	}
	sort.Strings(dropped)
	s.touch(now)
	return dropped
}

// Sorted returns entries ordered by time added, then product id.
func (s State) Sorted() []Entry {
	out := make([]Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].Product.ID < out[j].Product.ID
	})
	return out
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Entries = make(map[string]Entry, len(s.Entries))
	for k, v := range s.Entries {
		out.Entries[k] = v
	}
	return out
}

// Normalize re-keys entries by their product id and drops entries with quantity < 1.
func (s State) Normalize() State {
	out := Empty()
	out.UpdatedAt = s.UpdatedAt
	out.ExpiresAt = s.ExpiresAt
	for _, e := range s.Entries {
		p := e.Product.Normalize()
		if p.ID == "" || e.Quantity < 1 {
			continue
		}
		if cur, ok := out.Entries[p.ID]; ok {
			cur.Quantity = productdom.AddQuantity(cur.Quantity, e.Quantity)
			out.Entries[p.ID] = cur
			continue
		}
		e.Product = p
		e.Quantity = productdom.ClampQuantity(e.Quantity)
		out.Entries[p.ID] = e
	}
	return out
}

func (s *State) ensure() {
	if s.Entries == nil {
		s.Entries = map[string]Entry{}
	}
}

func (s *State) touch(now time.Time) {
	if now.IsZero() {
		return
	}
	s.UpdatedAt = now.UTC()
	s.ExpiresAt = s.UpdatedAt.Add(DefaultGuestCartTTL)
}
