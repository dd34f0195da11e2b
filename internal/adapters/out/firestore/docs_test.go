// internal/adapters/out/firestore/docs_test.go
package firestore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdom "storefront/internal/domain/cart"
	coupondom "storefront/internal/domain/coupon"
	guestcartdom "storefront/internal/domain/guestcart"
	guestorderdom "storefront/internal/domain/guestorder"
	orderdom "storefront/internal/domain/order"
	productdom "storefront/internal/domain/product"
)

const hexA = "aaaaaaaaaaaaaaaaaaaaaaaa"

func TestCartDoc_RoundTripRederivesDiscount(t *testing.T) {
	p := productdom.Product{ID: hexA, Title: "Album", Price: decimal.RequireFromString("50.00")}
	st := cartdom.State{
		Items: []cartdom.LineItem{
			{LineID: "l1", ProductID: hexA, Title: "Album", UnitPrice: p.Price, Quantity: 2, Product: p},
			{LineID: "", ProductID: "dropped", UnitPrice: p.Price, Quantity: 1},
		},
		Coupon:   &coupondom.Coupon{Code: "TEN", Type: coupondom.Percentage, Value: decimal.NewFromInt(10), DiscountAmount: decimal.NewFromInt(99)},
		Shipping: decimal.RequireFromString("4.5"),
	}

	doc := cartDocFromDomain(st)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "50.00", doc.Items[0].UnitPrice)
	assert.Equal(t, "4.50", doc.Shipping)
	assert.Nil(t, doc.ExpiresAt)

	back := doc.toDomain()
	require.Len(t, back.Items, 1)
	assert.Equal(t, 2, back.Items[0].Quantity)
	assert.Equal(t, hexA, back.Items[0].Product.ID)
	require.NotNil(t, back.Coupon)
	assert.True(t, back.Coupon.DiscountAmount.Equal(decimal.NewFromInt(10)))
}

func TestGuestCartDoc_FallsBackToKeyForMissingProductID(t *testing.T) {
	added := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := guestCartDoc{
		Entries: map[string]guestEntryDoc{
			hexA:   {Product: productDoc{Title: "Old", Price: "3.00"}, Qty: 1, AddedAt: added},
			"zero": {Product: productDoc{ID: "zero", Price: "1.00"}, Qty: 0},
		},
	}

	st := doc.toDomain()
	require.Len(t, st.Entries, 1)
	e := st.Entries[hexA]
	assert.Equal(t, hexA, e.Product.ID)
	assert.True(t, e.Product.Price.Equal(decimal.NewFromInt(3)))

	again := guestCartDocFromDomain(guestcartdom.State{Entries: map[string]guestcartdom.Entry{" ": e, hexA: e}})
	assert.Len(t, again.Entries, 1)
}

func TestGuestSessionDoc_RoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)
	s := guestorderdom.VerifiedSession{
		OrderNumber: "G-1",
		Email:       "guest@example.com",
		Items:       []orderdom.ItemSnapshot{{ProductID: hexA, Title: "Album", UnitPrice: decimal.RequireFromString("9.99"), Quantity: 1}},
		Downloads:   []orderdom.DownloadGrant{{ProductID: hexA, URL: "https://example.com/a", ExpiresAt: &exp}},
		VerifiedAt:  now,
		ExpiresAt:   now.Add(guestorderdom.DefaultSessionTTL),
	}

	back := guestSessionDocFromDomain(s).toDomain()
	assert.Equal(t, s.OrderNumber, back.OrderNumber)
	assert.Equal(t, s.Email, back.Email)
	require.Len(t, back.Items, 1)
	assert.True(t, back.Items[0].UnitPrice.Equal(s.Items[0].UnitPrice))
	require.Len(t, back.Downloads, 1)
	assert.Equal(t, exp, *back.Downloads[0].ExpiresAt)
	assert.Equal(t, s.ExpiresAt, back.ExpiresAt)
}

func TestRequireKey(t *testing.T) {
	_, err := requireKey("carts", "  ")
	assert.Error(t, err)

	k, err := requireKey("carts", " u1 ")
	require.NoError(t, err)
	assert.Equal(t, "u1", k)
}
