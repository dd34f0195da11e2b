package cart

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coupondom "storefront/internal/domain/coupon"
	productdom "storefront/internal/domain/product"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func prod(id, price string) productdom.Product {
	return productdom.Product{ID: id, Title: "Track " + id, Price: decimal.RequireFromString(price)}
}

func TestReduce_AddMergesSameProduct(t *testing.T) {
	s := Reduce(Empty(), AddItem{LineID: "l1", Product: prod("p1", "10.00"), Quantity: 1}, now)
	s = Reduce(s, AddItem{LineID: "l2", Product: prod("p1", "10.00"), Quantity: 2}, now)

	require.Len(t, s.Items, 1)
	assert.Equal(t, "l1", s.Items[0].LineID)
	assert.Equal(t, 3, s.Items[0].Quantity)
	assert.Equal(t, now, s.UpdatedAt)
	assert.Equal(t, now.Add(DefaultCartTTL), s.ExpiresAt)
}

func TestReduce_AddDefaultsQuantityToOne(t *testing.T) {
	s := Reduce(Empty(), AddItem{LineID: "l1", Product: prod("p1", "5"), Quantity: 0}, now)
	require.Len(t, s.Items, 1)
	assert.Equal(t, 1, s.Items[0].Quantity)
}

func TestReduce_AddRejectsInvalidProduct(t *testing.T) {
	s := Reduce(Empty(), AddItem{LineID: "l1", Product: prod("", "5")}, now)
	assert.True(t, s.IsEmpty())

	s = Reduce(Empty(), AddItem{LineID: "l1", Product: prod("p1", "-1")}, now)
	assert.True(t, s.IsEmpty())
}

func TestReduce_SetQuantity(t *testing.T) {
	base := Reduce(Empty(), AddItem{LineID: "l1", Product: prod("p1", "10")}, now)

	tests := []struct {
		name    string
		qty     int
		wantLen int
		wantQty int
	}{
		{name: "positive", qty: 4, wantLen: 1, wantQty: 4},
		{name: "zero removes", qty: 0, wantLen: 0},
		{name: "negative removes", qty: -2, wantLen: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := Reduce(base, SetQuantity{LineID: "l1", Quantity: tc.qty}, now)
			require.Len(t, s.Items, tc.wantLen)
			if tc.wantLen > 0 {
				assert.Equal(t, tc.wantQty, s.Items[0].Quantity)
			}
			for _, it := range s.Items {
				assert.GreaterOrEqual(t, it.Quantity, 1)
			}
		})
	}
	// input is never modified
	assert.Equal(t, 1, base.Items[0].Quantity)
}

func TestReduce_UnknownLineIsNoop(t *testing.T) {
	base := Reduce(Empty(), AddItem{LineID: "l1", Product: prod("p1", "10")}, now)

	s := Reduce(base, RemoveItem{LineID: "nope"}, now)
	assert.Equal(t, base.Items, s.Items)

	s = Reduce(base, SetQuantity{LineID: "nope", Quantity: 9}, now)
	assert.Equal(t, base.Items, s.Items)
}

func TestReduce_ClearDropsCouponAndShipping(t *testing.T) {
	c, err := coupondom.New("SAVE10", coupondom.Percentage, decimal.NewFromInt(10), decimal.Zero)
	require.NoError(t, err)

	s := Reduce(Empty(), AddItem{LineID: "l1", Product: prod("p1", "10")}, now)
	s = Reduce(s, ApplyCoupon{Coupon: c}, now)
	s = Reduce(s, SetShipping{Cost: decimal.NewFromInt(5)}, now)
	s = Reduce(s, ClearCart{}, now)

	assert.True(t, s.IsEmpty())
	assert.Nil(t, s.Coupon)
	assert.True(t, s.Shipping.IsZero())
	assert.False(t, s.ShouldPersist())
}

func TestReduce_NegativeShippingIgnored(t *testing.T) {
	s := Reduce(Empty(), SetShipping{Cost: decimal.NewFromInt(4)}, now)
	s = Reduce(s, SetShipping{Cost: decimal.NewFromInt(-1)}, now)
	assert.True(t, s.Shipping.Equal(decimal.NewFromInt(4)))
}

func TestReduce_CouponFollowsSubtotal(t *testing.T) {
	c, err := coupondom.New("SAVE10", coupondom.Percentage, decimal.NewFromInt(10), decimal.Zero)
	require.NoError(t, err)

	s := Reduce(Empty(), ApplyCoupon{Coupon: c}, now)
	assert.True(t, s.ShouldPersist(), "coupon alone keeps the record")

	s = Reduce(s, AddItem{LineID: "l1", Product: prod("p1", "50")}, now)
	require.NotNil(t, s.Coupon)
	assert.Equal(t, "5.00", s.Coupon.DiscountAmount.StringFixed(2))

	s = Reduce(s, SetQuantity{LineID: "l1", Quantity: 2}, now)
	assert.Equal(t, "10.00", s.Coupon.DiscountAmount.StringFixed(2))
}

func TestReduce_QuantityNeverExceedsMax(t *testing.T) {
	s := Reduce(Empty(), AddItem{LineID: "l1", Product: prod("p1", "1.00"), Quantity: math.MaxInt}, now)
	s = Reduce(s, AddItem{LineID: "l2", Product: prod("p1", "1.00"), Quantity: 1}, now)
	require.Len(t, s.Items, 1)
	assert.Equal(t, productdom.MaxQuantity, s.Items[0].Quantity)
	assert.True(t, Subtotal(s.Items).IsPositive())

	s = Reduce(s, SetQuantity{LineID: "l1", Quantity: math.MaxInt}, now)
	assert.Equal(t, productdom.MaxQuantity, s.Items[0].Quantity)
}
