package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCode(t *testing.T) {
	tests := []struct {
		code string
		ok   bool
	}{
		{"SAVE10", true},
		{"spring_sale-2026", true},
		{"", false},
		{"   ", false},
		{"HAS SPACE", false},
		{"PERCENT%", false},
		{"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456", false}, // 33 chars
	}
	for _, tc := range tests {
		err := ValidateCode(tc.code)
		if tc.ok {
			assert.NoError(t, err, tc.code)
		} else {
			assert.ErrorIs(t, err, ErrInvalidCode, tc.code)
		}
	}
}

func TestDiscountFor(t *testing.T) {
	tests := []struct {
		name     string
		typ      Type
		value    string
		subtotal string
		want     string
	}{
		{"percentage", Percentage, "10", "100.00", "10.00"},
		{"percentage rounds", Percentage, "15", "9.99", "1.50"},
		{"fixed under subtotal", Fixed, "5", "30.00", "5.00"},
		{"fixed capped", Fixed, "20", "15.00", "15.00"},
		{"empty cart", Fixed, "20", "0", "0.00"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New("X", tc.typ, decimal.RequireFromString(tc.value), decimal.RequireFromString(tc.subtotal))
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.DiscountAmount.StringFixed(2))
		})
	}
}

func TestNew_RejectsBadInput(t *testing.T) {
	_, err := New("OK", Percentage, decimal.NewFromInt(101), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = New("OK", Fixed, decimal.NewFromInt(-1), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = New("OK", Type("bogo"), decimal.NewFromInt(1), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = New("bad code!", Fixed, decimal.NewFromInt(1), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestAggregate(t *testing.T) {
	a := Applied{Code: "A", DiscountAmount: decimal.RequireFromString("5.00")}
	b := Applied{Code: "B", DiscountAmount: decimal.RequireFromString("3.00")}

	assert.Equal(t, "8.00", Aggregate([]Applied{a, b}).StringFixed(2))
	assert.Equal(t, "3.00", Aggregate([]Applied{b}).StringFixed(2))
	assert.True(t, Aggregate(nil).IsZero())
}

func TestApplied_ToCoupon(t *testing.T) {
	pct := Applied{Code: "ten", Type: Percentage, Value: decimal.NewFromInt(10), DiscountAmount: decimal.NewFromInt(10)}
	c, err := pct.ToCoupon(decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, "TEN", c.Code)
	assert.Equal(t, "5.00", c.DiscountAmount.StringFixed(2))

	untyped := Applied{Code: "FLAT", DiscountAmount: decimal.NewFromInt(7)}
	c, err = untyped.ToCoupon(decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, Fixed, c.Type)
	assert.Equal(t, "7.00", c.DiscountAmount.StringFixed(2))
}
