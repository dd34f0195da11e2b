package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coupondom "storefront/internal/domain/coupon"
)

func applied(code, amount string) coupondom.Applied {
	return coupondom.Applied{Code: code, DiscountAmount: decimal.RequireFromString(amount)}
}

func TestCouponEngine_RemoveRecomputesFromRemaining(t *testing.T) {
	ctx := context.Background()
	svc := newFakeCouponService(applied("A", "5.00"), applied("B", "3.00"))
	e := NewCouponEngine(svc, nil)

	_, err := e.Apply(ctx, "A", CouponContext{})
	require.NoError(t, err)
	_, err = e.Apply(ctx, "b", CouponContext{})
	require.NoError(t, err)
	assert.Equal(t, "8.00", e.Aggregate().StringFixed(2))

	require.NoError(t, e.Remove(ctx, "A", CouponContext{}))
	assert.Equal(t, "3.00", e.Aggregate().StringFixed(2))
	assert.Equal(t, []string{"B"}, e.Codes())
	assert.Equal(t, []string{"A"}, svc.removed)
}

func TestCouponEngine_ServerAmountIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	// the service may grant any amount; it is never re-derived locally
	svc := newFakeCouponService(coupondom.Applied{
		Code:           "HALF",
		Type:           coupondom.Percentage,
		Value:          decimal.NewFromInt(50),
		DiscountAmount: decimal.RequireFromString("7.77"),
	})
	e := NewCouponEngine(svc, nil)

	a, err := e.Apply(ctx, "HALF", CouponContext{Subtotal: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.Equal(t, "7.77", a.DiscountAmount.StringFixed(2))
	assert.Equal(t, "7.77", e.Aggregate().StringFixed(2))
}

func TestCouponEngine_MalformedCodeNeverCallsService(t *testing.T) {
	ctx := context.Background()
	svc := newFakeCouponService()
	e := NewCouponEngine(svc, nil)

	for _, code := range []string{"", "bad code", "way-too-long-coupon-code-0123456789"} {
		_, err := e.Apply(ctx, code, CouponContext{})
		assert.True(t, IsValidation(err), code)
		assert.ErrorIs(t, err, coupondom.ErrInvalidCode)
	}
	assert.Equal(t, 0, svc.Calls())
}

func TestCouponEngine_RejectedCodeLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	svc := newFakeCouponService(applied("A", "5.00"))
	e := NewCouponEngine(svc, nil)
	_, err := e.Apply(ctx, "A", CouponContext{})
	require.NoError(t, err)

	_, err = e.Apply(ctx, "UNKNOWN", CouponContext{})
	require.Error(t, err)
	assert.True(t, IsUpstream(err))
	assert.Equal(t, []string{"A"}, e.Codes())
	assert.Equal(t, "5.00", e.Aggregate().StringFixed(2))
	assert.False(t, e.IsProcessing())
}

func TestCouponEngine_DuplicateCodeRejectedLocally(t *testing.T) {
	ctx := context.Background()
	svc := newFakeCouponService(applied("A", "5.00"))
	e := NewCouponEngine(svc, nil)

	_, err := e.Apply(ctx, "A", CouponContext{})
	require.NoError(t, err)
	_, err = e.Apply(ctx, " a ", CouponContext{})
	assert.ErrorIs(t, err, ErrCouponAlreadyApplied)
	assert.Equal(t, 1, svc.Calls())
}

func TestCouponEngine_RemoveFailureKeepsCoupon(t *testing.T) {
	ctx := context.Background()
	svc := newFakeCouponService(applied("A", "5.00"))
	e := NewCouponEngine(svc, nil)
	_, err := e.Apply(ctx, "A", CouponContext{})
	require.NoError(t, err)

	svc.failRm = true
	err = e.Remove(ctx, "A", CouponContext{})
	assert.True(t, IsUpstream(err))
	assert.Equal(t, []string{"A"}, e.Codes())

	err = e.Remove(ctx, "NOTHERE", CouponContext{})
	assert.ErrorIs(t, err, ErrCouponNotApplied)
}

func TestCouponEngine_BusyWhileApplying(t *testing.T) {
	ctx := context.Background()
	svc := newFakeCouponService(applied("A", "5.00"), applied("B", "1.00"))
	svc.block = make(chan struct{})
	e := NewCouponEngine(svc, nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.Apply(ctx, "A", CouponContext{})
		done <- err
	}()

	require.Eventually(t, e.IsProcessing, time.Second, 5*time.Millisecond)
	_, err := e.Apply(ctx, "B", CouponContext{})
	assert.ErrorIs(t, err, ErrBusy)

	close(svc.block)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"A"}, e.Codes())
}
