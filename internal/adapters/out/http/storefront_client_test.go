package httpout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/application/usecase"
	orderdom "storefront/internal/domain/order"
)

func TestPurchase_SendsIdempotencyKeyAndToken(t *testing.T) {
	var gotKey, gotAuth string
	var body purchaseRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/purchases", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"orderId": "o-1"})
	}))
	defer srv.Close()

	c := NewStorefrontClient(srv.URL+"/", 0, nil)
	ctx := usecase.WithShopper(context.Background(), "user-1", "tok-abc")
	res, err := c.Purchase(ctx, " p-1 ", "attempt:line")
	require.NoError(t, err)

	assert.Equal(t, "attempt:line", gotKey)
	assert.Equal(t, "Bearer tok-abc", gotAuth)
	assert.Equal(t, "p-1", body.ProductID)
	assert.Equal(t, orderdom.PurchaseResult{ProductID: "p-1", OrderID: "o-1"}, res)
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"coupon expired"}`))
	}))
	defer srv.Close()

	c := NewStorefrontClient(srv.URL, 0, nil)
	_, err := c.ApplyCoupon(context.Background(), "SPRING", usecase.CouponContext{Subtotal: decimal.NewFromInt(10)})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "coupon expired", apiErr.Message)
}

func TestVerifyOTP_DecodesVerifiedOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in verifyOTPRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		assert.Equal(t, "GO-7", in.OrderNumber)
		assert.Equal(t, "123456", in.OTP)
		_, _ = w.Write([]byte(`{"orderNumber":"GO-7","email":"g@example.com","items":[{"productId":"p","title":"P","unitPrice":"4.50","quantity":1}]}`))
	}))
	defer srv.Close()

	c := NewStorefrontClient(srv.URL, 0, nil)
	v, err := c.VerifyOTP(context.Background(), usecase.OTPVerification{OrderNumber: "GO-7", Code: "123456"})
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "4.50", v.Items[0].UnitPrice.StringFixed(2))
}

func TestStartGuestCheckout_RequiresOrderNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"otpSent":true}`))
	}))
	defer srv.Close()

	c := NewStorefrontClient(srv.URL, 0, nil)
	_, err := c.StartGuestCheckout(context.Background(), "g@example.com", nil)
	require.Error(t, err)
}

func TestEmptyBaseURL(t *testing.T) {
	c := NewStorefrontClient(" ", 0, nil)
	err := c.RemoveCoupon(context.Background(), "A", usecase.CouponContext{})
	assert.ErrorIs(t, err, ErrBaseURLEmpty)
}
