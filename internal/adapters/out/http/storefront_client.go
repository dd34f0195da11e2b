// internal/adapters/out/http/storefront_client.go
package httpout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/application/usecase"
	coupondom "storefront/internal/domain/coupon"
	orderdom "storefront/internal/domain/order"
)

const defaultTimeout = 10 * time.Second

var ErrBaseURLEmpty = errors.New("storefront client: baseURL is empty")

// APIError is a non-2xx answer of the storefront backend.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status=%d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status=%d: %s", e.Op, e.Status, e.Message)
}

// StorefrontClient calls the storefront backend. It implements the Purchaser,
// GuestCheckoutService, OrderService and CouponService ports.
type StorefrontClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// baseURL example:
// - Cloud Run: https://xxxxx.asia-northeast1.run.app
// - local: http://localhost:8081
func NewStorefrontClient(baseURL string, timeout time.Duration, logger *zap.Logger) *StorefrontClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorefrontClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
		log:     logger.Named("storefront_client"),
	}
}

var (
	_ usecase.Purchaser            = (*StorefrontClient)(nil)
	_ usecase.GuestCheckoutService = (*StorefrontClient)(nil)
	_ usecase.OrderService         = (*StorefrontClient)(nil)
	_ usecase.CouponService        = (*StorefrontClient)(nil)
)

// ========================================
// wire payloads
// ========================================

type purchaseRequest struct {
	ProductID string `json:"productId"`
}

type guestCheckoutRequest struct {
	Email string                  `json:"email"`
	Items []orderdom.ItemSnapshot `json:"items"`
}

type guestCheckoutResponse struct {
	OrderNumber string    `json:"orderNumber"`
	ExpiresAt   time.Time `json:"expiresAt"`
	OTPSent     bool      `json:"otpSent"`
}

type verifyOTPRequest struct {
	OrderNumber string `json:"orderNumber"`
	OTP         string `json:"otp"`
	Email       string `json:"email,omitempty"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type completeGuestRequest struct {
	OrderNumber string               `json:"orderNumber"`
	Contact     orderdom.ContactInfo `json:"contact"`
}

type couponRequest struct {
	Code      string                  `json:"code"`
	UserEmail string                  `json:"userEmail,omitempty"`
	UserID    string                  `json:"userId,omitempty"`
	Items     []orderdom.ItemSnapshot `json:"items"`
	Subtotal  decimal.Decimal         `json:"subtotal"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ========================================
// ports
// ========================================

func (c *StorefrontClient) Purchase(ctx context.Context, productID, idempotencyKey string) (orderdom.PurchaseResult, error) {
	var out orderdom.PurchaseResult
	hdr := http.Header{}
	if k := strings.TrimSpace(idempotencyKey); k != "" {
		hdr.Set("Idempotency-Key", k)
	}
	err := c.do(ctx, "purchase", "/purchases", purchaseRequest{ProductID: strings.TrimSpace(productID)}, hdr, &out)
	if err != nil {
		return orderdom.PurchaseResult{}, err
	}
	if out.ProductID == "" {
		out.ProductID = strings.TrimSpace(productID)
	}
	return out, nil
}

func (c *StorefrontClient) StartGuestCheckout(ctx context.Context, email string, items []orderdom.ItemSnapshot) (usecase.GuestCheckoutTicket, error) {
	var out guestCheckoutResponse
	if err := c.do(ctx, "guest-checkout", "/guest-checkout", guestCheckoutRequest{Email: email, Items: items}, nil, &out); err != nil {
		return usecase.GuestCheckoutTicket{}, err
	}
	if strings.TrimSpace(out.OrderNumber) == "" {
		return usecase.GuestCheckoutTicket{}, &APIError{Op: "guest-checkout", Status: http.StatusOK, Message: "missing orderNumber"}
	}
	return usecase.GuestCheckoutTicket{OrderNumber: out.OrderNumber, ExpiresAt: out.ExpiresAt, OTPSent: out.OTPSent}, nil
}

func (c *StorefrontClient) VerifyOTP(ctx context.Context, in usecase.OTPVerification) (orderdom.VerifiedOrder, error) {
	var out orderdom.VerifiedOrder
	req := verifyOTPRequest{OrderNumber: in.OrderNumber, OTP: in.Code, Email: in.Email}
	if err := c.do(ctx, "verify-otp", "/guest-checkout/verify-otp", req, nil, &out); err != nil {
		return orderdom.VerifiedOrder{}, err
	}
	return out, nil
}

func (c *StorefrontClient) VerifyEmail(ctx context.Context, token string) (orderdom.VerifiedOrder, error) {
	var out orderdom.VerifiedOrder
	if err := c.do(ctx, "verify-email", "/guest-checkout/verify-email", verifyEmailRequest{Token: token}, nil, &out); err != nil {
		return orderdom.VerifiedOrder{}, err
	}
	return out, nil
}

func (c *StorefrontClient) CompleteGuestOrder(ctx context.Context, orderNumber string, contact orderdom.ContactInfo) (orderdom.Confirmation, error) {
	var out orderdom.Confirmation
	req := completeGuestRequest{OrderNumber: orderNumber, Contact: contact}
	if err := c.do(ctx, "complete-guest-order", "/guest-checkout/complete", req, nil, &out); err != nil {
		return orderdom.Confirmation{}, err
	}
	if out.OrderNumber == "" {
		out.OrderNumber = orderNumber
	}
	return out, nil
}

func (c *StorefrontClient) CreateUserOrder(ctx context.Context, req orderdom.Request) (orderdom.Confirmation, error) {
	var out orderdom.Confirmation
	if err := c.do(ctx, "create-user-order", "/orders", req, nil, &out); err != nil {
		return orderdom.Confirmation{}, err
	}
	return out, nil
}

func (c *StorefrontClient) ApplyCoupon(ctx context.Context, code string, cctx usecase.CouponContext) (coupondom.Applied, error) {
	var out coupondom.Applied
	if err := c.do(ctx, "apply-coupon", "/coupons/apply", couponBody(code, cctx), nil, &out); err != nil {
		return coupondom.Applied{}, err
	}
	if out.Code == "" {
		out.Code = code
	}
	return out, nil
}

func (c *StorefrontClient) RemoveCoupon(ctx context.Context, code string, cctx usecase.CouponContext) error {
	return c.do(ctx, "remove-coupon", "/coupons/remove", couponBody(code, cctx), nil, nil)
}

func couponBody(code string, cctx usecase.CouponContext) couponRequest {
	return couponRequest{
		Code:      code,
		UserEmail: cctx.UserEmail,
		UserID:    cctx.UserID,
		Items:     cctx.Items,
		Subtotal:  cctx.Subtotal,
	}
}

// ========================================
// transport
// ========================================

func (c *StorefrontClient) do(ctx context.Context, op, path string, in any, hdr http.Header, out any) error {
	if c == nil {
		return fmt.Errorf("storefront client is nil")
	}
	if c.baseURL == "" {
		return ErrBaseURLEmpty
	}

	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if tok := usecase.IDTokenFromContext(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	started := time.Now()
	res, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("call failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	c.log.Debug("call done", zap.String("op", op), zap.Int("status", res.StatusCode), zap.Duration("elapsed", time.Since(started)))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{Op: op, Status: res.StatusCode, Message: errorMessage(body)}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	return strings.TrimSpace(string(body))
}
