// internal/application/usecase/ports.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	coupondom "storefront/internal/domain/coupon"
	orderdom "storefront/internal/domain/order"
)

// ========================================
// Outbound ports (storefront backend services)
// ========================================

// Purchaser buys a single product for the signed-in shopper.
// idempotencyKey is always supplied; the service may use it to dedupe retries.
type Purchaser interface {
	Purchase(ctx context.Context, productID, idempotencyKey string) (orderdom.PurchaseResult, error)
}

// GuestCheckoutTicket is returned when a guest order is created and its code dispatched.
type GuestCheckoutTicket struct {
	OrderNumber string
	ExpiresAt   time.Time
	OTPSent     bool
}

// OTPVerification is the input of a one-time code check.
type OTPVerification struct {
	OrderNumber string
	Code        string
	Email       string
}

// GuestCheckoutService covers the guest purchase calls.
type GuestCheckoutService interface {
	StartGuestCheckout(ctx context.Context, email string, items []orderdom.ItemSnapshot) (GuestCheckoutTicket, error)
	VerifyOTP(ctx context.Context, in OTPVerification) (orderdom.VerifiedOrder, error)
	VerifyEmail(ctx context.Context, token string) (orderdom.VerifiedOrder, error)
	CompleteGuestOrder(ctx context.Context, orderNumber string, contact orderdom.ContactInfo) (orderdom.Confirmation, error)
}

// OrderService creates orders for signed-in shoppers.
type OrderService interface {
	CreateUserOrder(ctx context.Context, req orderdom.Request) (orderdom.Confirmation, error)
}

// CouponContext is the cart context sent with coupon calls.
type CouponContext struct {
	UserEmail string
	UserID    string
	Items     []orderdom.ItemSnapshot
	Subtotal  decimal.Decimal
}

// CouponService validates and invalidates coupon codes server-side.
type CouponService interface {
	ApplyCoupon(ctx context.Context, code string, cctx CouponContext) (coupondom.Applied, error)
	RemoveCoupon(ctx context.Context, code string, cctx CouponContext) error
}

// NewsletterSubscriber is a best-effort opt-in side effect.
type NewsletterSubscriber interface {
	Subscribe(ctx context.Context, name, email string) error
}

// OrderCompletedEvent is published after a successful checkout.
type OrderCompletedEvent struct {
	OrderID     string                  `json:"orderId"`
	OrderNumber string                  `json:"orderNumber,omitempty"`
	UserID      string                  `json:"userId,omitempty"`
	Email       string                  `json:"email"`
	Guest       bool                    `json:"guest"`
	Items       []orderdom.ItemSnapshot `json:"items"`
	Total       decimal.Decimal         `json:"total"`
	CompletedAt time.Time               `json:"completedAt"`
}

// OrderEventPublisher is a best-effort outbound event sink.
type OrderEventPublisher interface {
	PublishOrderCompleted(ctx context.Context, ev OrderCompletedEvent) error
}

// OrderEventPublishers fans one event out to every sink. Every sink is tried;
// the failures are joined.
type OrderEventPublishers []OrderEventPublisher

func (ps OrderEventPublishers) PublishOrderCompleted(ctx context.Context, ev OrderCompletedEvent) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.PublishOrderCompleted(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DownloadURLSigner turns stored download grants into time-limited URLs.
type DownloadURLSigner interface {
	SignDownloads(ctx context.Context, grants []orderdom.DownloadGrant) ([]orderdom.DownloadGrant, error)
}
