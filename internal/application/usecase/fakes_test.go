package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	cartdom "storefront/internal/domain/cart"
	coupondom "storefront/internal/domain/coupon"
	orderdom "storefront/internal/domain/order"
	productdom "storefront/internal/domain/product"
)

const (
	hexA = "aaaaaaaaaaaaaaaaaaaaaaaa"
	hexB = "bbbbbbbbbbbbbbbbbbbbbbbb"
)

var errBackend = errors.New("backend unavailable")

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)}
}

func product(id, price string) productdom.Product {
	return productdom.Product{ID: id, Title: "Title " + id, Price: decimal.RequireFromString(price), Artist: "Artist"}
}

// failingCartRepo fails every call.
type failingCartRepo struct{}

func (failingCartRepo) Get(context.Context, string) (*cartdom.State, error) { return nil, errBackend }
func (failingCartRepo) Save(context.Context, string, cartdom.State) error   { return errBackend }
func (failingCartRepo) Delete(context.Context, string) error                { return errBackend }

// fakeCouponService answers from a fixed table of codes.
type fakeCouponService struct {
	mu      sync.Mutex
	codes   map[string]coupondom.Applied
	removed []string
	calls   int
	failRm  bool
	block   chan struct{}
}

func newFakeCouponService(applied ...coupondom.Applied) *fakeCouponService {
	m := map[string]coupondom.Applied{}
	for _, a := range applied {
		m[a.Code] = a
	}
	return &fakeCouponService{codes: m}
}

func (f *fakeCouponService) ApplyCoupon(_ context.Context, code string, _ CouponContext) (coupondom.Applied, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	a, ok := f.codes[code]
	if !ok {
		return coupondom.Applied{}, errors.New("coupon not found")
	}
	return a, nil
}

func (f *fakeCouponService) RemoveCoupon(_ context.Context, code string, _ CouponContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failRm {
		return errBackend
	}
	f.removed = append(f.removed, code)
	return nil
}

func (f *fakeCouponService) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeGuestCheckout records guest checkout calls.
type fakeGuestCheckout struct {
	mu sync.Mutex

	ticket    GuestCheckoutTicket
	startErr  error
	otpCode   string
	verified  orderdom.VerifiedOrder
	tokens    map[string]orderdom.VerifiedOrder
	completed []string

	startCalls int
	otpCalls   int
	emailCalls int
}

func (f *fakeGuestCheckout) StartGuestCheckout(_ context.Context, _ string, _ []orderdom.ItemSnapshot) (GuestCheckoutTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return GuestCheckoutTicket{}, f.startErr
	}
	return f.ticket, nil
}

func (f *fakeGuestCheckout) VerifyOTP(_ context.Context, in OTPVerification) (orderdom.VerifiedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpCalls++
	if in.Code != f.otpCode {
		return orderdom.VerifiedOrder{}, errors.New("invalid code")
	}
	return f.verified, nil
}

func (f *fakeGuestCheckout) VerifyEmail(_ context.Context, token string) (orderdom.VerifiedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emailCalls++
	v, ok := f.tokens[token]
	if !ok {
		return orderdom.VerifiedOrder{}, errors.New("token expired")
	}
	return v, nil
}

func (f *fakeGuestCheckout) CompleteGuestOrder(_ context.Context, orderNumber string, _ orderdom.ContactInfo) (orderdom.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, orderNumber)
	return orderdom.Confirmation{OrderID: "ord-" + orderNumber, OrderNumber: orderNumber}, nil
}

// prefixSigner rewrites object paths into fake signed URLs.
type prefixSigner struct{}

func (prefixSigner) SignDownloads(_ context.Context, grants []orderdom.DownloadGrant) ([]orderdom.DownloadGrant, error) {
	out := make([]orderdom.DownloadGrant, len(grants))
	for i, g := range grants {
		g.URL = "https://signed.example/" + g.ObjectPath
		out[i] = g
	}
	return out, nil
}
