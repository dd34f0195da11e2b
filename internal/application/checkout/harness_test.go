package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/adapters/out/memory"
	"storefront/internal/application/usecase"
	coupondom "storefront/internal/domain/coupon"
	orderdom "storefront/internal/domain/order"
	productdom "storefront/internal/domain/product"
)

const (
	hexA = "aaaaaaaaaaaaaaaaaaaaaaaa"
	hexB = "bbbbbbbbbbbbbbbbbbbbbbbb"
)

var errBackend = errors.New("backend unavailable")

// ---- scheduler ----

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	s.tasks = append(s.tasks, t)
	return &manualHandle{s: s, t: t}
}

type manualHandle struct {
	s *manualScheduler
	t *manualTimer
}

func (h *manualHandle) Stop() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	active := !h.t.stopped && !h.t.fired
	h.t.stopped = true
	return active
}

// FireDue runs every callback that is neither stopped nor fired.
func (s *manualScheduler) FireDue() int {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

// FireAll runs every callback, stopped or not, as a timer racing its Stop would.
func (s *manualScheduler) FireAll() {
	s.mu.Lock()
	all := append([]*manualTimer(nil), s.tasks...)
	s.mu.Unlock()
	for _, t := range all {
		t.f()
	}
}

func (s *manualScheduler) LastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return 0
	}
	return s.tasks[len(s.tasks)-1].d
}

// ---- collaborators ----

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type fakePurchaser struct {
	mu     sync.Mutex
	keys   []string
	failOn string
	block  chan struct{}
	// onCall runs before each purchase is recorded.
	onCall func(productID string)
}

func (f *fakePurchaser) Purchase(_ context.Context, productID, key string) (orderdom.PurchaseResult, error) {
	if f.block != nil {
		<-f.block
	}
	if f.onCall != nil {
		f.onCall(productID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if productID == f.failOn {
		return orderdom.PurchaseResult{}, errBackend
	}
	return orderdom.PurchaseResult{ProductID: productID, OrderID: "ord-" + productID}, nil
}

func (f *fakePurchaser) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

type fakeOrders struct {
	mu       sync.Mutex
	requests []orderdom.Request
	err      error
}

func (f *fakeOrders) CreateUserOrder(_ context.Context, req orderdom.Request) (orderdom.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return orderdom.Confirmation{}, f.err
	}
	return orderdom.Confirmation{OrderID: "ord-user-1", Status: "paid"}, nil
}

type fakeGuestCheckout struct {
	mu        sync.Mutex
	completed []string
	otpCalls  int
	tokens    map[string]orderdom.VerifiedOrder
	failStart bool
}

func (f *fakeGuestCheckout) StartGuestCheckout(_ context.Context, _ string, _ []orderdom.ItemSnapshot) (usecase.GuestCheckoutTicket, error) {
	if f.failStart {
		return usecase.GuestCheckoutTicket{}, errBackend
	}
	return usecase.GuestCheckoutTicket{OrderNumber: "GO-1", OTPSent: true}, nil
}

func (f *fakeGuestCheckout) VerifyOTP(_ context.Context, in usecase.OTPVerification) (orderdom.VerifiedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpCalls++
	if in.Code != "123456" {
		return orderdom.VerifiedOrder{}, errors.New("wrong code")
	}
	return orderdom.VerifiedOrder{
		OrderNumber: in.OrderNumber,
		Email:       in.Email,
		Items:       []orderdom.ItemSnapshot{{ProductID: hexA, Title: "A", UnitPrice: decimal.NewFromInt(10), Quantity: 1}},
		Downloads:   []orderdom.DownloadGrant{{ProductID: hexA, URL: "https://dl.example/a"}},
	}, nil
}

func (f *fakeGuestCheckout) VerifyEmail(_ context.Context, token string) (orderdom.VerifiedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.tokens[token]
	if !ok {
		return orderdom.VerifiedOrder{}, errors.New("link expired")
	}
	return v, nil
}

func (f *fakeGuestCheckout) CompleteGuestOrder(_ context.Context, orderNumber string, _ orderdom.ContactInfo) (orderdom.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, orderNumber)
	return orderdom.Confirmation{OrderID: "ord-" + orderNumber, OrderNumber: orderNumber}, nil
}

type fakeCoupons struct{}

func (fakeCoupons) ApplyCoupon(_ context.Context, code string, _ usecase.CouponContext) (coupondom.Applied, error) {
	switch code {
	case "A":
		return coupondom.Applied{Code: "A", DiscountAmount: decimal.RequireFromString("5.00")}, nil
	case "B":
		return coupondom.Applied{Code: "B", DiscountAmount: decimal.RequireFromString("3.00")}, nil
	}
	return coupondom.Applied{}, errors.New("unknown coupon")
}

func (fakeCoupons) RemoveCoupon(context.Context, string, usecase.CouponContext) error { return nil }

type fakeNewsletter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeNewsletter) Subscribe(_ context.Context, name, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" <"+email+">")
	return f.err
}

type fakeEvents struct {
	mu     sync.Mutex
	events []usecase.OrderCompletedEvent
}

func (f *fakeEvents) PublishOrderCompleted(_ context.Context, ev usecase.OrderCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
}

func (r *recordingObserver) StateChanged(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, string(from)+">"+string(to))
}

func (r *recordingObserver) OperationFinished(string, error, time.Duration) {}

// ---- harness ----

type harness struct {
	o          *Orchestrator
	sched      *manualScheduler
	nav        *NavigationLog
	cart       *usecase.CartStore
	guestCart  *usecase.GuestCartStore
	purchaser  *fakePurchaser
	orders     *fakeOrders
	guestSvc   *fakeGuestCheckout
	newsletter *fakeNewsletter
	events     *fakeEvents
	observer   *recordingObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return buildHarness()
}

func buildHarness() *harness {
	clock := &fixedClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}

	h := &harness{
		sched:      &manualScheduler{},
		nav:        &NavigationLog{},
		purchaser:  &fakePurchaser{},
		orders:     &fakeOrders{},
		guestSvc:   &fakeGuestCheckout{tokens: map[string]orderdom.VerifiedOrder{}},
		newsletter: &fakeNewsletter{},
		events:     &fakeEvents{},
		observer:   &recordingObserver{},
	}
	h.cart = usecase.NewCartStoreWithClock(memory.NewCartRepository(), clock, nil)
	h.guestCart = usecase.NewGuestCartStoreWithClock("sess-1", memory.NewGuestCartRepository(), clock, nil)
	guest := usecase.NewGuestVerification("sess-1", h.guestSvc, memory.NewGuestSessionRepository(), nil, clock, nil)

	h.o = NewOrchestrator(Deps{
		Cart:          h.cart,
		GuestCart:     h.guestCart,
		Coupons:       usecase.NewCouponEngine(fakeCoupons{}, nil),
		Guest:         guest,
		Transfer:      usecase.NewCartTransfer(h.guestCart, h.cart, nil),
		Purchaser:     h.purchaser,
		Orders:        h.orders,
		GuestCheckout: h.guestSvc,
		Newsletter:    h.newsletter,
		Events:        h.events,
		Navigator:     h.nav,
		Scheduler:     h.sched,
		Observer:      h.observer,
		Clock:         clock,
	})
	return h
}

func prod(id, price string) productdom.Product {
	return productdom.Product{ID: id, Title: "Title " + id, Price: decimal.RequireFromString(price)}
}

func validForm() BillingForm {
	return BillingForm{
		Contact: orderdom.ContactInfo{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
		},
		TermsAccepted: true,
	}
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	_, err := h.o.AuthSucceeded(context.Background(), Identity{UserID: "user-1", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
}

// verifyGuest walks IDLE -> ... -> SUCCESS through the one-time code path.
func (h *harness) verifyGuest(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	h.guestCart.AddItem(ctx, prod(hexA, "10.00"), 1)
	steps := []func() (Snapshot, error){
		func() (Snapshot, error) { return h.o.RequestPurchase(ctx) },
		func() (Snapshot, error) { return h.o.ContinueAsGuest(ctx) },
		func() (Snapshot, error) { return h.o.SubmitGuestEmail(ctx, "guest@example.com") },
		func() (Snapshot, error) { return h.o.SubmitOTP(ctx, "123456", true) },
	}
	for i, step := range steps {
		if _, err := step(); err != nil {
			t.Fatalf("guest step %d: %v", i, err)
		}
	}
}

func (h *harness) verifiedOrder(orderNumber, email string) orderdom.VerifiedOrder {
	return orderdom.VerifiedOrder{
		OrderNumber: orderNumber,
		Email:       email,
		Items:       []orderdom.ItemSnapshot{{ProductID: hexB, Title: "B", UnitPrice: decimal.NewFromInt(4), Quantity: 1}},
	}
}
