// internal/application/checkout/orchestrator.go
package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/application/usecase"
	coupondom "storefront/internal/domain/coupon"
	guestorderdom "storefront/internal/domain/guestorder"
	orderdom "storefront/internal/domain/order"
)

// SideEffectTimeout bounds best-effort calls (newsletter, events) that outlive the request.
const SideEffectTimeout = 10 * time.Second

// Observer is notified of state changes and finished collaborator calls.
type Observer interface {
	StateChanged(from, to State)
	OperationFinished(op string, err error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State)                      {}
func (nopObserver) OperationFinished(string, error, time.Duration) {}

// Identity is the signed-in shopper as reported by the auth boundary.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Deps are the collaborators of one orchestrator. Stores are per shopper session.
type Deps struct {
	Cart      *usecase.CartStore
	GuestCart *usecase.GuestCartStore
	Coupons   *usecase.CouponEngine
	Guest     *usecase.GuestVerification
	Transfer  *usecase.CartTransfer

	Purchaser     usecase.Purchaser
	Orders        usecase.OrderService
	GuestCheckout usecase.GuestCheckoutService
	Newsletter    usecase.NewsletterSubscriber
	Events        usecase.OrderEventPublisher

	Navigator Navigator
	Scheduler Scheduler
	Observer  Observer
	Clock     usecase.Clock
	Logger    *zap.Logger
}

// Snapshot is the externally visible orchestrator state.
type Snapshot struct {
	State           State                          `json:"state"`
	Flow            Flow                           `json:"flow,omitempty"`
	Processing      bool                           `json:"processing"`
	Authenticated   bool                           `json:"authenticated"`
	Error           *ErrorView                     `json:"error,omitempty"`
	Billing         BillingForm                    `json:"billing"`
	Totals          BillingTotals                  `json:"totals"`
	Items           []orderdom.ItemSnapshot        `json:"items"`
	Coupons         []coupondom.Applied            `json:"coupons"`
	PendingOrder    *guestorderdom.GuestOrder      `json:"pendingOrder,omitempty"`
	GuestSession    *guestorderdom.VerifiedSession `json:"guestSession,omitempty"`
	Downloads       []orderdom.DownloadGrant       `json:"downloads,omitempty"`
	Purchases       []orderdom.PurchaseResult      `json:"purchases,omitempty"`
	Confirmation    *orderdom.Confirmation         `json:"confirmation,omitempty"`
	Transfer        *usecase.TransferResult        `json:"transfer,omitempty"`
	RedirectPending bool                           `json:"redirectPending"`
}

// Orchestrator is the checkout state machine of one shopper session.
//
// Events are serialised by mu. Collaborator calls run with mu released; their
// results are applied only when generation is unchanged, so a Reset or Teardown
// during a call discards the late result.
type Orchestrator struct {
	mu         sync.Mutex
	state      State
	flow       Flow
	generation uint64
	processing bool
	tornDown   bool

	identity  *Identity
	billing   BillingForm
	lastErr   *Error
	verified  *usecase.VerifiedResult
	purchases []orderdom.PurchaseResult
	confirm   *orderdom.Confirmation
	transfer  *usecase.TransferResult

	// attemptID is stable across retries of the same batch purchase.
	attemptID string
	// guestCompleted arms the one-shot guest cart clear of EnterHome.
	guestCompleted bool

	redirect *deferredTask
	side     sync.WaitGroup

	d        Deps
	validate *validator.Validate
	newID    func() string
	log      *zap.Logger
}

func NewOrchestrator(d Deps) *Orchestrator {
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Clock == nil {
		d.Clock = wallClock{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Orchestrator{
		state:    StateIdle,
		redirect: newDeferredTask(d.Scheduler),
		d:        d,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		newID:    uuid.NewString,
		log:      d.Logger.Named("checkout"),
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// ========================================
// Purchase entry
// ========================================

// RequestPurchase starts a purchase from IDLE. Signed-in shoppers buy every cart line
// in one batch; anonymous shoppers are asked to choose between guest and sign-in.
func (o *Orchestrator) RequestPurchase(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("purchase", StateIdle); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	if o.identity == nil {
		o.setStateLocked(StateChoice, FlowGuest)
		o.mu.Unlock()
		return o.Snapshot(ctx), nil
	}

	lines := o.d.Cart.Snapshot().State.Items
	if len(lines) == 0 {
		err := o.failLocked("purchase", ErrEmptyCart)
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	if o.attemptID == "" {
		o.attemptID = o.newID()
	}
	attempt := o.attemptID
	gen := o.beginLocked(StateSubmitting, FlowPurchase)
	o.mu.Unlock()

	started := time.Now()
	var (
		results []orderdom.PurchaseResult
		callErr error
	)
	for _, line := range lines {
		if !o.current(gen) {
			o.log.Info("purchase batch stopped; checkout was reset",
				zap.Int("purchased", len(results)),
				zap.Int("lines", len(lines)),
			)
			break
		}
		key := attempt + ":" + line.LineID
		res, err := o.d.Purchaser.Purchase(ctx, line.ProductID, key)
		if err != nil {
			o.log.Warn("purchase failed; batch aborted",
				zap.String("product_id", line.ProductID),
				zap.Int("purchased", len(results)),
				zap.Int("lines", len(lines)),
				zap.Error(err),
			)
			callErr = err
			break
		}
		results = append(results, res)
	}
	o.d.Observer.OperationFinished("purchase", callErr, time.Since(started))

	o.mu.Lock()
	if !o.currentLocked(gen) {
		err := o.discardedLocked("purchase")
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	o.processing = false
	o.purchases = results
	if callErr != nil {
		// already purchased lines are kept; a retry reuses the attempt id
		err := o.failLocked("purchase", callErr)
		o.setStateLocked(StateError, FlowPurchase)
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}

	o.d.Cart.Clear(ctx)
	o.attemptID = ""
	o.setStateLocked(StateSuccess, FlowPurchase)
	o.scheduleRedirectLocked(gen, Navigation{To: DestProfile})
	o.mu.Unlock()

	return o.Snapshot(ctx), nil
}

// ContinueAsGuest moves CHOICE to guest email entry.
func (o *Orchestrator) ContinueAsGuest(ctx context.Context) (Snapshot, error) {
	return o.move(ctx, "continue-as-guest", StateGuestEmailEntry, FlowGuest, StateChoice)
}

// SignIn moves CHOICE to the sign-in step.
func (o *Orchestrator) SignIn(ctx context.Context) (Snapshot, error) {
	return o.move(ctx, "sign-in", StateAuthLogin, FlowGuest, StateChoice)
}

// ========================================
// Guest verification
// ========================================

// SubmitGuestEmail creates a pending guest order for the guest cart.
// A failed call keeps GUEST_EMAIL_ENTRY with the error shown inline.
func (o *Orchestrator) SubmitGuestEmail(ctx context.Context, email string) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("guest-email", StateGuestEmailEntry); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	if o.processing {
		o.mu.Unlock()
		return o.Snapshot(ctx), o.fail("guest-email", usecase.ErrBusy)
	}
	items := o.d.GuestCart.ItemSnapshots()
	if len(items) == 0 && o.identity == nil {
		err := o.failLocked("guest-email", ErrEmptyCart)
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	gen := o.beginLocked(StateGuestEmailEntry, FlowGuest)
	o.mu.Unlock()

	started := time.Now()
	_, callErr := o.d.Guest.Start(ctx, email, items)
	o.d.Observer.OperationFinished("guest-checkout", callErr, time.Since(started))

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(gen) {
		return o.snapshotLocked(ctx), o.discardedLocked("guest-email")
	}
	o.processing = false
	if callErr != nil {
		err := o.failLocked("guest-email", callErr)
		return o.snapshotLocked(ctx), err
	}
	o.setStateLocked(StateGuestOTPPending, FlowGuest)
	return o.snapshotLocked(ctx), nil
}

// SubmitOTP verifies the one-time code. GUEST_OTP_PENDING is only left by success
// or CancelGuestVerification; every failure keeps it with an inline error.
func (o *Orchestrator) SubmitOTP(ctx context.Context, code string, termsAccepted bool) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("otp", StateGuestOTPPending); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	if o.processing {
		o.mu.Unlock()
		return o.Snapshot(ctx), o.fail("otp", usecase.ErrBusy)
	}
	gen := o.beginLocked(StateGuestOTPPending, FlowGuest)
	o.mu.Unlock()

	started := time.Now()
	res, callErr := o.d.Guest.VerifyOTP(ctx, code, termsAccepted)
	if !usecase.IsValidation(callErr) {
		o.d.Observer.OperationFinished("verify-otp", callErr, time.Since(started))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(gen) {
		return o.snapshotLocked(ctx), o.discardedLocked("otp")
	}
	o.processing = false
	if callErr != nil {
		err := o.failLocked("otp", callErr)
		return o.snapshotLocked(ctx), err
	}

	o.verified = &res
	o.setStateLocked(StateSuccess, FlowGuest)
	o.scheduleRedirectLocked(gen, Navigation{To: DestDownloadAccess, OrderNumber: res.Session.OrderNumber})
	return o.snapshotLocked(ctx), nil
}

// CancelGuestVerification is the explicit close of the guest steps.
func (o *Orchestrator) CancelGuestVerification(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("otp-cancel", StateChoice, StateGuestEmailEntry, StateGuestOTPPending, StateAuthLogin); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	o.d.Guest.Cancel()
	o.generation++
	o.processing = false
	o.lastErr = nil
	o.setStateLocked(StateIdle, FlowNone)
	o.mu.Unlock()
	return o.Snapshot(ctx), nil
}

// ResumeFromEmailLink verifies an emailed link token. On success the flow waits in
// GUEST_VERIFIED and moves to BILLING_FORM after RedirectDelay.
func (o *Orchestrator) ResumeFromEmailLink(ctx context.Context, token string) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("email-link", StateIdle, StateChoice, StateGuestEmailEntry, StateGuestOTPPending, StateError); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	if o.processing {
		o.mu.Unlock()
		return o.Snapshot(ctx), o.fail("email-link", usecase.ErrBusy)
	}
	gen := o.beginLocked(o.state, FlowGuest)
	o.mu.Unlock()

	started := time.Now()
	res, callErr := o.d.Guest.VerifyEmailLink(ctx, token)
	o.d.Observer.OperationFinished("verify-email", callErr, time.Since(started))

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(gen) {
		return o.snapshotLocked(ctx), o.discardedLocked("email-link")
	}
	o.processing = false
	if callErr != nil {
		err := o.failLocked("email-link", callErr)
		o.setStateLocked(StateError, FlowGuest)
		return o.snapshotLocked(ctx), err
	}

	o.verified = &res
	o.billing.Contact.Email = res.Session.Email
	o.setStateLocked(StateGuestVerified, FlowGuest)
	o.redirect.Schedule(RedirectDelay, func() { o.advanceVerified(gen) })
	return o.snapshotLocked(ctx), nil
}

func (o *Orchestrator) advanceVerified(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(gen) || o.state != StateGuestVerified {
		return
	}
	o.setStateLocked(StateBillingForm, FlowCheckout)
}

// ========================================
// Auth boundary
// ========================================

// AuthSucceeded records the signed-in identity and binds the signed-in cart.
// A non-empty guest cart is transferred once. From AUTH_LOGIN the flow passes
// CART_TRANSFER and always lands on BILLING_FORM.
func (o *Orchestrator) AuthSucceeded(ctx context.Context, id Identity) (Snapshot, error) {
	id.UserID = strings.TrimSpace(id.UserID)
	if id.UserID == "" {
		return o.Snapshot(ctx), o.fail("auth", errors.New("checkout: empty user id"))
	}

	o.mu.Lock()
	if o.tornDown {
		o.mu.Unlock()
		return o.Snapshot(ctx), o.fail("auth", ErrTornDown)
	}
	o.identity = &id
	if o.billing.Contact.Email == "" {
		o.billing.Contact.Email = id.Email
	}
	o.d.Cart.Bind(ctx, id.UserID)

	fromLogin := o.state == StateAuthLogin
	if fromLogin {
		o.setStateLocked(StateCartTransfer, FlowCheckout)
	}

	if !o.d.GuestCart.Snapshot().IsEmpty() {
		res, err := o.d.Transfer.Transfer(ctx)
		o.transfer = &res
		if err != nil {
			// an empty result is reported, never shown as success
			o.log.Warn("cart transfer moved nothing", zap.Int("dropped", len(res.Dropped)), zap.Int("failed", len(res.Failed)))
		}
	}

	if fromLogin {
		o.setStateLocked(StateBillingForm, FlowCheckout)
	}
	o.mu.Unlock()
	return o.Snapshot(ctx), nil
}

// SignedOut forgets the identity and detaches the signed-in cart.
func (o *Orchestrator) SignedOut(ctx context.Context) Snapshot {
	o.mu.Lock()
	o.identity = nil
	o.transfer = nil
	o.d.Cart.Bind(ctx, "")
	o.mu.Unlock()
	return o.Snapshot(ctx)
}

// ========================================
// Billing form
// ========================================

// BeginCheckout opens the billing form from IDLE.
func (o *Orchestrator) BeginCheckout(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("begin", StateIdle); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	if o.billing.Contact.Email == "" {
		switch {
		case o.identity != nil:
			o.billing.Contact.Email = o.identity.Email
		case o.verified != nil:
			o.billing.Contact.Email = o.verified.Session.Email
		}
	}
	o.lastErr = nil
	o.setStateLocked(StateBillingForm, FlowCheckout)
	o.mu.Unlock()
	return o.Snapshot(ctx), nil
}

// UpdateBilling stores the form without submitting it.
func (o *Orchestrator) UpdateBilling(ctx context.Context, form BillingForm) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("billing", StateBillingForm, StateError); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	o.billing = form
	o.mu.Unlock()
	return o.Snapshot(ctx), nil
}

// ApplyCoupon is a BILLING_FORM sub-action. Failures leave the applied list unchanged.
func (o *Orchestrator) ApplyCoupon(ctx context.Context, code string) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("apply-coupon", StateBillingForm); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	cctx := o.couponContextLocked(ctx)
	gen := o.generation
	o.mu.Unlock()

	started := time.Now()
	_, callErr := o.d.Coupons.Apply(ctx, code, cctx)
	if !usecase.IsValidation(callErr) {
		o.d.Observer.OperationFinished("apply-coupon", callErr, time.Since(started))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(gen) {
		return o.snapshotLocked(ctx), o.discardedLocked("apply-coupon")
	}
	if callErr != nil {
		err := o.failLocked("apply-coupon", callErr)
		return o.snapshotLocked(ctx), err
	}
	o.lastErr = nil
	return o.snapshotLocked(ctx), nil
}

// RemoveCoupon is a BILLING_FORM sub-action.
func (o *Orchestrator) RemoveCoupon(ctx context.Context, code string) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("remove-coupon", StateBillingForm); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	cctx := o.couponContextLocked(ctx)
	gen := o.generation
	o.mu.Unlock()

	started := time.Now()
	callErr := o.d.Coupons.Remove(ctx, code, cctx)
	if !usecase.IsValidation(callErr) {
		o.d.Observer.OperationFinished("remove-coupon", callErr, time.Since(started))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(gen) {
		return o.snapshotLocked(ctx), o.discardedLocked("remove-coupon")
	}
	if callErr != nil {
		err := o.failLocked("remove-coupon", callErr)
		return o.snapshotLocked(ctx), err
	}
	o.lastErr = nil
	return o.snapshotLocked(ctx), nil
}

// SubmitBilling validates the form and completes the order. The branch is chosen
// from the identity at submit time:
//   - signed in: create-user-order from the cart, then clear the cart
//   - guest with a verified session: complete-guest-order for the held order number
//   - guest without a verified session: hard error, nothing is submitted
func (o *Orchestrator) SubmitBilling(ctx context.Context, form BillingForm) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("submit", StateBillingForm); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	if o.processing {
		o.mu.Unlock()
		return o.Snapshot(ctx), o.fail("submit", usecase.ErrBusy)
	}
	form.Contact = form.Contact.Normalize()
	o.billing = form
	if err := form.Validate(o.validate); err != nil {
		err = o.failLocked("submit", err)
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}

	identity := o.identity
	var session *guestorderdom.VerifiedSession
	if identity == nil {
		s, err := o.d.Guest.Session(ctx)
		if err != nil {
			o.log.Warn("guest session lookup failed", zap.Error(err))
		}
		session = s
		if session == nil {
			err := o.failLocked("submit", ErrNoGuestSession)
			o.setStateLocked(StateError, FlowCheckout)
			o.mu.Unlock()
			return o.Snapshot(ctx), err
		}
	}

	items := o.effectiveItemsLocked(ctx)
	if len(items) == 0 {
		err := o.failLocked("submit", ErrEmptyCart)
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	totals := computeBillingTotals(items, o.d.Coupons.Applied())
	codes := o.d.Coupons.Codes()
	gen := o.beginLocked(StateSubmitting, FlowCheckout)
	o.mu.Unlock()

	var (
		conf    orderdom.Confirmation
		callErr error
		op      string
	)
	started := time.Now()
	if identity != nil {
		op = "create-user-order"
		conf, callErr = o.d.Orders.CreateUserOrder(ctx, orderdom.Request{
			Customer:    orderdom.Customer{UserID: identity.UserID, Contact: form.Contact},
			Items:       items,
			Totals:      totals.toOrder(),
			CouponCodes: codes,
		})
	} else {
		op = "complete-guest-order"
		conf, callErr = o.d.GuestCheckout.CompleteGuestOrder(ctx, session.OrderNumber, form.Contact)
	}
	o.d.Observer.OperationFinished(op, callErr, time.Since(started))

	o.mu.Lock()
	if !o.currentLocked(gen) {
		err := o.discardedLocked("submit")
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	o.processing = false
	if callErr != nil {
		err := o.failLocked("submit", callErr)
		o.setStateLocked(StateError, FlowCheckout)
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}

	o.confirm = &conf
	nav := Navigation{To: DestProfile, OrderID: conf.OrderID, OrderNumber: conf.OrderNumber, At: o.d.Clock.Now()}
	ev := usecase.OrderCompletedEvent{
		OrderID:     conf.OrderID,
		OrderNumber: conf.OrderNumber,
		Email:       form.Contact.Email,
		Items:       items,
		Total:       totals.Total,
		CompletedAt: o.d.Clock.Now().UTC(),
	}
	if identity != nil {
		ev.UserID = identity.UserID
		o.d.Cart.Clear(ctx)
	} else {
		ev.Guest = true
		if nav.OrderNumber == "" {
			nav.OrderNumber = session.OrderNumber
			ev.OrderNumber = session.OrderNumber
		}
		nav.To = DestGuestSuccess
		o.d.Guest.DiscardSession(ctx)
		o.verified = nil
		o.guestCompleted = true
	}
	o.d.Coupons.Reset()
	o.setStateLocked(StateSuccess, FlowCheckout)
	o.mu.Unlock()

	o.runSideEffects(form, ev)
	o.navigate(nav)
	return o.Snapshot(ctx), nil
}

// Retry leaves ERROR: back to BILLING_FORM for checkout, IDLE otherwise.
// The billing form is kept.
func (o *Orchestrator) Retry(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked("retry", StateError); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	target := o.flow.retryTarget()
	flow := o.flow
	if target == StateIdle {
		flow = FlowNone
	}
	o.lastErr = nil
	o.setStateLocked(target, flow)
	o.mu.Unlock()
	return o.Snapshot(ctx), nil
}

// ========================================
// Lifecycle
// ========================================

// EnterHome is the home view lifecycle hook. It resets the flow and, once after a
// completed guest purchase, clears the guest cart.
func (o *Orchestrator) EnterHome(ctx context.Context) Snapshot {
	o.mu.Lock()
	o.resetLocked()
	clearGuest := o.guestCompleted
	o.guestCompleted = false
	o.mu.Unlock()

	if clearGuest {
		o.d.GuestCart.ClearCart(ctx)
		o.log.Info("guest cart cleared after completed guest purchase")
	}
	return o.Snapshot(ctx)
}

// Reset returns to IDLE, cancels any pending redirect and discards in-flight results.
func (o *Orchestrator) Reset(ctx context.Context) Snapshot {
	o.mu.Lock()
	o.resetLocked()
	o.mu.Unlock()
	return o.Snapshot(ctx)
}

// Teardown stops the orchestrator for good. Pending redirects never fire afterwards.
func (o *Orchestrator) Teardown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.redirect.Cancel()
	o.generation++
	o.tornDown = true
	o.processing = false
}

// WaitSideEffects blocks until best-effort side effects finished.
func (o *Orchestrator) WaitSideEffects() {
	o.side.Wait()
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns the externally visible state.
func (o *Orchestrator) Snapshot(ctx context.Context) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked(ctx)
}

func (o *Orchestrator) snapshotLocked(ctx context.Context) Snapshot {
	items := o.effectiveItemsLocked(ctx)
	applied := o.d.Coupons.Applied()
	snap := Snapshot{
		State:           o.state,
		Flow:            o.flow,
		Processing:      o.processing,
		Authenticated:   o.identity != nil,
		Error:           viewOf(o.lastErr),
		Billing:         o.billing,
		Totals:          computeBillingTotals(items, applied),
		Items:           items,
		Coupons:         applied,
		PendingOrder:    o.d.Guest.Pending(),
		Purchases:       append([]orderdom.PurchaseResult(nil), o.purchases...),
		RedirectPending: o.redirect.Pending(),
	}
	if o.verified != nil {
		s := o.verified.Session
		snap.GuestSession = &s
		snap.Downloads = append([]orderdom.DownloadGrant(nil), o.verified.Order.Downloads...)
	}
	if o.confirm != nil {
		c := *o.confirm
		snap.Confirmation = &c
		if len(snap.Downloads) == 0 {
			snap.Downloads = append([]orderdom.DownloadGrant(nil), c.Downloads...)
		}
	}
	if o.transfer != nil {
		t := *o.transfer
		snap.Transfer = &t
	}
	return snap
}

// ========================================
// internals
// ========================================

func (o *Orchestrator) move(ctx context.Context, op string, to State, flow Flow, from ...State) (Snapshot, error) {
	o.mu.Lock()
	if err := o.expectLocked(op, from...); err != nil {
		o.mu.Unlock()
		return o.Snapshot(ctx), err
	}
	o.lastErr = nil
	o.setStateLocked(to, flow)
	o.mu.Unlock()
	return o.Snapshot(ctx), nil
}

func (o *Orchestrator) expectLocked(op string, allowed ...State) error {
	if o.tornDown {
		return &Error{Kind: KindInvalidState, Op: op, State: o.state, Err: ErrTornDown}
	}
	for _, s := range allowed {
		if o.state == s {
			return nil
		}
	}
	return &Error{Kind: KindInvalidState, Op: op, State: o.state, Err: ErrInvalidTransition}
}

func (o *Orchestrator) setStateLocked(to State, flow Flow) {
	from := o.state
	o.state = to
	o.flow = flow
	if from != to {
		o.log.Debug("transition", zap.String("from", string(from)), zap.String("to", string(to)), zap.String("flow", string(flow)))
		o.d.Observer.StateChanged(from, to)
	}
}

// beginLocked marks a collaborator call in flight and returns its generation.
func (o *Orchestrator) beginLocked(state State, flow Flow) uint64 {
	o.lastErr = nil
	o.processing = true
	o.setStateLocked(state, flow)
	return o.generation
}

func (o *Orchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentLocked(gen)
}

func (o *Orchestrator) currentLocked(gen uint64) bool {
	return !o.tornDown && o.generation == gen
}

// failLocked records err as the visible error and returns it as *Error.
func (o *Orchestrator) failLocked(op string, err error) error {
	ce := &Error{Kind: classify(err), Op: op, State: o.state, Err: err}
	o.lastErr = ce
	return ce
}

func (o *Orchestrator) fail(op string, err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return &Error{Kind: classify(err), Op: op, State: o.state, Err: err}
}

// discardedLocked reports a late collaborator result that was dropped.
func (o *Orchestrator) discardedLocked(op string) error {
	o.log.Debug("late result discarded", zap.String("op", op))
	return &Error{Kind: KindInvalidState, Op: op, State: o.state, Err: ErrDiscarded}
}

func (o *Orchestrator) resetLocked() {
	o.redirect.Cancel()
	o.generation++
	o.processing = false
	o.lastErr = nil
	o.billing = BillingForm{}
	o.purchases = nil
	o.confirm = nil
	o.transfer = nil
	o.attemptID = ""
	o.d.Guest.Cancel()
	o.setStateLocked(StateIdle, FlowNone)
}

// scheduleRedirectLocked navigates to n after RedirectDelay and then returns to IDLE,
// unless the flow was reset or torn down in between.
func (o *Orchestrator) scheduleRedirectLocked(gen uint64, n Navigation) {
	o.redirect.Schedule(RedirectDelay, func() {
		o.mu.Lock()
		if !o.currentLocked(gen) || o.state != StateSuccess {
			o.mu.Unlock()
			return
		}
		n.At = o.d.Clock.Now()
		o.setStateLocked(StateIdle, FlowNone)
		o.mu.Unlock()
		o.navigate(n)
	})
}

func (o *Orchestrator) navigate(n Navigation) {
	if n.At.IsZero() {
		n.At = o.d.Clock.Now()
	}
	if o.d.Navigator != nil {
		o.d.Navigator.Navigate(n)
	}
}

// effectiveItemsLocked returns what the billing form would submit.
func (o *Orchestrator) effectiveItemsLocked(ctx context.Context) []orderdom.ItemSnapshot {
	if o.identity != nil {
		return o.d.Cart.Snapshot().ItemSnapshots()
	}
	if o.verified != nil && len(o.verified.Session.Items) > 0 {
		return orderdom.CloneItems(o.verified.Session.Items)
	}
	if s, err := o.d.Guest.Session(ctx); err == nil && s != nil && len(s.Items) > 0 {
		return orderdom.CloneItems(s.Items)
	}
	return o.d.GuestCart.ItemSnapshots()
}

func (o *Orchestrator) couponContextLocked(ctx context.Context) usecase.CouponContext {
	items := o.effectiveItemsLocked(ctx)
	cctx := usecase.CouponContext{
		UserEmail: o.billing.Contact.Email,
		Items:     items,
		Subtotal:  orderdom.Subtotal(items),
	}
	if o.identity != nil {
		cctx.UserID = o.identity.UserID
		if cctx.UserEmail == "" {
			cctx.UserEmail = o.identity.Email
		}
	}
	return cctx
}

// runSideEffects fires the newsletter opt-in and the completion event.
// Both are best effort: failures are logged and never reach the shopper.
func (o *Orchestrator) runSideEffects(form BillingForm, ev usecase.OrderCompletedEvent) {
	if form.Newsletter && o.d.Newsletter != nil {
		o.side.Add(1)
		go func() {
			defer o.side.Done()
			ctx, cancel := context.WithTimeout(context.Background(), SideEffectTimeout)
			defer cancel()
			if err := o.d.Newsletter.Subscribe(ctx, form.Contact.FullName(), form.Contact.Email); err != nil {
				o.log.Warn("newsletter opt-in failed", zap.String("email", form.Contact.Email), zap.Error(err))
			}
		}()
	}
	if o.d.Events != nil {
		o.side.Add(1)
		go func() {
			defer o.side.Done()
			ctx, cancel := context.WithTimeout(context.Background(), SideEffectTimeout)
			defer cancel()
			if err := o.d.Events.PublishOrderCompleted(ctx, ev); err != nil {
				o.log.Warn("order event publish failed", zap.String("order_id", ev.OrderID), zap.Error(err))
			}
		}()
	}
}
