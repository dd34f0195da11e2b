// internal/application/usecase/guest_verification.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	guestorderdom "storefront/internal/domain/guestorder"
	orderdom "storefront/internal/domain/order"
)

var (
	ErrTermsNotAccepted  = errors.New("guest verification: terms must be accepted")
	ErrNoPendingOrder    = errors.New("guest verification: no pending guest order")
	ErrInvalidToken      = errors.New("guest verification: empty verification token")
	ErrNoVerifiedSession = errors.New("guest verification: no verified guest session")
)

// VerifiedResult is the outcome of either verification path.
type VerifiedResult struct {
	Session guestorderdom.VerifiedSession `json:"session"`
	Order   orderdom.VerifiedOrder        `json:"order"`
}

// GuestVerification runs the guest email handshake (one-time code or emailed link)
// and keeps the resulting verified session in the session-scoped record.
type GuestVerification struct {
	mu         sync.Mutex
	sessionID  string
	pending    *guestorderdom.GuestOrder
	verified   *guestorderdom.VerifiedSession
	processing bool

	svc      GuestCheckoutService
	sessions guestorderdom.SessionRepository
	signer   DownloadURLSigner
	clock    Clock
	validate *validator.Validate
	log      *zap.Logger
}

func NewGuestVerification(
	sessionID string,
	svc GuestCheckoutService,
	sessions guestorderdom.SessionRepository,
	signer DownloadURLSigner,
	clock Clock,
	logger *zap.Logger,
) *GuestVerification {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuestVerification{
		sessionID: strings.TrimSpace(sessionID),
		svc:       svc,
		sessions:  sessions,
		signer:    signer,
		clock:     clock,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       logger.Named("guest_verification"),
	}
}

// Start creates a pending guest order for email and items and has the code sent.
func (g *GuestVerification) Start(ctx context.Context, email string, items []orderdom.ItemSnapshot) (guestorderdom.GuestOrder, error) {
	email = strings.TrimSpace(email)
	if err := g.validate.Var(email, "required,email"); err != nil {
		return guestorderdom.GuestOrder{}, invalid(guestorderdom.ErrInvalidEmail)
	}
	if err := orderdom.ValidateItems(items); err != nil {
		return guestorderdom.GuestOrder{}, invalid(err)
	}

	if !g.begin() {
		return guestorderdom.GuestOrder{}, ErrBusy
	}
	ticket, err := g.svc.StartGuestCheckout(ctx, email, items)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.processing = false

	if err != nil {
		g.log.Warn("guest checkout failed", zap.Error(err))
		return guestorderdom.GuestOrder{}, upstream("guest-checkout", err)
	}

	o, err := guestorderdom.New(ticket.OrderNumber, email, items, g.clock.Now(), ticket.ExpiresAt)
	if err != nil {
		return guestorderdom.GuestOrder{}, upstream("guest-checkout", err)
	}
	g.pending = &o
	g.log.Info("guest order pending", zap.String("order_number", o.OrderNumber), zap.Bool("otp_sent", ticket.OTPSent))
	return o, nil
}

// VerifyOTP checks code for the pending order. The code format and the terms flag
// are checked before any call; a rejected code keeps the pending order for another try.
func (g *GuestVerification) VerifyOTP(ctx context.Context, code string, termsAccepted bool) (VerifiedResult, error) {
	code = strings.TrimSpace(code)
	if err := guestorderdom.ValidateOTP(code); err != nil {
		return VerifiedResult{}, invalid(err)
	}
	if !termsAccepted {
		return VerifiedResult{}, invalid(ErrTermsNotAccepted)
	}

	g.mu.Lock()
	if g.pending == nil {
		g.mu.Unlock()
		return VerifiedResult{}, ErrNoPendingOrder
	}
	if g.pending.Expired(g.clock.Now()) {
		g.mu.Unlock()
		return VerifiedResult{}, invalid(guestorderdom.ErrExpired)
	}
	if g.processing {
		g.mu.Unlock()
		return VerifiedResult{}, ErrBusy
	}
	g.processing = true
	in := OTPVerification{OrderNumber: g.pending.OrderNumber, Code: code, Email: g.pending.Email}
	g.mu.Unlock()

	v, err := g.svc.VerifyOTP(ctx, in)
	if err != nil {
		g.finish()
		g.log.Info("otp rejected", zap.String("order_number", in.OrderNumber), zap.Error(err))
		return VerifiedResult{}, upstream("verify-otp", err)
	}
	if strings.TrimSpace(v.OrderNumber) == "" {
		v.OrderNumber = in.OrderNumber
	}
	return g.complete(ctx, v, in.Email)
}

// VerifyEmailLink verifies the opaque token carried by the emailed link.
func (g *GuestVerification) VerifyEmailLink(ctx context.Context, token string) (VerifiedResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return VerifiedResult{}, invalid(ErrInvalidToken)
	}
	if !g.begin() {
		return VerifiedResult{}, ErrBusy
	}

	v, err := g.svc.VerifyEmail(ctx, token)
	if err != nil {
		g.finish()
		g.log.Info("email link rejected", zap.Error(err))
		return VerifiedResult{}, upstream("verify-email", err)
	}
	return g.complete(ctx, v, "")
}

func (g *GuestVerification) complete(ctx context.Context, v orderdom.VerifiedOrder, fallbackEmail string) (VerifiedResult, error) {
	if g.signer != nil && len(v.Downloads) > 0 {
		signed, err := g.signer.SignDownloads(ctx, v.Downloads)
		if err != nil {
			g.log.Warn("download signing failed", zap.String("order_number", v.OrderNumber), zap.Error(err))
		} else {
			v.Downloads = signed
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.processing = false

	sess, err := guestorderdom.NewVerifiedSession(v, fallbackEmail, g.clock.Now())
	if err != nil {
		return VerifiedResult{}, upstream("verify", err)
	}
	if g.pending != nil && g.pending.OrderNumber == sess.OrderNumber {
		_ = g.pending.Advance(guestorderdom.StatusVerified)
	}
	g.verified = &sess

	if g.sessions != nil && g.sessionID != "" {
		if err := g.sessions.Save(ctx, g.sessionID, sess); err != nil {
			g.log.Warn("session save failed", zap.String("order_number", sess.OrderNumber), zap.Error(err))
		}
	}
	g.log.Info("guest verified", zap.String("order_number", sess.OrderNumber))
	return VerifiedResult{Session: sess, Order: v}, nil
}

// Session returns the verified session, reloading it from the session record when
// it is not held in memory. Expired sessions are discarded. (nil, nil) means none.
func (g *GuestVerification) Session(ctx context.Context) (*guestorderdom.VerifiedSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if g.verified == nil && g.sessions != nil && g.sessionID != "" {
		s, err := g.sessions.Get(ctx, g.sessionID)
		if err != nil {
			return nil, err
		}
		g.verified = s
	}
	if g.verified == nil {
		return nil, nil
	}
	if g.verified.Expired(now) {
		g.log.Info("verified session expired", zap.String("order_number", g.verified.OrderNumber))
		g.discardLocked(ctx)
		return nil, nil
	}
	s := *g.verified
	return &s, nil
}

// DiscardSession drops the verified session after checkout completed with it.
func (g *GuestVerification) DiscardSession(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		_ = g.pending.Advance(guestorderdom.StatusCompleted)
	}
	g.discardLocked(ctx)
}

func (g *GuestVerification) discardLocked(ctx context.Context) {
	g.verified = nil
	g.pending = nil
	if g.sessions != nil && g.sessionID != "" {
		if err := g.sessions.Delete(ctx, g.sessionID); err != nil {
			g.log.Warn("session delete failed", zap.Error(err))
		}
	}
}

// Pending returns a copy of the pending order, or nil.
func (g *GuestVerification) Pending() *guestorderdom.GuestOrder {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return nil
	}
	o := *g.pending
	o.Items = orderdom.CloneItems(o.Items)
	return &o
}

// Cancel forgets the pending order. A verified session is kept.
func (g *GuestVerification) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
}

func (g *GuestVerification) IsProcessing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.processing
}

func (g *GuestVerification) begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.processing {
		return false
	}
	g.processing = true
	return true
}

func (g *GuestVerification) finish() {
	g.mu.Lock()
	g.processing = false
	g.mu.Unlock()
}
