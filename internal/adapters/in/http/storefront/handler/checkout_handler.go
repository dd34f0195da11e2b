// internal/adapters/in/http/storefront/handler/checkout_handler.go
package storefrontHandler

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/adapters/in/http/middleware"
	"storefront/internal/application/checkout"
	"storefront/internal/application/session"
)

const checkoutPrefix = "/storefront/checkout"

// CheckoutHandler turns /storefront/checkout/* requests into orchestrator events.
// Every answer carries the orchestrator snapshot and the navigation intents
// produced since the previous request.
type CheckoutHandler struct {
	sessions SessionOpener
	log      *zap.Logger
}

func NewCheckoutHandler(sessions SessionOpener, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{sessions: sessions, log: logger.Named("checkout_handler")}
}

type checkoutResponse struct {
	Checkout   checkout.Snapshot     `json:"checkout"`
	Navigation []checkout.Navigation `json:"navigation,omitempty"`
	Error      string                `json:"error,omitempty"`
}

type guestEmailRequest struct {
	Email string `json:"email"`
}

type otpRequest struct {
	Code          string `json:"code"`
	TermsAccepted bool   `json:"termsAccepted"`
}

type emailLinkRequest struct {
	Token string `json:"token"`
}

type couponRequest struct {
	Code string `json:"code"`
}

// event is one orchestrator call bound to a decoded request.
type event func(r *http.Request, s *session.Session) (checkout.Snapshot, error)

func (h *CheckoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	path := cleanPath(r.URL.Path)
	action := strings.TrimPrefix(strings.TrimPrefix(path, checkoutPrefix), "/")

	s, ok := openSession(w, r, h.sessions, h.log)
	if !ok {
		return
	}
	// auth and sign-out drive the identity themselves
	if action != "auth" && action != "sign-out" {
		if _, err := syncIdentity(r, s); err != nil {
			h.write(w, s, s.Checkout.Snapshot(r.Context()), err)
			return
		}
	}

	if action == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.write(w, s, s.Checkout.Snapshot(r.Context()), nil)
		return
	}

	ev, status, msg := h.route(r, action)
	if ev == nil {
		writeErr(w, status, msg)
		return
	}

	snap, err := ev(r, s)
	h.log.Info("event",
		zap.String("session_id", s.ID),
		zap.String("action", action),
		zap.String("method", r.Method),
		zap.String("state", string(snap.State)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	h.write(w, s, snap, err)
}

// route decodes the request for action. On failure it returns the status and message to answer with.
func (h *CheckoutHandler) route(r *http.Request, action string) (event, int, string) {
	isPOST := r.Method == http.MethodPost
	isPUT := r.Method == http.MethodPut
	isDEL := r.Method == http.MethodDelete

	switch action {
	case "purchase", "guest", "sign-in", "otp-cancel", "begin", "retry", "home", "reset", "auth", "sign-out":
		if !isPOST {
			return nil, http.StatusMethodNotAllowed, "method_not_allowed"
		}
		return plainEvent(action), 0, ""

	case "guest-email":
		if !isPOST {
			return nil, http.StatusMethodNotAllowed, "method_not_allowed"
		}
		var req guestEmailRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, http.StatusBadRequest, "invalid json"
		}
		return func(r *http.Request, s *session.Session) (checkout.Snapshot, error) {
			return s.Checkout.SubmitGuestEmail(r.Context(), req.Email)
		}, 0, ""

	case "otp":
		if !isPOST {
			return nil, http.StatusMethodNotAllowed, "method_not_allowed"
		}
		var req otpRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, http.StatusBadRequest, "invalid json"
		}
		return func(r *http.Request, s *session.Session) (checkout.Snapshot, error) {
			return s.Checkout.SubmitOTP(r.Context(), req.Code, req.TermsAccepted)
		}, 0, ""

	case "email-link":
		if !isPOST {
			return nil, http.StatusMethodNotAllowed, "method_not_allowed"
		}
		var req emailLinkRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, http.StatusBadRequest, "invalid json"
		}
		return func(r *http.Request, s *session.Session) (checkout.Snapshot, error) {
			return s.Checkout.ResumeFromEmailLink(r.Context(), req.Token)
		}, 0, ""

	case "billing":
		if !isPOST && !isPUT {
			return nil, http.StatusMethodNotAllowed, "method_not_allowed"
		}
		var form checkout.BillingForm
		if err := decodeJSON(r, &form); err != nil {
			return nil, http.StatusBadRequest, "invalid json"
		}
		if isPUT {
			return func(r *http.Request, s *session.Session) (checkout.Snapshot, error) {
				return s.Checkout.UpdateBilling(r.Context(), form)
			}, 0, ""
		}
		return func(r *http.Request, s *session.Session) (checkout.Snapshot, error) {
			return s.Checkout.SubmitBilling(r.Context(), form)
		}, 0, ""

	case "coupons":
		var req couponRequest
		switch {
		case isPOST:
			if err := decodeJSON(r, &req); err != nil {
				return nil, http.StatusBadRequest, "invalid json"
			}
			return func(r *http.Request, s *session.Session) (checkout.Snapshot, error) {
				return s.Checkout.ApplyCoupon(r.Context(), req.Code)
			}, 0, ""
		case isDEL:
			req.Code = r.URL.Query().Get("code")
			return func(r *http.Request, s *session.Session) (checkout.Snapshot, error) {
				return s.Checkout.RemoveCoupon(r.Context(), req.Code)
			}, 0, ""
		default:
			return nil, http.StatusMethodNotAllowed, "method_not_allowed"
		}
	}
	return nil, http.StatusNotFound, "not_found"
}

func plainEvent(action string) event {
	return func(r *http.Request, s *session.Session) (checkout.Snapshot, error) {
		ctx := r.Context()
		o := s.Checkout
		switch action {
		case "purchase":
			return o.RequestPurchase(ctx)
		case "guest":
			return o.ContinueAsGuest(ctx)
		case "sign-in":
			return o.SignIn(ctx)
		case "otp-cancel":
			return o.CancelGuestVerification(ctx)
		case "begin":
			return o.BeginCheckout(ctx)
		case "retry":
			return o.Retry(ctx)
		case "home":
			return o.EnterHome(ctx), nil
		case "reset":
			return o.Reset(ctx), nil
		case "sign-out":
			return o.SignedOut(ctx), nil
		case "auth":
			uid, email, name, ok := middleware.CurrentUser(r)
			if !ok {
				return o.Snapshot(ctx), errSignInRequired
			}
			return o.AuthSucceeded(ctx, checkout.Identity{UserID: uid, Email: email, Name: name})
		}
		return o.Snapshot(ctx), nil
	}
}

func (h *CheckoutHandler) write(w http.ResponseWriter, s *session.Session, snap checkout.Snapshot, err error) {
	resp := checkoutResponse{Checkout: snap, Navigation: s.Navigation.Drain()}
	code := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		code = statusFor(err)
		if err == errSignInRequired {
			code = http.StatusUnauthorized
		}
	}
	writeJSON(w, code, resp)
}
