// internal/adapters/in/http/storefront/handler/helper_handler.go
package storefrontHandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/adapters/in/http/middleware"
	"storefront/internal/application/checkout"
	"storefront/internal/application/session"
)

// maxBodyBytes bounds request bodies; every storefront payload is small.
const maxBodyBytes = 1 << 20

// SessionOpener resolves the live shopper session for a request.
type SessionOpener interface {
	Open(ctx context.Context, id string) (*session.Session, error)
}

// ============================================================
// HTTP helpers
// ============================================================

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusBadRequest, msg)
}

// decodeJSON reads an optional JSON body into dst. An empty body is not an error.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func cleanPath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// openSession resolves the shopper session and answers the request itself on failure.
func openSession(w http.ResponseWriter, r *http.Request, sessions SessionOpener, log *zap.Logger) (*session.Session, bool) {
	if sessions == nil {
		writeErr(w, http.StatusInternalServerError, "session manager is not configured")
		return nil, false
	}
	s, err := sessions.Open(r.Context(), middleware.SessionID(r))
	if err != nil {
		if errors.Is(err, session.ErrClosed) {
			writeErr(w, http.StatusServiceUnavailable, "shutting down")
			return nil, false
		}
		log.Error("open session failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "session unavailable")
		return nil, false
	}
	return s, true
}

// syncIdentity aligns the orchestrator with the request's shopper: a verified user whose
// cart is not bound yet signs in, and a request without one signs a bound session out.
func syncIdentity(r *http.Request, s *session.Session) (uid string, err error) {
	uid, email, name, ok := middleware.CurrentUser(r)
	if !ok {
		if s.Cart.OwnerID() != "" {
			s.Checkout.SignedOut(r.Context())
		}
		return "", nil
	}
	if s.Cart.OwnerID() == uid {
		return uid, nil
	}
	_, err = s.Checkout.AuthSucceeded(r.Context(), checkout.Identity{UserID: uid, Email: email, Name: name})
	return uid, err
}

// statusFor maps a checkout failure to its HTTP status.
func statusFor(err error) int {
	switch checkout.KindOf(err) {
	case checkout.KindValidation:
		return http.StatusBadRequest
	case checkout.KindInvalidState:
		return http.StatusConflict
	case checkout.KindCollaborator:
		return http.StatusBadGateway
	}
	if errors.Is(err, session.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var errSignInRequired = errors.New("storefront: sign in required")
