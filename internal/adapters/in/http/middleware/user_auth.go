// internal/adapters/in/http/middleware/user_auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/application/usecase"
)

// UserAuthMiddleware verifies an optional Firebase ID token and stores uid/email/name
// in the context. Requests without a bearer token pass through as anonymous
// shoppers; a token that fails verification is rejected.
type UserAuthMiddleware struct {
	Verifier IDTokenVerifier
	Logger   *zap.Logger
}

func (m *UserAuthMiddleware) Handler(next http.Handler) http.Handler {
	log := m.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("user_auth")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idToken, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if m.Verifier == nil {
			http.Error(w, "user auth middleware not initialized", http.StatusServiceUnavailable)
			return
		}

		token, err := m.Verifier.VerifyIDToken(r.Context(), idToken)
		if err != nil {
			log.Info("token rejected", zap.Error(err))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		uid := strings.TrimSpace(token.UID)
		if uid == "" {
			http.Error(w, "invalid uid in token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUID, uid)
		if email := claimString(token.Claims, "email"); email != "" {
			ctx = context.WithValue(ctx, ctxKeyEmail, email)
		}
		if name := claimString(token.Claims, "name", "fullName"); name != "" {
			ctx = context.WithValue(ctx, ctxKeyFullName, name)
		}
		ctx = usecase.WithShopper(ctx, uid, idToken)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CurrentUser returns the verified uid, email and name; ok is false for anonymous requests.
func CurrentUser(r *http.Request) (uid, email, name string, ok bool) {
	uid, _ = r.Context().Value(ctxKeyUID).(string)
	if strings.TrimSpace(uid) == "" {
		return "", "", "", false
	}
	email, _ = r.Context().Value(ctxKeyEmail).(string)
	name, _ = r.Context().Value(ctxKeyFullName).(string)
	return uid, email, name, true
}
