// internal/adapters/in/http/middleware/session.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionHeader carries the signed shopper-session token in both directions.
const SessionHeader = "X-Storefront-Session"

const (
	defaultSessionTTL = 14 * 24 * time.Hour
	sessionIssuer     = "storefront"
)

var (
	ErrSessionSecretEmpty = errors.New("session: signing secret is empty")
	ErrSessionInvalid     = errors.New("session: invalid token")
)

// SessionTokens issues and parses HS256 shopper-session tokens. The subject is the
// session id that keys the guest cart and the verified guest session.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

func NewSessionTokens(secret string, ttl time.Duration) (*SessionTokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSessionSecretEmpty
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionTokens{secret: []byte(secret), ttl: ttl, now: time.Now, newID: uuid.NewString}, nil
}

func (t *SessionTokens) Issue(sessionID string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *SessionTokens) Parse(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return "", errors.Join(ErrSessionInvalid, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrSessionInvalid
	}
	return claims.Subject, nil
}

// Middleware resolves the session id from SessionHeader. A missing, expired or
// forged token starts a new session. The (re)issued token is always echoed back.
func (t *SessionTokens) Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("session")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if raw := strings.TrimSpace(r.Header.Get(SessionHeader)); raw != "" {
				id, err := t.Parse(raw)
				if err != nil {
					log.Debug("session token rejected", zap.Error(err))
				}
				sessionID = id
			}
			if sessionID == "" {
				sessionID = t.newID()
			}

			tok, err := t.Issue(sessionID)
			if err != nil {
				log.Error("session token issue failed", zap.Error(err))
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			w.Header().Set(SessionHeader, tok)

			ctx := context.WithValue(r.Context(), ctxKeySessionID, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID returns the shopper session id resolved by the session middleware.
func SessionID(r *http.Request) string {
	s, _ := r.Context().Value(ctxKeySessionID).(string)
	return s
}

// Chain applies mws so that the first one is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
