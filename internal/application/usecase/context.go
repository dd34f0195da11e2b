// internal/application/usecase/context.go
package usecase

import (
	"context"
	"strings"
)

// usecase 層で使う context key
type ctxKey string

const (
	ctxKeyUserID  ctxKey = "userId"
	ctxKeyIDToken ctxKey = "idToken"
)

// WithShopper is used by the auth middleware to carry the verified user and the
// raw ID token, which outbound calls forward to the storefront backend.
func WithShopper(ctx context.Context, userID, idToken string) context.Context {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, ctxKeyUserID, uid)
	if tok := strings.TrimSpace(idToken); tok != "" {
		ctx = context.WithValue(ctx, ctxKeyIDToken, tok)
	}
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyUserID)
}

func IDTokenFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyIDToken)
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	v := ctx.Value(key)
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
