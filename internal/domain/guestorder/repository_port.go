// internal/domain/guestorder/repository_port.go
package guestorder

import "context"

// SessionRepository holds the verified guest session across a navigation.
// Records are session-scoped and short-lived (TTL on ExpiresAt).
type SessionRepository interface {
	// Get returns (nil, nil) when absent.
	Get(ctx context.Context, sessionID string) (*VerifiedSession, error)
	Save(ctx context.Context, sessionID string, s VerifiedSession) error
	Delete(ctx context.Context, sessionID string) error
}
