// internal/domain/guestcart/repository_port.go
package guestcart

import "context"

// Repository persists a guest cart per anonymous session.
// It is independent of the signed-in cart storage.
type Repository interface {
	// Get returns (nil, nil) when nothing is stored.
	Get(ctx context.Context, sessionID string) (*State, error)
	Save(ctx context.Context, sessionID string, s State) error
	Delete(ctx context.Context, sessionID string) error
}
