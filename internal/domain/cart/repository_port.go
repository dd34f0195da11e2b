// internal/domain/cart/repository_port.go
package cart

import "context"

// Repository is the persistence port for the signed-in cart.
//
// Storage:
//   - one record per owner (user id)
//   - the full State is written on every mutation
//   - a cart that is empty and has no coupon is deleted instead of written
type Repository interface {
	// Get returns (nil, nil) when no record exists.
	Get(ctx context.Context, ownerID string) (*State, error)
	Save(ctx context.Context, ownerID string, s State) error
	Delete(ctx context.Context, ownerID string) error
}
