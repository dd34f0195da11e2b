// internal/adapters/out/db/cart_repository_pg.go
package db

import (
	"context"

	cartdom "storefront/internal/domain/cart"
	guestcartdom "storefront/internal/domain/guestcart"
	guestorderdom "storefront/internal/domain/guestorder"
)

// CartRepositoryPG implements cart.Repository on the record table.
type CartRepositoryPG struct {
	Store *RecordStorePG
}

func NewCartRepositoryPG(store *RecordStorePG) *CartRepositoryPG {
	return &CartRepositoryPG{Store: store}
}

// Get returns (nil, nil) if not found.
func (r *CartRepositoryPG) Get(ctx context.Context, ownerID string) (*cartdom.State, error) {
	var st cartdom.State
	ok, err := r.Store.get(ctx, KindCart, ownerID, &st)
	if err != nil || !ok {
		return nil, err
	}
	st = st.Normalize()
	return &st, nil
}

func (r *CartRepositoryPG) Save(ctx context.Context, ownerID string, s cartdom.State) error {
	return r.Store.put(ctx, KindCart, ownerID, s, s.UpdatedAt, s.ExpiresAt)
}

func (r *CartRepositoryPG) Delete(ctx context.Context, ownerID string) error {
	return r.Store.del(ctx, KindCart, ownerID)
}

// GuestCartRepositoryPG implements guestcart.Repository on the record table.
type GuestCartRepositoryPG struct {
	Store *RecordStorePG
}

func NewGuestCartRepositoryPG(store *RecordStorePG) *GuestCartRepositoryPG {
	return &GuestCartRepositoryPG{Store: store}
}

func (r *GuestCartRepositoryPG) Get(ctx context.Context, sessionID string) (*guestcartdom.State, error) {
	var st guestcartdom.State
	ok, err := r.Store.get(ctx, KindGuestCart, sessionID, &st)
	if err != nil || !ok {
		return nil, err
	}
	st = st.Normalize()
	return &st, nil
}

func (r *GuestCartRepositoryPG) Save(ctx context.Context, sessionID string, s guestcartdom.State) error {
	return r.Store.put(ctx, KindGuestCart, sessionID, s, s.UpdatedAt, s.ExpiresAt)
}

func (r *GuestCartRepositoryPG) Delete(ctx context.Context, sessionID string) error {
	return r.Store.del(ctx, KindGuestCart, sessionID)
}

// GuestSessionRepositoryPG implements guestorder.SessionRepository on the record table.
type GuestSessionRepositoryPG struct {
	Store *RecordStorePG
}

func NewGuestSessionRepositoryPG(store *RecordStorePG) *GuestSessionRepositoryPG {
	return &GuestSessionRepositoryPG{Store: store}
}

func (r *GuestSessionRepositoryPG) Get(ctx context.Context, sessionID string) (*guestorderdom.VerifiedSession, error) {
	var s guestorderdom.VerifiedSession
	ok, err := r.Store.get(ctx, KindGuestSession, sessionID, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (r *GuestSessionRepositoryPG) Save(ctx context.Context, sessionID string, s guestorderdom.VerifiedSession) error {
	return r.Store.put(ctx, KindGuestSession, sessionID, s, s.VerifiedAt, s.ExpiresAt)
}

func (r *GuestSessionRepositoryPG) Delete(ctx context.Context, sessionID string) error {
	return r.Store.del(ctx, KindGuestSession, sessionID)
}
