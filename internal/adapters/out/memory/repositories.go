// internal/adapters/out/memory/repositories.go
package memory

import (
	"context"
	"strings"
	"sync"

	cartdom "storefront/internal/domain/cart"
	guestcartdom "storefront/internal/domain/guestcart"
	guestorderdom "storefront/internal/domain/guestorder"
)

// Process-local repositories for STORE_BACKEND=memory and tests.
// Values are cloned on the way in and out so callers never share state with the store.

type CartRepository struct {
	mu   sync.RWMutex
	data map[string]cartdom.State
}

func NewCartRepository() *CartRepository {
	return &CartRepository{data: map[string]cartdom.State{}}
}

func (r *CartRepository) Get(_ context.Context, ownerID string) (*cartdom.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.data[strings.TrimSpace(ownerID)]
	if !ok {
		return nil, nil
	}
	cp := st.Clone()
	return &cp, nil
}

func (r *CartRepository) Save(_ context.Context, ownerID string, s cartdom.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[strings.TrimSpace(ownerID)] = s.Clone()
	return nil
}

func (r *CartRepository) Delete(_ context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, strings.TrimSpace(ownerID))
	return nil
}

// Len is the number of stored carts.
func (r *CartRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

type GuestCartRepository struct {
	mu   sync.RWMutex
	data map[string]guestcartdom.State
}

func NewGuestCartRepository() *GuestCartRepository {
	return &GuestCartRepository{data: map[string]guestcartdom.State{}}
}

func (r *GuestCartRepository) Get(_ context.Context, sessionID string) (*guestcartdom.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.data[strings.TrimSpace(sessionID)]
	if !ok {
		return nil, nil
	}
	cp := st.Clone()
	return &cp, nil
}

func (r *GuestCartRepository) Save(_ context.Context, sessionID string, s guestcartdom.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[strings.TrimSpace(sessionID)] = s.Clone()
	return nil
}

func (r *GuestCartRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, strings.TrimSpace(sessionID))
	return nil
}

type GuestSessionRepository struct {
	mu   sync.RWMutex
	data map[string]guestorderdom.VerifiedSession
}

func NewGuestSessionRepository() *GuestSessionRepository {
	return &GuestSessionRepository{data: map[string]guestorderdom.VerifiedSession{}}
}

// Get returns (nil, nil) when absent. Expiry is left to the caller's clock.
func (r *GuestSessionRepository) Get(_ context.Context, sessionID string) (*guestorderdom.VerifiedSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.data[strings.TrimSpace(sessionID)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *GuestSessionRepository) Save(_ context.Context, sessionID string, s guestorderdom.VerifiedSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[strings.TrimSpace(sessionID)] = s
	return nil
}

func (r *GuestSessionRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, strings.TrimSpace(sessionID))
	return nil
}
