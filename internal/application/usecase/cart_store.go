// internal/application/usecase/cart_store.go
package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	cartdom "storefront/internal/domain/cart"
	coupondom "storefront/internal/domain/coupon"
	orderdom "storefront/internal/domain/order"
	productdom "storefront/internal/domain/product"
)

// Clock provides current time (for testability).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// CartSnapshot is a read-only view of the signed-in cart.
type CartSnapshot struct {
	State  cartdom.State  `json:"state"`
	Totals cartdom.Totals `json:"totals"`
}

// ItemSnapshots converts cart lines into order item snapshots.
func (s CartSnapshot) ItemSnapshots() []orderdom.ItemSnapshot {
	out := make([]orderdom.ItemSnapshot, 0, len(s.State.Items))
	for _, it := range s.State.Items {
		out = append(out, orderdom.ItemSnapshot{
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return out
}

// CartStore owns the signed-in shopper's cart.
//
// Every mutation goes through cartdom.Reduce and is persisted right after.
// Operations never fail: unknown line ids are no-ops and storage errors are logged.
// While no owner is bound (anonymous session) the state is kept in memory only.
type CartStore struct {
	mu      sync.Mutex
	ownerID string
	state   cartdom.State

	repo  cartdom.Repository
	clock Clock
	newID func() string
	log   *zap.Logger
}

func NewCartStore(repo cartdom.Repository, logger *zap.Logger) *CartStore {
	return NewCartStoreWithClock(repo, systemClock{}, logger)
}

// NewCartStoreWithClock is useful for tests.
func NewCartStoreWithClock(repo cartdom.Repository, clock Clock, logger *zap.Logger) *CartStore {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartStore{
		state: cartdom.Empty(),
		repo:  repo,
		clock: clock,
		newID: func() string { return uuid.NewString() },
		log:   logger.Named("cart_store"),
	}
}

// Bind attaches the store to ownerID and loads its persisted cart.
// Binding the empty owner drops the in-memory cart (sign-out) without touching storage.
func (s *CartStore) Bind(ctx context.Context, ownerID string) CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ownerID = strings.TrimSpace(ownerID)
	s.state = cartdom.Empty()
	if s.ownerID == "" || s.repo == nil {
		return s.snapshotLocked()
	}

	st, err := s.repo.Get(ctx, s.ownerID)
	if err != nil {
		s.log.Warn("load failed", zap.String("owner_id", s.ownerID), zap.Error(err))
		return s.snapshotLocked()
	}
	if st != nil {
		s.state = st.Normalize()
	}
	s.log.Debug("bound", zap.String("owner_id", s.ownerID), zap.Int("lines", len(s.state.Items)))
	return s.snapshotLocked()
}

// OwnerID returns the bound owner, or "".
func (s *CartStore) OwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID
}

// Dispatch runs one command through the reducer and persists the result.
func (s *CartStore) Dispatch(ctx context.Context, cmd cartdom.Command) CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add, ok := cmd.(cartdom.AddItem); ok && strings.TrimSpace(add.LineID) == "" {
		add.LineID = s.newID()
		cmd = add
	}

	s.state = cartdom.Reduce(s.state, cmd, s.clock.Now())
	s.persistLocked(ctx, cmd.Name())
	return s.snapshotLocked()
}

// Add increments the line for product or creates one. qty defaults to 1.
func (s *CartStore) Add(ctx context.Context, p productdom.Product, qty int) CartSnapshot {
	return s.Dispatch(ctx, cartdom.AddItem{Product: p, Quantity: qty})
}

func (s *CartStore) Remove(ctx context.Context, lineID string) CartSnapshot {
	return s.Dispatch(ctx, cartdom.RemoveItem{LineID: lineID})
}

// SetQuantity sets the line quantity; qty <= 0 removes the line.
func (s *CartStore) SetQuantity(ctx context.Context, lineID string, qty int) CartSnapshot {
	return s.Dispatch(ctx, cartdom.SetQuantity{LineID: lineID, Quantity: qty})
}

func (s *CartStore) Clear(ctx context.Context) CartSnapshot {
	return s.Dispatch(ctx, cartdom.ClearCart{})
}

func (s *CartStore) ApplyCoupon(ctx context.Context, c coupondom.Coupon) CartSnapshot {
	return s.Dispatch(ctx, cartdom.ApplyCoupon{Coupon: c})
}

func (s *CartStore) RemoveCoupon(ctx context.Context) CartSnapshot {
	return s.Dispatch(ctx, cartdom.RemoveCoupon{})
}

func (s *CartStore) SetShipping(ctx context.Context, cost decimal.Decimal) CartSnapshot {
	return s.Dispatch(ctx, cartdom.SetShipping{Cost: cost})
}

// Snapshot returns the current state and totals.
func (s *CartStore) Snapshot() CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *CartStore) snapshotLocked() CartSnapshot {
	st := s.state.Clone()
	return CartSnapshot{State: st, Totals: cartdom.ComputeTotals(st)}
}

func (s *CartStore) persistLocked(ctx context.Context, op string) {
	if s.ownerID == "" || s.repo == nil {
		return
	}

	if !s.state.ShouldPersist() {
		if err := s.repo.Delete(ctx, s.ownerID); err != nil {
			s.log.Warn("delete failed", zap.String("op", op), zap.String("owner_id", s.ownerID), zap.Error(err))
		}
		return
	}

	if err := s.repo.Save(ctx, s.ownerID, s.state); err != nil {
		s.log.Warn("save failed", zap.String("op", op), zap.String("owner_id", s.ownerID), zap.Error(err))
	}
}
