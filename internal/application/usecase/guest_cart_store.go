// internal/application/usecase/guest_cart_store.go
package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	guestcartdom "storefront/internal/domain/guestcart"
	orderdom "storefront/internal/domain/order"
	productdom "storefront/internal/domain/product"
)

// GuestCartNotifier fans guest cart events out to listeners of the same session.
type GuestCartNotifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func(guestcartdom.Event)
}

func NewGuestCartNotifier() *GuestCartNotifier {
	return &GuestCartNotifier{subs: map[int]func(guestcartdom.Event){}}
}

// Subscribe registers fn and returns a function that removes it.
func (n *GuestCartNotifier) Subscribe(fn func(guestcartdom.Event)) func() {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *GuestCartNotifier) emit(ev guestcartdom.Event) {
	n.mu.Lock()
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(guestcartdom.Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, n.subs[id])
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// GuestCartStore owns the anonymous shopper's cart, keyed by product id.
// Every mutation persists the full map and notifies same-session listeners.
type GuestCartStore struct {
	mu        sync.Mutex
	sessionID string
	state     guestcartdom.State

	repo     guestcartdom.Repository
	notifier *GuestCartNotifier
	clock    Clock
	log      *zap.Logger
}

func NewGuestCartStore(sessionID string, repo guestcartdom.Repository, logger *zap.Logger) *GuestCartStore {
	return NewGuestCartStoreWithClock(sessionID, repo, systemClock{}, logger)
}

func NewGuestCartStoreWithClock(sessionID string, repo guestcartdom.Repository, clock Clock, logger *zap.Logger) *GuestCartStore {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuestCartStore{
		sessionID: strings.TrimSpace(sessionID),
		state:     guestcartdom.Empty(),
		repo:      repo,
		notifier:  NewGuestCartNotifier(),
		clock:     clock,
		log:       logger.Named("guest_cart_store"),
	}
}

// Subscribe registers a listener for this session's guest cart events.
func (s *GuestCartStore) Subscribe(fn func(guestcartdom.Event)) func() {
	return s.notifier.Subscribe(fn)
}

// LoadCart re-reads the persisted cart, replacing the in-memory copy.
func (s *GuestCartStore) LoadCart(ctx context.Context) guestcartdom.State {
	s.mu.Lock()
	if s.repo != nil && s.sessionID != "" {
		st, err := s.repo.Get(ctx, s.sessionID)
		switch {
		case err != nil:
			s.log.Warn("load failed", zap.String("session_id", s.sessionID), zap.Error(err))
		case st != nil:
			s.state = st.Normalize()
		default:
			s.state = guestcartdom.Empty()
		}
	}
	ev := s.eventLocked(guestcartdom.EventLoaded, "")
	out := s.state.Clone()
	s.mu.Unlock()

	s.notifier.emit(ev)
	return out
}

// AddItem adds qty of p, merging into the existing entry for the same product.
func (s *GuestCartStore) AddItem(ctx context.Context, p productdom.Product, qty int) guestcartdom.State {
	return s.mutate(ctx, guestcartdom.EventAdded, p.ID, func(st *guestcartdom.State) bool {
		return st.Add(p, qty, s.clock.Now())
	})
}

func (s *GuestCartStore) RemoveItem(ctx context.Context, productID string) guestcartdom.State {
	return s.mutate(ctx, guestcartdom.EventRemoved, productID, func(st *guestcartdom.State) bool {
		return st.Remove(productID, s.clock.Now())
	})
}

// UpdateQuantity sets the quantity; qty <= 0 removes the entry.
func (s *GuestCartStore) UpdateQuantity(ctx context.Context, productID string, qty int) guestcartdom.State {
	kind := guestcartdom.EventUpdated
	if qty <= 0 {
		kind = guestcartdom.EventRemoved
	}
	return s.mutate(ctx, kind, productID, func(st *guestcartdom.State) bool {
		return st.SetQuantity(productID, qty, s.clock.Now())
	})
}

// ClearCart empties the cart and deletes the stored record.
func (s *GuestCartStore) ClearCart(ctx context.Context) guestcartdom.State {
	s.mu.Lock()
	s.state.Clear(s.clock.Now())
	if s.repo != nil && s.sessionID != "" {
		if err := s.repo.Delete(ctx, s.sessionID); err != nil {
			s.log.Warn("delete failed", zap.String("session_id", s.sessionID), zap.Error(err))
		}
	}
	ev := s.eventLocked(guestcartdom.EventCleared, "")
	out := s.state.Clone()
	s.mu.Unlock()

	s.notifier.emit(ev)
	return out
}

// CleanInvalidItems drops entries whose product id is not a catalog id.
func (s *GuestCartStore) CleanInvalidItems(ctx context.Context) []string {
	s.mu.Lock()
	dropped := s.state.DropInvalid(s.clock.Now())
	if len(dropped) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.log.Info("dropped invalid entries", zap.Strings("product_ids", dropped))
	s.persistLocked(ctx)
	ev := s.eventLocked(guestcartdom.EventCleaned, "")
	s.mu.Unlock()

	s.notifier.emit(ev)
	return dropped
}

// IsInCart reports whether productID is held.
func (s *GuestCartStore) IsInCart(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Has(productID)
}

// Snapshot returns a copy of the current state.
func (s *GuestCartStore) Snapshot() guestcartdom.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// ItemSnapshots converts entries into order item snapshots, oldest first.
func (s *GuestCartStore) ItemSnapshots() []orderdom.ItemSnapshot {
	st := s.Snapshot()
	out := make([]orderdom.ItemSnapshot, 0, len(st.Entries))
	for _, e := range st.Sorted() {
		out = append(out, orderdom.ItemSnapshot{
			ProductID: e.Product.ID,
			Title:     e.Product.Title,
			UnitPrice: e.Product.Price,
			Quantity:  e.Quantity,
		})
	}
	return out
}

func (s *GuestCartStore) mutate(ctx context.Context, kind guestcartdom.EventKind, productID string, fn func(*guestcartdom.State) bool) guestcartdom.State {
	s.mu.Lock()
	if !fn(&s.state) {
		out := s.state.Clone()
		s.mu.Unlock()
		return out
	}
	s.persistLocked(ctx)
	ev := s.eventLocked(kind, strings.TrimSpace(productID))
	out := s.state.Clone()
	s.mu.Unlock()

	s.notifier.emit(ev)
	return out
}

func (s *GuestCartStore) persistLocked(ctx context.Context) {
	if s.repo == nil || s.sessionID == "" {
		return
	}
	if err := s.repo.Save(ctx, s.sessionID, s.state); err != nil {
		s.log.Warn("save failed", zap.String("session_id", s.sessionID), zap.Error(err))
	}
}

func (s *GuestCartStore) eventLocked(kind guestcartdom.EventKind, productID string) guestcartdom.Event {
	return guestcartdom.Event{
		Kind:      kind,
		ProductID: productID,
		Count:     s.state.Count(),
		Total:     s.state.Total().Round(2),
	}
}
