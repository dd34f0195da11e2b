// internal/application/session/manager.go
package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/application/checkout"
	"storefront/internal/application/usecase"
	cartdom "storefront/internal/domain/cart"
	guestcartdom "storefront/internal/domain/guestcart"
	guestorderdom "storefront/internal/domain/guestorder"
)

// DefaultIdleTimeout tears down a shopper session nobody touched for this long.
const DefaultIdleTimeout = 30 * time.Minute

var ErrClosed = errors.New("session: manager closed")

// Stores are the persistence ports shared by every session.
type Stores struct {
	Carts      cartdom.Repository
	GuestCarts guestcartdom.Repository
	Sessions   guestorderdom.SessionRepository
}

// Backends are the outbound collaborators shared by every session.
type Backends struct {
	Purchaser     usecase.Purchaser
	Orders        usecase.OrderService
	GuestCheckout usecase.GuestCheckoutService
	Coupons       usecase.CouponService
	Newsletter    usecase.NewsletterSubscriber
	Events        usecase.OrderEventPublisher
	Signer        usecase.DownloadURLSigner
}

// GuestCartObserver receives every guest cart event of every live session.
type GuestCartObserver interface {
	GuestCartChanged(ev guestcartdom.Event)
}

// Session is everything one shopper (browser tab family) owns.
type Session struct {
	ID         string
	Cart       *usecase.CartStore
	GuestCart  *usecase.GuestCartStore
	Coupons    *usecase.CouponEngine
	Guest      *usecase.GuestVerification
	Checkout   *checkout.Orchestrator
	Navigation *checkout.NavigationLog

	mu          sync.Mutex
	lastSeen    time.Time
	unsubscribe func()
}

// teardown stops the checkout flow and detaches the session's listeners.
func (s *Session) teardown() {
	s.Checkout.Teardown()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen is when the session was last opened.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

type Options struct {
	IdleTimeout time.Duration
	Scheduler   checkout.Scheduler
	Observer    checkout.Observer
	GuestCarts  GuestCartObserver
	Clock       usecase.Clock
	Logger      *zap.Logger
}

// Manager owns the live sessions of this process.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	stores   Stores
	backends Backends
	opts     Options
	newID    func() string
	log      *zap.Logger
}

func NewManager(stores Stores, backends Backends, opts Options) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = checkout.RealScheduler{}
	}
	if opts.Clock == nil {
		opts.Clock = wallClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		sessions: map[string]*Session{},
		stores:   stores,
		backends: backends,
		opts:     opts,
		newID:    uuid.NewString,
		log:      opts.Logger.Named("session"),
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Open returns the live session for id, building it (and loading its guest cart)
// when it is not live. An empty id starts a new session with a fresh id.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = m.newID()
	}
	now := m.opts.Clock.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		s.touch(now)
		return s, nil
	}
	s := m.build(id)
	s.lastSeen = now
	m.sessions[id] = s
	m.mu.Unlock()

	s.GuestCart.LoadCart(ctx)
	m.log.Debug("session opened", zap.String("session_id", id))
	return s, nil
}

func (m *Manager) build(id string) *Session {
	log := m.opts.Logger.With(zap.String("session_id", id))
	clock := m.opts.Clock

	cart := usecase.NewCartStoreWithClock(m.stores.Carts, clock, log)
	guestCart := usecase.NewGuestCartStoreWithClock(id, m.stores.GuestCarts, clock, log)
	coupons := usecase.NewCouponEngine(m.backends.Coupons, log)
	guest := usecase.NewGuestVerification(id, m.backends.GuestCheckout, m.stores.Sessions, m.backends.Signer, clock, log)
	nav := &checkout.NavigationLog{}

	o := checkout.NewOrchestrator(checkout.Deps{
		Cart:          cart,
		GuestCart:     guestCart,
		Coupons:       coupons,
		Guest:         guest,
		Transfer:      usecase.NewCartTransfer(guestCart, cart, log),
		Purchaser:     m.backends.Purchaser,
		Orders:        m.backends.Orders,
		GuestCheckout: m.backends.GuestCheckout,
		Newsletter:    m.backends.Newsletter,
		Events:        m.backends.Events,
		Navigator:     nav,
		Scheduler:     m.opts.Scheduler,
		Observer:      m.opts.Observer,
		Clock:         clock,
		Logger:        log,
	})

	s := &Session{
		ID:         id,
		Cart:       cart,
		GuestCart:  guestCart,
		Coupons:    coupons,
		Guest:      guest,
		Checkout:   o,
		Navigation: nav,
	}
	if m.opts.GuestCarts != nil {
		s.unsubscribe = guestCart.Subscribe(m.opts.GuestCarts.GuestCartChanged)
	}
	return s
}

// Close tears down one session. Its persisted carts stay in storage.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.teardown()
	}
	return ok
}

// Sweep tears down sessions idle for longer than the idle timeout and returns their ids.
func (m *Manager) Sweep(now time.Time) []string {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.opts.IdleTimeout {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, s := range stale {
		s.teardown()
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		m.log.Info("idle sessions closed", zap.Int("count", len(ids)))
	}
	return ids
}

// Run sweeps every interval until ctx is done, then tears down every session.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case <-t.C:
			m.Sweep(m.opts.Clock.Now())
		}
	}
}

// Shutdown tears down every session and refuses new ones.
// It waits for in-flight side effects to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range all {
		s.teardown()
		s.Checkout.WaitSideEffects()
	}
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
