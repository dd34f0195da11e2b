// internal/application/checkout/navigator.go
package checkout

import (
	"sync"
	"time"
)

// Destination is a view the shopper is sent to.
type Destination string

const (
	DestProfile        Destination = "profile"
	DestDownloadAccess Destination = "download-access"
	DestGuestSuccess   Destination = "guest-success"
	DestHome           Destination = "home"
)

// Navigation is one navigation intent.
type Navigation struct {
	To          Destination `json:"to"`
	OrderID     string      `json:"orderId,omitempty"`
	OrderNumber string      `json:"orderNumber,omitempty"`
	At          time.Time   `json:"at"`
}

// Navigator receives navigation intents. It is never called with the orchestrator lock held.
type Navigator interface {
	Navigate(n Navigation)
}

// NavigationLog keeps navigation intents until the client collects them.
type NavigationLog struct {
	mu      sync.Mutex
	pending []Navigation
}

func (l *NavigationLog) Navigate(n Navigation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, n)
}

// Drain returns and forgets the collected intents.
func (l *NavigationLog) Drain() []Navigation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.pending
	l.pending = nil
	return out
}

// Last returns the most recent intent without removing it.
func (l *NavigationLog) Last() (Navigation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return Navigation{}, false
	}
	return l.pending[len(l.pending)-1], true
}
