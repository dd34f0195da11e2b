// internal/domain/guestcart/event.go
package guestcart

import "github.com/shopspring/decimal"

// EventKind names the mutation that produced an Event.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
	EventCleared EventKind = "cleared"
	EventLoaded  EventKind = "loaded"
	EventCleaned EventKind = "cleaned"
)

// Event is emitted to same-session listeners after every guest cart mutation.
type Event struct {
	Kind      EventKind       `json:"kind"`
	ProductID string          `json:"productId,omitempty"`
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
}
