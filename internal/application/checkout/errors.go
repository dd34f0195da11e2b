// internal/application/checkout/errors.go
package checkout

import (
	"errors"
	"fmt"

	"storefront/internal/application/usecase"
)

// Kind classifies checkout failures.
type Kind string

const (
	// KindValidation is recovered locally; the state does not change.
	KindValidation Kind = "validation"
	// KindCollaborator is a failed backend call; the shopper may retry by hand.
	KindCollaborator Kind = "collaborator"
	// KindInvalidState is an event that is not allowed in the current state.
	KindInvalidState Kind = "invalid_state"
)

var (
	ErrInvalidTransition = errors.New("checkout: event not allowed in current state")
	ErrNoGuestSession    = errors.New("checkout: unauthenticated submit without a verified guest session")
	ErrEmptyCart         = errors.New("checkout: nothing to purchase")
	ErrBillingInvalid    = errors.New("checkout: billing form incomplete")
	ErrTermsNotAccepted  = errors.New("checkout: terms must be accepted")
	ErrTornDown          = errors.New("checkout: session closed")
	ErrDiscarded         = errors.New("checkout: result discarded after reset")
)

// Error is returned by every orchestrator event that fails.
type Error struct {
	Kind  Kind
	Op    string
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("checkout %s (%s in %s): %v", e.Op, e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or "" when err is not a checkout error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func classify(err error) Kind {
	switch {
	case usecase.IsValidation(err):
		return KindValidation
	case errors.Is(err, usecase.ErrBusy),
		errors.Is(err, usecase.ErrNoPendingOrder),
		errors.Is(err, ErrNoGuestSession),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrTornDown),
		errors.Is(err, ErrDiscarded):
		return KindInvalidState
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrBillingInvalid),
		errors.Is(err, ErrTermsNotAccepted):
		return KindValidation
	default:
		return KindCollaborator
	}
}

// ErrorView is the JSON shape of the last error shown to the shopper.
type ErrorView struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"op"`
	Message string `json:"message"`
}

func viewOf(e *Error) *ErrorView {
	if e == nil {
		return nil
	}
	return &ErrorView{Kind: e.Kind, Op: e.Op, Message: e.Err.Error()}
}
