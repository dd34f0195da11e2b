// internal/application/usecase/errors.go
package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks validation failures that are recovered locally.
	ErrInvalidArgument = errors.New("usecase: invalid argument")
	// ErrUpstream marks failures of a backend collaborator call.
	ErrUpstream = errors.New("usecase: upstream call failed")
	// ErrBusy is returned when the same action is already in flight.
	ErrBusy = errors.New("usecase: action already in progress")
)

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsUpstream reports whether err came from a collaborator call.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
