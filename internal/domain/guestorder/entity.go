// internal/domain/guestorder/entity.go
package guestorder

import (
	"errors"
	"regexp"
	"strings"
	"time"

	orderdom "storefront/internal/domain/order"
)

// Status of a guest order. It only moves forward: pending -> verified -> completed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusCompleted Status = "completed"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusVerified:  1,
	StatusCompleted: 2,
}

// DefaultVerificationWindow is used when the checkout service does not report an expiry.
const DefaultVerificationWindow = 15 * time.Minute

// DefaultSessionTTL bounds how long a verified session may wait for checkout completion.
const DefaultSessionTTL = 2 * time.Hour

var (
	ErrInvalidOrderNumber = errors.New("guestorder: invalid orderNumber")
	ErrInvalidEmail       = errors.New("guestorder: invalid email")
	ErrInvalidStatus      = errors.New("guestorder: invalid status")
	ErrStatusRegression   = errors.New("guestorder: status cannot move backward")
	ErrExpired            = errors.New("guestorder: verification window expired")
	ErrInvalidOTP         = errors.New("guestorder: code must be 6 digits")
)

// OTPRe is the one-time code format.
var OTPRe = regexp.MustCompile(`^\d{6}$`)

// ValidateOTP checks the code format without any network call.
func ValidateOTP(code string) error {
	if !OTPRe.MatchString(strings.TrimSpace(code)) {
		return ErrInvalidOTP
	}
	return nil
}

// GuestOrder is created when a guest submits an email for checkout.
// Its one-time code is tied 1:1 to OrderNumber.
type GuestOrder struct {
	OrderNumber string                  `json:"orderNumber"`
	Email       string                  `json:"email"`
	Items       []orderdom.ItemSnapshot `json:"items"`
	Status      Status                  `json:"status"`
	CreatedAt   time.Time               `json:"createdAt"`
	ExpiresAt   time.Time               `json:"expiresAt"`
}

func New(orderNumber, email string, items []orderdom.ItemSnapshot, createdAt, expiresAt time.Time) (GuestOrder, error) {
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(DefaultVerificationWindow)
	}
	o := GuestOrder{
		OrderNumber: strings.TrimSpace(orderNumber),
		Email:       strings.TrimSpace(email),
		Items:       orderdom.CloneItems(items),
		Status:      StatusPending,
		CreatedAt:   createdAt.UTC(),
		ExpiresAt:   expiresAt.UTC(),
	}
	if o.OrderNumber == "" {
		return GuestOrder{}, ErrInvalidOrderNumber
	}
	if o.Email == "" {
		return GuestOrder{}, ErrInvalidEmail
	}
	return o, nil
}

// Advance moves the order to status `to`. Backward moves are rejected.
func (o *GuestOrder) Advance(to Status) error {
	next, ok := statusRank[to]
	if !ok {
		return ErrInvalidStatus
	}
	if next < statusRank[o.Status] {
		return ErrStatusRegression
	}
	o.Status = to
	return nil
}

// Expired reports whether a pending order passed its verification window.
func (o GuestOrder) Expired(now time.Time) bool {
	if o.Status != StatusPending || o.ExpiresAt.IsZero() {
		return false
	}
	return now.After(o.ExpiresAt)
}

// VerifiedSession proves a guest verified their email for one order.
// It is consumed once by checkout completion.
type VerifiedSession struct {
	OrderNumber string                   `json:"orderNumber"`
	Email       string                   `json:"email"`
	Items       []orderdom.ItemSnapshot  `json:"items"`
	Downloads   []orderdom.DownloadGrant `json:"downloads,omitempty"`
	VerifiedAt  time.Time                `json:"verifiedAt"`
	ExpiresAt   time.Time                `json:"expiresAt"`
}

// NewVerifiedSession builds a session from a verified order payload.
func NewVerifiedSession(v orderdom.VerifiedOrder, fallbackEmail string, now time.Time) (VerifiedSession, error) {
	email := strings.TrimSpace(v.Email)
	if email == "" {
		email = strings.TrimSpace(fallbackEmail)
	}
	s := VerifiedSession{
		OrderNumber: strings.TrimSpace(v.OrderNumber),
		Email:       email,
		Items:       orderdom.CloneItems(v.Items),
		Downloads:   append([]orderdom.DownloadGrant(nil), v.Downloads...),
		VerifiedAt:  now.UTC(),
		ExpiresAt:   now.UTC().Add(DefaultSessionTTL),
	}
	if s.OrderNumber == "" {
		return VerifiedSession{}, ErrInvalidOrderNumber
	}
	if s.Email == "" {
		return VerifiedSession{}, ErrInvalidEmail
	}
	return s, nil
}

// Expired reports whether the session outlived its TTL.
func (s VerifiedSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
