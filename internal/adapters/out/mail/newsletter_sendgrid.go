// internal/adapters/out/mail/newsletter_sendgrid.go
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"go.uber.org/zap"

	"storefront/internal/application/usecase"
)

const (
	defaultSendGridHost = "https://api.sendgrid.com"
	contactsEndpoint    = "/v3/marketing/contacts"
)

// NewsletterSendGrid adds opted-in shoppers to SendGrid Marketing Contacts.
type NewsletterSendGrid struct {
	apiKey  string
	host    string
	listIDs []string
	log     *zap.Logger
}

var _ usecase.NewsletterSubscriber = (*NewsletterSendGrid)(nil)

// NewNewsletterSendGrid builds the subscriber. host is only overridden in tests.
func NewNewsletterSendGrid(apiKey string, listIDs []string, host string, logger *zap.Logger) *NewsletterSendGrid {
	if strings.TrimSpace(host) == "" {
		host = defaultSendGridHost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsletterSendGrid{
		apiKey:  apiKey,
		host:    strings.TrimRight(host, "/"),
		listIDs: listIDs,
		log:     logger.Named("newsletter"),
	}
}

type contact struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type upsertContacts struct {
	ListIDs  []string  `json:"list_ids,omitempty"`
	Contacts []contact `json:"contacts"`
}

// Subscribe upserts the contact. SendGrid processes the upsert asynchronously (202).
func (n *NewsletterSendGrid) Subscribe(ctx context.Context, name, email string) error {
	if n.apiKey == "" {
		return ErrAPIKeyEmpty
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrToEmpty
	}

	first, last := splitName(name)
	body, err := json.Marshal(upsertContacts{
		ListIDs:  n.listIDs,
		Contacts: []contact{{Email: email, FirstName: first, LastName: last}},
	})
	if err != nil {
		return err
	}

	req := sendgrid.GetRequest(n.apiKey, contactsEndpoint, n.host)
	req.Method = "PUT"
	req.Body = body

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid contacts error: %w", err)
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("sendgrid contacts failed: status=%d, body=%s", res.StatusCode, res.Body)
	}
	n.log.Debug("contact upserted", zap.Int("status", res.StatusCode))
	return nil
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
