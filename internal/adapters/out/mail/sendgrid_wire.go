// internal/adapters/out/mail/sendgrid_wire.go
package mail

import (
	"go.uber.org/zap"
)

// Settings are the SendGrid values resolved by the config layer.
type Settings struct {
	APIKey           string
	From             string
	FromName         string
	StoreBaseURL     string
	NewsletterListID string
}

// NewReceiptMailerWithSendGrid wires the receipt mailer on top of SendGridClient.
func NewReceiptMailerWithSendGrid(s Settings, logger *zap.Logger) *ReceiptMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.APIKey == "" {
		logger.Warn("SENDGRID_API_KEY is empty; receipts will fail to send")
	}
	if s.From == "" {
		logger.Warn("SENDGRID_FROM is empty; receipts will fail to send")
	}
	return NewReceiptMailer(NewSendGridClient(s.APIKey, s.FromName, logger), s.From, s.StoreBaseURL)
}

// NewNewsletterWithSendGrid wires the Marketing Contacts subscriber.
func NewNewsletterWithSendGrid(s Settings, logger *zap.Logger) *NewsletterSendGrid {
	var lists []string
	if s.NewsletterListID != "" {
		lists = []string{s.NewsletterListID}
	}
	return NewNewsletterSendGrid(s.APIKey, lists, "", logger)
}
