// internal/adapters/out/mail/receipt_mailer.go
package mail

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/application/usecase"
)

// ReceiptMailer sends the order receipt when a checkout completes.
// It is an OrderEventPublisher so it runs as a best-effort side effect.
type ReceiptMailer struct {
	client      EmailClient
	fromAddress string
	baseURL     string // e.g. "https://shop.example.com"
}

var _ usecase.OrderEventPublisher = (*ReceiptMailer)(nil)

func NewReceiptMailer(client EmailClient, fromAddress, baseURL string) *ReceiptMailer {
	return &ReceiptMailer{
		client:      client,
		fromAddress: fromAddress,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// downloadsURL: signed-in buyers find files on their profile; guests use the
// download access page with their order number.
func (m *ReceiptMailer) downloadsURL(ev usecase.OrderCompletedEvent) string {
	if ev.Guest {
		return fmt.Sprintf("%s/download-access?order=%s", m.baseURL, ev.OrderNumber)
	}
	return m.baseURL + "/profile"
}

func (m *ReceiptMailer) PublishOrderCompleted(ctx context.Context, ev usecase.OrderCompletedEvent) error {
	if strings.TrimSpace(ev.Email) == "" {
		return ErrToEmpty
	}
	ref := ev.OrderNumber
	if ref == "" {
		ref = ev.OrderID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", ref)
	for _, it := range ev.Items {
		fmt.Fprintf(&b, "  %d x %s  %s\n", it.Quantity, it.Title, it.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n\n", ev.Total.StringFixed(2))
	fmt.Fprintf(&b, "Your downloads: %s\n", m.downloadsURL(ev))

	subject := fmt.Sprintf("Your order %s", ref)
	return m.client.Send(ctx, m.fromAddress, ev.Email, subject, b.String())
}
