package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/application/usecase"
	orderdom "storefront/internal/domain/order"
)

type sentMail struct {
	from, to, subject, body string
}

type recordingClient struct {
	sent []sentMail
}

func (r *recordingClient) Send(_ context.Context, from, to, subject, body string) error {
	r.sent = append(r.sent, sentMail{from, to, subject, body})
	return nil
}

func TestReceiptMailer_GuestLinksDownloadAccess(t *testing.T) {
	rc := &recordingClient{}
	m := NewReceiptMailer(rc, "shop@example.com", "https://shop.example.com/")

	err := m.PublishOrderCompleted(context.Background(), usecase.OrderCompletedEvent{
		OrderNumber: "GO-3",
		Email:       "guest@example.com",
		Guest:       true,
		Items:       []orderdom.ItemSnapshot{{ProductID: "p", Title: "Album", UnitPrice: decimal.RequireFromString("9.5"), Quantity: 2}},
		Total:       decimal.RequireFromString("19"),
	})
	require.NoError(t, err)
	require.Len(t, rc.sent, 1)

	got := rc.sent[0]
	assert.Equal(t, "guest@example.com", got.to)
	assert.Equal(t, "Your order GO-3", got.subject)
	assert.Contains(t, got.body, "2 x Album  9.50")
	assert.Contains(t, got.body, "Total: 19.00")
	assert.Contains(t, got.body, "https://shop.example.com/download-access?order=GO-3")
}

func TestReceiptMailer_RequiresEmail(t *testing.T) {
	m := NewReceiptMailer(&recordingClient{}, "shop@example.com", "https://shop.example.com")
	err := m.PublishOrderCompleted(context.Background(), usecase.OrderCompletedEvent{OrderID: "o-1"})
	assert.ErrorIs(t, err, ErrToEmpty)
}

func TestNewsletter_UpsertsContact(t *testing.T) {
	var got upsertContacts
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, contactsEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewNewsletterSendGrid("sg-key", []string{"list-1"}, srv.URL, nil)
	require.NoError(t, n.Subscribe(context.Background(), "Ada King Lovelace", " ada@example.com "))

	assert.Equal(t, []string{"list-1"}, got.ListIDs)
	require.Len(t, got.Contacts, 1)
	assert.Equal(t, contact{Email: "ada@example.com", FirstName: "Ada", LastName: "King Lovelace"}, got.Contacts[0])
}

func TestNewsletter_FailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNewsletterSendGrid("sg-key", nil, srv.URL, nil)
	assert.Error(t, n.Subscribe(context.Background(), "", "ada@example.com"))
}

func TestSendGridClient_RequiresKey(t *testing.T) {
	c := NewSendGridClient("", "Shop", nil)
	assert.ErrorIs(t, c.Send(context.Background(), "a@example.com", "b@example.com", "s", "b"), ErrAPIKeyEmpty)
}
