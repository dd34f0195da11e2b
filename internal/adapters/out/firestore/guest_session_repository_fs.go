// internal/adapters/out/firestore/guest_session_repository_fs.go
package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	guestorderdom "storefront/internal/domain/guestorder"
	orderdom "storefront/internal/domain/order"
)

// GuestSessionRepositoryFS implements guestorder.SessionRepository using Firestore.
//
// - collection: guest_sessions
// - docId: storefront session id
// - TTL on "expiresAt"; expired docs are also ignored on read.
type GuestSessionRepositoryFS struct {
	Client *firestore.Client
	Now    func() time.Time
}

func NewGuestSessionRepositoryFS(client *firestore.Client) *GuestSessionRepositoryFS {
	return &GuestSessionRepositoryFS{Client: client, Now: time.Now}
}

func (r *GuestSessionRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection("guest_sessions")
}

// Get returns (nil, nil) if not found or expired.
func (r *GuestSessionRepositoryFS) Get(ctx context.Context, sessionID string) (*guestorderdom.VerifiedSession, error) {
	if r == nil || r.Client == nil {
		return nil, errClientNil
	}
	id, err := requireKey("guest_session_repository_fs", sessionID)
	if err != nil {
		return nil, err
	}

	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc guestSessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	s := doc.toDomain()

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if s.Expired(now()) {
		return nil, nil
	}
	return &s, nil
}

func (r *GuestSessionRepositoryFS) Save(ctx context.Context, sessionID string, s guestorderdom.VerifiedSession) error {
	if r == nil || r.Client == nil {
		return errClientNil
	}
	id, err := requireKey("guest_session_repository_fs", sessionID)
	if err != nil {
		return err
	}
	_, err = r.col().Doc(id).Set(ctx, guestSessionDocFromDomain(s))
	return err
}

func (r *GuestSessionRepositoryFS) Delete(ctx context.Context, sessionID string) error {
	if r == nil || r.Client == nil {
		return errClientNil
	}
	id, err := requireKey("guest_session_repository_fs", sessionID)
	if err != nil {
		return err
	}
	_, err = r.col().Doc(id).Delete(ctx)
	return err
}

type guestSessionDoc struct {
	OrderNumber string             `firestore:"orderNumber"`
	Email       string             `firestore:"email"`
	Items       []orderItemDoc     `firestore:"items"`
	Downloads   []downloadGrantDoc `firestore:"downloads,omitempty"`
	VerifiedAt  time.Time          `firestore:"verifiedAt"`
	ExpiresAt   *time.Time         `firestore:"expiresAt,omitempty"`
}

type orderItemDoc struct {
	ProductID string `firestore:"productId"`
	Title     string `firestore:"title"`
	UnitPrice string `firestore:"unitPrice"`
	Qty       int    `firestore:"qty"`
}

type downloadGrantDoc struct {
	ProductID  string     `firestore:"productId"`
	Title      string     `firestore:"title,omitempty"`
	URL        string     `firestore:"url,omitempty"`
	ObjectPath string     `firestore:"objectPath,omitempty"`
	ExpiresAt  *time.Time `firestore:"expiresAt,omitempty"`
}

func guestSessionDocFromDomain(s guestorderdom.VerifiedSession) guestSessionDoc {
	items := make([]orderItemDoc, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, orderItemDoc{
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: moneyString(it.UnitPrice),
			Qty:       it.Quantity,
		})
	}
	downloads := make([]downloadGrantDoc, 0, len(s.Downloads))
	for _, g := range s.Downloads {
		downloads = append(downloads, downloadGrantDoc(g))
	}
	return guestSessionDoc{
		OrderNumber: s.OrderNumber,
		Email:       s.Email,
		Items:       items,
		Downloads:   downloads,
		VerifiedAt:  s.VerifiedAt.UTC(),
		ExpiresAt:   timePtr(s.ExpiresAt),
	}
}

func (d guestSessionDoc) toDomain() guestorderdom.VerifiedSession {
	items := make([]orderdom.ItemSnapshot, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, orderdom.ItemSnapshot{
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: parseMoney(it.UnitPrice),
			Quantity:  it.Qty,
		})
	}
	downloads := make([]orderdom.DownloadGrant, 0, len(d.Downloads))
	for _, g := range d.Downloads {
		downloads = append(downloads, orderdom.DownloadGrant(g))
	}
	return guestorderdom.VerifiedSession{
		OrderNumber: d.OrderNumber,
		Email:       d.Email,
		Items:       items,
		Downloads:   downloads,
		VerifiedAt:  d.VerifiedAt,
		ExpiresAt:   timeVal(d.ExpiresAt),
	}
}
