// internal/adapters/out/firestore/guest_cart_repository_fs.go
package firestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	guestcartdom "storefront/internal/domain/guestcart"
)

// GuestCartRepositoryFS implements guestcart.Repository using Firestore.
//
// - collection: guest_carts
// - docId: storefront session id
// - fields: entries(map productId -> entry), updatedAt, expiresAt (TTL)
type GuestCartRepositoryFS struct {
	Client *firestore.Client
}

func NewGuestCartRepositoryFS(client *firestore.Client) *GuestCartRepositoryFS {
	return &GuestCartRepositoryFS{Client: client}
}

func (r *GuestCartRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection("guest_carts")
}

// Get returns (nil, nil) if not found.
func (r *GuestCartRepositoryFS) Get(ctx context.Context, sessionID string) (*guestcartdom.State, error) {
	if r == nil || r.Client == nil {
		return nil, errClientNil
	}
	id, err := requireKey("guest_cart_repository_fs", sessionID)
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

	var doc guestCartDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	st := doc.toDomain()
	return &st, nil
}

func (r *GuestCartRepositoryFS) Save(ctx context.Context, sessionID string, s guestcartdom.State) error {
	if r == nil || r.Client == nil {
		return errClientNil
	}
	id, err := requireKey("guest_cart_repository_fs", sessionID)
	if err != nil {
		return err
	}
	_, err = r.col().Doc(id).Set(ctx, guestCartDocFromDomain(s))
	return err
}

func (r *GuestCartRepositoryFS) Delete(ctx context.Context, sessionID string) error {
	if r == nil || r.Client == nil {
		return errClientNil
	}
	id, err := requireKey("guest_cart_repository_fs", sessionID)
	if err != nil {
		return err
	}
	_, err = r.col().Doc(id).Delete(ctx)
	return err
}

type guestCartDoc struct {
	Entries   map[string]guestEntryDoc `firestore:"entries"`
	UpdatedAt time.Time                `firestore:"updatedAt"`
	ExpiresAt *time.Time               `firestore:"expiresAt,omitempty"`
}

type guestEntryDoc struct {
	Product productDoc `firestore:"product"`
	Qty     int        `firestore:"qty"`
	AddedAt time.Time  `firestore:"addedAt"`
}

func guestCartDocFromDomain(s guestcartdom.State) guestCartDoc {
	entries := make(map[string]guestEntryDoc, len(s.Entries))
	for k, e := range s.Entries {
		k2 := strings.TrimSpace(k)
		if k2 == "" || e.Quantity <= 0 {
			continue
		}
		entries[k2] = guestEntryDoc{
			Product: productDocFromDomain(e.Product),
			Qty:     e.Quantity,
			AddedAt: e.AddedAt.UTC(),
		}
	}
	return guestCartDoc{
		Entries:   entries,
		UpdatedAt: s.UpdatedAt.UTC(),
		ExpiresAt: timePtr(s.ExpiresAt),
	}
}

func (d guestCartDoc) toDomain() guestcartdom.State {
	st := guestcartdom.Empty()
	for k, e := range d.Entries {
		p := e.Product.toDomain()
		if p.ID == "" {
			// entries written before the product snapshot carried its id
			p.ID = strings.TrimSpace(k)
		}
		st.Entries[p.ID] = guestcartdom.Entry{Product: p, Quantity: e.Qty, AddedAt: e.AddedAt}
	}
	st.UpdatedAt = d.UpdatedAt
	st.ExpiresAt = timeVal(d.ExpiresAt)
	return st.Normalize()
}
