// internal/adapters/out/firestore/cart_repository_fs.go
package firestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	cartdom "storefront/internal/domain/cart"
	coupondom "storefront/internal/domain/coupon"
)

// CartRepositoryFS implements cart.Repository using Firestore.
//
// Collection design:
// - collection: carts
// - docId: owner (user) id
// - fields: items(array), coupon, shipping, updatedAt, expiresAt
//
// TTL:
// - Configure Firestore TTL on "expiresAt".
type CartRepositoryFS struct {
	Client *firestore.Client
}

func NewCartRepositoryFS(client *firestore.Client) *CartRepositoryFS {
	return &CartRepositoryFS{Client: client}
}

func (r *CartRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection("carts")
}

// Get returns (nil, nil) if not found (nil policy).
func (r *CartRepositoryFS) Get(ctx context.Context, ownerID string) (*cartdom.State, error) {
	if r == nil || r.Client == nil {
		return nil, errClientNil
	}
	id, err := requireKey("cart_repository_fs", ownerID)
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

	var doc cartDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	st := doc.toDomain()
	return &st, nil
}

// Save overwrites the full document (simple & predictable).
func (r *CartRepositoryFS) Save(ctx context.Context, ownerID string, s cartdom.State) error {
	if r == nil || r.Client == nil {
		return errClientNil
	}
	id, err := requireKey("cart_repository_fs", ownerID)
	if err != nil {
		return err
	}
	_, err = r.col().Doc(id).Set(ctx, cartDocFromDomain(s))
	return err
}

func (r *CartRepositoryFS) Delete(ctx context.Context, ownerID string) error {
	if r == nil || r.Client == nil {
		return errClientNil
	}
	id, err := requireKey("cart_repository_fs", ownerID)
	if err != nil {
		return err
	}
	_, err = r.col().Doc(id).Delete(ctx)
	return err
}

// -----------------------------------------
// Firestore DTO
// -----------------------------------------

type cartDoc struct {
	Items     []cartLineDoc `firestore:"items"`
	Coupon    *couponDoc    `firestore:"coupon,omitempty"`
	Shipping  string        `firestore:"shipping"`
	UpdatedAt time.Time     `firestore:"updatedAt"`
	ExpiresAt *time.Time    `firestore:"expiresAt,omitempty"`
}

type cartLineDoc struct {
	LineID    string     `firestore:"lineId"`
	ProductID string     `firestore:"productId"`
	Title     string     `firestore:"title"`
	UnitPrice string     `firestore:"unitPrice"`
	Qty       int        `firestore:"qty"`
	Product   productDoc `firestore:"product"`
}

type couponDoc struct {
	Code  string `firestore:"code"`
	Type  string `firestore:"type"`
	Value string `firestore:"value"`
}

func cartDocFromDomain(s cartdom.State) cartDoc {
	items := make([]cartLineDoc, 0, len(s.Items))
	for _, it := range s.Items {
		// qty は必須、ID も必須（空は捨てる）
		if it.Quantity <= 0 || strings.TrimSpace(it.LineID) == "" {
			continue
		}
		items = append(items, cartLineDoc{
			LineID:    strings.TrimSpace(it.LineID),
			ProductID: strings.TrimSpace(it.ProductID),
			Title:     it.Title,
			UnitPrice: moneyString(it.UnitPrice),
			Qty:       it.Quantity,
			Product:   productDocFromDomain(it.Product),
		})
	}

	doc := cartDoc{
		Items:     items,
		Shipping:  moneyString(s.Shipping),
		UpdatedAt: s.UpdatedAt.UTC(),
		ExpiresAt: timePtr(s.ExpiresAt),
	}
	if s.Coupon != nil {
		doc.Coupon = &couponDoc{
			Code:  s.Coupon.Code,
			Type:  string(s.Coupon.Type),
			Value: s.Coupon.Value.String(),
		}
	}
	return doc
}

func (d cartDoc) toDomain() cartdom.State {
	st := cartdom.Empty()
	for _, it := range d.Items {
		if it.Qty <= 0 {
			continue
		}
		st.Items = append(st.Items, cartdom.LineItem{
			LineID:    strings.TrimSpace(it.LineID),
			ProductID: strings.TrimSpace(it.ProductID),
			Title:     it.Title,
			UnitPrice: parseMoney(it.UnitPrice),
			Quantity:  it.Qty,
			Product:   it.Product.toDomain(),
		})
	}
	st.Shipping = parseMoney(d.Shipping)
	st.UpdatedAt = d.UpdatedAt
	st.ExpiresAt = timeVal(d.ExpiresAt)
	st = st.Normalize()

	if d.Coupon != nil {
		// discount is re-derived from the stored subtotal on load
		c, err := coupondom.New(d.Coupon.Code, coupondom.Type(d.Coupon.Type), parseMoney(d.Coupon.Value), cartdom.Subtotal(st.Items))
		if err == nil {
			st.Coupon = &c
		}
	}
	return st
}
