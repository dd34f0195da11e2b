// internal/adapters/out/firestore/helper_repository_fs.go
package firestore

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	productdom "storefront/internal/domain/product"
)

var errClientNil = errors.New("firestore: client is nil")

// Money is stored as a decimal string so no precision is lost in float64 fields.
func moneyString(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseMoney(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func requireKey(repo, key string) (string, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return "", errors.New(repo + ": document id is empty")
	}
	return k, nil
}

type productDoc struct {
	ID       string `firestore:"id"`
	Title    string `firestore:"title"`
	Price    string `firestore:"price"`
	Artist   string `firestore:"artist,omitempty"`
	ImageURL string `firestore:"imageUrl,omitempty"`
}

func productDocFromDomain(p productdom.Product) productDoc {
	return productDoc{
		ID:       strings.TrimSpace(p.ID),
		Title:    p.Title,
		Price:    moneyString(p.Price),
		Artist:   p.Artist,
		ImageURL: p.ImageURL,
	}
}

func (d productDoc) toDomain() productdom.Product {
	return productdom.Product{
		ID:       strings.TrimSpace(d.ID),
		Title:    d.Title,
		Price:    parseMoney(d.Price),
		Artist:   d.Artist,
		ImageURL: d.ImageURL,
	}.Normalize()
}
