// internal/application/usecase/cart_transfer.go
package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	productdom "storefront/internal/domain/product"
)

// ErrNothingTransferred means no guest entry made it into the signed-in cart.
// Callers must not report success in that case.
var ErrNothingTransferred = errors.New("cart transfer: no items transferred")

// TransferResult reports what happened to each guest entry, by product id.
type TransferResult struct {
	Transferred []string `json:"transferred"`
	Dropped     []string `json:"dropped,omitempty"`
	Failed      []string `json:"failed,omitempty"`
}

// Count is the number of entries that reached the signed-in cart.
func (r TransferResult) Count() int { return len(r.Transferred) }

// CartTransfer merges the guest cart into the signed-in cart after sign-in.
type CartTransfer struct {
	guest *GuestCartStore
	cart  *CartStore
	log   *zap.Logger
}

func NewCartTransfer(guest *GuestCartStore, cart *CartStore, logger *zap.Logger) *CartTransfer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartTransfer{guest: guest, cart: cart, log: logger.Named("cart_transfer")}
}

// Transfer moves every catalog entry of the guest cart into the signed-in cart.
// Entries whose id is not a catalog id are dropped, entries with a broken product
// snapshot are skipped. The guest cart is cleared afterwards in every case.
func (t *CartTransfer) Transfer(ctx context.Context) (TransferResult, error) {
	var res TransferResult

	for _, e := range t.guest.Snapshot().Sorted() {
		p := e.Product.Normalize()

		if !productdom.IsCatalogID(p.ID) {
			t.log.Warn("dropping guest entry with non-catalog id", zap.String("product_id", p.ID))
			res.Dropped = append(res.Dropped, p.ID)
			continue
		}
		if err := p.Validate(); err != nil {
			t.log.Warn("skipping guest entry", zap.String("product_id", p.ID), zap.Error(err))
			res.Failed = append(res.Failed, p.ID)
			continue
		}

		qty := e.Quantity
		if qty < 1 {
			qty = 1
		}
		t.cart.Add(ctx, p, qty)
		res.Transferred = append(res.Transferred, p.ID)
	}

	t.guest.ClearCart(ctx)

	t.log.Info("transfer finished",
		zap.Int("transferred", len(res.Transferred)),
		zap.Int("dropped", len(res.Dropped)),
		zap.Int("failed", len(res.Failed)),
	)

	if len(res.Transferred) == 0 {
		return res, ErrNothingTransferred
	}
	return res, nil
}
