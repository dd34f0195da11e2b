package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/adapters/out/memory"
)

func newTransfer(t *testing.T) (*CartTransfer, *GuestCartStore, *CartStore) {
	t.Helper()
	clock := newClock()
	guest := NewGuestCartStoreWithClock("sess-1", memory.NewGuestCartRepository(), clock, nil)
	cart := NewCartStoreWithClock(memory.NewCartRepository(), clock, nil)
	cart.Bind(context.Background(), "user-1")
	return NewCartTransfer(guest, cart, nil), guest, cart
}

func TestCartTransfer_DropsNonCatalogIDs(t *testing.T) {
	ctx := context.Background()
	tr, guest, cart := newTransfer(t)

	guest.AddItem(ctx, product(hexA, "10.00"), 2)
	guest.AddItem(ctx, product("test-123", "1.00"), 1)

	res, err := tr.Transfer(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{hexA}, res.Transferred)
	assert.Equal(t, []string{"test-123"}, res.Dropped)

	snap := cart.Snapshot()
	require.Len(t, snap.State.Items, 1)
	assert.Equal(t, hexA, snap.State.Items[0].ProductID)
	assert.Equal(t, 2, snap.State.Items[0].Quantity)
	assert.True(t, guest.Snapshot().IsEmpty())
}

func TestCartTransfer_NothingTransferredStillClears(t *testing.T) {
	ctx := context.Background()
	tr, guest, cart := newTransfer(t)
	guest.AddItem(ctx, product("test-123", "1.00"), 1)

	res, err := tr.Transfer(ctx)
	assert.ErrorIs(t, err, ErrNothingTransferred)
	assert.Equal(t, 0, res.Count())
	assert.True(t, guest.Snapshot().IsEmpty())
	assert.True(t, cart.Snapshot().State.IsEmpty())
}

func TestCartTransfer_MergesIntoExistingLine(t *testing.T) {
	ctx := context.Background()
	tr, guest, cart := newTransfer(t)
	cart.Add(ctx, product(hexA, "10.00"), 1)
	guest.AddItem(ctx, product(hexA, "10.00"), 1)
	guest.AddItem(ctx, product(hexB, "5.00"), 1)

	res, err := tr.Transfer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count())

	snap := cart.Snapshot()
	require.Len(t, snap.State.Items, 2)
	assert.Equal(t, 2, snap.State.Items[0].Quantity)
	assert.Equal(t, "25.00", snap.Totals.Subtotal.StringFixed(2))
}
