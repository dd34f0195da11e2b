package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/adapters/out/memory"
	guestcartdom "storefront/internal/domain/guestcart"
	productdom "storefront/internal/domain/product"
)

func TestGuestCartStore_ReAddMerges(t *testing.T) {
	ctx := context.Background()
	s := NewGuestCartStoreWithClock("sess-1", memory.NewGuestCartRepository(), newClock(), nil)

	s.AddItem(ctx, product(hexA, "4.00"), 1)
	st := s.AddItem(ctx, product(hexA, "4.00"), 1)

	require.Len(t, st.Entries, 1)
	assert.Equal(t, 2, st.Entries[hexA].Quantity)
	assert.True(t, s.IsInCart(hexA))
}

func TestGuestCartStore_UpdateQuantityZeroRemoves(t *testing.T) {
	ctx := context.Background()
	s := NewGuestCartStoreWithClock("sess-1", nil, newClock(), nil)
	s.AddItem(ctx, product(hexA, "4.00"), 3)

	st := s.UpdateQuantity(ctx, hexA, 0)
	assert.True(t, st.IsEmpty())
	assert.False(t, s.IsInCart(hexA))
}

func TestGuestCartStore_PersistsAndLoads(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewGuestCartRepository()

	a := NewGuestCartStoreWithClock("sess-1", repo, newClock(), nil)
	a.AddItem(ctx, product(hexA, "4.00"), 2)

	// a second view of the same session only sees the change after a reload
	b := NewGuestCartStoreWithClock("sess-1", repo, newClock(), nil)
	assert.False(t, b.IsInCart(hexA))
	st := b.LoadCart(ctx)
	assert.Equal(t, 2, st.Entries[hexA].Quantity)

	a.ClearCart(ctx)
	got, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGuestCartStore_EmitsEvents(t *testing.T) {
	ctx := context.Background()
	s := NewGuestCartStoreWithClock("sess-1", nil, newClock(), nil)

	var events []guestcartdom.Event
	unsubscribe := s.Subscribe(func(ev guestcartdom.Event) { events = append(events, ev) })

	s.AddItem(ctx, product(hexA, "4.00"), 1)
	s.UpdateQuantity(ctx, hexA, 3)
	s.RemoveItem(ctx, "missing") // no-op, no event
	s.RemoveItem(ctx, hexA)
	unsubscribe()
	s.AddItem(ctx, product(hexB, "1.00"), 1)

	require.Len(t, events, 3)
	assert.Equal(t, guestcartdom.EventAdded, events[0].Kind)
	assert.Equal(t, 1, events[0].Count)
	assert.Equal(t, "4.00", events[0].Total.StringFixed(2))
	assert.Equal(t, guestcartdom.EventUpdated, events[1].Kind)
	assert.Equal(t, 3, events[1].Count)
	assert.Equal(t, guestcartdom.EventRemoved, events[2].Kind)
	assert.Equal(t, 0, events[2].Count)
}

func TestGuestCartStore_CleanInvalidItems(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewGuestCartRepository()
	s := NewGuestCartStoreWithClock("sess-1", repo, newClock(), nil)

	s.AddItem(ctx, product(hexA, "1"), 1)
	s.AddItem(ctx, product("test-123", "1"), 1)

	dropped := s.CleanInvalidItems(ctx)
	assert.Equal(t, []string{"test-123"}, dropped)
	assert.False(t, s.IsInCart("test-123"))

	stored, err := repo.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Entries, 1)
}

func TestGuestCartStore_ItemSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewGuestCartStoreWithClock("sess-1", nil, newClock(), nil)
	s.AddItem(ctx, product(hexA, "3.00"), 2)

	items := s.ItemSnapshots()
	require.Len(t, items, 1)
	assert.Equal(t, hexA, items[0].ProductID)
	assert.Equal(t, "3.00", items[0].UnitPrice.StringFixed(2))
}

func TestGuestCartStore_QuantityIsCapped(t *testing.T) {
	ctx := context.Background()
	s := NewGuestCartStoreWithClock("sess-1", memory.NewGuestCartRepository(), newClock(), nil)

	s.AddItem(ctx, product(hexA, "4.00"), math.MaxInt)
	st := s.AddItem(ctx, product(hexA, "4.00"), 1)
	assert.Equal(t, productdom.MaxQuantity, st.Entries[hexA].Quantity)
	assert.True(t, st.Total().IsPositive())

	st = s.UpdateQuantity(ctx, hexA, math.MaxInt)
	assert.Equal(t, productdom.MaxQuantity, st.Count())
}
