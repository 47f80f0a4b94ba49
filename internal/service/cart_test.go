package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
)

func TestCartService_AddItemSnapshotsProduct(t *testing.T) {
	ts := setupTestServices(t)
	ts.seed(t)
	ctx := context.Background()

	cart, err := ts.carts.AddItem(ctx, "sess-1", 1, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	item := cart.Items[0]
	assert.Equal(t, "Cloud Comfort Elite", item.Name)
	assert.Equal(t, "casper", item.Brand)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("129.99")))
	assert.Equal(t, 2, item.Quantity)

	// A later price change does not touch the cart.
	newPrice := decimal.RequireFromString("99.00")
	_, _, err = ts.catalog.UpdateProduct(ctx, 1, ProductPatch{Price: &newPrice})
	require.NoError(t, err)

	cart, err = ts.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].Price.Equal(decimal.RequireFromString("129.99")))
}

func TestCartService_TotalsAndLocalOnly(t *testing.T) {
	ts := setupTestServices(t)
	ts.seed(t)
	ctx := context.Background()

	_, err := ts.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)
	cart, err := ts.carts.AddItem(ctx, "sess-1", 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, cart.ItemCount())
	assert.True(t, cart.Total().Equal(decimal.RequireFromString("449.97")), cart.Total().String())

	assert.Zero(t, ts.remote.Len(domain.CollectionCarts))

	// Carts survive the remote going away.
	ts.down(t)
	cart, err = ts.carts.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestCartService_UpdateAndRemove(t *testing.T) {
	ts := setupTestServices(t)
	ts.seed(t)
	ctx := context.Background()

	_, err := ts.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)
	_, err = ts.carts.AddItem(ctx, "sess-1", 2, 1)
	require.NoError(t, err)

	cart, err := ts.carts.UpdateQuantity(ctx, "sess-1", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[1].Quantity)

	// Quantities below one are ignored.
	cart, err = ts.carts.UpdateQuantity(ctx, "sess-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[1].Quantity)

	_, err = ts.carts.UpdateQuantity(ctx, "sess-1", 42, 1)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	cart, err = ts.carts.RemoveItem(ctx, "sess-1", 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(2), cart.Items[0].ProductID)

	require.NoError(t, ts.carts.Clear(ctx, "sess-1"))
	cart, err = ts.carts.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCartService_AddItemValidation(t *testing.T) {
	ts := setupTestServices(t)
	ts.seed(t)
	ctx := context.Background()

	_, err := ts.carts.AddItem(ctx, "sess-1", 1, 0)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	_, err = ts.carts.AddItem(ctx, "sess-1", 404, 1)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}
