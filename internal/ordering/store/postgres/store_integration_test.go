//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLoydHD/eShop/internal/ordering"
	"github.com/MrLoydHD/eShop/internal/ordering/store/postgres"
	"github.com/MrLoydHD/eShop/pkg/platform/sentinel"
	"github.com/MrLoydHD/eShop/pkg/testutil/containers"
)

func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	container := containers.NewPostgresContainer(t)
	store := postgres.New(container.Pool)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func sampleOrder() ordering.Order {
	return ordering.Order{
		ID:        uuid.New(),
		BuyerName: "Alice Smith",
		Street:    "1 Main St",
		City:      "Lisbon",
		ZipCode:   "1000-001",
		Country:   "PT",
		CardBrand: "Visa",
		CardLast4: "1111",
		Items: []ordering.OrderItem{
			{ProductID: 1, ProductName: ".NET Mug", UnitPrice: 8.5, Quantity: 2},
		},
		Total:     17.0,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestSaveAndFindByID(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	order := sampleOrder()

	require.NoError(t, store.Save(ctx, order))

	found, err := store.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.BuyerName, found.BuyerName)
	assert.Equal(t, order.CardLast4, found.CardLast4)
	assert.Equal(t, order.Total, found.Total)
	require.Len(t, found.Items, 1)
	assert.Equal(t, ".NET Mug", found.Items[0].ProductName)
	assert.True(t, order.CreatedAt.Equal(found.CreatedAt))
}

func TestSaveIsIdempotentOnID(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	order := sampleOrder()

	require.NoError(t, store.Save(ctx, order))

	replay := order
	replay.BuyerName = "Someone Else"
	require.NoError(t, store.Save(ctx, replay))

	found, err := store.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", found.BuyerName)
}

func TestFindByIDUnknown(t *testing.T) {
	store := newStore(t)

	_, err := store.FindByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}
