package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cosmic-coffee/internal/database"
	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/storage"
)

// newTestStore connects to the database named by COSMIC_TEST_DATABASE_URL and
// skips the test when it is unset.
func newTestStore(t *testing.T) *OrderStore {
	t.Helper()
	url := os.Getenv("COSMIC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("COSMIC_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.RunMigrations(ctx))

	return NewOrderStore(db)
}

func testOrder(customer string) models.Order {
	return models.Order{
		ID:           uuid.NewString()[:8],
		CustomerName: customer,
		Items:        []models.OrderItem{{ItemID: "rocket-fuel", Quantity: 2, BasePrice: 4.99, ItemTotal: 9.98}},
		TotalPrice:   9.98,
		Status:       models.StatusPending,
		Timestamp:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestPostgresOrderRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	order := testOrder("pg-" + uuid.NewString())
	require.NoError(t, store.Put(ctx, order, time.Hour))

	got, err := store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, order.TotalPrice, got.TotalPrice)
	assert.True(t, order.Timestamp.Equal(got.Timestamp))

	order.Status = models.StatusReady
	require.NoError(t, store.Put(ctx, order, time.Hour))
	got, err = store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.Status)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func TestPostgresOrderExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	order := testOrder("pg-expiry")
	store.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	require.NoError(t, store.Put(ctx, order, time.Hour))

	_, err := store.Get(ctx, order.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestPostgresCustomers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	name := "pg-customer-" + uuid.NewString()
	require.NoError(t, store.RegisterCustomer(ctx, name))
	require.NoError(t, store.RegisterCustomer(ctx, name))

	names, err := store.ListCustomers(ctx)
	require.NoError(t, err)
	count := 0
	for _, n := range names {
		if n == name {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
