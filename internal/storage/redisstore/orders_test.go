package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/storage"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func sampleOrder(id string, ts time.Time) models.Order {
	return models.Order{
		ID:           id,
		CustomerName: "Ada",
		Items: []models.OrderItem{{
			ItemID: "rocket-fuel", ItemName: "Rocket Fuel", ItemEmoji: "🚀",
			Quantity: 2, BasePrice: 4.99, ItemTotal: 9.98,
		}},
		TotalPrice: 9.98,
		Status:     models.StatusPending,
		Timestamp:  ts.UTC(),
	}
}

func TestOrderStorePutGet(t *testing.T) {
	_, client := newTestClient(t)
	store := NewOrderStore(client)
	ctx := context.Background()

	want := sampleOrder("abc12345", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.Put(ctx, want, time.Hour))

	got, err := store.Get(ctx, "abc12345")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOrderStoreTTLExpiresAndRefreshes(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewOrderStore(client)
	ctx := context.Background()
	order := sampleOrder("ttl00001", time.Now())

	require.NoError(t, store.Put(ctx, order, time.Hour))
	mr.FastForward(50 * time.Minute)

	order.Status = models.StatusConfirmed
	require.NoError(t, store.Put(ctx, order, time.Hour))
	assert.Equal(t, time.Hour, mr.TTL(orderKeyPrefix+order.ID), "write resets the expiry")

	mr.FastForward(50 * time.Minute)
	_, err := store.Get(ctx, order.ID)
	require.NoError(t, err, "still live thanks to the refresh")

	mr.FastForward(11 * time.Minute)
	_, err = store.Get(ctx, order.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOrderStoreListAll(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewOrderStore(client)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := range 250 {
		require.NoError(t, store.Put(ctx, sampleOrder(fmt.Sprintf("o%07d", i), base.Add(time.Duration(i)*time.Second)), time.Hour))
	}
	// unrelated keys are ignored
	require.NoError(t, mr.Set("menu:items", "[]"))
	require.NoError(t, store.RegisterCustomer(ctx, "Ada"))

	orders, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 250)
}

func TestOrderStoreListAllEmpty(t *testing.T) {
	_, client := newTestClient(t)
	orders, err := NewOrderStore(client).ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderStoreListAllRejectsCorruptRecord(t *testing.T) {
	mr, client := newTestClient(t)
	require.NoError(t, mr.Set(orderKeyPrefix+"bad", "{not json"))

	_, err := NewOrderStore(client).ListAll(context.Background())
	assert.Error(t, err)
}

func TestOrderStoreCustomers(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewOrderStore(client)
	ctx := context.Background()

	for _, name := range []string{"Zed", "Ada", "Ada", "Mia"} {
		require.NoError(t, store.RegisterCustomer(ctx, name))
	}
	names, err := store.ListCustomers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Ada", "Mia", "Zed"}, names)

	mr.FastForward(48 * time.Hour)
	names, err = store.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 3, "customer set never expires")
}

func TestOrderStoreUnavailable(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewOrderStore(client)
	mr.Close()

	ctx := context.Background()
	assert.Error(t, store.Ping(ctx))
	assert.Error(t, store.Put(ctx, sampleOrder("x", time.Now()), time.Hour))
	_, err := store.Get(ctx, "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}
