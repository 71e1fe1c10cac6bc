package menu

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cosmic-coffee/internal/fault"
	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testInjector() *fault.Injector {
	return fault.New(fault.WithSource(rand.NewPCG(3, 4)), fault.WithSleep(noSleep))
}

func newCachedService(t *testing.T, policy fault.Policy) (*miniredis.Miniredis, *Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewService(client, 5*time.Minute, testInjector(), policy, logger.Nop())
}

func TestListWritesCacheOnMiss(t *testing.T) {
	mr, svc := newCachedService(t, fault.Policy{})

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 8)

	assert.Equal(t, 5*time.Minute, mr.TTL(cacheKey))
	raw, err := mr.Get(cacheKey)
	require.NoError(t, err)
	var cached []models.MenuItem
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, Items(), cached)
}

func TestListSkipsCacheWriteWithoutPayload(t *testing.T) {
	mr, svc := newCachedService(t, fault.Policy{})
	svc.payload = nil

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 8)
	assert.False(t, mr.Exists(cacheKey))
}

func TestListServesCache(t *testing.T) {
	mr, svc := newCachedService(t, fault.Policy{})

	cached, _ := json.Marshal([]models.MenuItem{{ID: "only-one", Name: "Only", BasePrice: 1}})
	require.NoError(t, mr.Set(cacheKey, string(cached)))

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "only-one", items[0].ID)
}

func TestListDegradesWhenCacheDown(t *testing.T) {
	mr, svc := newCachedService(t, fault.Policy{})
	mr.Close()

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 8)
}

func TestListInjectedFailure(t *testing.T) {
	_, svc := newCachedService(t, fault.Policy{Name: "menu", FailureRate: 1})

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, fault.ErrSyntheticFault)

	snapshot, err := svc.Snapshot(context.Background())
	require.NoError(t, err, "snapshot ignores the menu fault policy")
	assert.Contains(t, snapshot, "rocket-fuel")
}

func TestSnapshotWithoutCache(t *testing.T) {
	svc := NewService(nil, time.Minute, nil, fault.Policy{}, logger.Nop())

	snapshot, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot, 8)
	assert.Equal(t, 4.99, snapshot["rocket-fuel"].BasePrice)
}

func TestGet(t *testing.T) {
	svc := NewService(nil, time.Minute, nil, fault.Policy{}, logger.Nop())

	item, err := svc.Get("galaxy-mocha")
	require.NoError(t, err)
	assert.Equal(t, "Galaxy Mocha", item.Name)

	_, err = svc.Get("does-not-exist")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestHandlerRoutes(t *testing.T) {
	svc := NewService(nil, time.Minute, nil, fault.Policy{}, logger.Nop())
	r := chi.NewRouter()
	NewHandler(svc, logger.Nop()).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/menu", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var items []models.MenuItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Len(t, items, 8)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/menu/rocket-fuel", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/menu/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListFailure(t *testing.T) {
	svc := NewService(nil, time.Minute, testInjector(), fault.Policy{Name: "menu", FailureRate: 1}, logger.Nop())
	r := chi.NewRouter()
	NewHandler(svc, logger.Nop()).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/menu", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to fetch menu")
}
