package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/server"
	"cosmic-coffee/internal/services/order"
	"cosmic-coffee/internal/storage/redisstore"
)

type stubCart struct {
	carts map[string]models.Cart
}

func (s *stubCart) GetCart(_ context.Context, id string) (models.Cart, error) {
	c, ok := s.carts[id]
	if !ok {
		return models.Cart{}, errors.New("cart not found")
	}
	return c, nil
}

func (s *stubCart) DeleteCart(_ context.Context, id string) error {
	delete(s.carts, id)
	return nil
}

// fallbackMiddleware behaves like an unreachable middleware.
type fallbackMiddleware struct{}

func (fallbackMiddleware) ValidateOrder(context.Context, string, int, string) models.ValidationResult {
	return models.ValidationResult{Valid: true, Source: models.SourceFallback}
}

func (fallbackMiddleware) CalculatePrice(_ context.Context, _ string, qty int, base float64) models.PricingResult {
	return models.PricingResult{TotalPrice: base * float64(qty), Source: models.SourceFallback}
}

func (fallbackMiddleware) CheckInventory(context.Context, string, int) models.InventoryResult {
	return models.InventoryResult{Available: true, Source: models.SourceFallback}
}

type stubCatalog map[string]models.MenuItem

func (c stubCatalog) Snapshot(context.Context) (map[string]models.MenuItem, error) {
	return c, nil
}

type testAPI struct {
	srv  *httptest.Server
	mr   *miniredis.Miniredis
	cart *stubCart
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cart := &stubCart{carts: map[string]models.Cart{
		"c1": {ID: "c1", Items: []models.CartItem{
			{ItemID: "nebula-latte", ItemName: "Nebula Latte", Quantity: 2, BasePrice: 4.99},
		}},
		"empty": {ID: "empty"},
	}}

	svc := order.NewService(order.Deps{
		Cart:       cart,
		Middleware: fallbackMiddleware{},
		Catalog:    stubCatalog{"nebula-latte": {ID: "nebula-latte", Name: "Nebula Latte", BasePrice: 4.99}},
		Store:      redisstore.NewOrderStore(client),
		Locker:     redisstore.NewLease(client),
	}, order.Options{OrderTTL: time.Hour, StrictStatus: true}, logger.Nop())

	r := chi.NewRouter()
	r.Use(server.WithLogging(logger.Nop()))
	NewOrderHandler(svc, logger.Nop()).Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, mr: mr, cart: cart}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	if m, ok := out.(map[string]interface{}); ok {
		return resp, m
	}
	return resp, map[string]interface{}{"list": out}
}

func TestCreateAndFetchOrder(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(t, http.MethodPost, "/api/orders", map[string]string{"customerName": "Ada", "cartId": "c1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.InDelta(t, 9.98, body["totalPrice"], 1e-9)
	assert.Equal(t, "pending", body["status"])
	id, _ := body["id"].(string)
	require.Len(t, id, 8)

	resp, body = api.do(t, http.MethodGet, "/api/orders/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada", body["customerName"])

	resp, body = api.do(t, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["list"], 1)

	resp, body = api.do(t, http.MethodGet, "/api/customers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"Ada"}, body["list"])

	resp, body = api.do(t, http.MethodGet, "/api/customers/Ada/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["list"], 1)

	_, stillThere := api.cart.carts["c1"]
	assert.False(t, stillThere, "cart is cleared after checkout")
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		setup    func(a *testAPI)
		wantCode int
		wantMsg  string
	}{
		{
			name:     "missing fields",
			body:     map[string]string{"customerName": "Ada"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "missing required fields",
		},
		{
			name:     "malformed body",
			body:     "not an object",
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid request body",
		},
		{
			name:     "unknown cart",
			body:     map[string]string{"customerName": "Ada", "cartId": "ghost"},
			wantCode: http.StatusNotFound,
			wantMsg:  "cart not found",
		},
		{
			name:     "empty cart",
			body:     map[string]string{"customerName": "Ada", "cartId": "empty"},
			wantCode: http.StatusBadRequest,
			wantMsg:  "cart is empty",
		},
		{
			name: "unknown item",
			body: map[string]string{"customerName": "Ada", "cartId": "bad"},
			setup: func(a *testAPI) {
				a.cart.carts["bad"] = models.Cart{ID: "bad", Items: []models.CartItem{{ItemID: "void-brew", Quantity: 1, BasePrice: 1}}}
			},
			wantCode: http.StatusNotFound,
			wantMsg:  "Menu item not found: void-brew",
		},
		{
			name: "cart already checking out",
			body: map[string]string{"customerName": "Ada", "cartId": "c1"},
			setup: func(a *testAPI) {
				a.mr.Set("lease:cart:c1", "someone-else")
			},
			wantCode: http.StatusConflict,
			wantMsg:  "cart is already being checked out",
		},
		{
			name: "store down",
			body: map[string]string{"customerName": "Ada", "cartId": "c1"},
			setup: func(a *testAPI) {
				a.mr.Close()
			},
			wantCode: http.StatusInternalServerError,
			wantMsg:  "Failed to create order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			if tt.setup != nil {
				tt.setup(api)
			}

			resp, body := api.do(t, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Contains(t, body["error"], tt.wantMsg)
			assert.NotEmpty(t, body["request_id"])
			assert.NotEmpty(t, body["timestamp"])
		})
	}
}

func TestUpdateStatusEndpoint(t *testing.T) {
	api := newTestAPI(t)
	_, body := api.do(t, http.MethodPost, "/api/orders", map[string]string{"customerName": "Ada", "cartId": "c1"})
	id := body["id"].(string)

	resp, body := api.do(t, http.MethodPatch, "/api/orders/"+id, map[string]string{"status": "preparing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "preparing", body["status"])
	assert.NotEmpty(t, body["updatedAt"])

	resp, _ = api.do(t, http.MethodPatch, "/api/orders/"+id, map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPatch, "/api/orders/"+id, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPatch, "/api/orders/nope", map[string]string{"status": "ready"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{order.ErrInvalidInput, http.StatusBadRequest},
		{order.ErrEmptyCart, http.StatusBadRequest},
		{&order.ItemError{Kind: order.ErrValidationFailed}, http.StatusBadRequest},
		{&order.ItemError{Kind: order.ErrInsufficientInventory}, http.StatusBadRequest},
		{fmt.Errorf("%w: gone", order.ErrCartUnavailable), http.StatusNotFound},
		{&order.ItemError{Kind: order.ErrUnknownItem}, http.StatusNotFound},
		{order.ErrNotFound, http.StatusNotFound},
		{order.ErrCartBusy, http.StatusConflict},
		{order.ErrInvalidTransition, http.StatusConflict},
		{order.ErrStoreUnavailable, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
