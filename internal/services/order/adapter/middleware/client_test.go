package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
)

func newHealthyServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /validate", func(w http.ResponseWriter, r *http.Request) {
		var req models.ValidateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Quantity > 10 {
			json.NewEncoder(w).Encode(map[string]interface{}{"valid": false, "error": "Quantity cannot exceed 10 items"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"valid": true, "message": "Order validation successful"})
	})
	mux.HandleFunc("POST /calculate-price", func(w http.ResponseWriter, r *http.Request) {
		var req models.PriceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"totalPrice": 9.98, "basePrice": req.BasePrice, "quantity": req.Quantity, "message": "Price calculated successfully",
		})
	})
	mux.HandleFunc("POST /check-inventory", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"available": false, "currentStock": 1, "requestedAmount": 2})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientPassesThroughMiddlewareResults(t *testing.T) {
	srv := newHealthyServer(t)
	c := NewClient(srv.URL, time.Second, logger.Nop())
	ctx := context.Background()

	v := c.ValidateOrder(ctx, "rocket-fuel", 2, "Ada")
	assert.True(t, v.Valid)
	assert.Equal(t, models.SourceMiddleware, v.Source)

	v = c.ValidateOrder(ctx, "rocket-fuel", 11, "Ada")
	assert.False(t, v.Valid)
	assert.Equal(t, "Quantity cannot exceed 10 items", v.Error)

	p := c.CalculatePrice(ctx, "rocket-fuel", 2, 4.99)
	assert.Equal(t, 9.98, p.TotalPrice)
	assert.Equal(t, models.SourceMiddleware, p.Source)

	inv := c.CheckInventory(ctx, "rocket-fuel", 2)
	assert.False(t, inv.Available)
	assert.Equal(t, 1, inv.CurrentStock)
	assert.Equal(t, models.SourceMiddleware, inv.Source)

	assert.NoError(t, c.Ping(ctx))
}

func assertFallbacks(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()

	v := c.ValidateOrder(ctx, "rocket-fuel", 2, "Ada")
	assert.Equal(t, models.ValidationResult{Valid: true, Message: fallbackValidateMessage, Source: models.SourceFallback}, v)

	p := c.CalculatePrice(ctx, "rocket-fuel", 2, 4.99)
	assert.Equal(t, 4.99*2, p.TotalPrice)
	assert.Equal(t, 9.98, p.TotalPrice)
	assert.Equal(t, models.SourceFallback, p.Source)

	inv := c.CheckInventory(ctx, "rocket-fuel", 2)
	assert.True(t, inv.Available)
	assert.Equal(t, models.SourceFallback, inv.Source)
}

func TestClientFallbackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assertFallbacks(t, NewClient(url, time.Second, logger.Nop()))
}

func TestClientFallbackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	assertFallbacks(t, NewClient(srv.URL, time.Second, logger.Nop()))
}

func TestClientFallbackOnMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"missing fields", `{"message":"hello"}`},
		{"wrong types", `{"valid":"yes","totalPrice":"cheap","available":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			assertFallbacks(t, NewClient(srv.URL, time.Second, logger.Nop()))
		})
	}
}

func TestClientFallbackOnTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := NewClient(srv.URL, 50*time.Millisecond, logger.Nop())
	start := time.Now()
	p := c.CalculatePrice(context.Background(), "rocket-fuel", 3, 2.5)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 7.5, p.TotalPrice)
	assert.Equal(t, models.SourceFallback, p.Source)
}

func TestClientBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	breaker := NewBreaker(2, time.Minute)
	c := NewClient(srv.URL, time.Second, logger.Nop(), WithBreaker(breaker))

	for range 5 {
		v := c.ValidateOrder(context.Background(), "rocket-fuel", 1, "Ada")
		assert.Equal(t, models.SourceFallback, v.Source)
	}
	assert.Equal(t, int32(2), calls.Load(), "calls stop once the breaker opens")
	assert.True(t, breaker.Open())
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(1, 10*time.Second)
	b.now = func() time.Time { return now }

	require.NoError(t, b.Allow())
	b.Record(errors.New("fail"))
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	now = now.Add(11 * time.Second)
	require.NoError(t, b.Allow(), "first call after cooldown is the trial call")
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen, "only one trial call at a time")

	b.Record(errors.New("still failing"))
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	now = now.Add(11 * time.Second)
	require.NoError(t, b.Allow())
	b.Record(nil)
	assert.NoError(t, b.Allow())
	assert.False(t, b.Open())
}

func TestBreakerDisabled(t *testing.T) {
	b := NewBreaker(0, time.Second)
	for range 10 {
		b.Record(errors.New("fail"))
	}
	assert.NoError(t, b.Allow())

	var none *Breaker
	assert.NoError(t, none.Allow())
}
