// Package loadgen drives simulated shopping sessions against the storefront API.
package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cosmic-coffee/internal/fault"
	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
)

var customerNames = []string{
	"Alice Anderson", "Bob Builder", "Charlie Chen", "Diana Davis", "Ethan Evans",
	"Fiona Foster", "George Garcia", "Hannah Harris", "Isaac Ibrahim", "Julia Johnson",
	"Kevin Kim", "Laura Lee", "Michael Martinez", "Nina Nelson", "Oliver O'Brien",
}

var specialInstructions = []string{
	"", "", "",
	"Extra hot", "Light ice", "Extra foam", "Oat milk please", "Double shot", "No sugar", "Extra sweet",
}

// Behavior holds the probability of each step of a session.
type Behavior struct {
	FetchMenu      float64
	BuildCart      float64
	Checkout       float64
	FetchOrders    float64
	FetchCustomers float64
	// Think toggles the pauses a real user takes between steps.
	Think bool
}

func DefaultBehavior() Behavior {
	return Behavior{
		FetchMenu:      0.8,
		BuildCart:      0.6,
		Checkout:       0.9,
		FetchOrders:    0.3,
		FetchCustomers: 0.1,
		Think:          true,
	}
}

// Stats counts requests made by the generator.
type Stats struct {
	Requests  atomic.Int64
	Successes atomic.Int64
	Failures  atomic.Int64
}

func (s *Stats) record(err error) {
	s.Requests.Add(1)
	if err != nil {
		s.Failures.Add(1)
		return
	}
	s.Successes.Add(1)
}

type Options struct {
	BaseURL       string
	RequestRate   int
	StatsInterval time.Duration
	Timeout       time.Duration
	Behavior      Behavior
}

type Generator struct {
	client   *http.Client
	baseURL  string
	interval time.Duration
	every    time.Duration
	behavior Behavior
	rng      *fault.Injector
	logger   *logger.Logger
	out      io.Writer
	started  time.Time

	Stats Stats
}

func New(opts Options, rng *fault.Injector, log *logger.Logger) *Generator {
	if opts.RequestRate <= 0 {
		opts.RequestRate = 10
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = 30 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Generator{
		client:   &http.Client{Timeout: opts.Timeout},
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		interval: time.Minute / time.Duration(opts.RequestRate),
		every:    opts.StatsInterval,
		behavior: opts.Behavior,
		rng:      rng,
		logger:   log,
		out:      os.Stdout,
	}
}

// Run generates sessions until ctx is done, printing stats periodically and once
// more on the way out.
func (g *Generator) Run(ctx context.Context) error {
	g.started = time.Now()
	g.logger.Info("loadgen_started", "Load generator started", "", map[string]interface{}{
		"base_url": g.baseURL,
		"interval": g.interval.String(),
	})

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		g.fetchMenu(ctx)
		for {
			g.RunSession(ctx)
			if err := fault.Sleep(ctx, g.interval); err != nil {
				return nil
			}
		}
	})
	eg.Go(func() error {
		ticker := time.NewTicker(g.every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				g.PrintStats()
			}
		}
	})

	err := eg.Wait()
	g.PrintStats()
	return err
}

// RunSession plays one simulated visitor.
func (g *Generator) RunSession(ctx context.Context) {
	var menu []models.MenuItem
	if g.chance(g.behavior.FetchMenu) {
		menu = g.fetchMenu(ctx)
		g.think(ctx, 500*time.Millisecond, 2500*time.Millisecond)
	}

	if g.chance(g.behavior.BuildCart) && len(menu) > 0 {
		g.shop(ctx, menu)
	}

	if g.chance(g.behavior.FetchOrders) {
		var orders []models.Order
		if err := g.call(ctx, http.MethodGet, "/api/orders", nil, &orders); err == nil {
			g.logger.Debug("orders_fetched", fmt.Sprintf("Fetched orders (%d orders)", len(orders)), "", nil)
		}
		g.think(ctx, 0, time.Second)
	}

	if g.chance(g.behavior.FetchCustomers) {
		var names []string
		if err := g.call(ctx, http.MethodGet, "/api/customers", nil, &names); err == nil {
			g.logger.Debug("customers_fetched", fmt.Sprintf("Fetched customers (%d customers)", len(names)), "", nil)
		}
	}
}

func (g *Generator) shop(ctx context.Context, menu []models.MenuItem) {
	var cart models.Cart
	if err := g.call(ctx, http.MethodPost, "/api/cart", struct{}{}, &cart); err != nil {
		return
	}
	g.think(ctx, 200*time.Millisecond, 700*time.Millisecond)

	lines := 1 + g.rng.IntN(3)
	for i := 0; i < lines; i++ {
		item := menu[g.rng.IntN(len(menu))]
		qty := 1 + g.rng.IntN(2)
		req := models.AddItemRequest{
			ItemID:    item.ID,
			ItemName:  item.Name,
			ItemEmoji: item.Emoji,
			Quantity:  &qty,
			BasePrice: item.BasePrice,
		}
		g.call(ctx, http.MethodPost, "/api/cart/"+cart.ID+"/items", req, nil)
		g.think(ctx, 300*time.Millisecond, 1300*time.Millisecond)
	}

	if !g.chance(g.behavior.Checkout) {
		g.logger.Info("cart_abandoned", "Cart abandoned", "", map[string]interface{}{"cart_id": cart.ID})
		return
	}

	g.think(ctx, 500*time.Millisecond, 1500*time.Millisecond)
	req := models.CreateOrderRequest{
		CustomerName:        customerNames[g.rng.IntN(len(customerNames))],
		CartID:              cart.ID,
		SpecialInstructions: specialInstructions[g.rng.IntN(len(specialInstructions))],
	}
	var placed models.Order
	if err := g.call(ctx, http.MethodPost, "/api/orders", req, &placed); err == nil {
		g.logger.Info("order_placed", "Order placed", "", map[string]interface{}{
			"order_id": placed.ID,
			"customer": req.CustomerName,
			"items":    len(placed.Items),
		})
	}
}

func (g *Generator) fetchMenu(ctx context.Context) []models.MenuItem {
	var menu []models.MenuItem
	if err := g.call(ctx, http.MethodGet, "/api/menu", nil, &menu); err != nil {
		return nil
	}
	return menu
}

func (g *Generator) chance(p float64) bool {
	return g.rng.Float64() < p
}

func (g *Generator) think(ctx context.Context, min, max time.Duration) {
	if g.behavior.Think {
		g.rng.Delay(ctx, min, max)
	}
}

// call sends one API request, counts it and decodes a 2xx body into out.
func (g *Generator) call(ctx context.Context, method, path string, body, out interface{}) error {
	err := g.do(ctx, method, path, body, out)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	g.Stats.record(err)
	if err != nil {
		g.logger.Warn("request_failed", "Load generator request failed", "", map[string]interface{}{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
	}
	return err
}

func (g *Generator) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PrintStats writes the counters and derived rates.
func (g *Generator) PrintStats() {
	requests := g.Stats.Requests.Load()
	successes := g.Stats.Successes.Load()
	uptime := time.Since(g.started)

	rate := 0.0
	if requests > 0 {
		rate = float64(successes) / float64(requests) * 100
	}
	perSecond := 0.0
	if secs := uptime.Seconds(); secs > 0 {
		perSecond = float64(requests) / secs
	}

	fmt.Fprintf(g.out, "\n=== Load Generator Statistics ===\n"+
		"Uptime: %ds\nTotal Requests: %d\nSuccessful: %d\nFailed: %d\n"+
		"Success Rate: %.2f%%\nRequests/sec: %.2f\n================================\n\n",
		int(uptime.Seconds()), requests, successes, g.Stats.Failures.Load(), rate, perSecond)
}
