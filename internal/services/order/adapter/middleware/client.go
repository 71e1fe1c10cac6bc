// Package middleware is the HTTP client for the validation, pricing and
// inventory service. Every call falls back to a local result on failure.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
)

const (
	fallbackValidateMessage  = "Validated with fallback (middleware unavailable)"
	fallbackPriceMessage     = "Calculated with fallback (middleware unavailable)"
	fallbackInventoryMessage = "Inventory check fallback (middleware unavailable)"
)

// Client calls the middleware service with a per-call timeout.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *Breaker
	logger  *logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreaker short-circuits calls to the fallback while the middleware keeps failing.
func WithBreaker(b *Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
		logger:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire shapes use pointers for the fields that make a response usable, so a
// body missing them counts as malformed.
type validateResponse struct {
	Valid   *bool  `json:"valid"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type priceResponse struct {
	TotalPrice      *float64 `json:"totalPrice"`
	BasePrice       float64  `json:"basePrice"`
	Quantity        int      `json:"quantity"`
	Discount        float64  `json:"discount"`
	PriceMultiplier float64  `json:"priceMultiplier"`
	Message         string   `json:"message"`
}

type inventoryResponse struct {
	Available       *bool  `json:"available"`
	CurrentStock    int    `json:"currentStock"`
	RequestedAmount int    `json:"requestedAmount"`
	Message         string `json:"message"`
}

// ValidateOrder asks the middleware whether a line may be ordered. On failure it
// assumes the line is valid.
func (c *Client) ValidateOrder(ctx context.Context, itemID string, quantity int, customerName string) models.ValidationResult {
	var resp validateResponse
	err := c.post(ctx, "/validate", models.ValidateRequest{ItemID: itemID, Quantity: quantity, CustomerName: customerName}, &resp)
	if err == nil && resp.Valid == nil {
		err = errMalformed("valid")
	}
	if err != nil {
		c.fallback(ctx, "validate", itemID, err)
		return models.ValidationResult{Valid: true, Message: fallbackValidateMessage, Source: models.SourceFallback}
	}

	return models.ValidationResult{
		Valid:   *resp.Valid,
		Error:   resp.Error,
		Message: resp.Message,
		Source:  models.SourceMiddleware,
	}
}

// CalculatePrice asks the middleware for a line total. On failure the total is
// basePrice × quantity.
func (c *Client) CalculatePrice(ctx context.Context, itemID string, quantity int, basePrice float64) models.PricingResult {
	var resp priceResponse
	err := c.post(ctx, "/calculate-price", models.PriceRequest{ItemID: itemID, Quantity: quantity, BasePrice: basePrice}, &resp)
	if err == nil && resp.TotalPrice == nil {
		err = errMalformed("totalPrice")
	}
	if err != nil {
		c.fallback(ctx, "calculate-price", itemID, err)
		return models.PricingResult{
			TotalPrice: basePrice * float64(quantity),
			BasePrice:  basePrice,
			Quantity:   quantity,
			Message:    fallbackPriceMessage,
			Source:     models.SourceFallback,
		}
	}

	return models.PricingResult{
		TotalPrice:      *resp.TotalPrice,
		BasePrice:       resp.BasePrice,
		Quantity:        resp.Quantity,
		Discount:        resp.Discount,
		PriceMultiplier: resp.PriceMultiplier,
		Message:         resp.Message,
		Source:          models.SourceMiddleware,
	}
}

// CheckInventory reserves stock for a line. On failure it assumes stock exists.
func (c *Client) CheckInventory(ctx context.Context, itemID string, quantity int) models.InventoryResult {
	var resp inventoryResponse
	err := c.post(ctx, "/check-inventory", models.InventoryRequest{ItemID: itemID, Quantity: quantity}, &resp)
	if err == nil && resp.Available == nil {
		err = errMalformed("available")
	}
	if err != nil {
		c.fallback(ctx, "check-inventory", itemID, err)
		return models.InventoryResult{
			Available:       true,
			RequestedAmount: quantity,
			Message:         fallbackInventoryMessage,
			Source:          models.SourceFallback,
		}
	}

	return models.InventoryResult{
		Available:       *resp.Available,
		CurrentStock:    resp.CurrentStock,
		RequestedAmount: resp.RequestedAmount,
		Message:         resp.Message,
		Source:          models.SourceMiddleware,
	}
}

// Ping checks the middleware health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("middleware health returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	if err := c.breaker.Allow(); err != nil {
		return err
	}
	err := c.do(ctx, path, body, out)
	c.breaker.Record(err)
	return err
}

func (c *Client) do(ctx context.Context, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) fallback(ctx context.Context, call, itemID string, err error) {
	c.logger.Warn("middleware_fallback",
		fmt.Sprintf("Middleware %s failed, using fallback", call),
		logger.RequestID(ctx), map[string]interface{}{
			"call":    call,
			"item_id": itemID,
			"error":   err.Error(),
		})
}

func errMalformed(field string) error {
	return fmt.Errorf("malformed response: missing %s", field)
}
