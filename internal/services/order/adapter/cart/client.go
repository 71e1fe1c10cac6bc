// Package cart is the HTTP client the order service uses to read and clear carts.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
)

// ErrCartNotFound is returned when the cart service reports 404.
var ErrCartNotFound = errors.New("cart not found")

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetCart(ctx context.Context, cartID string) (models.Cart, error) {
	resp, err := c.send(ctx, http.MethodGet, cartID)
	if err != nil {
		return models.Cart{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, cartID); err != nil {
		return models.Cart{}, err
	}

	var cart models.Cart
	if err := json.NewDecoder(resp.Body).Decode(&cart); err != nil {
		return models.Cart{}, fmt.Errorf("failed to decode cart %s: %w", cartID, err)
	}
	return cart, nil
}

func (c *Client) DeleteCart(ctx context.Context, cartID string) error {
	resp, err := c.send(ctx, http.MethodDelete, cartID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return checkStatus(resp, cartID)
}

func (c *Client) send(ctx context.Context, method, cartID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/cart/"+url.PathEscape(cartID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cart request: %w", err)
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cart service unreachable: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response, cartID string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("cart %s: %w", cartID, ErrCartNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("cart service returned status %d for %s", resp.StatusCode, cartID)
	}
	return nil
}
