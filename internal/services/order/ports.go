package order

import (
	"context"
	"time"

	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/storage"
)

// CartClient reads and clears carts owned by the cart service.
type CartClient interface {
	GetCart(ctx context.Context, cartID string) (models.Cart, error)
	DeleteCart(ctx context.Context, cartID string) error
}

// MiddlewareClient validates, prices and reserves stock for one line. It never
// fails: an unreachable middleware yields fallback results.
type MiddlewareClient interface {
	ValidateOrder(ctx context.Context, itemID string, quantity int, customerName string) models.ValidationResult
	CalculatePrice(ctx context.Context, itemID string, quantity int, basePrice float64) models.PricingResult
	CheckInventory(ctx context.Context, itemID string, quantity int) models.InventoryResult
}

// Catalog supplies the menu items an order may reference.
type Catalog interface {
	Snapshot(ctx context.Context) (map[string]models.MenuItem, error)
}

// Store persists orders with a TTL and the set of customer names.
// Get returns storage.ErrNotFound for missing or expired orders.
type Store interface {
	Put(ctx context.Context, order models.Order, ttl time.Duration) error
	Get(ctx context.Context, id string) (models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	RegisterCustomer(ctx context.Context, name string) error
	ListCustomers(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Locker grants short exclusive leases. Acquire returns storage.ErrLeaseHeld
// when the name is taken.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (storage.Claim, error)
}

// Events receives order lifecycle notifications. Failures are logged, never fatal.
type Events interface {
	OrderCreated(ctx context.Context, order models.Order) error
	StatusChanged(ctx context.Context, msg models.StatusUpdateMessage) error
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) OrderCreated(context.Context, models.Order) error { return nil }
func (NopEvents) StatusChanged(context.Context, models.StatusUpdateMessage) error { return nil }
