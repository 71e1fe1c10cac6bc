package middleware

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cosmic-coffee/internal/fault"
	"cosmic-coffee/internal/logger"
	"cosmic-coffee/internal/models"
)

const (
	inventoryKeyPrefix = "inventory:"
	defaultStock       = 250
	lowStockThreshold  = 50
	replenishChance    = 0.8
	bypassStock        = 999
)

// reserveScript reads the stock (initialising an unknown item), and takes qty
// from it when enough is left. It returns {reserved, stock before}.
var reserveScript = redis.NewScript(`
local stock = redis.call("GET", KEYS[1])
if not stock then
	stock = ARGV[2]
	redis.call("SET", KEYS[1], stock)
end
stock = tonumber(stock)
local qty = tonumber(ARGV[1])
if stock >= qty then
	redis.call("DECRBY", KEYS[1], qty)
	return {1, stock}
end
return {0, stock}
`)

// Inventory tracks stock per menu item in Redis.
type Inventory struct {
	client *redis.Client
	rng    *fault.Injector
	logger *logger.Logger
}

func NewInventory(client *redis.Client, rng *fault.Injector, log *logger.Logger) *Inventory {
	return &Inventory{client: client, rng: rng, logger: log}
}

func inventoryKey(itemID string) string {
	return inventoryKeyPrefix + itemID
}

// Seed gives every item without a stock record 200 to 300 units.
func (inv *Inventory) Seed(ctx context.Context, itemIDs []string) error {
	for _, id := range itemIDs {
		stock := 200 + inv.rng.IntN(101)
		if err := inv.client.SetNX(ctx, inventoryKey(id), stock, 0).Err(); err != nil {
			return fmt.Errorf("failed to seed inventory for %s: %w", id, err)
		}
	}
	return nil
}

// Check reserves qty units of an item. When Redis cannot be reached the item is
// reported available so orders are not blocked on inventory.
func (inv *Inventory) Check(ctx context.Context, req models.InventoryRequest) models.InventoryResult {
	key := inventoryKey(req.ItemID)

	res, err := reserveScript.Run(ctx, inv.client, []string{key}, req.Quantity, defaultStock).Int64Slice()
	if err != nil || len(res) != 2 {
		inv.logger.Warn("inventory_bypassed", "Inventory check bypassed", "", map[string]interface{}{
			"item_id": req.ItemID,
			"error":   fmt.Sprint(err),
		})
		return models.InventoryResult{
			Available:       true,
			CurrentStock:    bypassStock,
			RequestedAmount: req.Quantity,
			Message:         "Inventory check bypassed (Redis unavailable)",
		}
	}

	reserved, stock := res[0] == 1, int(res[1])
	if !reserved {
		return models.InventoryResult{
			Available:       false,
			CurrentStock:    stock,
			RequestedAmount: req.Quantity,
			Message:         "Insufficient inventory",
		}
	}

	if left := stock - req.Quantity; left < lowStockThreshold {
		inv.maybeReplenish(ctx, req.ItemID, left)
	}

	return models.InventoryResult{
		Available:       true,
		CurrentStock:    stock,
		RequestedAmount: req.Quantity,
		Message:         "Inventory available",
	}
}

func (inv *Inventory) maybeReplenish(ctx context.Context, itemID string, left int) {
	if inv.rng.Float64() >= replenishChance {
		return
	}
	amount := 100 + inv.rng.IntN(101)
	if err := inv.client.IncrBy(ctx, inventoryKey(itemID), int64(amount)).Err(); err != nil {
		inv.logger.Warn("inventory_replenish_failed", "Failed to replenish inventory", "", map[string]interface{}{
			"item_id": itemID,
			"error":   err.Error(),
		})
		return
	}
	inv.logger.Info("inventory_replenished", "Replenished low inventory", "", map[string]interface{}{
		"item_id": itemID,
		"left":    left,
		"added":   amount,
	})
}

// Stock returns the current stock of an item.
func (inv *Inventory) Stock(ctx context.Context, itemID string) (int, error) {
	return inv.client.Get(ctx, inventoryKey(itemID)).Int()
}
