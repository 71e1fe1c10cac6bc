// Package cart is the shopping cart service. Carts live in Redis as JSON with a
// TTL refreshed on every write.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cosmic-coffee/internal/models"
)

const (
	keyPrefix       = "cart:"
	maxWriteRetries = 32
)

var (
	ErrCartNotFound = errors.New("Cart not found")
	ErrItemNotFound = errors.New("Item not found in cart")
	ErrContention   = errors.New("cart is being modified concurrently")
)

// Store keeps carts in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{client: client, ttl: ttl, now: time.Now}
}

func key(id string) string {
	return keyPrefix + id
}

// Create stores a new empty cart under a short random id.
func (s *Store) Create(ctx context.Context) (models.Cart, error) {
	now := s.now().UTC()
	c := models.Cart{
		ID:        strings.SplitN(uuid.NewString(), "-", 2)[0],
		Items:     []models.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(c)
	if err != nil {
		return models.Cart{}, fmt.Errorf("failed to marshal cart: %w", err)
	}
	if err := s.client.Set(ctx, key(c.ID), data, s.ttl).Err(); err != nil {
		return models.Cart{}, fmt.Errorf("failed to save cart: %w", err)
	}
	return c, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Cart, error) {
	return read(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func read(ctx context.Context, g getter, id string) (models.Cart, error) {
	data, err := g.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Cart{}, ErrCartNotFound
	}
	if err != nil {
		return models.Cart{}, fmt.Errorf("failed to read cart: %w", err)
	}

	var c models.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return models.Cart{}, fmt.Errorf("failed to decode cart %s: %w", id, err)
	}
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	return c, nil
}

// Update applies fn to the stored cart under WATCH and writes the result with a
// fresh TTL. A concurrent writer makes the transaction fail and fn is re-run on
// the new state.
func (s *Store) Update(ctx context.Context, id string, fn func(c *models.Cart) error) (models.Cart, error) {
	k := key(id)
	var updated models.Cart

	txf := func(tx *redis.Tx) error {
		c, err := read(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		c.UpdatedAt = s.now().UTC()

		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, s.ttl)
			return nil
		})
		if err == nil {
			updated = c
		}
		return err
	}

	for i := 0; i < maxWriteRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return models.Cart{}, err
		}
		return updated, nil
	}
	return models.Cart{}, ErrContention
}

// Delete removes a cart. It returns ErrCartNotFound if there was none.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if n == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// AddItem merges quantity into an existing line for the item, or appends a new one.
func AddItem(c *models.Cart, item models.CartItem) {
	for i := range c.Items {
		if c.Items[i].ItemID == item.ItemID {
			c.Items[i].Quantity += item.Quantity
			return
		}
	}
	c.Items = append(c.Items, item)
}

// SetQuantity sets the quantity of a line; zero or less removes it.
func SetQuantity(c *models.Cart, itemID string, quantity int) error {
	for i := range c.Items {
		if c.Items[i].ItemID != itemID {
			continue
		}
		if quantity <= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		} else {
			c.Items[i].Quantity = quantity
		}
		return nil
	}
	return ErrItemNotFound
}

// RemoveItem drops a line if present.
func RemoveItem(c *models.Cart, itemID string) {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ItemID != itemID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
}
