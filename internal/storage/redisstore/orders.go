package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/storage"
)

const (
	orderKeyPrefix = "order:"
	customersKey   = "customers"
	scanBatch      = 100
)

// OrderStore keeps orders as JSON strings under order:{id} with a TTL, and
// customer names in a set that never expires.
type OrderStore struct {
	client *redis.Client
}

func NewOrderStore(client *redis.Client) *OrderStore {
	return &OrderStore{client: client}
}

// Put upserts the order and restarts its expiry clock.
func (s *OrderStore) Put(ctx context.Context, order models.Order, ttl time.Duration) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order %s: %w", order.ID, err)
	}
	if err := s.client.Set(ctx, orderKeyPrefix+order.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store order %s: %w", order.ID, err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (models.Order, error) {
	data, err := s.client.Get(ctx, orderKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Order{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return models.Order{}, fmt.Errorf("failed to decode order %s: %w", id, err)
	}
	return order, nil
}

// ListAll returns every live order in no particular order. Keys that expire
// between the scan and the read are skipped.
func (s *OrderStore) ListAll(ctx context.Context) ([]models.Order, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, orderKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan orders: %w", err)
	}

	orders := make([]models.Order, 0, len(keys))
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		values, err := s.client.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load orders: %w", err)
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var order models.Order
			if err := json.Unmarshal([]byte(raw), &order); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", keys[start+i], err)
			}
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (s *OrderStore) RegisterCustomer(ctx context.Context, name string) error {
	if err := s.client.SAdd(ctx, customersKey, name).Err(); err != nil {
		return fmt.Errorf("failed to register customer: %w", err)
	}
	return nil
}

// ListCustomers returns the set members unsorted.
func (s *OrderStore) ListCustomers(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, customersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return names, nil
}

func (s *OrderStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
