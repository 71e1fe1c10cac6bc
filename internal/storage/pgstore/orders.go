// Package pgstore is the PostgreSQL order store. Expiry is enforced on read
// and by PurgeExpired, since Postgres has no native key TTL.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cosmic-coffee/internal/database"
	"cosmic-coffee/internal/models"
	"cosmic-coffee/internal/storage"
)

type OrderStore struct {
	db  *database.DB
	now func() time.Time
}

func NewOrderStore(db *database.DB) *OrderStore {
	return &OrderStore{db: db, now: time.Now}
}

func (s *OrderStore) Put(ctx context.Context, order models.Order, ttl time.Duration) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order %s: %w", order.ID, err)
	}

	expiresAt := s.now().Add(ttl)
	_, err = s.db.Exec(ctx, database.UpsertOrderSQL,
		order.ID, order.CustomerName, string(payload), order.Timestamp, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store order %s: %w", order.ID, err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (models.Order, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, database.GetOrderSQL, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	var order models.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return models.Order{}, fmt.Errorf("failed to decode order %s: %w", id, err)
	}
	return order, nil
}

func (s *OrderStore) ListAll(ctx context.Context) ([]models.Order, error) {
	rows, err := s.db.Query(ctx, database.ListLiveOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		var order models.Order
		if err := json.Unmarshal(payload, &order); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderStore) RegisterCustomer(ctx context.Context, name string) error {
	if _, err := s.db.Exec(ctx, database.InsertCustomerSQL, name); err != nil {
		return fmt.Errorf("failed to register customer: %w", err)
	}
	return nil
}

func (s *OrderStore) ListCustomers(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, database.ListCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return names, nil
}

// PurgeExpired deletes rows past their expiry and reports how many went.
func (s *OrderStore) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.db.Exec(ctx, database.DeleteExpiredOrdersSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired orders: %w", err)
	}
	return n, nil
}

func (s *OrderStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
