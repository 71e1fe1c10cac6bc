package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cosmic-coffee/internal/logger"
)

// DB is the order store's PostgreSQL pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger *logger.Logger
}

type connectOptions struct {
	attempts    int
	backoff     time.Duration
	pingTimeout time.Duration
}

// Option tunes how New dials the database.
type Option func(*connectOptions)

// WithRetry sets the number of connect attempts. The wait before attempt n+1 is
// n times backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(o *connectOptions) {
		o.attempts = attempts
		o.backoff = backoff
	}
}

// WithPingTimeout bounds each connectivity check.
func WithPingTimeout(d time.Duration) Option {
	return func(o *connectOptions) { o.pingTimeout = d }
}

// New opens a pool and pings it, retrying with a linear backoff. A done ctx
// stops the retries.
func New(ctx context.Context, databaseURL string, log *logger.Logger, opts ...Option) (*DB, error) {
	o := connectOptions{attempts: 5, backoff: 2 * time.Second, pingTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.attempts < 1 {
		o.attempts = 1
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	for attempt := 1; ; attempt++ {
		var pool *pgxpool.Pool
		pool, err = dial(ctx, poolConfig, o.pingTimeout)
		if err == nil {
			log.Info("db_connected", "Connected to order database", "startup", map[string]interface{}{
				"host":     poolConfig.ConnConfig.Host,
				"database": poolConfig.ConnConfig.Database,
				"attempt":  attempt,
			})
			return &DB{Pool: pool, logger: log}, nil
		}
		if attempt == o.attempts {
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", o.attempts, err)
		}

		wait := time.Duration(attempt) * o.backoff
		log.Warn("db_connection_failed", fmt.Sprintf("Database not reachable, retrying in %v", wait), "startup", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("database connect aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func dial(ctx context.Context, cfg *pgxpool.Config, pingTimeout time.Duration) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Exec runs a statement and returns the number of affected rows.
func (db *DB) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	tag, err := db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *DB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.Pool.Query(ctx, sql, args...)
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.Pool.QueryRow(ctx, sql, args...)
}
