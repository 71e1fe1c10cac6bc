// Package storage holds the errors and lease claim shared by the storage backends.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound covers both never-written and expired records.
	ErrNotFound = errors.New("record not found")
	// ErrLeaseHeld means another holder owns the lease.
	ErrLeaseHeld = errors.New("lease already held")
	// ErrLeaseLost means the lease expired or passed to another holder.
	ErrLeaseLost = errors.New("lease lost")
)

// Claim is a held lease.
type Claim interface {
	// Extend resets the lease TTL. It returns ErrLeaseLost if the claim is no
	// longer ours.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release drops the lease if it is still ours.
	Release(ctx context.Context) error
}
