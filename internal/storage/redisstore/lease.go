package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cosmic-coffee/internal/storage"
)

const leaseKeyPrefix = "lease:"

// releaseScript deletes the lease only if it still carries our token, so a
// holder whose lease expired cannot drop the next holder's lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only while the lease still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lease is a short exclusive claim on a name, backed by SET NX PX.
type Lease struct {
	client *redis.Client
}

func NewLease(client *redis.Client) *Lease {
	return &Lease{client: client}
}

// Acquire claims name for ttl. It returns storage.ErrLeaseHeld when someone else
// holds it.
func (l *Lease) Acquire(ctx context.Context, name string, ttl time.Duration) (storage.Claim, error) {
	key := leaseKeyPrefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, storage.ErrLeaseHeld
	}
	return &claim{client: l.client, name: name, key: key, token: token}, nil
}

type claim struct {
	client *redis.Client
	name   string
	key    string
	token  string
}

func (c *claim) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, c.client, []string{c.key}, c.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to extend lease %s: %w", c.name, err)
	}
	if n == 0 {
		return storage.ErrLeaseLost
	}
	return nil
}

func (c *claim) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, c.client, []string{c.key}, c.token).Err(); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", c.name, err)
	}
	return nil
}
