package httpapi

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// StaleCache shares the scheduler's last-successful-run timestamps across
// process instances (for a multi-process deployment fronted by a load
// balancer) so a staleness check made against one instance reflects work
// done by another. A nil client disables sharing entirely and every
// instance falls back to its own on-disk registry.
type StaleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStaleCache connects to addr/db; ttl bounds how long a cached
// last-success timestamp is trusted before a reader falls back to disk.
func NewStaleCache(addr string, db int, ttl time.Duration) *StaleCache {
	return &StaleCache{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		ttl:    ttl,
	}
}

// SetLastSuccess records task's last successful run time.
func (c *StaleCache) SetLastSuccess(ctx context.Context, task string, when time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, "scheduler:last_success:"+task, when.UTC().Format(time.RFC3339), c.ttl).Err()
}

// LastSuccess returns the shared last-success time for task, or ok=false if
// no instance has recorded one (or the cache is disabled / unreachable).
func (c *StaleCache) LastSuccess(ctx context.Context, task string) (time.Time, bool) {
	if c == nil || c.client == nil {
		return time.Time{}, false
	}
	raw, err := c.client.Get(ctx, "scheduler:last_success:"+task).Result()
	if err != nil {
		return time.Time{}, false
	}
	when, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return when, true
}

// Close releases the underlying connection pool.
func (c *StaleCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
