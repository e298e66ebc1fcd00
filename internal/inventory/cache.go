package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// AvailabilityCache keeps per-product availability totals in Redis with
// a short TTL. Concurrent cold reads for one product are collapsed into
// a single database query via singleflight. The cache is advisory:
// allocation always re-reads quantities under row locks.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewAvailabilityCache constructs the cache.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(productID int64) string {
	return fmt.Sprintf("inventory:availability:%d", productID)
}

// Get returns the cached total or loads it through fn.
func (c *AvailabilityCache) Get(ctx context.Context, productID int64, fn func(context.Context) (float64, error)) (float64, error) {
	if c == nil || c.client == nil {
		return fn(ctx)
	}
	key := availabilityKey(productID)
	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		if total, perr := strconv.ParseFloat(raw, 64); perr == nil {
			return total, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		total, err := fn(ctx)
		if err != nil {
			return 0.0, err
		}
		c.client.Set(ctx, key, strconv.FormatFloat(total, 'f', -1, 64), c.ttl)
		return total, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Invalidate drops the cached entry after a stock mutation.
func (c *AvailabilityCache) Invalidate(ctx context.Context, productID int64) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, availabilityKey(productID))
}
