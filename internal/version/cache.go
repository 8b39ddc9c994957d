// Package version caches per-account revocation version counters in Redis
// so the access-token hot path can check the mandatory version gate
// without a database round-trip.
//
// The provider remains the source of truth; cache entries expire after a
// bounded TTL and are refreshed from the provider on miss. Revocation
// writes through immediately.
package version

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Cache memoizes account versions under <prefix>:ver:<userID>.
type Cache struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New creates a Cache with the given key prefix and entry TTL.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get returns the cached version and whether an entry was present.
func (c *Cache) Get(ctx context.Context, userID string) (uint32, bool, error) {
	val, err := c.redis.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	version, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		// Corrupt entry: treat as a miss so it gets overwritten.
		return 0, false, nil
	}

	return uint32(version), true, nil
}

// Put stores the version with the configured TTL.
func (c *Cache) Put(ctx context.Context, userID string, version uint32) error {
	if err := c.redis.Set(ctx, c.key(userID), strconv.FormatUint(uint64(version), 10), c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Invalidate removes the entry, forcing the next gate check back to the
// provider.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := c.redis.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (c *Cache) key(userID string) string {
	return c.prefix + ":ver:" + userID
}
