// Package cache fronts the allow-list with Redis so mint-time authorization
// does not hit the database on every call.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"certreg/pkg/domain"
)

const keyPrefix = "certreg:issuer:"

// RedisCache stores one "1"/"0" answer per principal with a TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func key(principal domain.Principal) string {
	return keyPrefix + principal.String()
}

// Get returns found=false on a miss.
func (c *RedisCache) Get(ctx context.Context, principal domain.Principal) (allowed bool, found bool, err error) {
	val, err := c.client.Get(ctx, key(principal)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("get cached authorization: %w", err)
	}
	return val == "1", true, nil
}

func (c *RedisCache) Set(ctx context.Context, principal domain.Principal, allowed bool) error {
	val := "0"
	if allowed {
		val = "1"
	}
	if err := c.client.Set(ctx, key(principal), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache authorization: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, principal domain.Principal) error {
	if err := c.client.Del(ctx, key(principal)).Err(); err != nil {
		return fmt.Errorf("invalidate cached authorization: %w", err)
	}
	return nil
}
