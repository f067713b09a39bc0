package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps block times for a week; finalized blocks never change.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "blocktime:"

// RedisCache is a BlockTimeCache backed by Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a client for addr ("host:port").
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisCache wraps client. A non-positive ttl uses DefaultTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

var _ BlockTimeCache = (*RedisCache)(nil)

func blockKey(block int64) string {
	return keyPrefix + strconv.FormatInt(block, 10)
}

// Get implements BlockTimeCache.
func (c *RedisCache) Get(ctx context.Context, block int64) (int64, bool, error) {
	v, err := c.client.Get(ctx, blockKey(block)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get block %d: %w", block, err)
	}
	return v, true, nil
}

// Set implements BlockTimeCache.
func (c *RedisCache) Set(ctx context.Context, block int64, ts int64) error {
	if err := c.client.Set(ctx, blockKey(block), ts, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set block %d: %w", block, err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
