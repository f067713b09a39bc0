// Package cache stores block timestamps so repeated lookups skip the chain API.
package cache

import (
	"context"
	"sync"
)

// BlockTimeCache maps block number to block time (Unix seconds).
type BlockTimeCache interface {
	// Get returns the cached time and whether it was present.
	Get(ctx context.Context, block int64) (int64, bool, error)

	// Set stores the time for block.
	Set(ctx context.Context, block int64, ts int64) error
}

// MemoryCache is an in-process BlockTimeCache.
type MemoryCache struct {
	mu    sync.RWMutex
	times map[int64]int64
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{times: make(map[int64]int64)}
}

var _ BlockTimeCache = (*MemoryCache)(nil)

// Get implements BlockTimeCache.
func (c *MemoryCache) Get(_ context.Context, block int64) (int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ts, ok := c.times[block]
	return ts, ok, nil
}

// Set implements BlockTimeCache.
func (c *MemoryCache) Set(_ context.Context, block int64, ts int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times[block] = ts
	return nil
}

// Len returns the number of cached blocks.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.times)
}
