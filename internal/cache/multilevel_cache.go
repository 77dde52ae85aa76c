package cache

import (
	"context"
	"time"
)

// MultiLevelCache implements a multi-level cache with in-memory L1 and a shared L2
type MultiLevelCache struct {
	l1    *MemoryCache
	l2    Cache
	l1TTL time.Duration
}

// NewMultiLevelCache layers an L1 of at most l1MaxItems entries over l2.
// L1 entries live at most l1TTL so other replicas' writes become visible.
func NewMultiLevelCache(l2 Cache, l1MaxItems int, l1TTL time.Duration) *MultiLevelCache {
	return &MultiLevelCache{
		l1:    NewMemoryCache(l1MaxItems),
		l2:    l2,
		l1TTL: l1TTL,
	}
}

// Get retrieves from L1 first, then L2
func (c *MultiLevelCache) Get(ctx context.Context, key string) ([]byte, error) {
	if data, _ := c.l1.Get(ctx, key); data != nil {
		return data, nil
	}

	data, err := c.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if data != nil {
		// Populate L1 cache
		_ = c.l1.Set(ctx, key, data, c.l1TTL)
	}
	return data, nil
}

// Set stores in both L1 and L2
func (c *MultiLevelCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	// Set in L2 first
	if err := c.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}

	// L1 never outlives L2
	l1Expiration := c.l1TTL
	if expiration > 0 && expiration < l1Expiration {
		l1Expiration = expiration
	}
	return c.l1.Set(ctx, key, value, l1Expiration)
}

// Delete removes from both levels
func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = c.l1.Delete(ctx, key)
	return c.l2.Delete(ctx, key)
}

// Exists checks both levels
func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := c.l1.Exists(ctx, key); ok {
		return true, nil
	}
	return c.l2.Exists(ctx, key)
}

// Close closes L2 connection
func (c *MultiLevelCache) Close() error {
	return c.l2.Close()
}

// Health checks L2 health
func (c *MultiLevelCache) Health(ctx context.Context) error {
	return c.l2.Health(ctx)
}
