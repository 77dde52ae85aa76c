package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache with per-key expiry and least-recently-used eviction
type MemoryCache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front is most recently used
	maxItems int
	now      func() time.Time
}

type cacheItem struct {
	key       string
	data      []byte
	expiresAt time.Time // zero never expires
}

// NewMemoryCache creates a cache holding at most maxItems entries
func NewMemoryCache(maxItems int) *MemoryCache {
	if maxItems <= 0 {
		maxItems = 1
	}
	return &MemoryCache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		maxItems: maxItems,
		now:      time.Now,
	}
}

// Get returns a live value and marks it recently used
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, nil
	}
	item := elem.Value.(*cacheItem)
	if c.expired(item) {
		c.remove(elem)
		return nil, nil
	}
	c.order.MoveToFront(elem)
	return item.data, nil
}

// Set stores a value, evicting the least recently used entry when full
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = c.now().Add(expiration)
	}

	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*cacheItem)
		item.data = value
		item.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return nil
	}

	for c.order.Len() >= c.maxItems {
		c.remove(c.order.Back())
	}
	c.items[key] = c.order.PushFront(&cacheItem{key: key, data: value, expiresAt: expiresAt})
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	return ok && !c.expired(elem.Value.(*cacheItem)), nil
}

// Len reports the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryCache) Close() error { return nil }

func (c *MemoryCache) Health(ctx context.Context) error { return nil }

func (c *MemoryCache) expired(item *cacheItem) bool {
	return !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt)
}

func (c *MemoryCache) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*cacheItem).key)
}
