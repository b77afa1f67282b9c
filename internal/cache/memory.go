package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-memory cache bounded by TTL and entry count.
// When full, the least recently added entry is evicted.
type MemoryCache struct {
	cache      *gocache.Cache
	maxEntries int

	mu    sync.Mutex
	order []string // insertion order, oldest first
}

// NewMemoryCache creates a new memory cache. maxEntries <= 0 means unbounded.
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration, maxEntries int) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &MemoryCache{
		cache:      gocache.New(defaultTTL, cleanupInterval),
		maxEntries: maxEntries,
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if val, found := c.cache.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores a value with the given TTL (0 uses the default)
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.cache.Set(key, value, ttl)

	if c.maxEntries > 0 && len(c.order) > c.maxEntries {
		c.pruneExpired()
	}
	for c.maxEntries > 0 && len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.cache.Delete(oldest)
	}

	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeFromOrder(key)
	c.cache.Delete(key)
	return nil
}

// Clear removes all values from the cache
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = nil
	c.cache.Flush()
	return nil
}

// Len returns the number of live entries
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}

// pruneExpired drops keys go-cache no longer holds so they don't count
// against the bound. Caller holds mu.
func (c *MemoryCache) pruneExpired() {
	live := c.order[:0]
	for _, key := range c.order {
		if _, found := c.cache.Get(key); found {
			live = append(live, key)
		}
	}
	c.order = live
}

// removeFromOrder drops key from the insertion order. Caller holds mu.
func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
