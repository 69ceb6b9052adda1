package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	data     []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e cacheEntry) validAt(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// MemoryCache is an in-process TTL cache. Expired entries are dropped lazily
// on read.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	defaultTTL time.Duration
	now        func() time.Time
}

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultCacheTTL
	}
	return &MemoryCache{
		entries:    make(map[string]cacheEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.validAt(c.now()) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{data: value, storedAt: c.now(), ttl: ttl}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Clear(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		c.entries = make(map[string]cacheEntry)
		return nil
	}
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *MemoryCache) ClearByProduct(_ context.Context, productID int64) error {
	fragment := domain.ProductKeyFragment(productID)

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.Contains(key, fragment) || strings.Contains(key, domain.InventoryKeyPrefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
