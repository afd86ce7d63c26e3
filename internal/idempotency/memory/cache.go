package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bazarghor/checkout/internal/idempotency"
)

// Cache is a process-local TTL cache of terminal idempotency records. It
// spares the durable store a round trip on duplicate checks; entries lapse
// on read once their record expires.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]idempotency.Record
	nowFunc func() time.Time
}

// NewCache creates an empty in-process cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]idempotency.Record),
		nowFunc: time.Now,
	}
}

// WithNowFunc overrides the clock, for tests.
func (c *Cache) WithNowFunc(now func() time.Time) *Cache {
	c.nowFunc = now
	return c
}

// Get returns the cached record, or nil when absent or expired. Expired
// entries are dropped lazily.
func (c *Cache) Get(_ context.Context, key string) (*idempotency.Record, error) {
	c.mu.RLock()
	record, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if record.Expired(c.nowFunc()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	copy := record
	return &copy, nil
}

// Set stores a terminal record. Pending records are not cached.
func (c *Cache) Set(_ context.Context, key string, record idempotency.Record) error {
	if !record.Terminal() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = record
	return nil
}

// Delete evicts a key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Len returns the number of cached entries, for tests and monitoring.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
