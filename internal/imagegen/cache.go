package imagegen

import (
	"sync"
	"time"
)

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// Cache holds rendered images for a short period, keyed by what they depict.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

// Get returns the cached image if still valid.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{data: data, expiresAt: now.Add(c.ttl)}
}

// GetOrRender returns the cached image for key, rendering and storing it on
// a miss. The bool reports a cache hit.
func (c *Cache) GetOrRender(key string, render func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.Get(key); ok {
		return data, true, nil
	}
	data, err := render()
	if err != nil {
		return nil, false, err
	}
	c.Set(key, data)
	return data, false, nil
}
