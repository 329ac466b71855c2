package transport

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// ResponseCache manages cached GET responses to avoid duplicate API calls
type ResponseCache struct {
	mu       sync.RWMutex
	cache    map[string]*cachedResponse
	cacheTTL time.Duration
}

// cachedResponse represents a cached response body with timestamp
type cachedResponse struct {
	data      json.RawMessage
	timestamp time.Time
}

// NewResponseCache creates a new response cache
func NewResponseCache(cacheTTL time.Duration) *ResponseCache {
	return &ResponseCache{
		cache:    make(map[string]*cachedResponse),
		cacheTTL: cacheTTL,
	}
}

// Get retrieves a cached response if it's still valid, otherwise returns nil
func (c *ResponseCache) Get(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, exists := c.cache[key]
	if !exists {
		return nil, false
	}

	// Check if cache is still valid
	if time.Since(cached.timestamp) > c.cacheTTL {
		return nil, false
	}

	return cached.data, true
}

// Set stores a response in the cache with current timestamp
func (c *ResponseCache) Set(key string, data json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = &cachedResponse{
		data:      data,
		timestamp: time.Now(),
	}
}

// Clear removes all cached entries
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cachedResponse)
}

// ClearPrefix removes every entry whose key starts with prefix
func (c *ResponseCache) ClearPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.cache {
		if strings.HasPrefix(key, prefix) {
			delete(c.cache, key)
		}
	}
}

// Len returns the number of cached entries, expired or not
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
