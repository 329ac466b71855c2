package yellow

import (
	"sync"
	"time"

	"github.com/jetkite-hq/jetkite-go/pkg/models"
)

// DefaultChannelCacheTTL bounds how long a cached channel state is
// considered fresh.
const DefaultChannelCacheTTL = 30 * time.Second

// ChannelCache holds locally cached channel states keyed by channel id.
// Entries are refreshed on demand or pushed via notifications and are
// never assumed authoritative; the clearnode is the source of truth.
type ChannelCache struct {
	mu       sync.RWMutex
	cache    map[string]*cachedChannel
	cacheTTL time.Duration
}

// cachedChannel represents a cached channel state with timestamp
type cachedChannel struct {
	state     models.ChannelState
	timestamp time.Time
}

// NewChannelCache creates a new channel state cache
func NewChannelCache(cacheTTL time.Duration) *ChannelCache {
	if cacheTTL <= 0 {
		cacheTTL = DefaultChannelCacheTTL
	}
	return &ChannelCache{
		cache:    make(map[string]*cachedChannel),
		cacheTTL: cacheTTL,
	}
}

// Get retrieves a cached state if it's still fresh, otherwise returns false
func (c *ChannelCache) Get(channelID string) (models.ChannelState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, exists := c.cache[channelID]
	if !exists {
		return models.ChannelState{}, false
	}
	if time.Since(cached.timestamp) > c.cacheTTL {
		return models.ChannelState{}, false
	}
	return cached.state, true
}

// Set stores a channel state with the current timestamp. Updates are
// atomic per key.
func (c *ChannelCache) Set(state models.ChannelState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[state.ChannelID] = &cachedChannel{
		state:     state,
		timestamp: time.Now(),
	}
}

// Delete removes one channel's entry
func (c *ChannelCache) Delete(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, channelID)
}

// Clear removes all cached entries
func (c *ChannelCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*cachedChannel)
}

// Len returns the number of cached entries, fresh or not
func (c *ChannelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
