package yellow

import (
	"fmt"
	"sync"
)

// The process-wide client handle is an explicit init/get/reset lifecycle
// owned by the application's composition root. Nothing reads it
// implicitly.
var (
	globalMu     sync.Mutex
	globalClient *Client
)

// Init creates the process-wide client. Fails if one is already
// initialized; call Reset first to replace it.
func Init(cfg Config) (*Client, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalClient != nil {
		return nil, fmt.Errorf("yellow: global client already initialized")
	}
	globalClient = NewClient(cfg)
	return globalClient, nil
}

// Get returns the process-wide client, or nil when Init has not run.
func Get() *Client {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalClient
}

// Reset disposes and clears the process-wide client. Safe to call when
// none is set.
func Reset() {
	globalMu.Lock()
	client := globalClient
	globalClient = nil
	globalMu.Unlock()
	if client != nil {
		client.Dispose()
	}
}
