package ledger

import (
	"sync"
	"time"
)

// checkpointCache holds the most recently fetched checkpoint for a short TTL
// so that one assembly pass does not fetch the same checkpoint twice. The TTL
// is a small fraction of a checkpoint's validity window.
type checkpointCache struct {
	mu       sync.RWMutex
	cached   *Checkpoint
	cacheTTL time.Duration
}

func newCheckpointCache(cacheTTL time.Duration) *checkpointCache {
	return &checkpointCache{cacheTTL: cacheTTL}
}

// Get retrieves the cached checkpoint if it's still within the TTL.
func (c *checkpointCache) Get() (Checkpoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cached == nil {
		return Checkpoint{}, false
	}
	if time.Since(c.cached.FetchedAt) > c.cacheTTL {
		return Checkpoint{}, false
	}
	return *c.cached, true
}

// Set stores a checkpoint in the cache.
func (c *checkpointCache) Set(ck Checkpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cached = &ck
}

// Clear drops the cached checkpoint.
func (c *checkpointCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cached = nil
}
