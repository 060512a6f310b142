package bus

import (
	"sync"
	"time"
)

// DedupeCache tracks recently seen message IDs so bridge reconnects and
// webhook-style retries don't trigger duplicate reply runs.
// Entries expire after a TTL; total size is capped.
type DedupeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	seen    map[string]time.Time
	now     func() time.Time
}

// NewDedupeCache creates a cache with the given TTL and entry cap.
func NewDedupeCache(ttl time.Duration, maxSize int) *DedupeCache {
	return &DedupeCache{
		ttl:     ttl,
		maxSize: maxSize,
		seen:    make(map[string]time.Time),
		now:     time.Now,
	}
}

// IsDuplicate reports whether key was seen within the TTL, recording it
// as seen either way.
func (c *DedupeCache) IsDuplicate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if at, ok := c.seen[key]; ok && now.Sub(at) < c.ttl {
		return true
	}

	// Prune expired entries when at capacity.
	if len(c.seen) >= c.maxSize {
		for k, at := range c.seen {
			if now.Sub(at) >= c.ttl {
				delete(c.seen, k)
			}
		}
		// Hard eviction if still full.
		for len(c.seen) >= c.maxSize {
			for k := range c.seen {
				delete(c.seen, k)
				break
			}
		}
	}

	c.seen[key] = now
	return false
}
