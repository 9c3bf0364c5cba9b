package identify

import "sync"

// IdentityCache stores resolved identities keyed by normalized-filename
// fingerprint. It is shared process-wide so a recording that reappears
// (daemon restart, quarantine release) resolves without an external call.
type IdentityCache struct {
	mu      sync.RWMutex
	entries map[string]MediaIdentity
}

// NewIdentityCache constructs an empty cache.
func NewIdentityCache() *IdentityCache {
	return &IdentityCache{entries: make(map[string]MediaIdentity)}
}

// Get returns the cached identity for a fingerprint.
func (c *IdentityCache) Get(fingerprint string) (MediaIdentity, bool) {
	if c == nil || fingerprint == "" {
		return MediaIdentity{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	identity, ok := c.entries[fingerprint]
	return identity, ok
}

// Put stores an identity for a fingerprint.
func (c *IdentityCache) Put(fingerprint string, identity MediaIdentity) {
	if c == nil || fingerprint == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = identity
}

// Len reports the number of cached identities.
func (c *IdentityCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
