// Package idempotency maps client retry tokens to previously produced submit
// responses, so a retried request returns the original result without
// re-executing the store write.
//
// Known limitations, kept deliberately: entries never expire, are not
// persisted across restarts, and reusing a token with a different payload
// returns the stale snapshot without any payload-equality check. The store's
// uniqueness constraint on the event fingerprint remains the source of truth
// for persisted data regardless of cache outcome.
package idempotency

import (
	"sync"

	"github.com/streamhaus/play-history-service/internal/models"
)

// Cache is the capability the ingestion path depends on. Implementations
// must be safe for concurrent use; concurrent Puts for the same token are a
// tolerated last-write-wins race. An external TTL-bounded store (e.g. Redis)
// can replace MemoryCache behind this interface without touching callers.
type Cache interface {
	Get(token string) (models.PlayEventResponse, bool)
	Put(token string, resp models.PlayEventResponse)
}

// MemoryCache is the in-process Cache implementation.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.PlayEventResponse
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]models.PlayEventResponse{}}
}

// Get returns the response snapshot recorded for token, if any.
func (c *MemoryCache) Get(token string) (models.PlayEventResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp, ok := c.entries[token]
	return resp, ok
}

// Put records the response snapshot for token. Writes for different tokens
// do not block each other beyond the map lock's critical section.
func (c *MemoryCache) Put(token string, resp models.PlayEventResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = resp
}
