// internal/graduation/cache.go
package graduation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// DefaultCacheTTL - время жизни кэшированного статуса
const DefaultCacheTTL = 5 * time.Minute

// ErrCacheMiss is returned when no fresh status is cached for a mint.
var ErrCacheMiss = errors.New("graduation status not cached")

// Cache хранит вычисленные статусы. Кэш носит рекомендательный характер и
// никогда не используется для решений об изменении состояния.
type Cache interface {
	Get(ctx context.Context, mint solana.PublicKey) (Status, error)
	Set(ctx context.Context, st Status) error
	Invalidate(ctx context.Context, mint solana.PublicKey) error
}

type cacheEntry struct {
	status    Status
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache keyed by mint.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[solana.PublicKey]cacheEntry
	now     func() time.Time
}

// NewMemoryCache creates a cache; a non-positive ttl falls back to DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[solana.PublicKey]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached status or ErrCacheMiss when absent or expired.
func (c *MemoryCache) Get(_ context.Context, mint solana.PublicKey) (Status, error) {
	c.mu.RLock()
	entry, ok := c.entries[mint]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expiresAt) {
		return Status{}, ErrCacheMiss
	}
	return entry.status, nil
}

// Set stores a status for the configured TTL.
func (c *MemoryCache) Set(_ context.Context, st Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[st.Mint] = cacheEntry{status: st, expiresAt: c.now().Add(c.ttl)}
	c.evictExpiredLocked()
	return nil
}

// Invalidate drops the cached status of a mint.
func (c *MemoryCache) Invalidate(_ context.Context, mint solana.PublicKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, mint)
	return nil
}

func (c *MemoryCache) evictExpiredLocked() {
	now := c.now()
	for mint, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, mint)
		}
	}
}
