package cache

import (
	"context"
	"sync"
	"time"

	"github.com/boxoffice/checkout/internal/domain"
)

type memoryEntry struct {
	value     domain.FinancialBreakdown
	expiresAt time.Time
}

// MemoryBreakdownCache is a process-local TTL cache.
type MemoryBreakdownCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

// MemoryOption customises the memory cache.
type MemoryOption func(*MemoryBreakdownCache)

// WithMemoryClock overrides the clock used for expiry.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(c *MemoryBreakdownCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func NewMemoryBreakdownCache(opts ...MemoryOption) *MemoryBreakdownCache {
	c := &MemoryBreakdownCache{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryBreakdownCache) Get(ctx context.Context, key string) (domain.FinancialBreakdown, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.FinancialBreakdown{}, false, err
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return domain.FinancialBreakdown{}, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.clock().Before(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return domain.FinancialBreakdown{}, false, nil
	}
	return cloneBreakdown(entry.value), true, nil
}

// Set stores value; a zero ttl keeps the entry until it is overwritten. Every
// write also drops entries that have expired, so keys that are never read
// again do not accumulate.
func (c *MemoryBreakdownCache) Set(ctx context.Context, key string, value domain.FinancialBreakdown, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := c.clock()
	entry := memoryEntry{value: cloneBreakdown(value)}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.mu.Lock()
	c.pruneExpiredLocked(now)
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryBreakdownCache) pruneExpiredLocked(now time.Time) {
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// cloneBreakdown detaches the VAT slice so callers cannot reach stored state.
func cloneBreakdown(b domain.FinancialBreakdown) domain.FinancialBreakdown {
	if b.VATBreakdown != nil {
		b.VATBreakdown = append([]domain.VATBucket(nil), b.VATBreakdown...)
	}
	return b
}

// Len returns the number of stored entries. Entries that expired since the
// last write are still counted.
func (c *MemoryBreakdownCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
