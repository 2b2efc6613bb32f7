// internal/cache/memory.go
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dangerclosesec/assessly/internal/domain"
)

type item struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryCache is a process-local Cache. Expired entries are never returned
// and are removed by a periodic cleanup loop.
type InMemoryCache struct {
	mu          sync.RWMutex
	items       map[string]item
	now         func() time.Time
	cleanupFreq time.Duration
	stopChan    chan struct{}
	stoppedChan chan struct{}
	stopOnce    sync.Once
}

// MemoryOption configures an InMemoryCache.
type MemoryOption func(*InMemoryCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *InMemoryCache) { c.now = now }
}

func NewInMemoryCache(cleanupFreq time.Duration, opts ...MemoryOption) *InMemoryCache {
	c := &InMemoryCache{
		items:       make(map[string]item),
		now:         time.Now,
		cleanupFreq: cleanupFreq,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(it.expiresAt) {
		return nil, domain.ErrCacheMiss
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, nil
}

func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return domain.ErrInvalidInput
	}
	if ttl <= 0 {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.items[key] = item{value: stored, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.items, key)
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Cleanup drops every entry that has expired at now.
func (c *InMemoryCache) Cleanup() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for key, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	c.mu.Unlock()
	return removed
}

// StartCleanup runs Cleanup every cleanupFreq until ctx is done or
// StopCleanup is called.
func (c *InMemoryCache) StartCleanup(ctx context.Context) {
	if c.cleanupFreq <= 0 {
		close(c.stoppedChan)
		return
	}

	go func() {
		defer close(c.stoppedChan)

		ticker := time.NewTicker(c.cleanupFreq)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := c.Cleanup(); n > 0 {
					slog.Debug("Expired cache entries removed", "count", n)
				}
			case <-c.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopCleanup stops the cleanup loop and waits for it to exit.
func (c *InMemoryCache) StopCleanup() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	<-c.stoppedChan
}
