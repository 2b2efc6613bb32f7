// internal/cache/cache.go
package cache

import (
	"context"
	"time"

	"github.com/dangerclosesec/assessly/internal/domain"
)

// Cache is a byte-oriented TTL cache. Implementations return
// domain.ErrCacheMiss for absent or expired keys. Entries are advisory;
// callers must be able to rebuild any value from the source of truth.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Nop never stores anything. Every Get misses.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, domain.ErrCacheMiss }

func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Nop) Delete(context.Context, ...string) error { return nil }
