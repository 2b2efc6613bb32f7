// internal/auth/revocation.go
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dangerclosesec/assessly/internal/cache"
	"github.com/dangerclosesec/assessly/internal/domain"
)

// RevocationList records token ids that must be rejected before their
// natural expiry.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revocationPrefix = "revoked:"

// CacheRevocationList stores revoked token ids in a cache.Cache. Each entry
// lives exactly as long as the token it blocks.
type CacheRevocationList struct {
	cache cache.Cache
	now   func() time.Time
}

func NewCacheRevocationList(c cache.Cache, now func() time.Time) *CacheRevocationList {
	if now == nil {
		now = time.Now
	}
	return &CacheRevocationList{cache: c, now: now}
}

func (l *CacheRevocationList) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return domain.ErrInvalidInput
	}
	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	return l.cache.Set(ctx, revocationPrefix+tokenID, []byte{1}, ttl)
}

func (l *CacheRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := l.cache.Get(ctx, revocationPrefix+tokenID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrCacheMiss) {
		return false, nil
	}
	return false, err
}
