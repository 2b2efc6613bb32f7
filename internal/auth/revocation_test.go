package auth

import (
	"context"
	"testing"
	"time"

	"github.com/dangerclosesec/assessly/internal/cache"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRevocationList(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := cache.NewInMemoryCache(0, cache.WithClock(clock.Now))
	list := NewCacheRevocationList(store, clock.Now)
	ctx := context.Background()

	require.NoError(t, list.Revoke(ctx, "jti-1", clock.now.Add(10*time.Minute)))

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = list.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	// The entry disappears once the token would have expired anyway.
	clock.Advance(10 * time.Minute)
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestCacheRevocationList_AlreadyExpired(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := cache.NewInMemoryCache(0, cache.WithClock(clock.Now))
	list := NewCacheRevocationList(store, clock.Now)

	require.NoError(t, list.Revoke(context.Background(), "old", clock.now.Add(-time.Second)))
	assert.Equal(t, 0, store.Len())

	assert.ErrorIs(t, list.Revoke(context.Background(), "", clock.now.Add(time.Hour)), domain.ErrInvalidInput)
}
