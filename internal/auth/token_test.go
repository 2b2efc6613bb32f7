package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dangerclosesec/assessly/internal/cache"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(clock *testClock, opts ...TokenOption) *TokenManager {
	opts = append([]TokenOption{WithTokenClock(clock.Now)}, opts...)
	return NewTokenManager("test-secret", "assessly-test", time.Hour, opts...)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	tm := newTestManager(clock)
	ctx := context.Background()

	for _, role := range []model.Role{model.RoleAdmin, model.RoleManager, model.RoleEmployee} {
		userID := uuid.New()

		token, issued, err := tm.Issue(userID, role)
		require.NoError(t, err)
		assert.Equal(t, clock.now.Add(time.Hour), issued.ExpiresAt)

		session, err := tm.Decode(ctx, token)
		require.NoError(t, err, role)
		assert.Equal(t, userID, session.UserID)
		assert.Equal(t, role, session.Role)
		assert.Equal(t, issued.TokenID, session.TokenID)
		assert.True(t, issued.ExpiresAt.Equal(session.ExpiresAt))
	}
}

func TestTokenManager_Expiry(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	tm := newTestManager(clock)
	ctx := context.Background()

	token, _, err := tm.Issue(uuid.New(), model.RoleEmployee)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = tm.Decode(ctx, token)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = tm.Decode(ctx, token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestTokenManager_Invalid(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	tm := newTestManager(clock)
	ctx := context.Background()

	token, _, err := tm.Issue(uuid.New(), model.RoleAdmin)
	require.NoError(t, err)

	other := NewTokenManager("other-secret", "assessly-test", time.Hour, WithTokenClock(clock.Now))
	foreign, _, err := other.Issue(uuid.New(), model.RoleAdmin)
	require.NoError(t, err)

	otherIssuer := NewTokenManager("test-secret", "someone-else", time.Hour, WithTokenClock(clock.Now))
	wrongIssuer, _, err := otherIssuer.Issue(uuid.New(), model.RoleAdmin)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"tampered":     token[:len(token)-2] + "xx",
		"wrong secret": foreign,
		"wrong issuer": wrongIssuer,
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tm.Decode(ctx, tok)
			assert.ErrorIs(t, err, domain.ErrTokenInvalid)
		})
	}
}

func TestTokenManager_RejectsBadClaims(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	tm := newTestManager(clock)

	sign := func(claims Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return s
	}
	base := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    "assessly-test",
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}

	badRole := Claims{Role: "OWNER", RegisteredClaims: base}
	_, err := tm.Decode(context.Background(), sign(badRole))
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	badSubject := Claims{Role: model.RoleAdmin, RegisteredClaims: base}
	badSubject.Subject = "admin"
	_, err = tm.Decode(context.Background(), sign(badSubject))
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	noExpiry := Claims{Role: model.RoleAdmin, RegisteredClaims: base}
	noExpiry.ExpiresAt = nil
	_, err = tm.Decode(context.Background(), sign(noExpiry))
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: model.RoleAdmin, RegisteredClaims: base}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.Decode(context.Background(), unsigned)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestTokenManager_IssueValidatesInput(t *testing.T) {
	tm := NewTokenManager("s", "i", time.Hour)

	_, _, err := tm.Issue(uuid.Nil, model.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = tm.Issue(uuid.New(), model.Role("ROOT"))
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestTokenManager_Revocation(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := cache.NewInMemoryCache(0, cache.WithClock(clock.Now))
	tm := newTestManager(clock, WithRevocationList(NewCacheRevocationList(store, clock.Now)))
	ctx := context.Background()

	token, _, err := tm.Issue(uuid.New(), model.RoleManager)
	require.NoError(t, err)

	session, err := tm.Decode(ctx, token)
	require.NoError(t, err)

	revoked, err := tm.Revoke(ctx, session)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = tm.Decode(ctx, token)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)

	// Other tokens for the same user are unaffected.
	fresh, _, err := tm.Issue(session.UserID, model.RoleManager)
	require.NoError(t, err)
	_, err = tm.Decode(ctx, fresh)
	assert.NoError(t, err)
}

func TestTokenManager_RevokeWithoutList(t *testing.T) {
	tm := NewTokenManager("s", "i", time.Hour)
	revoked, err := tm.Revoke(context.Background(), &Session{TokenID: "x"})
	require.NoError(t, err)
	assert.False(t, revoked)
}

type failingList struct{}

func (failingList) Revoke(context.Context, string, time.Time) error { return errors.New("down") }
func (failingList) IsRevoked(context.Context, string) (bool, error) { return false, errors.New("down") }

func TestTokenManager_RevocationListFailure(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	tm := newTestManager(clock, WithRevocationList(failingList{}))

	token, _, err := tm.Issue(uuid.New(), model.RoleEmployee)
	require.NoError(t, err)

	_, err = tm.Decode(context.Background(), token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTokenInvalid)
	assert.True(t, domain.IsInfrastructure(err))
}
