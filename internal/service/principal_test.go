package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type brokenCache struct{ sets int }

func (b *brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("redis: connection pool timeout")
}

func (b *brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	b.sets++
	return errors.New("redis: connection pool timeout")
}

func (b *brokenCache) Delete(context.Context, ...string) error {
	return errors.New("redis: connection pool timeout")
}

func TestPrincipalCache_ReadThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, orgID, teamID := uuid.New(), uuid.New(), uuid.New()

	f.users.EXPECT().FindByID(gomock.Any(), userID).Return(&model.User{ID: userID, Role: model.RoleEmployee}, nil).Times(1)
	f.memberships.EXPECT().FindByUser(gomock.Any(), userID).
		Return(&model.Membership{UserID: userID, OrganizationID: orgID, TeamID: &teamID}, nil).Times(1)

	notAfter := time.Now().Add(time.Hour)
	first, err := f.principals.Lookup(ctx, userID, notAfter)
	require.NoError(t, err)
	second, err := f.principals.Lookup(ctx, userID, notAfter)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, &orgID, second.OrganizationID)
	assert.Equal(t, &teamID, second.TeamID)
}

func TestPrincipalCache_DegradesToStore(t *testing.T) {
	f := newFixture(t)
	broken := &brokenCache{}
	principals := NewPrincipalCache(broken, f.users, f.memberships, PrincipalCacheConfig{TTL: time.Minute})
	userID := uuid.New()

	f.users.EXPECT().FindByID(gomock.Any(), userID).Return(&model.User{ID: userID, Role: model.RoleAdmin}, nil).Times(2)
	f.memberships.EXPECT().FindByUser(gomock.Any(), userID).Return(nil, domain.ErrMembershipNotFound).Times(2)

	for i := 0; i < 2; i++ {
		info, err := principals.Lookup(context.Background(), userID, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, info.Role)
		assert.False(t, info.HasOrganization())
	}
	assert.Equal(t, 2, broken.sets)

	// Invalidation failures are logged, never surfaced.
	principals.Invalidate(context.Background(), userID)
}

func TestPrincipalCache_EntryNeverOutlivesToken(t *testing.T) {
	f := newFixture(t)
	broken := &brokenCache{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	principals := NewPrincipalCache(broken, f.users, f.memberships, PrincipalCacheConfig{
		TTL: time.Hour,
		Now: func() time.Time { return now },
	})
	userID := uuid.New()

	f.users.EXPECT().FindByID(gomock.Any(), userID).Return(&model.User{ID: userID, Role: model.RoleAdmin}, nil)
	f.memberships.EXPECT().FindByUser(gomock.Any(), userID).Return(nil, domain.ErrMembershipNotFound)

	// Token already expired: nothing is written.
	_, err := principals.Lookup(context.Background(), userID, now.Add(-time.Second))
	require.NoError(t, err)
	assert.Zero(t, broken.sets)
}

func TestPrincipalCache_StoreErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	f.users.EXPECT().FindByID(gomock.Any(), userID).Return(&model.User{ID: userID, Role: model.RoleEmployee}, nil)
	f.memberships.EXPECT().FindByUser(gomock.Any(), userID).Return(nil, errStoreDown)

	_, err := f.principals.Lookup(context.Background(), userID, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestPrincipalCache_ResetDropsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	notAfter := time.Now().Add(time.Hour)

	f.principals.Prime(ctx, &PrincipalInfo{UserID: userID, Role: model.RoleManager}, notAfter)
	f.principals.Reset()

	f.users.EXPECT().FindByID(gomock.Any(), userID).Return(&model.User{ID: userID, Role: model.RoleEmployee}, nil)
	f.memberships.EXPECT().FindByUser(gomock.Any(), userID).Return(nil, domain.ErrMembershipNotFound)

	info, err := f.principals.Lookup(ctx, userID, notAfter)
	require.NoError(t, err)
	assert.Equal(t, model.RoleEmployee, info.Role)
}

func TestDirectoryRoleResolver(t *testing.T) {
	f := newFixture(t)
	resolver := NewDirectoryRoleResolver(f.users)
	ctx := context.Background()
	known, missing, flaky := uuid.New(), uuid.New(), uuid.New()

	f.users.EXPECT().FindByID(gomock.Any(), known).Return(&model.User{ID: known, Role: model.RoleAdmin}, nil)
	f.users.EXPECT().FindByID(gomock.Any(), missing).Return(nil, domain.ErrUserNotFound)
	f.users.EXPECT().FindByID(gomock.Any(), flaky).Return(nil, errStoreDown)

	role, err := resolver.ResolveRole(ctx, known)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, role)

	_, err = resolver.ResolveRole(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = resolver.ResolveRole(ctx, flaky)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.True(t, domain.IsInfrastructure(err))
}
