package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dangerclosesec/assessly/internal/auth"
	"github.com/dangerclosesec/assessly/internal/cache"
	"github.com/dangerclosesec/assessly/internal/mocks"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var errStoreDown = errors.New("dial tcp 10.0.0.5:5432: connection refused")

type fixture struct {
	users       *mocks.MockUserRepositoryIface
	orgs        *mocks.MockOrganizationRepositoryIface
	teams       *mocks.MockTeamRepositoryIface
	memberships *mocks.MockMembershipRepositoryIface
	tx          *mocks.MockTransactor
	reports     *mocks.MockReportStore
	results     *mocks.MockTestResultStore

	hasher     *auth.PasswordHasher
	tokens     *auth.TokenManager
	cache      *cache.InMemoryCache
	principals *PrincipalCache
	verifier   *CredentialVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		users:       mocks.NewMockUserRepositoryIface(ctrl),
		orgs:        mocks.NewMockOrganizationRepositoryIface(ctrl),
		teams:       mocks.NewMockTeamRepositoryIface(ctrl),
		memberships: mocks.NewMockMembershipRepositoryIface(ctrl),
		tx:          mocks.NewMockTransactor(ctrl),
		reports:     mocks.NewMockReportStore(ctrl),
		results:     mocks.NewMockTestResultStore(ctrl),
		hasher:      auth.NewPasswordHasher(),
		cache:       cache.NewInMemoryCache(time.Minute),
	}
	f.tokens = auth.NewTokenManager("service-secret", "assessly", time.Hour,
		auth.WithRevocationList(auth.NewCacheRevocationList(f.cache, nil)))
	f.principals = NewPrincipalCache(f.cache, f.users, f.memberships, PrincipalCacheConfig{TTL: time.Minute})
	f.verifier = NewCredentialVerifier(f.users, f.orgs, f.memberships, f.hasher)
	return f
}

// passThrough makes the mocked transactor run fn directly.
func (f *fixture) passThrough() {
	f.tx.EXPECT().WithinTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) })
}

func (f *fixture) user(t *testing.T, role model.Role, password string) *model.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	return &model.User{
		ID:           uuid.New(),
		Email:        "member@example.com",
		Name:         "Member",
		Role:         role,
		PasswordHash: hash,
	}
}

func org(code string) *model.Organization {
	return &model.Organization{ID: uuid.New(), Name: "Org " + code, Code: code}
}

func ptr[T any](v T) *T { return &v }
