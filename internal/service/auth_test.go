package service

import (
	"context"
	"testing"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_LoginPrimesPrincipalCache(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.verifier, f.tokens, f.users, f.principals)
	acme := org("ACME")
	user := f.user(t, model.RoleEmployee, "good password")
	membership := &model.Membership{ID: uuid.New(), UserID: user.ID, OrganizationID: acme.ID}

	f.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(user, nil)
	f.orgs.EXPECT().FindByCode(gomock.Any(), "ACME").Return(acme, nil)
	f.memberships.EXPECT().FindByUser(gomock.Any(), user.ID).Return(membership, nil)

	out, err := svc.Login(context.Background(), LoginInput{Email: user.Email, Password: "good password", OrganizationCode: "ACME"})
	require.NoError(t, err)
	assert.True(t, out.NeedsTeam)
	assert.NotEmpty(t, out.Token)

	// Served from the cache: no further store expectations.
	info, err := f.principals.Lookup(context.Background(), user.ID, out.ExpiresAt)
	require.NoError(t, err)
	require.NotNil(t, info.OrganizationID)
	assert.Equal(t, acme.ID, *info.OrganizationID)
	assert.Nil(t, info.TeamID)
}

func TestAuthService_LoginAdminNeverNeedsTeam(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.verifier, f.tokens, f.users, f.principals)
	user := f.user(t, model.RoleAdmin, "good password")
	f.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(user, nil)

	out, err := svc.Login(context.Background(), LoginInput{Email: user.Email, Password: "good password"})
	require.NoError(t, err)
	assert.False(t, out.NeedsTeam)
	assert.Nil(t, out.Membership)
}

func TestAuthService_LoginRejectsMalformedInput(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.verifier, f.tokens, f.users, f.principals)

	_, err := svc.Login(context.Background(), LoginInput{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAuthService_LogoutToken(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.verifier, f.tokens, f.users, f.principals)
	ctx := context.Background()

	revoked, err := svc.LogoutToken(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = svc.LogoutToken(ctx, "garbage")
	require.NoError(t, err)
	assert.False(t, revoked)

	token, _, err := f.tokens.Issue(uuid.New(), model.RoleEmployee)
	require.NoError(t, err)

	revoked, err = svc.LogoutToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = f.tokens.Decode(ctx, token)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)

	// A second logout with the same token has nothing left to revoke.
	revoked, err = svc.LogoutToken(ctx, token)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestAuthService_CurrentRoleReadsStore(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.verifier, f.tokens, f.users, f.principals)
	userID := uuid.New()

	token, _, err := f.tokens.Issue(userID, model.RoleManager)
	require.NoError(t, err)
	f.users.EXPECT().FindByID(gomock.Any(), userID).Return(&model.User{ID: userID, Role: model.RoleEmployee}, nil)

	out, err := svc.CurrentRole(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleEmployee, out.Role)
	assert.Equal(t, userID.String(), out.UserID)
}

func TestAuthService_CurrentRoleBadToken(t *testing.T) {
	f := newFixture(t)
	svc := NewAuthService(f.verifier, f.tokens, f.users, f.principals)

	_, err := svc.CurrentRole(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}
