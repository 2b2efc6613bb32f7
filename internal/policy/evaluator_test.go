package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dangerclosesec/assessly/internal/auth"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeResolver struct {
	roles map[uuid.UUID]model.Role
	err   error
	calls int
}

func (f *fakeResolver) ResolveRole(_ context.Context, id uuid.UUID) (model.Role, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	role, ok := f.roles[id]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return role, nil
}

type fixture struct {
	clock    *clock
	tokens   *auth.TokenManager
	resolver *fakeResolver
	eval     *Evaluator
}

func newFixture(mode FailureMode) *fixture {
	c := &clock{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	tokens := auth.NewTokenManager("secret", "assessly", time.Hour, auth.WithTokenClock(c.Now))
	resolver := &fakeResolver{roles: map[uuid.UUID]model.Role{}}
	eval := NewEvaluator(tokens, resolver, Config{
		Routes:        DefaultRouteTable(),
		FailureMode:   mode,
		FailOpenGrace: 2 * time.Minute,
		LoginPath:     "/login",
		HomePath:      "/dashboard",
	}, WithClock(c.Now))
	return &fixture{clock: c, tokens: tokens, resolver: resolver, eval: eval}
}

func (f *fixture) issue(t *testing.T, role model.Role) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	f.resolver.roles[id] = role
	token, _, err := f.tokens.Issue(id, role)
	require.NoError(t, err)
	return id, token
}

func TestEvaluate_PublicRoutePassesUntouched(t *testing.T) {
	f := newFixture(FailOpen)

	d := f.eval.Evaluate(context.Background(), "/login", "")
	assert.Equal(t, OutcomeAllow, d.Outcome)
	assert.Equal(t, ClassPublic, d.Class)
	assert.Nil(t, d.Principal)
	assert.Zero(t, f.resolver.calls)
}

func TestEvaluate_MissingToken(t *testing.T) {
	f := newFixture(FailOpen)

	for _, path := range []string{"/dashboard", "/admin/users", "/api/manager/team"} {
		d := f.eval.Evaluate(context.Background(), path, "")
		assert.Equal(t, OutcomeDeny, d.Outcome, path)
		assert.Equal(t, StateDenied, d.State, path)
		assert.Equal(t, "/login", d.Redirect, path)
		assert.Equal(t, ReasonMissingToken, d.Reason, path)
	}
}

func TestEvaluate_InvalidAndExpiredTokens(t *testing.T) {
	f := newFixture(FailOpen)
	_, token := f.issue(t, model.RoleEmployee)

	d := f.eval.Evaluate(context.Background(), "/dashboard", "garbage")
	assert.Equal(t, OutcomeDeny, d.Outcome)
	assert.Equal(t, ReasonInvalidToken, d.Reason)
	assert.Equal(t, "/login", d.Redirect)

	f.clock.Advance(2 * time.Hour)
	d = f.eval.Evaluate(context.Background(), "/dashboard", token)
	assert.Equal(t, OutcomeDeny, d.Outcome)
	assert.Equal(t, ReasonExpiredToken, d.Reason)
}

func TestEvaluate_NonPrivilegedTrustsTokenRole(t *testing.T) {
	f := newFixture(FailOpen)
	id, token := f.issue(t, model.RoleEmployee)

	d := f.eval.Evaluate(context.Background(), "/dashboard", token)
	require.Equal(t, OutcomeAllow, d.Outcome)
	assert.Equal(t, StateAuthorized, d.State)
	assert.Equal(t, id, d.Principal.UserID)
	assert.Equal(t, model.RoleEmployee, d.Principal.Role)
	assert.False(t, d.Principal.Authoritative)
	assert.Zero(t, f.resolver.calls)
}

func TestEvaluate_PrivilegedMatch(t *testing.T) {
	f := newFixture(FailOpen)
	_, adminToken := f.issue(t, model.RoleAdmin)
	_, managerToken := f.issue(t, model.RoleManager)

	d := f.eval.Evaluate(context.Background(), "/api/admin/users", adminToken)
	assert.Equal(t, OutcomeAllow, d.Outcome)
	assert.True(t, d.Principal.Authoritative)

	d = f.eval.Evaluate(context.Background(), "/manager", managerToken)
	assert.Equal(t, OutcomeAllow, d.Outcome)
	assert.Equal(t, ReasonRoleMatch, d.Reason)
}

func TestEvaluate_StaleManagerTokenDenied(t *testing.T) {
	f := newFixture(FailOpen)
	id, token := f.issue(t, model.RoleManager)

	// Demoted after the token was issued.
	f.resolver.roles[id] = model.RoleEmployee

	d := f.eval.Evaluate(context.Background(), "/manager/reports", token)
	assert.Equal(t, OutcomeDeny, d.Outcome)
	assert.Equal(t, StateDenied, d.State)
	assert.Equal(t, "/dashboard", d.Redirect)
	assert.Equal(t, ReasonRoleMismatch, d.Reason)
	assert.Equal(t, model.RoleEmployee, d.Principal.Role)
	assert.Equal(t, model.RoleManager, d.Principal.TokenRole)
}

func TestEvaluate_PromotedUserAllowed(t *testing.T) {
	f := newFixture(FailOpen)
	id, token := f.issue(t, model.RoleEmployee)
	f.resolver.roles[id] = model.RoleAdmin

	d := f.eval.Evaluate(context.Background(), "/admin", token)
	assert.Equal(t, OutcomeAllow, d.Outcome)
	assert.Equal(t, model.RoleAdmin, d.Principal.Role)
}

func TestEvaluate_WrongRoleForClass(t *testing.T) {
	f := newFixture(FailOpen)
	_, adminToken := f.issue(t, model.RoleAdmin)
	_, employeeToken := f.issue(t, model.RoleEmployee)

	// Admins do not implicitly hold manager routes.
	d := f.eval.Evaluate(context.Background(), "/api/manager/team", adminToken)
	assert.Equal(t, OutcomeDeny, d.Outcome)

	d = f.eval.Evaluate(context.Background(), "/admin", employeeToken)
	assert.Equal(t, OutcomeDeny, d.Outcome)
	assert.Equal(t, "/dashboard", d.Redirect)
}

func TestEvaluate_DeletedUser(t *testing.T) {
	f := newFixture(FailOpen)
	id, token := f.issue(t, model.RoleAdmin)
	delete(f.resolver.roles, id)

	d := f.eval.Evaluate(context.Background(), "/admin", token)
	assert.Equal(t, OutcomeDeny, d.Outcome)
	assert.Equal(t, ReasonUnknownUser, d.Reason)
	assert.Equal(t, "/login", d.Redirect)
}

func TestEvaluate_FailOpenWithinGrace(t *testing.T) {
	f := newFixture(FailOpen)
	_, token := f.issue(t, model.RoleAdmin)
	f.resolver.err = errors.New("connection refused")

	d := f.eval.Evaluate(context.Background(), "/admin", token)
	assert.Equal(t, OutcomeFailOpen, d.Outcome)
	assert.True(t, d.Allowed())
	assert.Equal(t, StateTokenValid, d.State)
	assert.False(t, d.Principal.Authoritative)
	assert.Equal(t, time.Duration(0), d.OutageAge)
	assert.Error(t, d.Err)

	f.clock.Advance(90 * time.Second)
	d = f.eval.Evaluate(context.Background(), "/admin", token)
	assert.Equal(t, OutcomeFailOpen, d.Outcome)
	assert.Equal(t, 90*time.Second, d.OutageAge)
}

func TestEvaluate_FailOpenBoundedByGrace(t *testing.T) {
	f := newFixture(FailOpen)
	_, token := f.issue(t, model.RoleAdmin)
	f.resolver.err = context.DeadlineExceeded

	d := f.eval.Evaluate(context.Background(), "/admin", token)
	require.Equal(t, OutcomeFailOpen, d.Outcome)

	f.clock.Advance(3 * time.Minute)
	d = f.eval.Evaluate(context.Background(), "/admin", token)
	assert.Equal(t, OutcomeDeny, d.Outcome)
	assert.Equal(t, ReasonGraceExceeded, d.Reason)
	assert.Equal(t, "/dashboard", d.Redirect)

	// A successful lookup resets the outage window.
	f.resolver.err = nil
	d = f.eval.Evaluate(context.Background(), "/admin", token)
	require.Equal(t, OutcomeAllow, d.Outcome)

	f.resolver.err = errors.New("down again")
	d = f.eval.Evaluate(context.Background(), "/admin", token)
	assert.Equal(t, OutcomeFailOpen, d.Outcome)
	assert.Equal(t, time.Duration(0), d.OutageAge)
}

func TestEvaluate_FailOpenNeedsClaimedRole(t *testing.T) {
	f := newFixture(FailOpen)
	_, token := f.issue(t, model.RoleEmployee)
	f.resolver.err = errors.New("down")

	d := f.eval.Evaluate(context.Background(), "/admin", token)
	assert.Equal(t, OutcomeDeny, d.Outcome)
	assert.Equal(t, "/dashboard", d.Redirect)
}

func TestEvaluate_FailClosed(t *testing.T) {
	f := newFixture(FailClosed)
	_, token := f.issue(t, model.RoleAdmin)
	f.resolver.err = errors.New("down")

	d := f.eval.Evaluate(context.Background(), "/admin", token)
	assert.Equal(t, OutcomeDeny, d.Outcome)
	assert.Equal(t, ReasonStoreFailClosed, d.Reason)
	// Same client-visible redirect as a plain role mismatch.
	assert.Equal(t, "/dashboard", d.Redirect)
}

func TestParseFailureMode(t *testing.T) {
	mode, err := ParseFailureMode("closed")
	require.NoError(t, err)
	assert.Equal(t, FailClosed, mode)

	_, err = ParseFailureMode("sometimes")
	assert.Error(t, err)
}
