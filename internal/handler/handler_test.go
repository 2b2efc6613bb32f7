package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dangerclosesec/assessly/internal/audit"
	"github.com/dangerclosesec/assessly/internal/auth"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/middleware"
	"github.com/dangerclosesec/assessly/internal/mocks"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/policy"
	"github.com/dangerclosesec/assessly/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testEnv struct {
	users       *mocks.MockUserRepositoryIface
	orgs        *mocks.MockOrganizationRepositoryIface
	teams       *mocks.MockTeamRepositoryIface
	memberships *mocks.MockMembershipRepositoryIface
	tx          *mocks.MockTransactor
	reports     *mocks.MockReportStore
	results     *mocks.MockTestResultStore
	audit       *loginAudit
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenManager

	authHandler       *AuthHandler
	onboardingHandler *OnboardingHandler
	adminHandler      *AdminHandler
	managerHandler    *ManagerHandler
	assessmentHandler *AssessmentHandler
}

type loginAudit struct {
	audit.NoOpLogger
	failures    []error
	roleChanges int
	orgDeletes  int
}

func (l *loginAudit) LogLoginFailure(_ context.Context, _ string, reason error, _ *http.Request) error {
	l.failures = append(l.failures, reason)
	return nil
}

func (l *loginAudit) LogRoleChange(context.Context, uuid.UUID, uuid.UUID, model.Role, model.Role, *http.Request) error {
	l.roleChanges++
	return nil
}

func (l *loginAudit) LogOrganizationDelete(context.Context, uuid.UUID, uuid.UUID, *http.Request) error {
	l.orgDeletes++
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	e := &testEnv{
		users:       mocks.NewMockUserRepositoryIface(ctrl),
		orgs:        mocks.NewMockOrganizationRepositoryIface(ctrl),
		teams:       mocks.NewMockTeamRepositoryIface(ctrl),
		memberships: mocks.NewMockMembershipRepositoryIface(ctrl),
		tx:          mocks.NewMockTransactor(ctrl),
		reports:     mocks.NewMockReportStore(ctrl),
		results:     mocks.NewMockTestResultStore(ctrl),
		audit:       &loginAudit{},
		hasher:      auth.NewPasswordHasher(),
		tokens:      auth.NewTokenManager("handler-secret", "assessly", time.Hour),
	}

	principals := service.NewPrincipalCache(nil, e.users, e.memberships, service.PrincipalCacheConfig{TTL: time.Minute})
	verifier := service.NewCredentialVerifier(e.users, e.orgs, e.memberships, e.hasher)
	authService := service.NewAuthService(verifier, e.tokens, e.users, principals)
	onboarding := service.NewOnboardingService(e.tx, e.users, e.teams, e.memberships, verifier, e.hasher, e.tokens, principals, nil,
		service.OnboardingConfig{BaseURL: "https://app.example.com", TeamSelectionPath: "/onboarding/team"})
	admin := service.NewAdminService(e.tx, e.users, e.orgs, e.teams, e.memberships, e.reports, verifier, e.hasher, principals)
	assessments := service.NewAssessmentService(e.results, e.reports, service.NewDirectoryRoleResolver(e.users))

	e.authHandler = NewAuthHandler(authService, onboarding, e.audit, AuthHandlerConfig{
		HomePath:          "/dashboard",
		TeamSelectionPath: "/onboarding/team",
	})
	e.onboardingHandler = NewOnboardingHandler(onboarding)
	e.adminHandler = NewAdminHandler(admin, e.audit)
	e.managerHandler = NewManagerHandler(admin)
	e.assessmentHandler = NewAssessmentHandler(assessments)
	return e
}

func (e *testEnv) user(t *testing.T, role model.Role, password string) *model.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	return &model.User{ID: uuid.New(), Email: "person@example.com", Name: "Person", Role: role, PasswordHash: hash}
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func as(req *http.Request, id uuid.UUID, role model.Role) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), &policy.Principal{
		UserID: id, Role: role, TokenRole: role, Authoritative: true,
	}))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLoginHandler_EmployeeWithoutTeam(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, model.RoleEmployee, "correct horse")
	org := &model.Organization{ID: uuid.New(), Name: "Tech", Code: "TECH01"}

	e.users.EXPECT().FindByEmail(gomock.Any(), "person@example.com").Return(user, nil)
	e.orgs.EXPECT().FindByCode(gomock.Any(), "tech01").Return(org, nil)
	e.memberships.EXPECT().FindByUser(gomock.Any(), user.ID).Return(&model.Membership{UserID: user.ID, OrganizationID: org.ID}, nil)

	rec := httptest.NewRecorder()
	e.authHandler.LoginHandler(rec, jsonRequest(http.MethodPost, "/api/auth/login", service.LoginInput{
		Email: "person@example.com", Password: "correct horse", OrganizationCode: "tech01",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "/onboarding/team", body["redirect"])
	assert.NotEmpty(t, body["token"])
	assert.NotContains(t, body["user"], "PasswordHash")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookieName, cookies[0].Name)

	session, err := e.tokens.Decode(context.Background(), cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
}

func TestLoginHandler_AdminIgnoresCode(t *testing.T) {
	e := newTestEnv(t)
	user := e.user(t, model.RoleAdmin, "admin password")
	e.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(user, nil)

	rec := httptest.NewRecorder()
	e.authHandler.LoginHandler(rec, jsonRequest(http.MethodPost, "/api/auth/login", service.LoginInput{
		Email: "person@example.com", Password: "admin password",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/dashboard", decodeBody(t, rec)["redirect"])
}

func TestLoginHandler_FailureMessages(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(e *testEnv, user *model.User)
		input   service.LoginInput
		message string
		reason  error
	}{
		{
			name: "wrong password",
			setup: func(e *testEnv, user *model.User) {
				e.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(user, nil)
			},
			input:   service.LoginInput{Email: "person@example.com", Password: "wrong", OrganizationCode: "TECH01"},
			message: "Invalid email or password",
			reason:  domain.ErrInvalidCredentials,
		},
		{
			name: "unknown email",
			setup: func(e *testEnv, _ *model.User) {
				e.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, domain.ErrUserNotFound)
			},
			input:   service.LoginInput{Email: "nobody@example.com", Password: "whatever"},
			message: "Invalid email or password",
			reason:  domain.ErrInvalidCredentials,
		},
		{
			name: "missing code",
			setup: func(e *testEnv, user *model.User) {
				e.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(user, nil)
			},
			input:   service.LoginInput{Email: "person@example.com", Password: "correct horse"},
			message: "Invalid organization code",
			reason:  domain.ErrOrganizationCodeRequired,
		},
		{
			name: "other tenant",
			setup: func(e *testEnv, user *model.User) {
				e.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(user, nil)
				e.orgs.EXPECT().FindByCode(gomock.Any(), "OTHER1").Return(&model.Organization{ID: uuid.New()}, nil)
				e.memberships.EXPECT().FindByUser(gomock.Any(), user.ID).Return(&model.Membership{UserID: user.ID, OrganizationID: uuid.New()}, nil)
			},
			input:   service.LoginInput{Email: "person@example.com", Password: "correct horse", OrganizationCode: "OTHER1"},
			message: "Invalid organization code",
			reason:  domain.ErrOrganizationMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			user := e.user(t, model.RoleEmployee, "correct horse")
			tt.setup(e, user)

			rec := httptest.NewRecorder()
			e.authHandler.LoginHandler(rec, jsonRequest(http.MethodPost, "/api/auth/login", tt.input))

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.message, decodeBody(t, rec)["error"])
			assert.Empty(t, rec.Result().Cookies())
			require.Len(t, e.audit.failures, 1)
			assert.ErrorIs(t, e.audit.failures[0], tt.reason)
		})
	}
}

func TestLoginHandler_BadPayload(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	e.authHandler.LoginHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginHandler_StoreFailure(t *testing.T) {
	e := newTestEnv(t)
	e.users.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	rec := httptest.NewRecorder()
	e.authHandler.LoginHandler(rec, jsonRequest(http.MethodPost, "/api/auth/login", service.LoginInput{
		Email: "person@example.com", Password: "pw",
	}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, e.audit.failures)
}

func TestLogoutHandler_ClearsCookie(t *testing.T) {
	e := newTestEnv(t)
	token, _, err := e.tokens.Issue(uuid.New(), model.RoleEmployee)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	e.authHandler.LogoutHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, false, decodeBody(t, rec)["revoked"])
}

func TestCurrentRoleHandler(t *testing.T) {
	e := newTestEnv(t)
	id := uuid.New()
	token, _, err := e.tokens.Issue(id, model.RoleManager)
	require.NoError(t, err)

	// Demoted since the token was issued.
	e.users.EXPECT().FindByID(gomock.Any(), id).Return(&model.User{ID: id, Role: model.RoleEmployee}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/current-role", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.authHandler.CurrentRoleHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EMPLOYEE", decodeBody(t, rec)["role"])

	rec = httptest.NewRecorder()
	e.authHandler.CurrentRoleHandler(rec, httptest.NewRequest(http.MethodGet, "/api/auth/current-role", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentRoleHandler_StoreUnavailable(t *testing.T) {
	e := newTestEnv(t)
	id := uuid.New()
	token, _, err := e.tokens.Issue(id, model.RoleAdmin)
	require.NoError(t, err)
	e.users.EXPECT().FindByID(gomock.Any(), id).Return(nil, errors.New("timeout"))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/current-role", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.authHandler.CurrentRoleHandler(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRegisterHandler_InvalidCode(t *testing.T) {
	e := newTestEnv(t)
	e.orgs.EXPECT().FindByCode(gomock.Any(), "NOPE").Return(nil, domain.ErrOrganizationNotFound)

	rec := httptest.NewRecorder()
	e.authHandler.RegisterHandler(rec, jsonRequest(http.MethodPost, "/api/auth/register", service.RegisterInput{
		Name: "New", Email: "new@example.com", Password: "long enough", OrganizationCode: "NOPE",
	}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid organization code", decodeBody(t, rec)["error"])
}

func TestRegisterHandler_DuplicateEmail(t *testing.T) {
	e := newTestEnv(t)
	org := &model.Organization{ID: uuid.New(), Name: "Tech", Code: "TECH01"}
	e.orgs.EXPECT().FindByCode(gomock.Any(), "TECH01").Return(org, nil)
	e.tx.EXPECT().WithinTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) })
	e.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(domain.ErrEmailAlreadyRegistered)

	rec := httptest.NewRecorder()
	e.authHandler.RegisterHandler(rec, jsonRequest(http.MethodPost, "/api/auth/register", service.RegisterInput{
		Name: "New", Email: "dup@example.com", Password: "long enough", OrganizationCode: "TECH01",
	}))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSelectTeam_CrossTenantRejected(t *testing.T) {
	e := newTestEnv(t)
	userID := uuid.New()
	membership := &model.Membership{ID: uuid.New(), UserID: userID, OrganizationID: uuid.New()}
	foreign := &model.Team{ID: uuid.New(), OrganizationID: uuid.New()}

	e.memberships.EXPECT().FindByUser(gomock.Any(), userID).Return(membership, nil)
	e.teams.EXPECT().FindByID(gomock.Any(), foreign.ID).Return(foreign, nil)

	rec := httptest.NewRecorder()
	req := as(jsonRequest(http.MethodPut, "/api/onboarding/team", service.SelectTeamInput{TeamID: foreign.ID.String()}), userID, model.RoleEmployee)
	e.onboardingHandler.SelectTeam(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, membership.TeamID)
}

func TestOnboardingHandlers_RequirePrincipal(t *testing.T) {
	e := newTestEnv(t)
	rec := httptest.NewRecorder()
	e.onboardingHandler.Status(rec, httptest.NewRequest(http.MethodGet, "/api/onboarding/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteOrganization(t *testing.T) {
	e := newTestEnv(t)
	adminID := uuid.New()
	empty, busy := uuid.New(), uuid.New()

	e.orgs.EXPECT().Delete(gomock.Any(), empty).Return(nil)
	e.orgs.EXPECT().Delete(gomock.Any(), busy).Return(domain.ErrOrganizationHasMembers)

	r := chi.NewRouter()
	r.Delete("/api/admin/organizations/{id}", e.adminHandler.DeleteOrganization)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, as(httptest.NewRequest(http.MethodDelete, "/api/admin/organizations/"+empty.String(), nil), adminID, model.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, e.audit.orgDeletes)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, as(httptest.NewRequest(http.MethodDelete, "/api/admin/organizations/"+busy.String(), nil), adminID, model.RoleAdmin))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, e.audit.orgDeletes)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, as(httptest.NewRequest(http.MethodDelete, "/api/admin/organizations/not-a-uuid", nil), adminID, model.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUser_DependentsConflict(t *testing.T) {
	e := newTestEnv(t)
	adminID := uuid.New()
	target := &model.User{ID: uuid.New(), Role: model.RoleEmployee}

	e.users.EXPECT().FindByID(gomock.Any(), target.ID).Return(target, nil)
	e.memberships.EXPECT().FindByUser(gomock.Any(), target.ID).Return(nil, domain.ErrMembershipNotFound)
	e.teams.EXPECT().CountByManager(gomock.Any(), target.ID).Return(int64(0), nil)
	e.reports.EXPECT().CountByOwner(gomock.Any(), target.ID).Return(int64(0), nil)
	e.users.EXPECT().Delete(gomock.Any(), target.ID).Return(domain.ErrUserHasDependents)

	r := chi.NewRouter()
	r.Delete("/api/admin/users/{id}", e.adminHandler.DeleteUser)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, as(httptest.NewRequest(http.MethodDelete, "/api/admin/users/"+target.ID.String(), nil), adminID, model.RoleAdmin))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User still has dependent records", decodeBody(t, rec)["error"])
}

func TestChangeRole_Audited(t *testing.T) {
	e := newTestEnv(t)
	adminID := uuid.New()
	target := &model.User{ID: uuid.New(), Role: model.RoleManager}

	e.users.EXPECT().FindByID(gomock.Any(), target.ID).Return(target, nil)
	e.users.EXPECT().UpdateRole(gomock.Any(), target.ID, model.RoleEmployee).Return(nil)

	r := chi.NewRouter()
	r.Put("/api/admin/users/{id}/role", e.adminHandler.ChangeRole)

	rec := httptest.NewRecorder()
	req := as(jsonRequest(http.MethodPut, "/api/admin/users/"+target.ID.String()+"/role", service.ChangeRoleInput{Role: "employee"}), adminID, model.RoleAdmin)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "MANAGER", body["previous"])
	assert.Equal(t, "EMPLOYEE", body["role"])
	assert.Equal(t, 1, e.audit.roleChanges)
}

func TestChangeRole_SelfRejected(t *testing.T) {
	e := newTestEnv(t)
	adminID := uuid.New()

	r := chi.NewRouter()
	r.Put("/api/admin/users/{id}/role", e.adminHandler.ChangeRole)

	rec := httptest.NewRecorder()
	req := as(jsonRequest(http.MethodPut, "/api/admin/users/"+adminID.String()+"/role", service.ChangeRoleInput{Role: "EMPLOYEE"}), adminID, model.RoleAdmin)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, e.audit.roleChanges)
}

func TestListUsers_ProjectsForAdmin(t *testing.T) {
	e := newTestEnv(t)
	users := []*model.User{{ID: uuid.New(), Email: "a@example.com", Name: "A", Role: model.RoleEmployee, PasswordHash: "h"}}
	e.users.EXPECT().FindAllPaginated(gomock.Any(), 10, 5).Return(users, int64(11), nil)

	rec := httptest.NewRecorder()
	e.adminHandler.ListUsers(rec, as(httptest.NewRequest(http.MethodGet, "/api/admin/users?offset=10&limit=5", nil), uuid.New(), model.RoleAdmin))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a@example.com")
	assert.NotContains(t, rec.Body.String(), `"h"`)
	assert.EqualValues(t, 11, decodeBody(t, rec)["total"])
}

func TestManagerTeam(t *testing.T) {
	e := newTestEnv(t)
	managerID := uuid.New()
	team := &model.Team{ID: uuid.New(), Name: "Blue", ManagerID: &managerID}
	member := model.User{ID: uuid.New(), Email: "m@example.com", Name: "Member", Role: model.RoleEmployee}

	e.teams.EXPECT().FindByManager(gomock.Any(), managerID).Return([]*model.Team{team}, nil)
	e.memberships.EXPECT().FindByTeam(gomock.Any(), team.ID).Return([]*model.Membership{{UserID: member.ID, User: member}}, nil)

	rec := httptest.NewRecorder()
	e.managerHandler.Team(rec, as(httptest.NewRequest(http.MethodGet, "/api/manager/team", nil), managerID, model.RoleManager))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Teams []ManagedTeamResponse `json:"teams"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Teams, 1)
	require.Len(t, body.Teams[0].Members, 1)
	assert.Equal(t, "m@example.com", body.Teams[0].Members[0]["email"])
	assert.NotContains(t, body.Teams[0].Members[0], "created_at")
}

func TestGetReport(t *testing.T) {
	e := newTestEnv(t)
	owner, stranger := uuid.New(), uuid.New()
	reportID := uuid.New()

	e.reports.EXPECT().OwnerOf(gomock.Any(), reportID).Return(owner, nil).Times(2)
	e.reports.EXPECT().Get(gomock.Any(), reportID).Return(&model.Report{ID: reportID, OwnerID: owner}, nil)
	e.users.EXPECT().FindByID(gomock.Any(), stranger).Return(&model.User{ID: stranger, Role: model.RoleManager}, nil)

	r := chi.NewRouter()
	r.Get("/api/reports/{id}", e.assessmentHandler.GetReport)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, as(httptest.NewRequest(http.MethodGet, "/api/reports/"+reportID.String(), nil), owner, model.RoleEmployee))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, as(httptest.NewRequest(http.MethodGet, "/api/reports/"+reportID.String(), nil), stranger, model.RoleManager))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveResult(t *testing.T) {
	e := newTestEnv(t)
	userID := uuid.New()
	e.results.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r *model.TestResult) error {
		assert.Equal(t, userID, r.UserID)
		return nil
	})

	rec := httptest.NewRecorder()
	req := as(jsonRequest(http.MethodPost, "/api/results", service.SaveResultInput{TestType: "big5", Answers: map[string]interface{}{"q1": 3}}), userID, model.RoleEmployee)
	e.assessmentHandler.SaveResult(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	req = as(jsonRequest(http.MethodPost, "/api/results", map[string]string{}), userID, model.RoleEmployee)
	e.assessmentHandler.SaveResult(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
