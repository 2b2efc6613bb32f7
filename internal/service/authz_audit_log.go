package service

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/dangerclosesec/assessly/internal/audit"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/repository"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Ensure AuthzAuditLogService implements the audit.Logger interface
var _ audit.Logger = (*AuthzAuditLogService)(nil)

// AuthzAuditLogService handles operations related to authorization audit logs
type AuthzAuditLogService struct {
	repo repository.AuthzAuditLogRepositoryIface
	now  func() time.Time
}

// NewAuthzAuditLogService creates a new AuthzAuditLogService
func NewAuthzAuditLogService(repo repository.AuthzAuditLogRepositoryIface) *AuthzAuditLogService {
	return &AuthzAuditLogService{
		repo: repo,
		now:  time.Now,
	}
}

// LogLoginFailure logs a rejected login. The internal reason is kept here
// even though the client only sees a generic category.
func (s *AuthzAuditLogService) LogLoginFailure(ctx context.Context, email string, reason error, req *http.Request) error {
	result := false
	log := &model.AuthzAuditLog{
		ActionType: model.ActionLoginFailure,
		Result:     &result,
		ObjectType: "user",
		ObjectID:   email,
		Reason:     reason.Error(),
		Timestamp:  s.now().UTC(),
	}
	s.attachRequest(ctx, log, req)
	return s.repo.Create(ctx, log)
}

// LogAccess logs a denied or fail-open access decision
func (s *AuthzAuditLogService) LogAccess(ctx context.Context, entry audit.AccessEntry, req *http.Request) error {
	allowed := entry.Allowed
	log := &model.AuthzAuditLog{
		ActionType:  entry.Action,
		Result:      &allowed,
		SubjectID:   entry.SubjectID,
		SubjectRole: entry.SubjectRole,
		RouteClass:  entry.RouteClass,
		Path:        entry.Path,
		Reason:      entry.Reason,
		Context:     model.JSONMap(entry.Context),
		Timestamp:   s.now().UTC(),
	}
	s.attachRequest(ctx, log, req)
	return s.repo.Create(ctx, log)
}

// LogRoleChange logs an admin role change
func (s *AuthzAuditLogService) LogRoleChange(ctx context.Context, actorID, userID uuid.UUID, from, to model.Role, req *http.Request) error {
	result := true
	log := &model.AuthzAuditLog{
		ActionType: model.ActionRoleChange,
		Result:     &result,
		SubjectID:  actorID.String(),
		ObjectType: "user",
		ObjectID:   userID.String(),
		Context:    model.JSONMap{"from": from.String(), "to": to.String()},
		Timestamp:  s.now().UTC(),
	}
	s.attachRequest(ctx, log, req)
	return s.repo.Create(ctx, log)
}

// LogOrganizationDelete logs an organization deletion
func (s *AuthzAuditLogService) LogOrganizationDelete(ctx context.Context, actorID, orgID uuid.UUID, req *http.Request) error {
	result := true
	log := &model.AuthzAuditLog{
		ActionType: model.ActionOrganizationDelete,
		Result:     &result,
		SubjectID:  actorID.String(),
		ObjectType: "organization",
		ObjectID:   orgID.String(),
		Timestamp:  s.now().UTC(),
	}
	s.attachRequest(ctx, log, req)
	return s.repo.Create(ctx, log)
}

// LogManagerAssignment logs a manager assignment found stale or retracted
// by the consistency sweep
func (s *AuthzAuditLogService) LogManagerAssignment(ctx context.Context, action string, team *model.Team, reason string) error {
	result := action != model.ActionManagerRetract
	ctxData := model.JSONMap{"organization_id": team.OrganizationID.String()}
	log := &model.AuthzAuditLog{
		ActionType: action,
		Result:     &result,
		ObjectType: "team",
		ObjectID:   team.ID.String(),
		Reason:     reason,
		Context:    ctxData,
		Timestamp:  s.now().UTC(),
	}
	if team.ManagerID != nil {
		log.SubjectID = team.ManagerID.String()
	}
	if team.Manager != nil {
		log.SubjectRole = team.Manager.Role.String()
	}
	return s.repo.Create(ctx, log)
}

// Query retrieves audit logs matching params
func (s *AuthzAuditLogService) Query(ctx context.Context, params repository.QueryParams) ([]model.AuthzAuditLog, int64, error) {
	return s.repo.Query(ctx, params)
}

// FindByID retrieves a single audit log entry
func (s *AuthzAuditLogService) FindByID(ctx context.Context, id uuid.UUID) (*model.AuthzAuditLog, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *AuthzAuditLogService) attachRequest(ctx context.Context, log *model.AuthzAuditLog, req *http.Request) {
	if req == nil {
		return
	}
	log.RequestID = middleware.GetReqID(ctx)
	log.ClientIP = clientIP(req)
	log.UserAgent = req.UserAgent()
	if log.Path == "" {
		log.Path = req.URL.Path
	}
}

func clientIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
