// internal/service/admin.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dangerclosesec/assessly/internal/auth"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const generatedCodeAttempts = 5

// AdminService carries the directory operations reserved for ADMIN.
type AdminService struct {
	tx          repository.Transactor
	users       repository.UserRepositoryIface
	orgs        repository.OrganizationRepositoryIface
	teams       repository.TeamRepositoryIface
	memberships repository.MembershipRepositoryIface
	reports     repository.ReportStore
	verifier    *CredentialVerifier
	hasher      *auth.PasswordHasher
	principals  *PrincipalCache
	validate    *validator.Validate
	now         func() time.Time
}

func NewAdminService(
	tx repository.Transactor,
	users repository.UserRepositoryIface,
	orgs repository.OrganizationRepositoryIface,
	teams repository.TeamRepositoryIface,
	memberships repository.MembershipRepositoryIface,
	reports repository.ReportStore,
	verifier *CredentialVerifier,
	hasher *auth.PasswordHasher,
	principals *PrincipalCache,
) *AdminService {
	return &AdminService{
		tx:          tx,
		users:       users,
		orgs:        orgs,
		teams:       teams,
		memberships: memberships,
		reports:     reports,
		verifier:    verifier,
		hasher:      hasher,
		principals:  principals,
		validate:    validator.New(),
		now:         time.Now,
	}
}

type CreateOrganizationInput struct {
	Name string `json:"name" validate:"required,max=200"`
	Code string `json:"code"`
}

// CreateOrganization creates a tenant. Without a code one is generated.
func (s *AdminService) CreateOrganization(ctx context.Context, input CreateOrganizationInput) (*model.Organization, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	org := &model.Organization{Name: strings.TrimSpace(input.Name)}

	if strings.TrimSpace(input.Code) != "" {
		code, err := NormalizeOrganizationCode(input.Code)
		if err != nil {
			return nil, err
		}
		org.Code = code
		if err := s.orgs.Create(ctx, org); err != nil {
			return nil, err
		}
		return org, nil
	}

	for attempt := 0; attempt < generatedCodeAttempts; attempt++ {
		code, err := GenerateOrganizationCode()
		if err != nil {
			return nil, err
		}
		org.ID = uuid.Nil
		org.Code = code
		err = s.orgs.Create(ctx, org)
		if err == nil {
			return org, nil
		}
		if !errors.Is(err, domain.ErrOrganizationCodeTaken) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("generating unique organization code: %w", domain.ErrOrganizationCodeTaken)
}

func (s *AdminService) ListOrganizations(ctx context.Context, offset, limit int) ([]*model.Organization, int64, error) {
	return s.orgs.FindAllPaginated(ctx, offset, limit)
}

// DeleteOrganization removes an organization and its teams. It is rejected
// while any membership references the organization.
func (s *AdminService) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	return s.orgs.Delete(ctx, orgID)
}

type CreateTeamInput struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (s *AdminService) CreateTeam(ctx context.Context, orgID uuid.UUID, input CreateTeamInput) (*model.Team, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if _, err := s.orgs.FindByID(ctx, orgID); err != nil {
		return nil, err
	}

	team := &model.Team{OrganizationID: orgID, Name: strings.TrimSpace(input.Name)}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

type AssignManagerInput struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// AssignManager places a MANAGER on a team of their own organization and
// records the assignment snapshot. The role is checked only now.
func (s *AdminService) AssignManager(ctx context.Context, teamID uuid.UUID, input AssignManagerInput) (*model.ManagerAssignment, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	userID, err := uuid.Parse(input.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id", domain.ErrInvalidInput)
	}

	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	manager, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if manager.Role != model.RoleManager {
		return nil, domain.ErrInvalidManager
	}

	membership, err := s.memberships.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, domain.ErrTeamNotInOrganization
		}
		return nil, err
	}
	if membership.OrganizationID != team.OrganizationID {
		return nil, domain.ErrTeamNotInOrganization
	}

	assignment := &model.ManagerAssignment{
		UserID:           userID,
		RoleAtAssignment: manager.Role,
		AssignedAt:       s.now().UTC(),
	}
	if err := s.teams.AssignManager(ctx, teamID, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

type ProvisionUserInput struct {
	Name             string `json:"name" validate:"required,max=200"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required"`
	Role             string `json:"role" validate:"required"`
	OrganizationCode string `json:"organization_code"`
	TeamID           string `json:"team_id" validate:"omitempty,uuid"`
}

// ProvisionUser creates a user directly. Tenant-scoped roles get their
// membership in the same transaction; admins never get one.
func (s *AdminService) ProvisionUser(ctx context.Context, input ProvisionUserInput) (*model.User, *model.Membership, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	role, err := model.ParseRole(input.Role)
	if err != nil {
		return nil, nil, domain.ErrInvalidRole
	}
	if err := auth.ValidateStrength(input.Password); err != nil {
		return nil, nil, err
	}

	var membership *model.Membership
	if role.TenantScoped() {
		if repository.NormalizeCode(input.OrganizationCode) == "" {
			return nil, nil, domain.ErrOrganizationCodeRequired
		}
		org, err := s.verifier.ResolveOrganizationCode(ctx, input.OrganizationCode)
		if err != nil {
			return nil, nil, err
		}
		membership = &model.Membership{OrganizationID: org.ID}

		if input.TeamID != "" {
			teamID, _ := uuid.Parse(input.TeamID)
			team, err := s.teams.FindByID(ctx, teamID)
			if err != nil {
				return nil, nil, err
			}
			if team.OrganizationID != org.ID {
				return nil, nil, domain.ErrTeamNotInOrganization
			}
			membership.TeamID = &team.ID
		}
	} else if strings.TrimSpace(input.OrganizationCode) != "" || input.TeamID != "" {
		return nil, nil, domain.ErrMembershipNotPermitted
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}
	user := &model.User{
		Email:        input.Email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		Role:         role,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		if membership == nil {
			return nil
		}
		membership.UserID = user.ID
		return s.memberships.Create(ctx, membership)
	})
	if err != nil {
		return nil, nil, err
	}
	return user, membership, nil
}

type ChangeRoleInput struct {
	Role string `json:"role" validate:"required"`
}

// ChangeRole sets a user's role and returns the previous one. Admins cannot
// change their own role. Existing team assignments are not retracted.
func (s *AdminService) ChangeRole(ctx context.Context, actorID, userID uuid.UUID, input ChangeRoleInput) (model.Role, error) {
	if err := s.validate.Struct(input); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	role, err := model.ParseRole(input.Role)
	if err != nil {
		return "", domain.ErrInvalidRole
	}
	if actorID == userID {
		return "", fmt.Errorf("%w: admins cannot change their own role", domain.ErrInvalidInput)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	previous := user.Role
	if previous == role {
		return previous, nil
	}

	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return "", err
	}
	s.principals.Invalidate(ctx, userID)

	slog.InfoContext(ctx, "User role changed", "actorID", actorID, "userID", userID, "from", previous, "to", role)
	return previous, nil
}

// DeleteUser hard-deletes a user that owns nothing: no membership, no
// managed team and no reports. Rows the checks do not cover, like test
// results, come back from the store as domain.ErrUserHasDependents.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return fmt.Errorf("%w: admins cannot delete themselves", domain.ErrInvalidInput)
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return err
	}

	_, err := s.memberships.FindByUser(ctx, userID)
	switch {
	case err == nil:
		return domain.ErrUserHasDependents
	case !errors.Is(err, domain.ErrMembershipNotFound):
		return err
	}

	managed, err := s.teams.CountByManager(ctx, userID)
	if err != nil {
		return err
	}
	if managed > 0 {
		return domain.ErrUserHasDependents
	}

	if s.reports != nil {
		owned, err := s.reports.CountByOwner(ctx, userID)
		if err != nil {
			return err
		}
		if owned > 0 {
			return domain.ErrUserHasDependents
		}
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.principals.Invalidate(ctx, userID)
	return nil
}

// RemoveMembership detaches a user from their organization so the user
// can later be deleted or moved.
func (s *AdminService) RemoveMembership(ctx context.Context, userID uuid.UUID) error {
	if err := s.memberships.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	s.principals.Invalidate(ctx, userID)
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context, offset, limit int) ([]*model.User, int64, error) {
	return s.users.FindAllPaginated(ctx, offset, limit)
}

// TeamOverview is a managed team with its current members.
type TeamOverview struct {
	Team    *model.Team   `json:"team"`
	Members []*model.User `json:"members"`
}

// ManagedTeams lists the teams managerID manages and who is on them.
func (s *AdminService) ManagedTeams(ctx context.Context, managerID uuid.UUID) ([]TeamOverview, error) {
	teams, err := s.teams.FindByManager(ctx, managerID)
	if err != nil {
		return nil, err
	}

	out := make([]TeamOverview, 0, len(teams))
	for _, team := range teams {
		memberships, err := s.memberships.FindByTeam(ctx, team.ID)
		if err != nil {
			return nil, err
		}
		members := make([]*model.User, 0, len(memberships))
		for _, m := range memberships {
			user := m.User
			members = append(members, &user)
		}
		out = append(out, TeamOverview{Team: team, Members: members})
	}
	return out, nil
}
