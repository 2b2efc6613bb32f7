// internal/service/onboarding.go
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

// OnboardingState is where a user stands between registration and full
// tenant binding.
type OnboardingState string

const (
	StateRegistered OnboardingState = "registered"
	StateOrgBound   OnboardingState = "org_bound"
	StateTeamBound  OnboardingState = "team_bound"
)

// WelcomeMailer sends the post-registration email.
type WelcomeMailer interface {
	SendWelcome(ctx context.Context, to, name, organizationName, teamSelectionLink string) error
}

type OnboardingService struct {
	tx          repository.Transactor
	users       repository.UserRepositoryIface
	teams       repository.TeamRepositoryIface
	memberships repository.MembershipRepositoryIface
	verifier    *CredentialVerifier
	hasher      *auth.PasswordHasher
	tokens      SessionIssuer
	principals  *PrincipalCache
	mailer      WelcomeMailer
	teamLink    string
	validate    *validator.Validate
}

// OnboardingConfig holds the links embedded in onboarding emails.
type OnboardingConfig struct {
	BaseURL           string
	TeamSelectionPath string
}

func NewOnboardingService(
	tx repository.Transactor,
	users repository.UserRepositoryIface,
	teams repository.TeamRepositoryIface,
	memberships repository.MembershipRepositoryIface,
	verifier *CredentialVerifier,
	hasher *auth.PasswordHasher,
	tokens SessionIssuer,
	principals *PrincipalCache,
	mailer WelcomeMailer,
	config OnboardingConfig,
) *OnboardingService {
	return &OnboardingService{
		tx:          tx,
		users:       users,
		teams:       teams,
		memberships: memberships,
		verifier:    verifier,
		hasher:      hasher,
		tokens:      tokens,
		principals:  principals,
		mailer:      mailer,
		teamLink:    strings.TrimRight(config.BaseURL, "/") + config.TeamSelectionPath,
		validate:    validator.New(),
	}
}

type RegisterInput struct {
	Name             string `json:"name" validate:"required,max=200"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required"`
	OrganizationCode string `json:"organization_code"`
}

type RegisterOutput struct {
	User       *model.User       `json:"user"`
	Membership *model.Membership `json:"membership"`
	Token      string            `json:"token"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// Register creates an EMPLOYEE and binds it to the organization named by
// the code. The user and membership commit together or not at all.
func (s *OnboardingService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if repository.NormalizeCode(input.OrganizationCode) == "" {
		return nil, domain.ErrOrganizationCodeRequired
	}
	if err := auth.ValidateStrength(input.Password); err != nil {
		return nil, err
	}

	org, err := s.verifier.ResolveOrganizationCode(ctx, input.OrganizationCode)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Email:        input.Email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		Role:         model.RoleEmployee,
	}
	membership := &model.Membership{OrganizationID: org.ID}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		membership.UserID = user.ID
		return s.memberships.Create(ctx, membership)
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyRegistered) {
			return nil, err
		}
		return nil, fmt.Errorf("registering user: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "userID", user.ID, "organizationID", org.ID)

	token, session, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendWelcome(ctx, user.Email, user.Name, org.Name, s.teamLink); err != nil {
			slog.WarnContext(ctx, "Failed to send welcome email", "userID", user.ID, "error", err)
		}
	}

	return &RegisterOutput{
		User:       user,
		Membership: membership,
		Token:      token,
		ExpiresAt:  session.ExpiresAt,
	}, nil
}

// StateOf classifies a principal's onboarding progress.
func StateOf(info *PrincipalInfo) OnboardingState {
	switch {
	case info == nil || !info.HasOrganization():
		return StateRegistered
	case !info.HasTeam():
		return StateOrgBound
	}
	return StateTeamBound
}

type OnboardingStatus struct {
	State          OnboardingState `json:"state"`
	OrganizationID *uuid.UUID      `json:"organization_id,omitempty"`
	TeamID         *uuid.UUID      `json:"team_id,omitempty"`
}

// Status reads the user's onboarding state from the store.
func (s *OnboardingService) Status(ctx context.Context, userID uuid.UUID) (*OnboardingStatus, error) {
	info, err := s.principals.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &OnboardingStatus{
		State:          StateOf(info),
		OrganizationID: info.OrganizationID,
		TeamID:         info.TeamID,
	}, nil
}

// ListTeams returns the teams of the user's own organization only.
func (s *OnboardingService) ListTeams(ctx context.Context, userID uuid.UUID) ([]*model.Team, error) {
	membership, err := s.memberships.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.teams.FindByOrganization(ctx, membership.OrganizationID)
}

type SelectTeamInput struct {
	TeamID string `json:"team_id" validate:"required,uuid"`
}

// SelectTeam binds the user's membership to a team of the same
// organization. Selecting again retargets the membership.
func (s *OnboardingService) SelectTeam(ctx context.Context, userID uuid.UUID, input SelectTeamInput) (*model.Membership, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	teamID, err := uuid.Parse(input.TeamID)
	if err != nil {
		return nil, fmt.Errorf("%w: team_id", domain.ErrInvalidInput)
	}

	membership, err := s.memberships.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.OrganizationID != membership.OrganizationID {
		slog.WarnContext(ctx, "Cross-tenant team selection rejected",
			"userID", userID, "teamID", teamID, "organizationID", membership.OrganizationID)
		return nil, domain.ErrTeamNotInOrganization
	}

	updated, err := s.memberships.SetTeam(ctx, membership.ID, &team.ID)
	if err != nil {
		return nil, err
	}
	s.principals.Invalidate(ctx, userID)
	return updated, nil
}
