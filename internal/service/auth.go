// internal/service/auth.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dangerclosesec/assessly/internal/auth"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// SessionIssuer mints and decodes session tokens.
type SessionIssuer interface {
	Issue(userID uuid.UUID, role model.Role) (string, *auth.Session, error)
	Decode(ctx context.Context, token string) (*auth.Session, error)
	Revoke(ctx context.Context, session *auth.Session) (bool, error)
}

type AuthService struct {
	verifier   *CredentialVerifier
	tokens     SessionIssuer
	users      repository.UserRepositoryIface
	principals *PrincipalCache
	validate   *validator.Validate
}

func NewAuthService(
	verifier *CredentialVerifier,
	tokens SessionIssuer,
	users repository.UserRepositoryIface,
	principals *PrincipalCache,
) *AuthService {
	return &AuthService{
		verifier:   verifier,
		tokens:     tokens,
		users:      users,
		principals: principals,
		validate:   validator.New(),
	}
}

type LoginInput struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required"`
	OrganizationCode string `json:"organization_code"`
}

type LoginOutput struct {
	User       *model.User       `json:"user"`
	Membership *model.Membership `json:"membership,omitempty"`
	Token      string            `json:"token"`
	ExpiresAt  time.Time         `json:"expires_at"`
	NeedsTeam  bool              `json:"needs_team"`
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	principal, err := s.verifier.Verify(ctx, input.Email, input.Password, input.OrganizationCode)
	if err != nil {
		if domain.IsAuthentication(err) {
			slog.InfoContext(ctx, "Login rejected", "reason", err.Error())
		}
		return nil, err
	}

	user := principal.User
	token, session, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	info := &PrincipalInfo{UserID: user.ID, Role: user.Role}
	if m := principal.Membership; m != nil {
		orgID := m.OrganizationID
		info.OrganizationID = &orgID
		info.TeamID = m.TeamID
	}
	if s.principals != nil {
		s.principals.Prime(ctx, info, session.ExpiresAt)
	}

	return &LoginOutput{
		User:       user,
		Membership: principal.Membership,
		Token:      token,
		ExpiresAt:  session.ExpiresAt,
		NeedsTeam:  user.Role == model.RoleEmployee && !principal.Membership.HasTeam(),
	}, nil
}

// Logout revokes the session server-side when a revocation list is
// configured. The caller clears the credential carrier either way.
func (s *AuthService) Logout(ctx context.Context, session *auth.Session) (bool, error) {
	if session == nil {
		return false, nil
	}
	return s.tokens.Revoke(ctx, session)
}

// LogoutToken revokes the session carried by token. A token that no longer
// decodes has nothing left to revoke.
func (s *AuthService) LogoutToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	session, err := s.tokens.Decode(ctx, token)
	if err != nil {
		if domain.IsInfrastructure(err) {
			return false, err
		}
		return false, nil
	}
	return s.Logout(ctx, session)
}

type CurrentRoleOutput struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role"`
}

// CurrentRole decodes token and returns the role currently stored for its
// subject, ignoring the role embedded in the token.
func (s *AuthService) CurrentRole(ctx context.Context, token string) (*CurrentRoleOutput, error) {
	session, err := s.tokens.Decode(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return &CurrentRoleOutput{UserID: user.ID.String(), Role: user.Role}, nil
}
