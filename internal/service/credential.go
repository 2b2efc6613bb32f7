// internal/service/credential.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dangerclosesec/assessly/internal/auth"
	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/repository"
)

// VerifiedPrincipal is a user whose credentials and tenant binding checked
// out. Membership is nil for admins.
type VerifiedPrincipal struct {
	User         *model.User
	Membership   *model.Membership
	Organization *model.Organization
}

// CredentialVerifier decides whether an email, password and optional
// organization code identify a legitimate, tenant-consistent principal.
type CredentialVerifier struct {
	users       repository.UserRepositoryIface
	orgs        repository.OrganizationRepositoryIface
	memberships repository.MembershipRepositoryIface
	hasher      *auth.PasswordHasher
}

func NewCredentialVerifier(
	users repository.UserRepositoryIface,
	orgs repository.OrganizationRepositoryIface,
	memberships repository.MembershipRepositoryIface,
	hasher *auth.PasswordHasher,
) *CredentialVerifier {
	return &CredentialVerifier{
		users:       users,
		orgs:        orgs,
		memberships: memberships,
		hasher:      hasher,
	}
}

// Verify checks the password before any tenant policy so organization
// errors are only reachable with correct credentials.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password, organizationCode string) (*VerifiedPrincipal, error) {
	user, err := v.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Burn the same hashing cost as a real comparison.
			_, _ = v.hasher.Verify(password, "")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	ok, err := v.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		slog.ErrorContext(ctx, "Stored password hash is unreadable", "userID", user.ID, "error", err)
		return nil, domain.ErrInvalidCredentials
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	principal := &VerifiedPrincipal{User: user}

	// Admins are not tenant-scoped; any supplied code is ignored.
	if !user.Role.TenantScoped() {
		return principal, nil
	}

	if repository.NormalizeCode(organizationCode) == "" {
		return nil, domain.ErrOrganizationCodeRequired
	}

	org, err := v.ResolveOrganizationCode(ctx, organizationCode)
	if err != nil {
		return nil, err
	}

	membership, err := v.memberships.FindByUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, domain.ErrOrganizationMismatch
		}
		return nil, fmt.Errorf("finding membership: %w", err)
	}
	if membership.OrganizationID != org.ID {
		return nil, domain.ErrOrganizationMismatch
	}

	principal.Membership = membership
	principal.Organization = org
	return principal, nil
}

// ResolveOrganizationCode maps a tenant code to its organization. Unknown
// and empty codes both yield domain.ErrInvalidOrganizationCode.
func (v *CredentialVerifier) ResolveOrganizationCode(ctx context.Context, code string) (*model.Organization, error) {
	org, err := v.orgs.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			return nil, domain.ErrInvalidOrganizationCode
		}
		return nil, fmt.Errorf("resolving organization code: %w", err)
	}
	return org, nil
}
