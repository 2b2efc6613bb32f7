// internal/domain/errors.go
package domain

import "errors"

var (
	// General errors
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("directory store unavailable")

	// Authentication errors. Clients only ever see two categories:
	// credentials and organization code.
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrOrganizationCodeRequired = errors.New("organization code required")
	ErrInvalidOrganizationCode  = errors.New("invalid organization code")
	ErrOrganizationMismatch     = errors.New("organization mismatch")

	// Session errors
	ErrTokenInvalid = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session token expired")
	ErrTokenRevoked = errors.New("session token revoked")
	ErrUnauthorized = errors.New("unauthorized")

	// User errors
	ErrUserNotFound           = errors.New("user not found")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrPasswordTooWeak        = errors.New("password too weak")
	ErrInvalidRole            = errors.New("invalid role")
	ErrUserHasDependents      = errors.New("user owns dependent records")

	// Organization errors
	ErrOrganizationNotFound   = errors.New("organization not found")
	ErrOrganizationCodeTaken  = errors.New("organization code already in use")
	ErrOrganizationHasMembers = errors.New("organization still has memberships")

	// Team and membership errors
	ErrTeamNotFound           = errors.New("team not found")
	ErrTeamNotInOrganization  = errors.New("team does not belong to the user's organization")
	ErrInvalidManager         = errors.New("manager must have the MANAGER role")
	ErrMembershipNotFound     = errors.New("membership not found")
	ErrDuplicateMembership    = errors.New("user already has an organization membership")
	ErrMembershipNotPermitted = errors.New("admins are not tenant-scoped")

	// Collaborator errors
	ErrReportNotFound = errors.New("report not found")

	// Cache errors
	ErrCacheMiss = errors.New("cache miss")
)

// authentication lists the errors that belong to the authentication category.
var authentication = []error{
	ErrInvalidCredentials,
	ErrOrganizationCodeRequired,
	ErrInvalidOrganizationCode,
	ErrOrganizationMismatch,
}

// IsAuthentication reports whether err is one of the login failure reasons.
func IsAuthentication(err error) bool {
	for _, target := range authentication {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsOrganizationCodeFailure reports whether an authentication failure should be
// shown to the user as an organization code problem rather than a credentials one.
func IsOrganizationCodeFailure(err error) bool {
	return errors.Is(err, ErrOrganizationCodeRequired) ||
		errors.Is(err, ErrInvalidOrganizationCode) ||
		errors.Is(err, ErrOrganizationMismatch)
}

// sentinels is every error the domain defines. Anything else reaching a
// caller came from infrastructure.
var sentinels = []error{
	ErrNotFound, ErrInvalidInput,
	ErrInvalidCredentials, ErrOrganizationCodeRequired, ErrInvalidOrganizationCode, ErrOrganizationMismatch,
	ErrTokenInvalid, ErrTokenExpired, ErrTokenRevoked, ErrUnauthorized,
	ErrUserNotFound, ErrEmailAlreadyRegistered, ErrPasswordTooWeak, ErrInvalidRole, ErrUserHasDependents,
	ErrOrganizationNotFound, ErrOrganizationCodeTaken, ErrOrganizationHasMembers,
	ErrTeamNotFound, ErrTeamNotInOrganization, ErrInvalidManager, ErrMembershipNotFound,
	ErrDuplicateMembership, ErrMembershipNotPermitted,
	ErrReportNotFound, ErrCacheMiss,
}

// IsInfrastructure reports whether err is a transient or backend failure
// rather than a definite domain answer.
func IsInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return true
	}
	for _, target := range sentinels {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}

// IsNotFound reports whether err is any of the definite not-found signals.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrOrganizationNotFound) ||
		errors.Is(err, ErrTeamNotFound) ||
		errors.Is(err, ErrMembershipNotFound) ||
		errors.Is(err, ErrReportNotFound)
}
