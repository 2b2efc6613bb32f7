package audit

import (
	"context"
	"net/http"

	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
)

// AccessEntry describes one access-policy decision worth keeping.
type AccessEntry struct {
	Action      string
	Allowed     bool
	SubjectID   string
	SubjectRole string
	RouteClass  string
	Path        string
	Reason      string
	Context     map[string]interface{}
}

// Logger defines the interface for auditing authentication and
// authorization events
type Logger interface {
	// LogLoginFailure records a rejected login with its internal reason.
	LogLoginFailure(ctx context.Context, email string, reason error, req *http.Request) error

	// LogAccess records a denied or fail-open request.
	LogAccess(ctx context.Context, entry AccessEntry, req *http.Request) error

	// LogRoleChange records an admin changing a user's role.
	LogRoleChange(ctx context.Context, actorID, userID uuid.UUID, from, to model.Role, req *http.Request) error

	// LogOrganizationDelete records an organization removal.
	LogOrganizationDelete(ctx context.Context, actorID, orgID uuid.UUID, req *http.Request) error

	// LogManagerAssignment records a stale or retracted manager assignment.
	LogManagerAssignment(ctx context.Context, action string, team *model.Team, reason string) error
}

// NoOpLogger is a logger that does nothing
type NoOpLogger struct{}

var _ Logger = NoOpLogger{}

func (NoOpLogger) LogLoginFailure(context.Context, string, error, *http.Request) error {
	return nil
}

func (NoOpLogger) LogAccess(context.Context, AccessEntry, *http.Request) error {
	return nil
}

func (NoOpLogger) LogRoleChange(context.Context, uuid.UUID, uuid.UUID, model.Role, model.Role, *http.Request) error {
	return nil
}

func (NoOpLogger) LogOrganizationDelete(context.Context, uuid.UUID, uuid.UUID, *http.Request) error {
	return nil
}

func (NoOpLogger) LogManagerAssignment(context.Context, string, *model.Team, string) error {
	return nil
}
