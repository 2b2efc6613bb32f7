package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AuthzAuditLog represents an authentication or authorization audit log entry
type AuthzAuditLog struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Timestamp   time.Time `json:"timestamp" gorm:"default:CURRENT_TIMESTAMP"`
	ActionType  string    `json:"action_type"`
	Result      *bool     `json:"result"`
	SubjectID   string    `json:"subject_id"`
	SubjectRole string    `json:"subject_role"`
	ObjectType  string    `json:"object_type"`
	ObjectID    string    `json:"object_id"`
	RouteClass  string    `json:"route_class"`
	Path        string    `json:"path"`
	Reason      string    `json:"reason"`
	Context     JSONMap   `json:"context" gorm:"type:jsonb"`
	RequestID   string    `json:"request_id"`
	ClientIP    string    `json:"client_ip"`
	UserAgent   string    `json:"user_agent"`
	CreatedAt   time.Time `json:"created_at" gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for AuthzAuditLog
func (AuthzAuditLog) TableName() string {
	return "authz_audit_logs"
}

// JSONMap represents a generic map stored as JSONB in the database
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for JSONMap
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for JSONMap
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = make(JSONMap)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion failed: failed to decode JSONB")
	}

	return json.Unmarshal(bytes, m)
}

// Constants for AuthzAuditLog action types
const (
	ActionLoginFailure       = "login_failure"
	ActionAccessDenied       = "access_denied"
	ActionFailOpen           = "fail_open"
	ActionRoleChange         = "role_change"
	ActionOrganizationDelete = "organization_delete"
	ActionManagerRetract     = "manager_retract"
	ActionManagerStale       = "manager_stale"
)
