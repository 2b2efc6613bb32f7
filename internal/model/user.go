// internal/model/user.go
package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

// ParseRole accepts any casing of a known role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// TenantScoped reports whether principals with this role must belong to an
// organization.
func (r Role) TenantScoped() bool {
	return r == RoleManager || r == RoleEmployee
}

func (r Role) String() string { return string(r) }

// Scan implements the sql.Scanner interface
func (r *Role) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*r = Role(v)
	case []byte:
		*r = Role(v)
	case nil:
		*r = ""
	default:
		return fmt.Errorf("unsupported Scan, storing driver.Value type %T into type %T", value, r)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %q", string(r))
	}
	return string(r), nil
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Email        string    `gorm:"type:citext;uniqueIndex;not null" json:"email" szlr:"scope:admin,manager,self"`
	PasswordHash string    `gorm:"type:text;not null" json:"-"`
	Name         string    `gorm:"type:text;not null" json:"name" szlr:"always"`
	Role         Role      `gorm:"type:user_role;not null;default:'EMPLOYEE'" json:"role" szlr:"scope:admin,self"`
	CreatedAt    time.Time `json:"created_at" szlr:"scope:admin"`
	UpdatedAt    time.Time `json:"updated_at" szlr:"scope:admin"`
}
