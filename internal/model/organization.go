// internal/model/organization.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Code      string    `gorm:"type:text;uniqueIndex;not null" json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Teams []Team `gorm:"foreignKey:OrganizationID" json:"teams,omitempty"`
}

type Team struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string     `gorm:"type:text;not null" json:"name"`
	ManagerID      *uuid.UUID `gorm:"type:uuid;index" json:"manager_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Organization Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Manager      *User        `gorm:"foreignKey:ManagerID" json:"-"`
}

// ManagerAssignment is a snapshot of a manager being placed on a team. The
// role is recorded as it was at assignment time; later role changes do not
// touch it.
type ManagerAssignment struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TeamID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"team_id"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`
	RoleAtAssignment Role       `gorm:"type:user_role;not null" json:"role_at_assignment"`
	AssignedAt       time.Time  `gorm:"not null" json:"assigned_at"`
	RetractedAt      *time.Time `json:"retracted_at,omitempty"`
	RetractReason    string     `gorm:"type:text" json:"retract_reason,omitempty"`
}

// Membership binds a user to exactly one organization and optionally a team
// inside it. user_id carries a unique index.
type Membership struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"organization_id"`
	TeamID         *uuid.UUID `gorm:"type:uuid;index" json:"team_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	User         User         `gorm:"foreignKey:UserID" json:"-"`
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

// HasTeam reports whether the membership has completed team selection.
func (m *Membership) HasTeam() bool {
	return m != nil && m.TeamID != nil && *m.TeamID != uuid.Nil
}
