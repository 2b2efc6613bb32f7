// internal/model/assessment.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// TestResult is a submitted assessment. Scoring lives elsewhere; only the
// owner and raw payload are tracked here.
type TestResult struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	TestType  string    `gorm:"type:text;not null" json:"test_type"`
	Answers   JSONMap   `gorm:"type:jsonb" json:"answers"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is a generated report over a test result.
type Report struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OwnerID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_id"`
	TestResultID *uuid.UUID `gorm:"type:uuid" json:"test_result_id,omitempty"`
	Content      JSONMap    `gorm:"type:jsonb" json:"content"`
	CreatedAt    time.Time  `json:"created_at"`
}
