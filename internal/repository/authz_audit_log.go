// internal/repository/authz_audit_log.go
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuthzAuditLogRepositoryIface interface {
	Create(ctx context.Context, log *model.AuthzAuditLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.AuthzAuditLog, error)
	Query(ctx context.Context, params QueryParams) ([]model.AuthzAuditLog, int64, error)
}

// AuthzAuditLogRepository handles database operations for authorization audit logs
type AuthzAuditLogRepository struct {
	db *gorm.DB
}

// NewAuthzAuditLogRepository creates a new AuthzAuditLogRepository
func NewAuthzAuditLogRepository(db *gorm.DB) *AuthzAuditLogRepository {
	return &AuthzAuditLogRepository{
		db: db,
	}
}

// Create inserts a new audit log entry
func (r *AuthzAuditLogRepository) Create(ctx context.Context, log *model.AuthzAuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	// Audit rows are written outside any caller transaction so a rollback
	// does not erase them.
	result := r.db.WithContext(ctx).Create(log)
	if result.Error != nil {
		return fmt.Errorf("failed to create authorization audit log: %w", result.Error)
	}

	return nil
}

// FindByID retrieves an audit log entry by its ID
func (r *AuthzAuditLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.AuthzAuditLog, error) {
	var log model.AuthzAuditLog
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&log)
	if result.Error != nil {
		return nil, notFound(result.Error, domain.ErrNotFound, "failed to find authorization audit log")
	}

	return &log, nil
}

// QueryParams holds parameters for querying audit logs
type QueryParams struct {
	ActionType string
	SubjectID  string
	ObjectType string
	ObjectID   string
	RouteClass string
	Result     *bool
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

// Query retrieves audit logs based on the provided query parameters
func (r *AuthzAuditLogRepository) Query(ctx context.Context, params QueryParams) ([]model.AuthzAuditLog, int64, error) {
	var logs []model.AuthzAuditLog
	var count int64

	query := r.db.WithContext(ctx).Model(&model.AuthzAuditLog{})

	if params.ActionType != "" {
		query = query.Where("action_type = ?", params.ActionType)
	}
	if params.SubjectID != "" {
		query = query.Where("subject_id = ?", params.SubjectID)
	}
	if params.ObjectType != "" {
		query = query.Where("object_type = ?", params.ObjectType)
	}
	if params.ObjectID != "" {
		query = query.Where("object_id = ?", params.ObjectID)
	}
	if params.RouteClass != "" {
		query = query.Where("route_class = ?", params.RouteClass)
	}
	if params.Result != nil {
		query = query.Where("result = ?", *params.Result)
	}
	if !params.StartTime.IsZero() {
		query = query.Where("timestamp >= ?", params.StartTime)
	}
	if !params.EndTime.IsZero() {
		query = query.Where("timestamp <= ?", params.EndTime)
	}

	// Get total count for pagination
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count authorization audit logs: %w", err)
	}

	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	} else {
		query = query.Limit(100) // Default limit
	}

	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}

	result := query.Order("timestamp DESC").Find(&logs)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to query authorization audit logs: %w", result.Error)
	}

	return logs, count, nil
}
