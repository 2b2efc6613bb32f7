// internal/repository/assessment.go
package repository

import (
	"context"
	"fmt"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TestResultStore persists submitted assessments.
type TestResultStore interface {
	Save(ctx context.Context, result *model.TestResult) error
}

// ReportStore reads generated reports.
type ReportStore interface {
	OwnerOf(ctx context.Context, reportID uuid.UUID) (uuid.UUID, error)
	Get(ctx context.Context, reportID uuid.UUID) (*model.Report, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
}

type AssessmentRepository struct {
	db *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

func (r *AssessmentRepository) Save(ctx context.Context, result *model.TestResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if err := conn(ctx, r.db).Create(result).Error; err != nil {
		return fmt.Errorf("saving test result: %w", err)
	}
	return nil
}

func (r *AssessmentRepository) OwnerOf(ctx context.Context, reportID uuid.UUID) (uuid.UUID, error) {
	var report model.Report
	if err := conn(ctx, r.db).Select("owner_id").First(&report, "id = ?", reportID).Error; err != nil {
		return uuid.Nil, notFound(err, domain.ErrReportNotFound, "finding report owner")
	}
	return report.OwnerID, nil
}

func (r *AssessmentRepository) Get(ctx context.Context, reportID uuid.UUID) (*model.Report, error) {
	var report model.Report
	if err := conn(ctx, r.db).First(&report, "id = ?", reportID).Error; err != nil {
		return nil, notFound(err, domain.ErrReportNotFound, "finding report")
	}
	return &report, nil
}

func (r *AssessmentRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&model.Report{}).Where("owner_id = ?", ownerID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting reports: %w", err)
	}
	return count, nil
}
