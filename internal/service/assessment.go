// internal/service/assessment.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/policy"
	"github.com/dangerclosesec/assessly/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AssessmentService gates the test-result and report collaborators.
type AssessmentService struct {
	results  repository.TestResultStore
	reports  repository.ReportStore
	resolver policy.RoleResolver
	validate *validator.Validate
}

func NewAssessmentService(
	results repository.TestResultStore,
	reports repository.ReportStore,
	resolver policy.RoleResolver,
) *AssessmentService {
	return &AssessmentService{
		results:  results,
		reports:  reports,
		resolver: resolver,
		validate: validator.New(),
	}
}

type SaveResultInput struct {
	TestType string                 `json:"test_type" validate:"required,max=100"`
	Answers  map[string]interface{} `json:"answers" validate:"required"`
}

// SaveResult stores a result for any authenticated user.
func (s *AssessmentService) SaveResult(ctx context.Context, userID uuid.UUID, input SaveResultInput) (*model.TestResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	result := &model.TestResult{
		UserID:   userID,
		TestType: input.TestType,
		Answers:  model.JSONMap(input.Answers),
	}
	if err := s.results.Save(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetReport returns a report to its owner or to an ADMIN. The admin check
// uses the authoritative role and fails closed; every refusal looks like a
// missing report.
func (s *AssessmentService) GetReport(ctx context.Context, viewerID, reportID uuid.UUID) (*model.Report, error) {
	owner, err := s.reports.OwnerOf(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if owner != viewerID {
		role, err := s.resolver.ResolveRole(ctx, viewerID)
		if err != nil {
			if !errors.Is(err, domain.ErrUserNotFound) {
				slog.WarnContext(ctx, "Report access check failed closed", "viewerID", viewerID, "reportID", reportID, "error", err)
			}
			return nil, domain.ErrReportNotFound
		}
		if role != model.RoleAdmin {
			return nil, domain.ErrReportNotFound
		}
	}

	return s.reports.Get(ctx, reportID)
}
