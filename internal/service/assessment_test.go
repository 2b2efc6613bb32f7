package service

import (
	"context"
	"testing"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAssessmentService_GetReport(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name     string
		viewer   func() uuid.UUID
		resolve  func(f *fixture, viewerID uuid.UUID)
		wantRead bool
	}{
		{
			name:     "owner",
			viewer:   func() uuid.UUID { return ownerID },
			resolve:  func(*fixture, uuid.UUID) {},
			wantRead: true,
		},
		{
			name:   "admin",
			viewer: uuid.New,
			resolve: func(f *fixture, id uuid.UUID) {
				f.users.EXPECT().FindByID(gomock.Any(), id).Return(&model.User{ID: id, Role: model.RoleAdmin}, nil)
			},
			wantRead: true,
		},
		{
			name:   "manager of the owner",
			viewer: uuid.New,
			resolve: func(f *fixture, id uuid.UUID) {
				f.users.EXPECT().FindByID(gomock.Any(), id).Return(&model.User{ID: id, Role: model.RoleManager}, nil)
			},
		},
		{
			name:   "role check unavailable",
			viewer: uuid.New,
			resolve: func(f *fixture, id uuid.UUID) {
				f.users.EXPECT().FindByID(gomock.Any(), id).Return(nil, errStoreDown)
			},
		},
		{
			name:   "deleted viewer",
			viewer: uuid.New,
			resolve: func(f *fixture, id uuid.UUID) {
				f.users.EXPECT().FindByID(gomock.Any(), id).Return(nil, domain.ErrUserNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			svc := NewAssessmentService(f.results, f.reports, NewDirectoryRoleResolver(f.users))
			reportID := uuid.New()
			viewerID := tt.viewer()

			f.reports.EXPECT().OwnerOf(gomock.Any(), reportID).Return(ownerID, nil)
			tt.resolve(f, viewerID)
			if tt.wantRead {
				f.reports.EXPECT().Get(gomock.Any(), reportID).Return(&model.Report{ID: reportID, OwnerID: ownerID}, nil)
			}

			report, err := svc.GetReport(context.Background(), viewerID, reportID)
			if !tt.wantRead {
				assert.ErrorIs(t, err, domain.ErrReportNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ownerID, report.OwnerID)
		})
	}
}

func TestAssessmentService_SaveResultValidates(t *testing.T) {
	f := newFixture(t)
	svc := NewAssessmentService(f.results, f.reports, NewDirectoryRoleResolver(f.users))

	_, err := svc.SaveResult(context.Background(), uuid.New(), SaveResultInput{Answers: map[string]interface{}{"q1": 3}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
