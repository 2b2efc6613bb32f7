package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dangerclosesec/assessly/internal/audit"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sweepAudit struct {
	audit.NoOpLogger
	actions []string
}

func (s *sweepAudit) LogManagerAssignment(_ context.Context, action string, _ *model.Team, _ string) error {
	s.actions = append(s.actions, action)
	return nil
}

func staleTeams(n int) []*model.Team {
	teams := make([]*model.Team, n)
	for i := range teams {
		managerID := uuid.New()
		teams[i] = &model.Team{
			ID:        uuid.New(),
			ManagerID: &managerID,
			Manager:   &model.User{ID: managerID, Role: model.RoleEmployee},
		}
	}
	return teams
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseSweepMode(t *testing.T) {
	mode, err := ParseSweepMode("Retract")
	require.NoError(t, err)
	assert.Equal(t, SweepRetract, mode)

	_, err = ParseSweepMode("delete")
	assert.Error(t, err)
}

func TestSweep_ReportPagesThroughEverything(t *testing.T) {
	f := newFixture(t)
	recorder := &sweepAudit{}
	sweeper := NewManagerAssignmentSweeper(f.teams, recorder, time.Hour, SweepReport, quietLogger())
	sweeper.SetBatchSize(2)

	batch1, batch2 := staleTeams(2), staleTeams(1)
	gomock.InOrder(
		f.teams.EXPECT().FindStaleManagers(gomock.Any(), 0, 2).Return(batch1, nil),
		f.teams.EXPECT().FindStaleManagers(gomock.Any(), 2, 2).Return(batch2, nil),
	)

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Stale: 3}, result)
	assert.Equal(t, []string{model.ActionManagerStale, model.ActionManagerStale, model.ActionManagerStale}, recorder.actions)
}

func TestSweep_RetractSkipsOnlyFailures(t *testing.T) {
	f := newFixture(t)
	recorder := &sweepAudit{}
	sweeper := NewManagerAssignmentSweeper(f.teams, recorder, time.Hour, SweepRetract, quietLogger())
	sweeper.SetBatchSize(2)

	batch1 := staleTeams(2)

	gomock.InOrder(
		f.teams.EXPECT().FindStaleManagers(gomock.Any(), 0, 2).Return(batch1, nil),
		f.teams.EXPECT().RetractManager(gomock.Any(), batch1[0].ID, retractReason, gomock.Any()).Return(errors.New("lock timeout")),
		f.teams.EXPECT().RetractManager(gomock.Any(), batch1[1].ID, retractReason, gomock.Any()).Return(nil),
		// The failed row is still stale and sorts first; only it is skipped.
		f.teams.EXPECT().FindStaleManagers(gomock.Any(), 1, 2).Return(nil, nil),
	)

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Stale: 2, Retracted: 1, Failed: 1}, result)
	assert.Equal(t, []string{model.ActionManagerRetract}, recorder.actions)
}

func TestSweep_StoreFailure(t *testing.T) {
	f := newFixture(t)
	sweeper := NewManagerAssignmentSweeper(f.teams, nil, time.Hour, "", quietLogger())
	f.teams.EXPECT().FindStaleManagers(gomock.Any(), 0, 100).Return(nil, errStoreDown)

	_, err := sweeper.Sweep(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
}
