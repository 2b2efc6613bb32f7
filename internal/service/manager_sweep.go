// internal/service/manager_sweep.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dangerclosesec/assessly/internal/audit"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/dangerclosesec/assessly/internal/repository"
)

// SweepMode selects what the sweep does with a stale assignment.
type SweepMode string

const (
	SweepReport  SweepMode = "report"
	SweepRetract SweepMode = "retract"
)

func ParseSweepMode(s string) (SweepMode, error) {
	mode := SweepMode(strings.ToLower(strings.TrimSpace(s)))
	switch mode {
	case SweepReport, SweepRetract:
		return mode, nil
	}
	return "", fmt.Errorf("sweep mode must be report or retract, got %q", s)
}

const retractReason = "manager no longer holds the MANAGER role"

// SweepResult summarizes one pass.
type SweepResult struct {
	Stale     int
	Retracted int
	Failed    int
}

// ManagerAssignmentSweeper periodically finds teams whose manager lost the
// MANAGER role after assignment, and reports or retracts them.
type ManagerAssignmentSweeper struct {
	teams       repository.TeamRepositoryIface
	audit       audit.Logger
	interval    time.Duration
	batchSize   int
	mode        SweepMode
	logger      *slog.Logger
	now         func() time.Time
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

func NewManagerAssignmentSweeper(
	teams repository.TeamRepositoryIface,
	auditLogger audit.Logger,
	interval time.Duration,
	mode SweepMode,
	logger *slog.Logger,
) *ManagerAssignmentSweeper {
	if interval == 0 {
		interval = 30 * time.Minute
	}
	if mode == "" {
		mode = SweepReport
	}
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ManagerAssignmentSweeper{
		teams:       teams,
		audit:       auditLogger,
		interval:    interval,
		batchSize:   100,
		mode:        mode,
		logger:      logger,
		now:         time.Now,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// SetBatchSize sets the number of teams fetched per query
func (s *ManagerAssignmentSweeper) SetBatchSize(size int) {
	if size > 0 {
		s.batchSize = size
	}
}

// Start begins the periodic sweep
func (s *ManagerAssignmentSweeper) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		defer close(s.stoppedChan)

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error("manager assignment sweep failed", "error", err)
				}
				cancel()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop halts the sweep and waits for the loop to exit
func (s *ManagerAssignmentSweeper) Stop() {
	close(s.stopChan)
	<-s.stoppedChan
}

// Sweep runs one pass over every stale assignment.
func (s *ManagerAssignmentSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	s.logger.Info("starting manager assignment sweep", "mode", s.mode)

	offset := 0
	for {
		batch, err := s.teams.FindStaleManagers(ctx, offset, s.batchSize)
		if err != nil {
			return result, fmt.Errorf("fetching stale managers: %w", err)
		}

		for _, team := range batch {
			result.Stale++
			if s.mode == SweepRetract {
				if err := s.retract(ctx, team); err != nil {
					result.Failed++
					s.logger.Error("failed to retract manager",
						"team_id", team.ID.String(),
						"error", err,
					)
					continue
				}
				result.Retracted++
				continue
			}
			s.report(ctx, team)
		}

		// Retracted rows drop out of the stale set. Rows that failed stay
		// and sort before anything unprocessed, so skip exactly those.
		if s.mode == SweepReport {
			offset += len(batch)
		} else {
			offset = result.Failed
		}

		if len(batch) < s.batchSize {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
	}

	s.logger.Info("completed manager assignment sweep",
		"mode", s.mode,
		"stale", result.Stale,
		"retracted", result.Retracted,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *ManagerAssignmentSweeper) report(ctx context.Context, team *model.Team) {
	attrs := []any{"team_id", team.ID.String()}
	if team.ManagerID != nil {
		attrs = append(attrs, "manager_id", team.ManagerID.String())
	}
	if team.Manager != nil {
		attrs = append(attrs, "current_role", team.Manager.Role)
	}
	s.logger.Warn("team manager no longer holds the MANAGER role", attrs...)

	if err := s.audit.LogManagerAssignment(ctx, model.ActionManagerStale, team, retractReason); err != nil {
		s.logger.Error("failed to audit stale manager", "team_id", team.ID.String(), "error", err)
	}
}

func (s *ManagerAssignmentSweeper) retract(ctx context.Context, team *model.Team) error {
	if err := s.teams.RetractManager(ctx, team.ID, retractReason, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("retracted stale manager", "team_id", team.ID.String())

	if err := s.audit.LogManagerAssignment(ctx, model.ActionManagerRetract, team, retractReason); err != nil {
		s.logger.Error("failed to audit manager retraction", "team_id", team.ID.String(), "error", err)
	}
	return nil
}
