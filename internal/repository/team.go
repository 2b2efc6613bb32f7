// internal/repository/team.go
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

type TeamRepositoryIface interface {
	Create(ctx context.Context, team *model.Team) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Team, error)
	FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.Team, error)
	FindByManager(ctx context.Context, managerID uuid.UUID) ([]*model.Team, error)
	CountByManager(ctx context.Context, managerID uuid.UUID) (int64, error)
	AssignManager(ctx context.Context, teamID uuid.UUID, assignment *model.ManagerAssignment) error
	RetractManager(ctx context.Context, teamID uuid.UUID, reason string, at time.Time) error
	FindStaleManagers(ctx context.Context, offset, limit int) ([]*model.Team, error)
}

type TeamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) Create(ctx context.Context, team *model.Team) error {
	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}
	if err := conn(ctx, r.db).Omit("Organization", "Manager").Create(team).Error; err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	return nil
}

func (r *TeamRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Team, error) {
	var team model.Team
	if err := conn(ctx, r.db).First(&team, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.ErrTeamNotFound, "finding team")
	}
	return &team, nil
}

// FindByOrganization returns the organization's teams ordered by name.
func (r *TeamRepository) FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]*model.Team, error) {
	var teams []*model.Team
	if err := conn(ctx, r.db).Where("organization_id = ?", orgID).Order("name ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("finding organization teams: %w", err)
	}
	return teams, nil
}

func (r *TeamRepository) FindByManager(ctx context.Context, managerID uuid.UUID) ([]*model.Team, error) {
	var teams []*model.Team
	if err := conn(ctx, r.db).Where("manager_id = ?", managerID).Order("name ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("finding managed teams: %w", err)
	}
	return teams, nil
}

func (r *TeamRepository) CountByManager(ctx context.Context, managerID uuid.UUID) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&model.Team{}).Where("manager_id = ?", managerID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting managed teams: %w", err)
	}
	return count, nil
}

// AssignManager sets the team's manager and records the assignment snapshot.
// Any open snapshot for the team is closed first.
func (r *TeamRepository) AssignManager(ctx context.Context, teamID uuid.UUID, assignment *model.ManagerAssignment) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Team{}).Where("id = ?", teamID).Update("manager_id", assignment.UserID)
		if result.Error != nil {
			return fmt.Errorf("setting team manager: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrTeamNotFound
		}

		if err := tx.Model(&model.ManagerAssignment{}).
			Where("team_id = ? AND retracted_at IS NULL", teamID).
			Updates(map[string]interface{}{
				"retracted_at":   assignment.AssignedAt,
				"retract_reason": "replaced",
			}).Error; err != nil {
			return fmt.Errorf("closing previous assignment: %w", err)
		}

		if assignment.ID == uuid.Nil {
			assignment.ID = uuid.New()
		}
		assignment.TeamID = teamID
		if err := tx.Create(assignment).Error; err != nil {
			return fmt.Errorf("recording manager assignment: %w", err)
		}
		return nil
	})
}

// RetractManager clears the team's manager and closes the open snapshot.
func (r *TeamRepository) RetractManager(ctx context.Context, teamID uuid.UUID, reason string, at time.Time) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Team{}).Where("id = ?", teamID).Update("manager_id", nil)
		if result.Error != nil {
			return fmt.Errorf("clearing team manager: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrTeamNotFound
		}

		if err := tx.Model(&model.ManagerAssignment{}).
			Where("team_id = ? AND retracted_at IS NULL", teamID).
			Updates(map[string]interface{}{
				"retracted_at":   at,
				"retract_reason": reason,
			}).Error; err != nil {
			return fmt.Errorf("closing assignment: %w", err)
		}
		return nil
	})
}

// FindStaleManagers returns teams whose manager no longer holds the MANAGER
// role. Manager is preloaded.
func (r *TeamRepository) FindStaleManagers(ctx context.Context, offset, limit int) ([]*model.Team, error) {
	var teams []*model.Team
	err := conn(ctx, r.db).
		Joins("JOIN users ON users.id = teams.manager_id").
		Where("users.role <> ?", model.RoleManager).
		Preload("Manager").
		Order("teams.id ASC").
		Offset(offset).
		Limit(limit).
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("finding stale managers: %w", err)
	}
	return teams, nil
}
