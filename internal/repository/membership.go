// internal/repository/membership.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MembershipRepositoryIface interface {
	Create(ctx context.Context, membership *model.Membership) error
	FindByUser(ctx context.Context, userID uuid.UUID) (*model.Membership, error)
	FindByTeam(ctx context.Context, teamID uuid.UUID) ([]*model.Membership, error)
	SetTeam(ctx context.Context, membershipID uuid.UUID, teamID *uuid.UUID) (*model.Membership, error)
	CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create inserts a membership. The unique index on user_id turns a second
// membership for the same user into domain.ErrDuplicateMembership.
func (r *MembershipRepository) Create(ctx context.Context, membership *model.Membership) error {
	if membership.ID == uuid.Nil {
		membership.ID = uuid.New()
	}

	if err := conn(ctx, r.db).Omit("User", "Organization").Create(membership).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateMembership
		}
		return fmt.Errorf("creating membership: %w", err)
	}
	return nil
}

func (r *MembershipRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*model.Membership, error) {
	var membership model.Membership
	if err := conn(ctx, r.db).First(&membership, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err, domain.ErrMembershipNotFound, "finding membership")
	}
	return &membership, nil
}

func (r *MembershipRepository) FindByTeam(ctx context.Context, teamID uuid.UUID) ([]*model.Membership, error) {
	var memberships []*model.Membership
	if err := conn(ctx, r.db).Preload("User").Where("team_id = ?", teamID).Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("finding team memberships: %w", err)
	}
	return memberships, nil
}

// SetTeam retargets a membership to teamID, or clears the team when teamID is
// nil. Last write wins.
func (r *MembershipRepository) SetTeam(ctx context.Context, membershipID uuid.UUID, teamID *uuid.UUID) (*model.Membership, error) {
	db := conn(ctx, r.db)
	result := db.Model(&model.Membership{}).Where("id = ?", membershipID).Update("team_id", teamID)
	if result.Error != nil {
		return nil, fmt.Errorf("updating membership team: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrMembershipNotFound
	}

	var membership model.Membership
	if err := db.First(&membership, "id = ?", membershipID).Error; err != nil {
		return nil, notFound(err, domain.ErrMembershipNotFound, "reloading membership")
	}
	return &membership, nil
}

func (r *MembershipRepository) CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&model.Membership{}).Where("organization_id = ?", orgID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting memberships: %w", err)
	}
	return count, nil
}

func (r *MembershipRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&model.Membership{}, "user_id = ?", userID)
	if result.Error != nil {
		return fmt.Errorf("deleting membership: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}
