// internal/repository/organization.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrganizationRepositoryIface interface {
	Create(ctx context.Context, org *model.Organization) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	FindByCode(ctx context.Context, code string) (*model.Organization, error)
	FindAllPaginated(ctx context.Context, offset, limit int) ([]*model.Organization, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// NormalizeCode canonicalizes a human-entered organization code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *OrganizationRepository) Create(ctx context.Context, org *model.Organization) error {
	org.Code = NormalizeCode(org.Code)
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}

	if err := conn(ctx, r.db).Create(org).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrOrganizationCodeTaken
		}
		return fmt.Errorf("creating organization: %w", err)
	}
	return nil
}

func (r *OrganizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	var org model.Organization
	if err := conn(ctx, r.db).First(&org, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.ErrOrganizationNotFound, "finding organization")
	}
	return &org, nil
}

// FindByCode resolves a tenant code. An unknown code yields
// domain.ErrOrganizationNotFound, never a generic error.
func (r *OrganizationRepository) FindByCode(ctx context.Context, code string) (*model.Organization, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, domain.ErrOrganizationNotFound
	}

	var org model.Organization
	if err := conn(ctx, r.db).First(&org, "code = ?", normalized).Error; err != nil {
		return nil, notFound(err, domain.ErrOrganizationNotFound, "finding organization by code")
	}
	return &org, nil
}

// FindAllPaginated returns a paginated list of organizations
func (r *OrganizationRepository) FindAllPaginated(ctx context.Context, offset, limit int) ([]*model.Organization, int64, error) {
	var orgs []*model.Organization
	var count int64

	if err := conn(ctx, r.db).Model(&model.Organization{}).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count organizations: %w", err)
	}

	result := conn(ctx, r.db).Order("name ASC").Offset(offset).Limit(limit).Find(&orgs)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to find paginated organizations: %w", result.Error)
	}

	return orgs, count, nil
}

// Delete removes an organization and cascades to its teams. The organization
// must have no memberships; the count and the deletes share one transaction.
func (r *OrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		// FOR UPDATE conflicts with the key-share lock a concurrent membership
		// insert takes on the organization row.
		var org model.Organization
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&org, "id = ?", id).Error; err != nil {
			return notFound(err, domain.ErrOrganizationNotFound, "finding organization")
		}

		var members int64
		if err := tx.Model(&model.Membership{}).Where("organization_id = ?", id).Count(&members).Error; err != nil {
			return fmt.Errorf("counting memberships: %w", err)
		}
		if members > 0 {
			return domain.ErrOrganizationHasMembers
		}

		teamIDs := tx.Model(&model.Team{}).Select("id").Where("organization_id = ?", id)
		if err := tx.Where("team_id IN (?)", teamIDs).Delete(&model.ManagerAssignment{}).Error; err != nil {
			return fmt.Errorf("deleting manager assignments: %w", err)
		}

		if err := tx.Where("organization_id = ?", id).Delete(&model.Team{}).Error; err != nil {
			return fmt.Errorf("deleting teams: %w", err)
		}

		if err := tx.Delete(&model.Organization{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("deleting organization: %w", err)
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, domain.ErrOrganizationHasMembers) || errors.Is(err, domain.ErrOrganizationNotFound) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
