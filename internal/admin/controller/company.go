package controller

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelar/orgadmin/internal/admin/db"
	e "github.com/avelar/orgadmin/internal/admin/errors"
	"github.com/avelar/orgadmin/internal/admin/events"
	"github.com/avelar/orgadmin/internal/admin/models"
	"github.com/avelar/orgadmin/internal/admin/policy"
	"github.com/avelar/orgadmin/internal/pkg/slug"
)

// GracePeriod is the window between archiving a company and its
// eligibility for permanent deletion. The deletion instant is stamped
// once at archive time; later comparisons always use the stored value.
const GracePeriod = 30 * 24 * time.Hour

// CompanyService manages the tenant lifecycle: creation, renaming,
// archive/restore, and permanent deletion with cascade.
type CompanyService struct {
	repo     Repository
	producer EventProducer
	clock    clock.Clock
	logger   *zap.Logger
}

func NewCompanyService(repo Repository, producer EventProducer, clk clock.Clock, logger *zap.Logger) *CompanyService {
	return &CompanyService{
		repo:     repo,
		producer: producer,
		clock:    clk,
		logger:   logger.Named("company_service"),
	}
}

// Create adds a new company. Only the super user may create tenants.
// An empty slug is derived from the name; a supplied slug is validated
// server-side regardless of what the client suggested.
func (s *CompanyService) Create(ctx context.Context, actorID uuid.UUID, name, slugValue string) (*models.Company, error) {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageCompany(actor).Err(); err != nil {
		return nil, err
	}

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", e.ErrInvalidInput)
	}
	if slugValue == "" {
		slugValue = slug.Make(name)
	}
	if !slug.Validate(slugValue) {
		return nil, e.ErrInvalidSlug
	}

	now := s.clock.Now()
	company := &models.Company{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slugValue,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		taken, err := repo.SlugTaken(ctx, slugValue, uuid.Nil)
		if err != nil {
			return fmt.Errorf("check slug: %w", err)
		}
		if taken {
			return e.ErrSlugTaken
		}
		return repo.CreateCompany(ctx, company)
	})
	if err != nil {
		return nil, err
	}

	s.producer.Produce(events.CompanyCreated, actorID, company.ID, company)
	return company, nil
}

// Update renames a company and optionally changes its slug. Uniqueness
// is checked against every company except the one being edited.
func (s *CompanyService) Update(ctx context.Context, actorID uuid.UUID, update *models.CompanyUpdate) (*models.Company, error) {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanManageCompany(actor).Err(); err != nil {
		return nil, err
	}

	if update.Slug != nil && !slug.Validate(*update.Slug) {
		return nil, e.ErrInvalidSlug
	}
	if update.Name != nil && *update.Name == "" {
		return nil, fmt.Errorf("%w: name is required", e.ErrInvalidInput)
	}

	var updated *models.Company
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		if update.Slug != nil {
			taken, err := repo.SlugTaken(ctx, *update.Slug, update.ID)
			if err != nil {
				return fmt.Errorf("check slug: %w", err)
			}
			if taken {
				return e.ErrSlugTaken
			}
		}
		if err := repo.UpdateCompany(ctx, update); err != nil {
			return err
		}
		updated, err = repo.GetCompany(ctx, update.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.producer.Produce(events.CompanyUpdated, actorID, updated.ID, updated)
	return updated, nil
}

// Archive moves an active company into the archived state and stamps
// the scheduled deletion instant. Returns the computed deletion date.
func (s *CompanyService) Archive(ctx context.Context, actorID, companyID uuid.UUID) (time.Time, error) {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return time.Time{}, err
	}
	if err := policy.CanManageCompany(actor).Err(); err != nil {
		return time.Time{}, err
	}

	now := s.clock.Now()
	deletionDate := now.Add(GracePeriod)

	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		company, err := repo.GetCompany(ctx, companyID)
		if err != nil {
			return err
		}
		if company.Archived() {
			return e.ErrAlreadyArchived
		}
		return repo.SetCompanyLifecycle(ctx, companyID, &now, &deletionDate)
	})
	if err != nil {
		return time.Time{}, err
	}

	s.producer.Produce(events.CompanyArchived, actorID, companyID, map[string]interface{}{
		"deletion_date": deletionDate,
	})
	return deletionDate, nil
}

// Restore brings an archived company back to the active state, allowed
// only while the stored deletion instant is still in the future.
func (s *CompanyService) Restore(ctx context.Context, actorID, companyID uuid.UUID) error {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return err
	}
	if err := policy.CanManageCompany(actor).Err(); err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		company, err := repo.GetCompany(ctx, companyID)
		if err != nil {
			return err
		}
		if !company.Archived() {
			return e.ErrNotArchived
		}
		if company.DeletedAt != nil && !s.clock.Now().Before(*company.DeletedAt) {
			return e.ErrGraceExpired
		}
		return repo.SetCompanyLifecycle(ctx, companyID, nil, nil)
	})
	if err != nil {
		return err
	}

	s.producer.Produce(events.CompanyRestored, actorID, companyID, nil)
	return nil
}

// Delete permanently removes a company and everything beneath it.
// Without force it requires the company to be archived and its grace
// period elapsed; force deletes immediately from any state.
func (s *CompanyService) Delete(ctx context.Context, actorID, companyID uuid.UUID, force bool) error {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return err
	}
	if err := policy.CanManageCompany(actor).Err(); err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		company, err := repo.GetCompany(ctx, companyID)
		if err != nil {
			return err
		}
		if !force {
			if !company.Archived() {
				return e.ErrMustArchiveFirst
			}
			if company.DeletedAt != nil {
				if remaining := company.DeletedAt.Sub(s.clock.Now()); remaining > 0 {
					days := int(math.Ceil(remaining.Hours() / 24))
					return fmt.Errorf("%w: %d day(s) remaining", e.ErrGracePeriod, days)
				}
			}
		}
		return repo.DeleteCompany(ctx, companyID)
	})
	if err != nil {
		return err
	}

	s.producer.Produce(events.CompanyDeleted, actorID, companyID, map[string]interface{}{
		"forced": force,
	})
	return nil
}

// List returns the companies visible to the actor: all of them for the
// super user, only their own for everyone else.
func (s *CompanyService) List(ctx context.Context, actorID uuid.UUID) ([]models.Company, error) {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return nil, err
	}

	if actor.Role == models.RoleSuperUser {
		return s.repo.ListCompanies(ctx)
	}
	if actor.CompanyID == nil {
		return []models.Company{}, nil
	}
	company, err := s.repo.GetCompany(ctx, *actor.CompanyID)
	if err != nil {
		return nil, err
	}
	return []models.Company{*company}, nil
}
