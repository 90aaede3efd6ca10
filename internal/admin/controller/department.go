package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelar/orgadmin/internal/admin/db"
	e "github.com/avelar/orgadmin/internal/admin/errors"
	"github.com/avelar/orgadmin/internal/admin/events"
	"github.com/avelar/orgadmin/internal/admin/models"
	"github.com/avelar/orgadmin/internal/admin/policy"
)

// DepartmentService manages organizational sub-units within a company.
type DepartmentService struct {
	repo     Repository
	producer EventProducer
	logger   *zap.Logger
}

func NewDepartmentService(repo Repository, producer EventProducer, logger *zap.Logger) *DepartmentService {
	return &DepartmentService{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("department_service"),
	}
}

// Create adds a department. Admins always create inside their own
// company; the super user must name the target company.
func (s *DepartmentService) Create(ctx context.Context, actorID uuid.UUID, name string, companyID *uuid.UUID) (*models.Department, error) {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return nil, err
	}
	scope, dec := policy.DepartmentCreateScope(actor, companyID)
	if err := dec.Err(); err != nil {
		return nil, err
	}

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", e.ErrInvalidInput)
	}

	now := time.Now()
	dep := &models.Department{
		ID:        uuid.New(),
		Name:      name,
		CompanyID: scope,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		if _, err := repo.GetCompany(ctx, scope); err != nil {
			return err
		}
		taken, err := repo.DepartmentNameTaken(ctx, scope, name, uuid.Nil)
		if err != nil {
			return fmt.Errorf("check department name: %w", err)
		}
		if taken {
			return e.ErrDuplicateName
		}
		return repo.CreateDepartment(ctx, dep)
	})
	if err != nil {
		return nil, err
	}

	s.producer.Produce(events.DepartmentCreated, actorID, dep.ID, dep)
	return dep, nil
}

// Update renames a department, scoped to the actor's tenant for admins.
func (s *DepartmentService) Update(ctx context.Context, actorID, departmentID uuid.UUID, name string) (*models.Department, error) {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return nil, err
	}

	dep, err := s.repo.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanTouchDepartment(actor, *dep).Err(); err != nil {
		return nil, err
	}

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", e.ErrInvalidInput)
	}

	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		taken, err := repo.DepartmentNameTaken(ctx, dep.CompanyID, name, departmentID)
		if err != nil {
			return fmt.Errorf("check department name: %w", err)
		}
		if taken {
			return e.ErrDuplicateName
		}
		return repo.RenameDepartment(ctx, departmentID, name)
	})
	if err != nil {
		return nil, err
	}

	dep.Name = name
	s.producer.Produce(events.DepartmentUpdated, actorID, dep.ID, dep)
	return dep, nil
}

// Delete removes a department. Its users stay and merely lose the
// department reference.
func (s *DepartmentService) Delete(ctx context.Context, actorID, departmentID uuid.UUID) error {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return err
	}

	dep, err := s.repo.GetDepartment(ctx, departmentID)
	if err != nil {
		return err
	}
	if err := policy.CanTouchDepartment(actor, *dep).Err(); err != nil {
		return err
	}

	if err := s.repo.DeleteDepartment(ctx, departmentID); err != nil {
		return err
	}

	s.producer.Produce(events.DepartmentDeleted, actorID, departmentID, nil)
	return nil
}

// List returns departments visible to the actor, optionally narrowed to
// one company. Non-super actors are pinned to their own company.
func (s *DepartmentService) List(ctx context.Context, actorID uuid.UUID, companyID *uuid.UUID) ([]models.Department, error) {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return nil, err
	}
	scope, dec := policy.ListScope(actor, companyID)
	if err := dec.Err(); err != nil {
		return nil, err
	}
	return s.repo.ListDepartments(ctx, scope)
}
