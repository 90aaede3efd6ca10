// Package controller implements the administrative action handlers:
// each operation resolves the acting user, evaluates the authorization
// policy, validates input, and performs the persistence write inside a
// transaction, emitting an audit event on success.
package controller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/avelar/orgadmin/internal/admin/db"
	e "github.com/avelar/orgadmin/internal/admin/errors"
	"github.com/avelar/orgadmin/internal/admin/events"
	"github.com/avelar/orgadmin/internal/admin/models"
	"github.com/avelar/orgadmin/internal/admin/policy"
)

// EventProducer publishes audit events for completed actions.
type EventProducer interface {
	Produce(eventType events.EventType, actorID, entityID uuid.UUID, payload interface{})
}

// Repository defines the storage surface the controllers consume.
// Implemented by *db.Repository.
type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error

	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	UpdateCompany(ctx context.Context, update *models.CompanyUpdate) error
	SetCompanyLifecycle(ctx context.Context, id uuid.UUID, archivedAt, deletedAt *time.Time) error
	DeleteCompany(ctx context.Context, id uuid.UUID) error
	ListCompanies(ctx context.Context) ([]models.Company, error)
	SlugTaken(ctx context.Context, slug string, exclude uuid.UUID) (bool, error)

	CreateDepartment(ctx context.Context, dep *models.Department) error
	GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error)
	RenameDepartment(ctx context.Context, id uuid.UUID, name string) error
	DeleteDepartment(ctx context.Context, id uuid.UUID) error
	ListDepartments(ctx context.Context, companyID *uuid.UUID) ([]models.Department, error)
	DepartmentNameTaken(ctx context.Context, companyID uuid.UUID, name string, exclude uuid.UUID) (bool, error)

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, update *models.UserUpdate) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, companyID *uuid.UUID) ([]models.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
}

// resolveActor loads the acting user and converts it into a policy
// actor. A session pointing at a user that no longer exists counts as
// unauthenticated.
func resolveActor(ctx context.Context, repo Repository, actorID uuid.UUID) (policy.Actor, error) {
	usr, err := repo.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return policy.Actor{}, e.ErrUnauthenticated
		}
		return policy.Actor{}, err
	}
	return policy.Actor{ID: usr.ID, Role: usr.Role, CompanyID: usr.CompanyID}, nil
}
