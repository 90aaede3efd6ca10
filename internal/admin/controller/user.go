package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelar/orgadmin/internal/admin/db"
	e "github.com/avelar/orgadmin/internal/admin/errors"
	"github.com/avelar/orgadmin/internal/admin/events"
	"github.com/avelar/orgadmin/internal/admin/identity"
	"github.com/avelar/orgadmin/internal/admin/models"
	"github.com/avelar/orgadmin/internal/admin/policy"
)

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 8

// NewUser carries the input for user creation. CompanyID is advisory:
// for admin actors it is ignored and forced to their own company.
type NewUser struct {
	Name         string
	Email        string
	Password     string
	Role         models.Role
	CompanyID    *uuid.UUID
	DepartmentID *uuid.UUID
}

// UserService manages operator accounts and their credentials.
type UserService struct {
	repo     Repository
	identity *identity.Store
	producer EventProducer
	logger   *zap.Logger
}

func NewUserService(repo Repository, ids *identity.Store, producer EventProducer, logger *zap.Logger) *UserService {
	return &UserService{
		repo:     repo,
		identity: ids,
		producer: producer,
		logger:   logger.Named("user_service"),
	}
}

// Create signs up a user through the identity store and promotes it
// with role and tenant placement, all in one transaction.
func (s *UserService) Create(ctx context.Context, actorID uuid.UUID, nu NewUser) (*models.User, error) {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return nil, err
	}
	scope, dec := policy.UserCreateScope(actor, nu.Role, nu.CompanyID)
	if err := dec.Err(); err != nil {
		return nil, err
	}

	if nu.Name == "" || nu.Email == "" {
		return nil, fmt.Errorf("%w: name and email are required", e.ErrInvalidInput)
	}
	if !nu.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", e.ErrInvalidInput, nu.Role)
	}
	if len(nu.Password) < MinPasswordLen {
		return nil, e.ErrPasswordTooShort
	}

	var usr *models.User
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		if scope != nil {
			if _, err := repo.GetCompany(ctx, *scope); err != nil {
				return err
			}
		}
		if nu.DepartmentID != nil {
			dep, err := repo.GetDepartment(ctx, *nu.DepartmentID)
			if err != nil {
				if errors.Is(err, e.ErrNotFound) {
					return e.ErrInvalidDepartment
				}
				return err
			}
			if err := policy.ValidateDepartmentAssignment(scope, *dep).Err(); err != nil {
				return err
			}
		}

		taken, err := repo.EmailTaken(ctx, nu.Email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return e.ErrEmailTaken
		}

		usr, err = s.identity.WithStorer(repo).SignUp(ctx, nu.Name, nu.Email, nu.Password)
		if err != nil {
			return err
		}
		if err := repo.AssignUser(ctx, usr.ID, nu.Role, scope, nu.DepartmentID); err != nil {
			return err
		}
		usr.Role = nu.Role
		usr.CompanyID = scope
		usr.DepartmentID = nu.DepartmentID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.producer.Produce(events.UserCreated, actorID, usr.ID, map[string]interface{}{
		"email": usr.Email,
		"role":  usr.Role,
	})
	return usr, nil
}

// Update modifies a user in place. Department moves are re-validated
// against the cross-tenant guard for every role.
func (s *UserService) Update(ctx context.Context, actorID uuid.UUID, update *models.UserUpdate) (*models.User, error) {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return nil, err
	}

	target, err := s.repo.GetUser(ctx, update.ID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanUpdateUser(actor, *target, update.Role).Err(); err != nil {
		return nil, err
	}

	if update.Role != nil && !update.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", e.ErrInvalidInput, *update.Role)
	}
	if update.Name != nil && *update.Name == "" {
		return nil, fmt.Errorf("%w: name is required", e.ErrInvalidInput)
	}

	var updated *models.User
	err = s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		if update.DepartmentID != nil {
			dep, err := repo.GetDepartment(ctx, *update.DepartmentID)
			if err != nil {
				if errors.Is(err, e.ErrNotFound) {
					return e.ErrInvalidDepartment
				}
				return err
			}
			if err := policy.ValidateDepartmentAssignment(target.CompanyID, *dep).Err(); err != nil {
				return err
			}
		}
		if err := repo.UpdateUser(ctx, update); err != nil {
			return err
		}
		updated, err = repo.GetUser(ctx, update.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.producer.Produce(events.UserUpdated, actorID, updated.ID, map[string]interface{}{
		"role": updated.Role,
	})
	return updated, nil
}

// Delete removes a user and its credentials outright. Self-deletion is
// always refused.
func (s *UserService) Delete(ctx context.Context, actorID, targetID uuid.UUID) error {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return err
	}

	target, err := s.repo.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if err := policy.CanDeleteUser(actor, *target).Err(); err != nil {
		return err
	}

	if err := s.repo.DeleteUser(ctx, targetID); err != nil {
		return err
	}

	s.producer.Produce(events.UserDeleted, actorID, targetID, map[string]interface{}{
		"email": target.Email,
	})
	return nil
}

// List returns users visible to the actor. Members have no user
// administration surface at all.
func (s *UserService) List(ctx context.Context, actorID uuid.UUID, companyID *uuid.UUID) ([]models.User, error) {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleMember {
		return nil, e.ErrForbidden
	}
	scope, dec := policy.ListScope(actor, companyID)
	if err := dec.Err(); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx, scope)
}

// ChangePassword sets a new password for target. On the self-service
// path the current password must be supplied and verified; the
// administrative path skips it but is gated by the policy matrix.
func (s *UserService) ChangePassword(ctx context.Context, actorID, targetID uuid.UUID, currentPassword, newPassword string) error {
	actor, err := resolveActor(ctx, s.repo, actorID)
	if err != nil {
		return err
	}

	target, err := s.repo.GetUser(ctx, targetID)
	if err != nil {
		return err
	}
	if err := policy.CanChangePassword(actor, *target).Err(); err != nil {
		return err
	}

	if len(newPassword) < MinPasswordLen {
		return e.ErrPasswordTooShort
	}

	if actor.ID == target.ID {
		if err := s.identity.VerifyPassword(ctx, target.ID, currentPassword); err != nil {
			return err
		}
	}

	if err := s.identity.SetPassword(ctx, target.ID, newPassword); err != nil {
		return err
	}

	s.producer.Produce(events.PasswordChanged, actorID, targetID, nil)
	return nil
}

// Login verifies an email/password pair and returns the user. Token
// issuance is the transport's concern.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	return s.identity.Authenticate(ctx, email, password)
}

// EnsureSuperUser seeds the initial super user if no user with the
// given email exists yet. Called once at startup when seed credentials
// are configured.
func (s *UserService) EnsureSuperUser(ctx context.Context, name, email, password string) error {
	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, e.ErrNotFound) {
		return err
	}
	if len(password) < MinPasswordLen {
		return e.ErrPasswordTooShort
	}

	return s.repo.WithTransaction(ctx, func(repo *db.Repository) error {
		usr, err := s.identity.WithStorer(repo).SignUp(ctx, name, email, password)
		if err != nil {
			return err
		}
		if err := repo.AssignUser(ctx, usr.ID, models.RoleSuperUser, nil, nil); err != nil {
			return err
		}
		s.logger.Info("seeded super user", zap.String("email", email))
		return nil
	})
}
