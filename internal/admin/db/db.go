// Package db implements the relational repository for the admin
// service on top of GORM. Cascades (company -> departments/users ->
// accounts) and set-null (department -> users) are executed explicitly
// inside transactions so the behavior is identical across drivers.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	e "github.com/avelar/orgadmin/internal/admin/errors"
	"github.com/avelar/orgadmin/internal/admin/models"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewRepository(cfg *Config) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// NewWithDB wraps an already-open GORM handle. Used by tests running
// against in-memory SQLite.
func NewWithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the schema for all admin entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Company{},
		&models.Department{},
		&models.User{},
		&models.Account{},
	)
}

// WithTransaction runs fn against a repository bound to a single
// transaction, committing on nil and rolling back on error.
func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// ----------------------------------------------------------------------------
// Companies

func (r *Repository) CreateCompany(ctx context.Context, company *models.Company) error {
	result := r.db.WithContext(ctx).Create(company)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrSlugTaken
		}
		return result.Error
	}
	return nil
}

func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	result := r.db.WithContext(ctx).First(&company, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrCompanyNotFound
		}
		return nil, result.Error
	}
	return &company, nil
}

func (r *Repository) UpdateCompany(ctx context.Context, update *models.CompanyUpdate) error {
	fields := map[string]interface{}{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Slug != nil {
		fields["slug"] = *update.Slug
	}
	if len(fields) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&models.Company{}).
		Where("id = ?", update.ID).
		Updates(fields)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrSlugTaken
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrCompanyNotFound
	}
	return nil
}

// SetCompanyLifecycle stamps (or clears) the archive and scheduled
// deletion markers. Both are written as given; callers compute them
// once and never re-derive.
func (r *Repository) SetCompanyLifecycle(ctx context.Context, id uuid.UUID, archivedAt, deletedAt *time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Company{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"archived_at": archivedAt,
			"deleted_at":  deletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrCompanyNotFound
	}
	return nil
}

// DeleteCompany permanently removes a company together with its
// departments, users, and those users' accounts.
func (r *Repository) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	return r.WithTransaction(ctx, func(repo *Repository) error {
		tx := repo.db

		var userIDs []uuid.UUID
		if err := tx.Model(&models.User{}).
			Where("company_id = ?", id).
			Pluck("id", &userIDs).Error; err != nil {
			return err
		}
		if len(userIDs) > 0 {
			if err := tx.Where("user_id IN ?", userIDs).Delete(&models.Account{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", userIDs).Delete(&models.User{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("company_id = ?", id).Delete(&models.Department{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Company{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return e.ErrCompanyNotFound
		}
		return nil
	})
}

func (r *Repository) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	result := r.db.WithContext(ctx).Order("name asc").Find(&companies)
	return companies, result.Error
}

// CompaniesDueForDeletion returns archived companies whose scheduled
// deletion instant has passed.
func (r *Repository) CompaniesDueForDeletion(ctx context.Context, now time.Time) ([]models.Company, error) {
	var companies []models.Company
	result := r.db.WithContext(ctx).
		Where("deleted_at IS NOT NULL AND deleted_at <= ?", now).
		Find(&companies)
	return companies, result.Error
}

// SlugTaken reports whether another company already uses slug. exclude
// skips the company being edited on updates.
func (r *Repository) SlugTaken(ctx context.Context, slug string, exclude uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Company{}).
		Where("slug = ? AND id <> ?", slug, exclude).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// ----------------------------------------------------------------------------
// Departments

func (r *Repository) CreateDepartment(ctx context.Context, dep *models.Department) error {
	result := r.db.WithContext(ctx).Create(dep)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateName
		}
		return result.Error
	}
	return nil
}

func (r *Repository) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	var dep models.Department
	result := r.db.WithContext(ctx).First(&dep, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &dep, nil
}

func (r *Repository) RenameDepartment(ctx context.Context, id uuid.UUID, name string) error {
	result := r.db.WithContext(ctx).Model(&models.Department{}).
		Where("id = ?", id).
		Update("name", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicateName
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// DeleteDepartment removes the department and detaches its users.
// Users are never cascaded; their department reference is cleared.
func (r *Repository) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	return r.WithTransaction(ctx, func(repo *Repository) error {
		tx := repo.db

		if err := tx.Model(&models.User{}).
			Where("department_id = ?", id).
			Update("department_id", nil).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Department{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return e.ErrNotFound
		}
		return nil
	})
}

// ListDepartments returns departments, optionally filtered to one
// company, ordered by name.
func (r *Repository) ListDepartments(ctx context.Context, companyID *uuid.UUID) ([]models.Department, error) {
	var deps []models.Department
	q := r.db.WithContext(ctx).Order("name asc")
	if companyID != nil {
		q = q.Where("company_id = ?", *companyID)
	}
	result := q.Find(&deps)
	return deps, result.Error
}

// DepartmentNameTaken reports whether the company already has another
// department with this name.
func (r *Repository) DepartmentNameTaken(ctx context.Context, companyID uuid.UUID, name string, exclude uuid.UUID) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Department{}).
		Where("company_id = ? AND name = ? AND id <> ?", companyID, name, exclude).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// ----------------------------------------------------------------------------
// Users

func (r *Repository) CreateUser(ctx context.Context, usr *models.User) error {
	result := r.db.WithContext(ctx).Create(usr)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrEmailTaken
		}
		return result.Error
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var usr models.User
	result := r.db.WithContext(ctx).First(&usr, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &usr, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var usr models.User
	result := r.db.WithContext(ctx).First(&usr, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &usr, nil
}

func (r *Repository) UpdateUser(ctx context.Context, update *models.UserUpdate) error {
	fields := map[string]interface{}{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Role != nil {
		fields["role"] = *update.Role
	}
	if update.DepartmentID != nil {
		fields["department_id"] = *update.DepartmentID
	} else if update.ClearDepartment {
		fields["department_id"] = nil
	}
	if len(fields) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", update.ID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// AssignUser promotes a freshly signed-up user with its role and tenant
// placement in one write.
func (r *Repository) AssignUser(ctx context.Context, id uuid.UUID, role models.Role, companyID, departmentID *uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"role":          role,
			"company_id":    companyID,
			"department_id": departmentID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// DeleteUser removes the user and its credential account.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return r.WithTransaction(ctx, func(repo *Repository) error {
		tx := repo.db

		if err := tx.Where("user_id = ?", id).Delete(&models.Account{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.User{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return e.ErrNotFound
		}
		return nil
	})
}

// ListUsers returns users, optionally filtered to one company, ordered
// by name.
func (r *Repository) ListUsers(ctx context.Context, companyID *uuid.UUID) ([]models.User, error) {
	var users []models.User
	q := r.db.WithContext(ctx).Order("name asc")
	if companyID != nil {
		q = q.Where("company_id = ?", *companyID)
	}
	result := q.Find(&users)
	return users, result.Error
}

// EmailTaken reports whether a user with this email already exists.
func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Limit(1).
		Count(&count)
	return count > 0, result.Error
}

// ----------------------------------------------------------------------------
// Accounts

func (r *Repository) CreateAccount(ctx context.Context, acc *models.Account) error {
	return r.db.WithContext(ctx).Create(acc).Error
}

func (r *Repository) GetAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	var acc models.Account
	result := r.db.WithContext(ctx).First(&acc, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &acc, nil
}

func (r *Repository) SetAccountPassword(ctx context.Context, userID uuid.UUID, hash []byte) error {
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ?", userID).
		Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}
