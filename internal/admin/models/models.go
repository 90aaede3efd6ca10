// Package models defines the core domain models for the admin service:
// companies, departments, users, and their credential accounts.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the permission level of a user within the hierarchy.
type Role string

const (
	// RoleSuperUser administers every company.
	RoleSuperUser Role = "SUPER_USER"
	// RoleAdmin administers a single company.
	RoleAdmin Role = "ADMIN"
	// RoleMember has no administrative rights.
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperUser, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Company is a tenant. ArchivedAt/DeletedAt model the scheduled-deletion
// lifecycle: both nil while active, both set once archived. DeletedAt is
// the instant permanent deletion becomes eligible, stamped once at
// archive time and never recomputed.
type Company struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	Slug       string     `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Archived reports whether the company is in the archived state.
func (c *Company) Archived() bool {
	return c.ArchivedAt != nil
}

// CompanyUpdate carries the updatable company fields. Pointer fields
// allow partial updates.
type CompanyUpdate struct {
	ID   uuid.UUID
	Name *string
	Slug *string
}

// Department is an organizational sub-unit owned by exactly one company.
// Name is unique within the owning company.
type Department struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:idx_departments_company_name" json:"name"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_departments_company_name;index" json:"company_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an operator account. CompanyID and DepartmentID are optional;
// when both are set the department must belong to the same company.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role         Role       `gorm:"size:32;not null" json:"role"`
	CompanyID    *uuid.UUID `gorm:"type:uuid;index" json:"company_id,omitempty"`
	DepartmentID *uuid.UUID `gorm:"type:uuid;index" json:"department_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserUpdate carries the updatable user fields.
type UserUpdate struct {
	ID           uuid.UUID
	Name         *string
	Role         *Role
	DepartmentID *uuid.UUID
	// ClearDepartment distinguishes "leave unchanged" (false, nil
	// DepartmentID) from "detach from department".
	ClearDepartment bool
}

// Account holds the credential for one user. It is owned by the
// identity store; the admin core only ever mutates the hash through
// password-change operations.
type Account struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	PasswordHash []byte    `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
