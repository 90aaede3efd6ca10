// Package errors defines the sentinel errors shared by the admin service.
// Handlers branch on these with errors.Is to pick status codes and
// user-facing messages; anything not in this list is treated as an
// internal failure and never shown to the caller verbatim.
package errors

import (
	"fmt"
)

var (
	// ErrUnauthenticated indicates the request carried no usable session.
	ErrUnauthenticated = fmt.Errorf("authentication required")
	// ErrForbidden indicates the actor is authenticated but the action is
	// outside their role/tenant scope.
	ErrForbidden = fmt.Errorf("insufficient permissions")
	// ErrNotFound indicates a referenced entity does not exist. Kept
	// distinct from ErrForbidden so callers can tell "missing" from
	// "not allowed".
	ErrNotFound = fmt.Errorf("not found")

	ErrInvalidInput = fmt.Errorf("invalid input")

	ErrInvalidSlug       = fmt.Errorf("slug must be lowercase letters, numbers, and hyphens only")
	ErrSlugTaken         = fmt.Errorf("company with this slug already exists")
	ErrDuplicateName     = fmt.Errorf("department with this name already exists in this company")
	ErrEmailTaken        = fmt.Errorf("user with this email already exists")
	ErrCompanyNotFound   = fmt.Errorf("company not found")
	ErrInvalidDepartment = fmt.Errorf("invalid department selection")

	ErrAdminHasNoCompany = fmt.Errorf("admin must be assigned to a company")
	ErrSelfDelete        = fmt.Errorf("cannot delete your own account")

	ErrAlreadyArchived  = fmt.Errorf("company is already archived")
	ErrNotArchived      = fmt.Errorf("company is not archived")
	ErrMustArchiveFirst = fmt.Errorf("company must be archived before deletion")
	ErrGracePeriod      = fmt.Errorf("grace period still active")
	ErrGraceExpired     = fmt.Errorf("restore window has passed")

	ErrWrongPassword     = fmt.Errorf("current password is incorrect")
	ErrPasswordTooShort  = fmt.Errorf("password must be at least 8 characters")
	ErrAuthenticationBad = fmt.Errorf("invalid email or password")
)
