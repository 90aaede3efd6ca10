// Package policy holds the authorization predicates for the admin
// service. Every mutating operation asks this package whether an actor
// (role + tenant) may act on a target (role + tenant) before touching
// the store. The predicates are pure so they can be tested without any
// persistence in place.
package policy

import (
	"github.com/google/uuid"

	e "github.com/avelar/orgadmin/internal/admin/errors"
	"github.com/avelar/orgadmin/internal/admin/models"
)

// Actor is the authenticated caller of an administrative action.
type Actor struct {
	ID        uuid.UUID
	Role      models.Role
	CompanyID *uuid.UUID
}

// Decision is the outcome of a policy evaluation. Reason is one of the
// sentinel errors from the errors package when the action is denied.
type Decision struct {
	Allowed bool
	Reason  error
}

// Allow is the positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny produces a negative decision carrying its reason.
func Deny(reason error) Decision {
	return Decision{Reason: reason}
}

// Err returns nil when the decision allows the action, the deny reason
// otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return d.Reason
}

// sameCompany reports whether target belongs to the actor's company.
// False when either side has no company assignment.
func sameCompany(a Actor, companyID *uuid.UUID) bool {
	return a.CompanyID != nil && companyID != nil && *a.CompanyID == *companyID
}

// CanManageCompany covers create, update, archive, restore, and delete
// of companies. Only the super user may touch tenant records.
func CanManageCompany(a Actor) Decision {
	if a.Role == models.RoleSuperUser {
		return Allow()
	}
	return Deny(e.ErrForbidden)
}

// DepartmentCreateScope resolves the company a new department belongs
// to. A super user must name a company explicitly; an admin always
// creates inside their own company regardless of what was requested.
func DepartmentCreateScope(a Actor, requested *uuid.UUID) (uuid.UUID, Decision) {
	switch a.Role {
	case models.RoleSuperUser:
		if requested == nil {
			return uuid.Nil, Deny(e.ErrInvalidInput)
		}
		return *requested, Allow()
	case models.RoleAdmin:
		if a.CompanyID == nil {
			return uuid.Nil, Deny(e.ErrAdminHasNoCompany)
		}
		return *a.CompanyID, Allow()
	}
	return uuid.Nil, Deny(e.ErrForbidden)
}

// CanTouchDepartment covers update and delete of an existing
// department.
func CanTouchDepartment(a Actor, dep models.Department) Decision {
	switch a.Role {
	case models.RoleSuperUser:
		return Allow()
	case models.RoleAdmin:
		if a.CompanyID == nil {
			return Deny(e.ErrAdminHasNoCompany)
		}
		if *a.CompanyID == dep.CompanyID {
			return Allow()
		}
		return Deny(e.ErrForbidden)
	}
	return Deny(e.ErrForbidden)
}

// UserCreateScope resolves the company a new user is assigned to and
// decides whether the actor may create a user with the requested role.
// For admins the company is forced to their own, never taken from the
// request. A super user may leave the company unset.
func UserCreateScope(a Actor, newRole models.Role, requested *uuid.UUID) (*uuid.UUID, Decision) {
	switch a.Role {
	case models.RoleSuperUser:
		return requested, Allow()
	case models.RoleAdmin:
		if newRole == models.RoleSuperUser {
			return nil, Deny(e.ErrForbidden)
		}
		if a.CompanyID == nil {
			return nil, Deny(e.ErrAdminHasNoCompany)
		}
		return a.CompanyID, Allow()
	}
	return nil, Deny(e.ErrForbidden)
}

// CanUpdateUser covers in-place updates of an existing user. newRole is
// the requested role change, nil when the role is untouched.
func CanUpdateUser(a Actor, target models.User, newRole *models.Role) Decision {
	switch a.Role {
	case models.RoleSuperUser:
		return Allow()
	case models.RoleAdmin:
		if a.CompanyID == nil {
			return Deny(e.ErrAdminHasNoCompany)
		}
		if !sameCompany(a, target.CompanyID) {
			return Deny(e.ErrForbidden)
		}
		if newRole != nil && *newRole == models.RoleSuperUser {
			return Deny(e.ErrForbidden)
		}
		return Allow()
	}
	return Deny(e.ErrForbidden)
}

// CanDeleteUser covers the administrative delete path. Self-deletion is
// denied for everyone, super user included; password self-service is
// the only self-targeting action in the system.
func CanDeleteUser(a Actor, target models.User) Decision {
	if a.ID == target.ID {
		return Deny(e.ErrSelfDelete)
	}
	switch a.Role {
	case models.RoleSuperUser:
		return Allow()
	case models.RoleAdmin:
		if a.CompanyID == nil {
			return Deny(e.ErrAdminHasNoCompany)
		}
		if sameCompany(a, target.CompanyID) && target.Role == models.RoleMember {
			return Allow()
		}
		return Deny(e.ErrForbidden)
	}
	return Deny(e.ErrForbidden)
}

// CanChangePassword decides whether the actor may set target's
// password. Changing one's own password is always allowed here; the
// controller additionally verifies the current password on that path.
func CanChangePassword(a Actor, target models.User) Decision {
	if a.ID == target.ID {
		return Allow()
	}
	switch a.Role {
	case models.RoleSuperUser:
		return Allow()
	case models.RoleAdmin:
		if a.CompanyID == nil {
			return Deny(e.ErrAdminHasNoCompany)
		}
		if sameCompany(a, target.CompanyID) && target.Role == models.RoleMember {
			return Allow()
		}
		return Deny(e.ErrForbidden)
	}
	return Deny(e.ErrForbidden)
}

// ValidateDepartmentAssignment enforces the cross-tenant guard: a
// department attached to a user must belong to the same company the
// user is being assigned to. This holds for every role.
func ValidateDepartmentAssignment(companyID *uuid.UUID, dep models.Department) Decision {
	if companyID == nil || *companyID != dep.CompanyID {
		return Deny(e.ErrInvalidDepartment)
	}
	return Allow()
}

// ListScope resolves the company filter for read operations: a super
// user sees whatever was requested (nil means everything); everyone
// else is pinned to their own company.
func ListScope(a Actor, requested *uuid.UUID) (*uuid.UUID, Decision) {
	if a.Role == models.RoleSuperUser {
		return requested, Allow()
	}
	if a.CompanyID == nil {
		if a.Role == models.RoleAdmin {
			return nil, Deny(e.ErrAdminHasNoCompany)
		}
		return nil, Deny(e.ErrForbidden)
	}
	return a.CompanyID, Allow()
}
