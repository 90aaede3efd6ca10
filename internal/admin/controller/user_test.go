package controller

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	e "github.com/avelar/orgadmin/internal/admin/errors"
	"github.com/avelar/orgadmin/internal/admin/events"
	"github.com/avelar/orgadmin/internal/admin/models"
	"github.com/avelar/orgadmin/internal/pkg/utils"
)

func TestCreateUserHierarchy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	super := env.seedUser(t, "Root", "root@example.com", "password123", models.RoleSuperUser, nil, nil)

	acme, err := env.companies.Create(ctx, super.ID, "Acme", "")
	require.NoError(t, err)

	admin, err := env.users.Create(ctx, super.ID, NewUser{
		Name:      "Alice",
		Email:     "a@acme.com",
		Password:  "password123",
		Role:      models.RoleAdmin,
		CompanyID: &acme.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, admin.CompanyID)
	assert.Equal(t, acme.ID, *admin.CompanyID)

	// The admin creates a member without naming a company; it lands in
	// the admin's own company regardless.
	member, err := env.users.Create(ctx, admin.ID, NewUser{
		Name:     "Mallory",
		Email:    "m@acme.com",
		Password: "password123",
		Role:     models.RoleMember,
	})
	require.NoError(t, err)
	require.NotNil(t, member.CompanyID)
	assert.Equal(t, acme.ID, *member.CompanyID)

	credUser, err := env.users.Login(ctx, "m@acme.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, member.ID, credUser.ID)

	assert.Equal(t, 2, env.producer.Count(events.UserCreated))
}

func TestCreateUserAdminCannotMintSuperUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acme := env.seedCompany(t, "Acme", "acme")
	admin := env.seedUser(t, "Admin", "admin@acme.com", "password123", models.RoleAdmin, &acme.ID, nil)

	_, err := env.users.Create(ctx, admin.ID, NewUser{
		Name:     "Sneaky",
		Email:    "sneaky@acme.com",
		Password: "password123",
		Role:     models.RoleSuperUser,
	})
	assert.ErrorIs(t, err, e.ErrForbidden)
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	super := env.seedUser(t, "Root", "root@example.com", "password123", models.RoleSuperUser, nil, nil)
	acme := env.seedCompany(t, "Acme", "acme")

	t.Run("missing fields", func(t *testing.T) {
		_, err := env.users.Create(ctx, super.ID, NewUser{Email: "x@acme.com", Password: "password123", Role: models.RoleMember})
		assert.ErrorIs(t, err, e.ErrInvalidInput)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := env.users.Create(ctx, super.ID, NewUser{Name: "X", Email: "x@acme.com", Password: "password123", Role: "OWNER"})
		assert.ErrorIs(t, err, e.ErrInvalidInput)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := env.users.Create(ctx, super.ID, NewUser{Name: "X", Email: "x@acme.com", Password: "short", Role: models.RoleMember})
		assert.ErrorIs(t, err, e.ErrPasswordTooShort)
	})

	t.Run("email taken", func(t *testing.T) {
		env.seedUser(t, "Taken", "taken@acme.com", "password123", models.RoleMember, &acme.ID, nil)
		_, err := env.users.Create(ctx, super.ID, NewUser{
			Name: "Dup", Email: "taken@acme.com", Password: "password123", Role: models.RoleMember, CompanyID: &acme.ID,
		})
		assert.ErrorIs(t, err, e.ErrEmailTaken)
	})

	t.Run("unknown company", func(t *testing.T) {
		ghost := uuid.New()
		_, err := env.users.Create(ctx, super.ID, NewUser{
			Name: "X", Email: "ghost@acme.com", Password: "password123", Role: models.RoleMember, CompanyID: &ghost,
		})
		assert.ErrorIs(t, err, e.ErrCompanyNotFound)
	})
}

func TestCreateUserDepartmentGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	super := env.seedUser(t, "Root", "root@example.com", "password123", models.RoleSuperUser, nil, nil)
	acme := env.seedCompany(t, "Acme", "acme")
	beta := env.seedCompany(t, "Beta", "beta")
	betaDep := env.seedDepartment(t, "Engineering", beta.ID)

	t.Run("department from another company", func(t *testing.T) {
		_, err := env.users.Create(ctx, super.ID, NewUser{
			Name: "X", Email: "x@acme.com", Password: "password123",
			Role: models.RoleMember, CompanyID: &acme.ID, DepartmentID: &betaDep.ID,
		})
		assert.ErrorIs(t, err, e.ErrInvalidDepartment)
	})

	t.Run("department without a company", func(t *testing.T) {
		_, err := env.users.Create(ctx, super.ID, NewUser{
			Name: "X", Email: "x@acme.com", Password: "password123",
			Role: models.RoleMember, DepartmentID: &betaDep.ID,
		})
		assert.ErrorIs(t, err, e.ErrInvalidDepartment)
	})

	t.Run("nonexistent department", func(t *testing.T) {
		ghost := uuid.New()
		_, err := env.users.Create(ctx, super.ID, NewUser{
			Name: "X", Email: "x@acme.com", Password: "password123",
			Role: models.RoleMember, CompanyID: &acme.ID, DepartmentID: &ghost,
		})
		assert.ErrorIs(t, err, e.ErrInvalidDepartment)
	})

	t.Run("matching department", func(t *testing.T) {
		dep := env.seedDepartment(t, "Sales", acme.ID)
		usr, err := env.users.Create(ctx, super.ID, NewUser{
			Name: "X", Email: "x@acme.com", Password: "password123",
			Role: models.RoleMember, CompanyID: &acme.ID, DepartmentID: &dep.ID,
		})
		require.NoError(t, err)
		require.NotNil(t, usr.DepartmentID)
		assert.Equal(t, dep.ID, *usr.DepartmentID)
	})
}

func TestUpdateUserScoping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acme := env.seedCompany(t, "Acme", "acme")
	beta := env.seedCompany(t, "Beta", "beta")

	admin := env.seedUser(t, "Admin", "admin@acme.com", "password123", models.RoleAdmin, &acme.ID, nil)
	member := env.seedUser(t, "Member", "member@acme.com", "password123", models.RoleMember, &acme.ID, nil)
	outsider := env.seedUser(t, "Outsider", "member@beta.com", "password123", models.RoleMember, &beta.ID, nil)

	t.Run("admin renames and promotes within company", func(t *testing.T) {
		updated, err := env.users.Update(ctx, admin.ID, &models.UserUpdate{
			ID:   member.ID,
			Name: utils.Ptr("Renamed"),
			Role: utils.Ptr(models.RoleAdmin),
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
		assert.Equal(t, models.RoleAdmin, updated.Role)
	})

	t.Run("admin cannot touch another tenant", func(t *testing.T) {
		_, err := env.users.Update(ctx, admin.ID, &models.UserUpdate{
			ID:   outsider.ID,
			Name: utils.Ptr("Hijacked"),
		})
		assert.ErrorIs(t, err, e.ErrForbidden)
	})

	t.Run("admin cannot promote to super user", func(t *testing.T) {
		_, err := env.users.Update(ctx, admin.ID, &models.UserUpdate{
			ID:   member.ID,
			Role: utils.Ptr(models.RoleSuperUser),
		})
		assert.ErrorIs(t, err, e.ErrForbidden)
	})
}

func TestUpdateUserDepartmentMove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	super := env.seedUser(t, "Root", "root@example.com", "password123", models.RoleSuperUser, nil, nil)
	acme := env.seedCompany(t, "Acme", "acme")
	beta := env.seedCompany(t, "Beta", "beta")

	acmeDep := env.seedDepartment(t, "Engineering", acme.ID)
	betaDep := env.seedDepartment(t, "Engineering", beta.ID)
	member := env.seedUser(t, "Member", "member@acme.com", "password123", models.RoleMember, &acme.ID, nil)

	// Cross-tenant department is rejected even for the super user.
	_, err := env.users.Update(ctx, super.ID, &models.UserUpdate{
		ID:           member.ID,
		DepartmentID: &betaDep.ID,
	})
	assert.ErrorIs(t, err, e.ErrInvalidDepartment)

	updated, err := env.users.Update(ctx, super.ID, &models.UserUpdate{
		ID:           member.ID,
		DepartmentID: &acmeDep.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.DepartmentID)
	assert.Equal(t, acmeDep.ID, *updated.DepartmentID)

	cleared, err := env.users.Update(ctx, super.ID, &models.UserUpdate{
		ID:              member.ID,
		ClearDepartment: true,
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.DepartmentID)
}

func TestDeleteUserRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acme := env.seedCompany(t, "Acme", "acme")
	beta := env.seedCompany(t, "Beta", "beta")

	super := env.seedUser(t, "Root", "root@example.com", "password123", models.RoleSuperUser, nil, nil)
	admin := env.seedUser(t, "Admin", "admin@acme.com", "password123", models.RoleAdmin, &acme.ID, nil)
	member := env.seedUser(t, "Member", "member@acme.com", "password123", models.RoleMember, &acme.ID, nil)
	outsider := env.seedUser(t, "Outsider", "member@beta.com", "password123", models.RoleMember, &beta.ID, nil)

	t.Run("self delete refused even for super user", func(t *testing.T) {
		assert.ErrorIs(t, env.users.Delete(ctx, super.ID, super.ID), e.ErrSelfDelete)
		assert.ErrorIs(t, env.users.Delete(ctx, admin.ID, admin.ID), e.ErrSelfDelete)
	})

	t.Run("admin limited to same-company members", func(t *testing.T) {
		assert.ErrorIs(t, env.users.Delete(ctx, admin.ID, outsider.ID), e.ErrForbidden)
		require.NoError(t, env.users.Delete(ctx, admin.ID, member.ID))

		// Credentials go with the user.
		_, err := env.users.Login(ctx, "member@acme.com", "password123")
		assert.ErrorIs(t, err, e.ErrAuthenticationBad)
	})

	t.Run("super user deletes anyone else", func(t *testing.T) {
		require.NoError(t, env.users.Delete(ctx, super.ID, outsider.ID))
		assert.Equal(t, 2, env.producer.Count(events.UserDeleted))
	})
}

func TestListUsersScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acme := env.seedCompany(t, "Acme", "acme")
	beta := env.seedCompany(t, "Beta", "beta")

	super := env.seedUser(t, "Root", "root@example.com", "password123", models.RoleSuperUser, nil, nil)
	admin := env.seedUser(t, "Admin", "admin@acme.com", "password123", models.RoleAdmin, &acme.ID, nil)
	member := env.seedUser(t, "Member", "member@acme.com", "password123", models.RoleMember, &acme.ID, nil)
	env.seedUser(t, "Outsider", "member@beta.com", "password123", models.RoleMember, &beta.ID, nil)

	all, err := env.users.List(ctx, super.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	// The admin's filter for another tenant is overridden with its own.
	scoped, err := env.users.List(ctx, admin.ID, &beta.ID)
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	for _, u := range scoped {
		assert.Equal(t, acme.ID, *u.CompanyID)
	}

	_, err = env.users.List(ctx, member.ID, nil)
	assert.ErrorIs(t, err, e.ErrForbidden)
}

func TestChangePasswordMatrix(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acme := env.seedCompany(t, "Acme", "acme")
	beta := env.seedCompany(t, "Beta", "beta")

	super := env.seedUser(t, "Root", "root@example.com", "password123", models.RoleSuperUser, nil, nil)
	admin := env.seedUser(t, "Admin", "admin@acme.com", "password123", models.RoleAdmin, &acme.ID, nil)
	member := env.seedUser(t, "Member", "member@acme.com", "password123", models.RoleMember, &acme.ID, nil)
	outsider := env.seedUser(t, "Outsider", "member@beta.com", "password123", models.RoleMember, &beta.ID, nil)

	t.Run("self change requires current password", func(t *testing.T) {
		err := env.users.ChangePassword(ctx, member.ID, member.ID, "wrong-password", "newpassword1")
		assert.ErrorIs(t, err, e.ErrWrongPassword)

		require.NoError(t, env.users.ChangePassword(ctx, member.ID, member.ID, "password123", "newpassword1"))

		_, err = env.users.Login(ctx, "member@acme.com", "newpassword1")
		assert.NoError(t, err)
	})

	t.Run("new password length enforced", func(t *testing.T) {
		err := env.users.ChangePassword(ctx, member.ID, member.ID, "newpassword1", "short")
		assert.ErrorIs(t, err, e.ErrPasswordTooShort)
	})

	t.Run("admin resets same-company member without current password", func(t *testing.T) {
		require.NoError(t, env.users.ChangePassword(ctx, admin.ID, member.ID, "", "resetpass1"))
		_, err := env.users.Login(ctx, "member@acme.com", "resetpass1")
		assert.NoError(t, err)
	})

	t.Run("admin cannot reset cross-tenant or peer admins", func(t *testing.T) {
		assert.ErrorIs(t, env.users.ChangePassword(ctx, admin.ID, outsider.ID, "", "resetpass1"), e.ErrForbidden)
		assert.ErrorIs(t, env.users.ChangePassword(ctx, member.ID, admin.ID, "", "resetpass1"), e.ErrForbidden)
	})

	t.Run("super user resets anyone", func(t *testing.T) {
		require.NoError(t, env.users.ChangePassword(ctx, super.ID, outsider.ID, "", "resetpass2"))
		assert.Equal(t, 3, env.producer.Count(events.PasswordChanged))
	})
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "Member", "member@acme.com", "password123", models.RoleMember, nil, nil)

	usr, err := env.users.Login(ctx, "member@acme.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "member@acme.com", usr.Email)

	_, err = env.users.Login(ctx, "member@acme.com", "nope-nope")
	assert.ErrorIs(t, err, e.ErrAuthenticationBad)

	_, err = env.users.Login(ctx, "ghost@acme.com", "password123")
	assert.ErrorIs(t, err, e.ErrAuthenticationBad)
}

func TestEnsureSuperUserIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.users.EnsureSuperUser(ctx, "Root", "root@example.com", "password123"))

	usr, err := env.repo.GetUserByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperUser, usr.Role)

	// Second call is a no-op, not a duplicate.
	require.NoError(t, env.users.EnsureSuperUser(ctx, "Root", "root@example.com", "different-pass"))

	_, err = env.users.Login(ctx, "root@example.com", "password123")
	assert.NoError(t, err)
}

func TestUnknownActorUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.List(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, e.ErrUnauthenticated)
}
