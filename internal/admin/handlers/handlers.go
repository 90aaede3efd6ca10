// Package handlers provides the HTTP surface of the admin service,
// translating between JSON requests and the controller layer.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/avelar/orgadmin/internal/admin/auth"
	"github.com/avelar/orgadmin/internal/admin/controller"
	e "github.com/avelar/orgadmin/internal/admin/errors"
	"github.com/avelar/orgadmin/internal/admin/metrics"
	"github.com/avelar/orgadmin/internal/admin/models"
)

// Handler wires the HTTP routes to the controller services.
type Handler struct {
	companies   *controller.CompanyService
	departments *controller.DepartmentService
	users       *controller.UserService
	jwtSecret   string
	logger      *zap.Logger
}

func NewHandler(
	companies *controller.CompanyService,
	departments *controller.DepartmentService,
	users *controller.UserService,
	jwtSecret string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		companies:   companies,
		departments: departments,
		users:       users,
		jwtSecret:   jwtSecret,
		logger:      logger.Named("http_handler"),
	}
}

// Register attaches all routes to the echo instance. Everything except
// login requires a valid session token.
func (h *Handler) Register(router *echo.Echo) {
	router.POST("/v1/auth/login", h.Login)

	v1 := router.Group("/v1", auth.Middleware(h.jwtSecret))

	v1.GET("/companies", h.ListCompanies)
	v1.POST("/companies", h.CreateCompany)
	v1.PATCH("/companies/:id", h.UpdateCompany)
	v1.DELETE("/companies/:id", h.DeleteCompany)
	v1.POST("/companies/:id/archive", h.ArchiveCompany)
	v1.POST("/companies/:id/restore", h.RestoreCompany)

	v1.GET("/departments", h.ListDepartments)
	v1.POST("/departments", h.CreateDepartment)
	v1.PATCH("/departments/:id", h.UpdateDepartment)
	v1.DELETE("/departments/:id", h.DeleteDepartment)

	v1.GET("/users", h.ListUsers)
	v1.POST("/users", h.CreateUser)
	v1.PATCH("/users/:id", h.UpdateUser)
	v1.DELETE("/users/:id", h.DeleteUser)
	v1.POST("/users/:id/password", h.ChangePassword)
}

// writeError maps sentinel errors onto HTTP statuses. Anything outside
// the taxonomy is logged and collapsed to a generic failure so internal
// detail never leaks to the caller.
func (h *Handler) writeError(c echo.Context, entity string, err error) error {
	switch {
	case errors.Is(err, e.ErrUnauthenticated), errors.Is(err, e.ErrAuthenticationBad):
		metrics.RecordAuthFailure("unauthenticated")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case errors.Is(err, e.ErrForbidden),
		errors.Is(err, e.ErrSelfDelete),
		errors.Is(err, e.ErrAdminHasNoCompany):
		metrics.RecordAuthFailure("forbidden")
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, e.ErrNotFound), errors.Is(err, e.ErrCompanyNotFound):
		metrics.RecordFailure(entity, "not_found")
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, e.ErrSlugTaken),
		errors.Is(err, e.ErrDuplicateName),
		errors.Is(err, e.ErrEmailTaken):
		metrics.RecordFailure(entity, "conflict")
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, e.ErrInvalidInput),
		errors.Is(err, e.ErrInvalidSlug),
		errors.Is(err, e.ErrInvalidDepartment),
		errors.Is(err, e.ErrPasswordTooShort),
		errors.Is(err, e.ErrWrongPassword),
		errors.Is(err, e.ErrAlreadyArchived),
		errors.Is(err, e.ErrNotArchived),
		errors.Is(err, e.ErrMustArchiveFirst),
		errors.Is(err, e.ErrGracePeriod),
		errors.Is(err, e.ErrGraceExpired):
		metrics.RecordFailure(entity, "validation")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	h.logger.Error("unexpected failure",
		zap.String("entity", entity),
		zap.Error(err),
	)
	metrics.RecordFailure(entity, "internal")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func (h *Handler) actor(c echo.Context) (uuid.UUID, error) {
	id, ok := auth.UserID(c)
	if !ok {
		return uuid.Nil, e.ErrUnauthenticated
	}
	return id, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, e.ErrNotFound
	}
	return id, nil
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, e.ErrInvalidInput
	}
	return &id, nil
}

// ----------------------------------------------------------------------------
// Auth

func (h *Handler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, "auth", e.ErrInvalidInput)
	}

	usr, err := h.users.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.writeError(c, "auth", err)
	}

	token, err := auth.GenerateToken(usr.ID.String(), h.jwtSecret)
	if err != nil {
		return h.writeError(c, "auth", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  usr,
	})
}

// ----------------------------------------------------------------------------
// Companies

func (h *Handler) CreateCompany(c echo.Context) error {
	metrics.RecordOperation("company", "create")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "company", err)
	}

	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, "company", e.ErrInvalidInput)
	}

	company, err := h.companies.Create(c.Request().Context(), actorID, req.Name, req.Slug)
	if err != nil {
		return h.writeError(c, "company", err)
	}
	return c.JSON(http.StatusCreated, company)
}

func (h *Handler) ListCompanies(c echo.Context) error {
	metrics.RecordOperation("company", "list")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "company", err)
	}

	companies, err := h.companies.List(c.Request().Context(), actorID)
	if err != nil {
		return h.writeError(c, "company", err)
	}
	return c.JSON(http.StatusOK, companies)
}

func (h *Handler) UpdateCompany(c echo.Context) error {
	metrics.RecordOperation("company", "update")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "company", err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.writeError(c, "company", err)
	}

	var req struct {
		Name *string `json:"name"`
		Slug *string `json:"slug"`
	}
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, "company", e.ErrInvalidInput)
	}

	company, err := h.companies.Update(c.Request().Context(), actorID, &models.CompanyUpdate{
		ID:   id,
		Name: req.Name,
		Slug: req.Slug,
	})
	if err != nil {
		return h.writeError(c, "company", err)
	}
	return c.JSON(http.StatusOK, company)
}

func (h *Handler) ArchiveCompany(c echo.Context) error {
	metrics.RecordOperation("company", "archive")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "company", err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.writeError(c, "company", err)
	}

	deletionDate, err := h.companies.Archive(c.Request().Context(), actorID, id)
	if err != nil {
		return h.writeError(c, "company", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deletion_date": deletionDate})
}

func (h *Handler) RestoreCompany(c echo.Context) error {
	metrics.RecordOperation("company", "restore")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "company", err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.writeError(c, "company", err)
	}

	if err := h.companies.Restore(c.Request().Context(), actorID, id); err != nil {
		return h.writeError(c, "company", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "company restored"})
}

func (h *Handler) DeleteCompany(c echo.Context) error {
	metrics.RecordOperation("company", "delete")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "company", err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.writeError(c, "company", err)
	}

	force := c.QueryParam("force") == "true"
	if err := h.companies.Delete(c.Request().Context(), actorID, id, force); err != nil {
		return h.writeError(c, "company", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "company deleted"})
}

// ----------------------------------------------------------------------------
// Departments

func (h *Handler) CreateDepartment(c echo.Context) error {
	metrics.RecordOperation("department", "create")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "department", err)
	}

	var req struct {
		Name      string `json:"name"`
		CompanyID string `json:"company_id"`
	}
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, "department", e.ErrInvalidInput)
	}
	companyID, err := optionalUUID(req.CompanyID)
	if err != nil {
		return h.writeError(c, "department", err)
	}

	dep, err := h.departments.Create(c.Request().Context(), actorID, req.Name, companyID)
	if err != nil {
		return h.writeError(c, "department", err)
	}
	return c.JSON(http.StatusCreated, dep)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	metrics.RecordOperation("department", "list")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "department", err)
	}
	companyID, err := optionalUUID(c.QueryParam("company_id"))
	if err != nil {
		return h.writeError(c, "department", err)
	}

	deps, err := h.departments.List(c.Request().Context(), actorID, companyID)
	if err != nil {
		return h.writeError(c, "department", err)
	}
	return c.JSON(http.StatusOK, deps)
}

func (h *Handler) UpdateDepartment(c echo.Context) error {
	metrics.RecordOperation("department", "update")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "department", err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.writeError(c, "department", err)
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, "department", e.ErrInvalidInput)
	}

	dep, err := h.departments.Update(c.Request().Context(), actorID, id, req.Name)
	if err != nil {
		return h.writeError(c, "department", err)
	}
	return c.JSON(http.StatusOK, dep)
}

func (h *Handler) DeleteDepartment(c echo.Context) error {
	metrics.RecordOperation("department", "delete")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "department", err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.writeError(c, "department", err)
	}

	if err := h.departments.Delete(c.Request().Context(), actorID, id); err != nil {
		return h.writeError(c, "department", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "department deleted"})
}

// ----------------------------------------------------------------------------
// Users

func (h *Handler) CreateUser(c echo.Context) error {
	metrics.RecordOperation("user", "create")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "user", err)
	}

	var req struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		Role         string `json:"role"`
		CompanyID    string `json:"company_id"`
		DepartmentID string `json:"department_id"`
	}
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, "user", e.ErrInvalidInput)
	}
	companyID, err := optionalUUID(req.CompanyID)
	if err != nil {
		return h.writeError(c, "user", err)
	}
	departmentID, err := optionalUUID(req.DepartmentID)
	if err != nil {
		return h.writeError(c, "user", err)
	}

	usr, err := h.users.Create(c.Request().Context(), actorID, controller.NewUser{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Role:         models.Role(req.Role),
		CompanyID:    companyID,
		DepartmentID: departmentID,
	})
	if err != nil {
		return h.writeError(c, "user", err)
	}
	return c.JSON(http.StatusCreated, usr)
}

func (h *Handler) ListUsers(c echo.Context) error {
	metrics.RecordOperation("user", "list")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "user", err)
	}
	companyID, err := optionalUUID(c.QueryParam("company_id"))
	if err != nil {
		return h.writeError(c, "user", err)
	}

	users, err := h.users.List(c.Request().Context(), actorID, companyID)
	if err != nil {
		return h.writeError(c, "user", err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	metrics.RecordOperation("user", "update")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "user", err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.writeError(c, "user", err)
	}

	var req struct {
		Name            *string `json:"name"`
		Role            *string `json:"role"`
		DepartmentID    string  `json:"department_id"`
		ClearDepartment bool    `json:"clear_department"`
	}
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, "user", e.ErrInvalidInput)
	}
	departmentID, err := optionalUUID(req.DepartmentID)
	if err != nil {
		return h.writeError(c, "user", err)
	}

	update := &models.UserUpdate{
		ID:              id,
		Name:            req.Name,
		DepartmentID:    departmentID,
		ClearDepartment: req.ClearDepartment,
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		update.Role = &role
	}

	usr, err := h.users.Update(c.Request().Context(), actorID, update)
	if err != nil {
		return h.writeError(c, "user", err)
	}
	return c.JSON(http.StatusOK, usr)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	metrics.RecordOperation("user", "delete")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "user", err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.writeError(c, "user", err)
	}

	if err := h.users.Delete(c.Request().Context(), actorID, id); err != nil {
		return h.writeError(c, "user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}

func (h *Handler) ChangePassword(c echo.Context) error {
	metrics.RecordOperation("user", "change_password")
	actorID, err := h.actor(c)
	if err != nil {
		return h.writeError(c, "user", err)
	}
	id, err := pathID(c)
	if err != nil {
		return h.writeError(c, "user", err)
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.Bind(&req); err != nil {
		return h.writeError(c, "user", e.ErrInvalidInput)
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.NewPassword {
		return h.writeError(c, "user", fmt.Errorf("%w: passwords do not match", e.ErrInvalidInput))
	}

	if err := h.users.ChangePassword(c.Request().Context(), actorID, id, req.CurrentPassword, req.NewPassword); err != nil {
		return h.writeError(c, "user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}
