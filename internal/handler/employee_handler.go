package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hr-admin-api/internal/dto"
	"github.com/noah-isme/hr-admin-api/internal/middleware"
	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/service"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/response"
)

type employeeService interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Employee, bool, error)
	Create(ctx context.Context, actor service.Actor, req dto.EmployeeRequest) (*models.Employee, error)
	Update(ctx context.Context, actor service.Actor, id string, req dto.EmployeeRequest) (*models.Employee, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
	UpdateRoles(ctx context.Context, actor service.Actor, id string, req dto.UpdateRolesRequest) (*models.Employee, error)
	SetDisabled(ctx context.Context, actor service.Actor, id string, req dto.SetDisabledRequest) error
}

// EmployeeHandler exposes employee management endpoints.
type EmployeeHandler struct {
	employees employeeService
}

// NewEmployeeHandler constructs EmployeeHandler.
func NewEmployeeHandler(employees employeeService) *EmployeeHandler {
	return &EmployeeHandler{employees: employees}
}

// List godoc
// @Summary List employees
// @Tags Employees
// @Produce json
// @Param search query string false "Search by name or email"
// @Param contractType query string false "Filter by contract type"
// @Param status query string false "Filter by account status"
// @Param role query string false "Filter by role"
// @Param disabled query bool false "Filter by disabled flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	filter, err := employeeFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	employees, pagination, err := h.employees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employees, pagination)
}

// Get godoc
// @Summary Get employee detail
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	employee, hit, err := h.employees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, employee, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create employee
// @Description Creates one employee with the bulk import field rules and emails an activation link
// @Tags Employees
// @Accept json
// @Produce json
// @Param payload body dto.EmployeeRequest true "Employee payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /employees [post]
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req dto.EmployeeRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	employee, err := h.employees.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, employee)
}

// Update godoc
// @Summary Update employee
// @Tags Employees
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body dto.EmployeeRequest true "Employee payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/{id} [put]
func (h *EmployeeHandler) Update(c *gin.Context) {
	var req dto.EmployeeRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	employee, err := h.employees.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// Delete godoc
// @Summary Delete employee
// @Tags Employees
// @Param id path string true "Employee ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/{id} [delete]
func (h *EmployeeHandler) Delete(c *gin.Context) {
	if err := h.employees.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateRoles godoc
// @Summary Replace employee roles
// @Tags Employees
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body dto.UpdateRolesRequest true "Roles"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/{id}/roles [put]
func (h *EmployeeHandler) UpdateRoles(c *gin.Context) {
	var req dto.UpdateRolesRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	employee, err := h.employees.UpdateRoles(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// SetDisabled godoc
// @Summary Disable or enable an account
// @Tags Employees
// @Accept json
// @Param id path string true "Employee ID"
// @Param payload body dto.SetDisabledRequest true "Disabled flag"
// @Success 204
// @Security BearerAuth
// @Router /employees/{id}/disabled [patch]
func (h *EmployeeHandler) SetDisabled(c *gin.Context) {
	var req dto.SetDisabledRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	if err := h.employees.SetDisabled(c.Request.Context(), actorFromContext(c), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func employeeFilterFromQuery(c *gin.Context) (models.EmployeeFilter, error) {
	var filter models.EmployeeFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if raw := c.Query("contractType"); raw != "" {
		ct := models.ContractType(strings.ToUpper(strings.TrimSpace(raw)))
		filter.ContractType = &ct
	}
	if raw := c.Query("status"); raw != "" {
		var status models.AccountStatus
		switch strings.ToLower(raw) {
		case "active":
			status = models.AccountActive
		case "inactive":
			status = models.AccountInactive
		default:
			return filter, appErrors.Clone(appErrors.ErrValidation, "status must be Active or Inactive")
		}
		filter.AccountStatus = &status
	}
	if raw := c.Query("role"); raw != "" {
		role, ok := models.ParseRole(raw)
		if !ok {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown role "+raw)
		}
		filter.Role = &role
	}
	if raw := c.Query("disabled"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "disabled must be a boolean")
		}
		filter.Disabled = &v
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter, nil
}
