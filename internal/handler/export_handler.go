package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/service"
	"github.com/noah-isme/hr-admin-api/pkg/response"
)

type exportService interface {
	Template() (*service.ExportFile, error)
	Employees(ctx context.Context, actor service.Actor, filter models.EmployeeFilter, format string) (*service.ExportFile, error)
}

// ExportHandler serves employee downloads.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Employees godoc
// @Summary Export employees
// @Description Exports every employee matching the filters. CSV output can be re-imported as is.
// @Tags Employees
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param search query string false "Search by name or email"
// @Param contractType query string false "Filter by contract type"
// @Param role query string false "Filter by role"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/export [get]
func (h *ExportHandler) Employees(c *gin.Context) {
	filter, err := employeeFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", service.ExportFormatCSV))

	file, err := h.exports.Employees(c.Request.Context(), actorFromContext(c), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Template godoc
// @Summary Download the import template
// @Tags Employee Import
// @Produce text/csv
// @Success 200 {file} file
// @Security BearerAuth
// @Router /employees/import/template [get]
func (h *ExportHandler) Template(c *gin.Context) {
	file, err := h.exports.Template()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
