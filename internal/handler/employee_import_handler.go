package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hr-admin-api/internal/dto"
	"github.com/noah-isme/hr-admin-api/internal/service"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/response"
)

type employeeImportService interface {
	Schema() dto.ImportSchemaResponse
	Validate(ctx context.Context, req dto.EmployeeImportRequest) (*dto.EmployeeImportValidation, error)
	ValidateFile(ctx context.Context, file io.Reader, force bool) (*dto.EmployeeImportValidation, error)
	Import(ctx context.Context, actor service.Actor, req dto.EmployeeImportRequest) (*dto.EmployeeImportResponse, error)
	ImportFile(ctx context.Context, actor service.Actor, file io.Reader, force bool) (*dto.EmployeeImportResponse, error)
	Report(ctx context.Context, token string) ([]byte, string, error)
}

// EmployeeImportHandler exposes the bulk employee import endpoints.
type EmployeeImportHandler struct {
	imports     employeeImportService
	maxFileSize int64
}

// NewEmployeeImportHandler constructs the handler. maxFileSize caps multipart
// uploads; zero or less means 5 MiB.
func NewEmployeeImportHandler(imports employeeImportService, maxFileSize int64) *EmployeeImportHandler {
	if maxFileSize <= 0 {
		maxFileSize = 5 << 20
	}
	return &EmployeeImportHandler{imports: imports, maxFileSize: maxFileSize}
}

// Schema godoc
// @Summary Import column catalog
// @Description Lists importable fields with their header labels and constraints
// @Tags Employee Import
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/import/schema [get]
func (h *EmployeeImportHandler) Schema(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.imports.Schema(), nil)
}

// Import godoc
// @Summary Bulk import employees
// @Description Validates every line and inserts the batch atomically. Warnings block the upload unless forceUpload is set.
// @Tags Employee Import
// @Accept json
// @Produce json
// @Param payload body dto.EmployeeImportRequest true "Import lines"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/import [post]
func (h *EmployeeImportHandler) Import(c *gin.Context) {
	var req dto.EmployeeImportRequest
	if !bindJSON(c, &req, "invalid import payload") {
		return
	}
	res, err := h.imports.Import(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// ImportFile godoc
// @Summary Bulk import employees from CSV
// @Tags Employee Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Param forceUpload formData bool false "Accept warnings"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/import/file [post]
func (h *EmployeeImportHandler) ImportFile(c *gin.Context) {
	file, force, err := h.openUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	res, err := h.imports.ImportFile(c.Request.Context(), actorFromContext(c), file, force)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Validate godoc
// @Summary Dry-run an import
// @Description Runs row and batch validation without writing anything
// @Tags Employee Import
// @Accept json
// @Produce json
// @Param payload body dto.EmployeeImportRequest true "Import lines"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/import/validate [post]
func (h *EmployeeImportHandler) Validate(c *gin.Context) {
	var req dto.EmployeeImportRequest
	if !bindJSON(c, &req, "invalid import payload") {
		return
	}
	res, err := h.imports.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// ValidateFile godoc
// @Summary Dry-run a CSV import
// @Tags Employee Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /employees/import/file/validate [post]
func (h *EmployeeImportHandler) ValidateFile(c *gin.Context) {
	file, force, err := h.openUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	res, err := h.imports.ValidateFile(c.Request.Context(), file, force)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Report godoc
// @Summary Download a rejection report
// @Description Streams the CSV listing rejected cells. The link is signed and expires.
// @Tags Employee Import
// @Produce text/csv
// @Param token path string true "Signed report token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/import/reports/{token} [get]
func (h *EmployeeImportHandler) Report(c *gin.Context) {
	body, filename, err := h.imports.Report(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "text/csv; charset=utf-8", body)
}

func (h *EmployeeImportHandler) openUpload(c *gin.Context) (io.ReadCloser, bool, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, false, appErrors.Clone(appErrors.ErrPayloadTooLarge, "uploaded file exceeds the size limit")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required")
	}
	file, err := header.Open()
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to open uploaded file")
	}
	force, _ := strconv.ParseBool(c.PostForm("forceUpload"))
	return file, force, nil
}
