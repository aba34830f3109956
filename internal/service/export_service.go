package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/importer"
	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type employeeLister interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
}

type roleBatchLister interface {
	ListByEmployees(ctx context.Context, employeeIDs []string) (map[string][]models.Role, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the employee directory. CSV exports use the import
// column labels so a file can be edited and uploaded again.
type ExportService struct {
	employees employeeLister
	roles     roleBatchLister
	audit     auditLogger
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(employees employeeLister, roles roleBatchLister, audit auditLogger, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(export.WithBOM())
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(true)
	}
	return &ExportService{
		employees: employees,
		roles:     roles,
		audit:     audit,
		csv:       csv,
		pdf:       pdf,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Template returns an empty CSV carrying the import header row.
func (s *ExportService) Template() (*ExportFile, error) {
	body, err := s.csv.Render(export.Dataset{Headers: exportHeaders()})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	return &ExportFile{Filename: "employees-template.csv", ContentType: "text/csv; charset=utf-8", Body: body}, nil
}

// Employees renders every employee matching the filter. Pagination is ignored.
func (s *ExportService) Employees(ctx context.Context, actor Actor, filter models.EmployeeFilter, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	filter.Page = -1
	employees, _, err := s.employees.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employees")
	}
	ids := make([]string, len(employees))
	for i := range employees {
		ids[i] = employees[i].ID
	}
	roles := map[string][]models.Role{}
	if len(ids) > 0 {
		if roles, err = s.roles.ListByEmployees(ctx, ids); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roles")
		}
	}

	dataset := export.Dataset{Headers: exportHeaders()}
	for i := range employees {
		dataset.Rows = append(dataset.Rows, employeeExportRow(employees[i], roles[employees[i].ID]))
	}

	stamp := s.now().Format("20060102-150405")
	file := &ExportFile{}
	switch format {
	case ExportFormatPDF:
		file.Body, err = s.pdf.Render(dataset, "Employees")
		file.Filename = "employees-" + stamp + ".pdf"
		file.ContentType = "application/pdf"
	default:
		file.Body, err = s.csv.Render(dataset)
		file.Filename = "employees-" + stamp + ".csv"
		file.ContentType = "text/csv; charset=utf-8"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("employees exported", zap.String("format", format), zap.Int("rows", len(employees)))
	if s.audit != nil {
		payload := fmt.Sprintf(`{"format":%q,"rows":%d}`, format, len(employees))
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			ActorID:   actor.idPtr(),
			Action:    models.AuditActionEmployeeExport,
			Resource:  "employee",
			NewValues: []byte(payload),
			IPAddress: actor.IP,
			UserAgent: actor.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record export audit log", zap.Error(err))
		}
	}
	return file, nil
}

func exportHeaders() []string {
	fields := importer.Fields()
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = f.Label()
	}
	return headers
}

func employeeExportRow(emp models.Employee, roles []models.Role) map[string]string {
	deref := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}
	tokens := make([]string, len(roles))
	for i, r := range roles {
		tokens[i] = string(r)
	}
	birth := ""
	if emp.BirthDate != nil {
		birth = emp.BirthDate.Format("2006-01-02")
	}
	return map[string]string{
		importer.FieldFirstName.Label():    emp.FirstName,
		importer.FieldLastName.Label():     emp.LastName,
		importer.FieldEmail.Label():        emp.Email,
		importer.FieldAddress.Label():      deref(emp.Address),
		importer.FieldPhoneNumber.Label():  deref(emp.PhoneNumber),
		importer.FieldJobPosition.Label():  strings.Join(tokens, ","),
		importer.FieldBirthDate.Label():    birth,
		importer.FieldContractType.Label(): string(emp.ContractType),
		importer.FieldCNSSNumber.Label():   deref(emp.CNSSNumber),
		importer.FieldGender.Label():       string(emp.Gender),
		importer.FieldNumber.Label():       strconv.FormatInt(emp.Number, 10),
	}
}
