package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/dto"
	"github.com/noah-isme/hr-admin-api/internal/importer"
	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
	"github.com/noah-isme/hr-admin-api/pkg/export"
	"github.com/noah-isme/hr-admin-api/pkg/storage"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type employeeWriter interface {
	BulkInsertWithTx(ctx context.Context, tx *sqlx.Tx, employees []models.Employee) error
	FindByIDsWithTx(ctx context.Context, tx *sqlx.Tx, ids []string) ([]models.Employee, error)
}

type roleWriter interface {
	BulkInsertWithTx(ctx context.Context, tx *sqlx.Tx, roles []models.EmployeeRole) error
}

type activationTokenWriter interface {
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, tokens []models.OneTimeToken) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type activationNotifier interface {
	SendActivations(ctx context.Context, recipients []Recipient) DeliveryReport
}

type reportStorage interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
}

type reportSigner interface {
	Sign(owner, path string) (string, time.Time, error)
	Verify(token string) (storage.SignedPath, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// Actor identifies who triggered an operation, for auditing.
type Actor struct {
	ID        string
	IP        string
	UserAgent string
}

func (a Actor) idPtr() *string {
	if a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}

// ImportConfig tunes bulk import.
type ImportConfig struct {
	MaxRows       int
	ActivationTTL time.Duration
	ReportPath    string
}

// ImportReports bundles the optional rejection report collaborators.
type ImportReports struct {
	Storage  reportStorage
	Signer   reportSigner
	Renderer csvRenderer
}

// EmployeeImportService validates uploaded employee sheets and stores accepted batches.
type EmployeeImportService struct {
	db        txProvider
	employees employeeWriter
	roles     roleWriter
	tokens    activationTokenWriter
	audit     auditLogger
	errorLogs errorLogWriter
	notifier  activationNotifier
	reports   ImportReports
	catalog   *importer.Catalog
	batch     *importer.BatchValidator
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ImportConfig
	now       func() time.Time
}

// NewEmployeeImportService constructs an EmployeeImportService.
func NewEmployeeImportService(
	db txProvider,
	employees employeeWriter,
	roles roleWriter,
	tokens activationTokenWriter,
	audit auditLogger,
	errorLogs errorLogWriter,
	notifier activationNotifier,
	reports ImportReports,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ImportConfig,
) *EmployeeImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ActivationTTL <= 0 {
		cfg.ActivationTTL = 72 * time.Hour
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if reports.Renderer == nil {
		reports.Renderer = export.NewCSVExporter(export.WithBOM())
	}
	catalog := importer.NewCatalog()
	return &EmployeeImportService{
		db:        db,
		employees: employees,
		roles:     roles,
		tokens:    tokens,
		audit:     audit,
		errorLogs: errorLogs,
		notifier:  notifier,
		reports:   reports,
		catalog:   catalog,
		batch:     importer.NewBatchValidator(catalog),
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Schema returns the field catalog.
func (s *EmployeeImportService) Schema() dto.ImportSchemaResponse {
	return dto.ImportSchemaResponse{Fields: s.catalog.Specs()}
}

// Validate runs the pipeline without touching storage.
func (s *EmployeeImportService) Validate(ctx context.Context, req dto.EmployeeImportRequest) (*dto.EmployeeImportValidation, error) {
	if err := s.checkSize(len(req.Lines)); err != nil {
		return nil, err
	}
	start := time.Now()
	res := s.batch.Validate(req.Lines, req.ForceUpload)
	s.metrics.RecordImport(ImportOutcomeDryRun, len(req.Lines), 0, time.Since(start))
	return summarize(res, len(req.Lines)), nil
}

// ValidateFile parses a CSV upload and dry-runs it.
func (s *EmployeeImportService) ValidateFile(ctx context.Context, file io.Reader, force bool) (*dto.EmployeeImportValidation, error) {
	sheet, err := s.parse(file)
	if err != nil {
		return nil, err
	}
	summary, err := s.Validate(ctx, dto.EmployeeImportRequest{Lines: sheet.Rows, ForceUpload: force})
	if err != nil {
		return nil, err
	}
	summary.Headers = sheet.Headers
	return summary, nil
}

// Import validates rows and, when the batch is accepted, stores employees,
// their roles and activation tokens in one transaction before emailing
// set-password links.
func (s *EmployeeImportService) Import(ctx context.Context, actor Actor, req dto.EmployeeImportRequest) (*dto.EmployeeImportResponse, error) {
	if err := s.checkSize(len(req.Lines)); err != nil {
		return nil, err
	}
	start := time.Now()
	res := s.batch.Validate(req.Lines, req.ForceUpload)
	if res.Rejected() {
		s.metrics.RecordImport(ImportOutcomeRejected, len(req.Lines), 0, time.Since(start))
		return nil, s.reject(actor, res)
	}

	recipients, err := s.upload(ctx, res)
	if err != nil {
		s.metrics.RecordImport(ImportOutcomeFailed, len(req.Lines), 0, time.Since(start))
		return nil, err
	}
	s.metrics.RecordImport(ImportOutcomeAccepted, len(req.Lines), len(recipients), time.Since(start))

	report := DeliveryReport{}
	if s.notifier != nil {
		report = s.notifier.SendActivations(ctx, recipients)
	}

	emails := make([]string, len(recipients))
	for i, r := range recipients {
		emails[i] = r.Email
	}
	s.recordAudit(ctx, actor, len(emails), report)

	return &dto.EmployeeImportResponse{
		Inserted: len(recipients),
		Emails:   emails,
		Warnings: strings.Join(res.Warnings, "\n"),
		Delivery: dto.ImportedDelivery{Sent: report.Sent, Failed: report.Failed, Requeued: report.Requeued},
	}, nil
}

// ImportFile parses a CSV upload and imports it.
func (s *EmployeeImportService) ImportFile(ctx context.Context, actor Actor, file io.Reader, force bool) (*dto.EmployeeImportResponse, error) {
	sheet, err := s.parse(file)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, actor, dto.EmployeeImportRequest{Lines: sheet.Rows, ForceUpload: force})
}

// Report returns a stored rejection report addressed by a signed token.
func (s *EmployeeImportService) Report(ctx context.Context, token string) ([]byte, string, error) {
	if s.reports.Storage == nil || s.reports.Signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "import reports are not enabled")
	}
	signed, err := s.reports.Signer.Verify(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrTokenInvalid.Code, appErrors.ErrTokenInvalid.Status, "report link is invalid or expired")
	}
	data, err := s.reports.Storage.Read(signed.Path)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report not found")
	}
	return data, "import-report.csv", nil
}

// upload persists an accepted batch. Every step shares one transaction; any
// failure rolls the whole batch back.
func (s *EmployeeImportService) upload(ctx context.Context, res *importer.BatchResult) (recipients []Recipient, err error) {
	employees := make([]models.Employee, 0, len(res.Records))
	for _, record := range res.Records {
		employees = append(employees, record.Employee())
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start import")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.employees.BulkInsertWithTx(ctx, tx, employees); err != nil {
		return nil, recordStorageError(ctx, s.errorLogs, s.logger, "employee.import", err)
	}

	// read back by the ids assigned on insert; matching by email could also
	// pick up accounts that existed before this batch
	ids := make([]string, len(employees))
	for i := range employees {
		ids[i] = employees[i].ID
	}
	inserted, err := s.employees.FindByIDsWithTx(ctx, tx, ids)
	if err != nil {
		return nil, recordStorageError(ctx, s.errorLogs, s.logger, "employee.import", err)
	}
	if len(inserted) != len(employees) {
		err = fmt.Errorf("re-query returned %d of %d inserted employees", len(inserted), len(employees))
		return nil, recordStorageError(ctx, s.errorLogs, s.logger, "employee.import", err)
	}

	roles := resolveRoles(inserted, res.Roles)
	if err = s.roles.BulkInsertWithTx(ctx, tx, roles); err != nil {
		return nil, recordStorageError(ctx, s.errorLogs, s.logger, "employee.import", err)
	}

	now := s.now()
	tokens := make([]models.OneTimeToken, 0, len(inserted))
	recipients = make([]Recipient, 0, len(inserted))
	for _, emp := range inserted {
		token := uuid.NewString()
		tokens = append(tokens, models.OneTimeToken{
			EmployeeID: emp.ID,
			Email:      emp.Email,
			Token:      token,
			Status:     models.TokenValid,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.cfg.ActivationTTL),
		})
		recipients = append(recipients, Recipient{Email: emp.Email, Name: emp.FullName(), Token: token})
	}
	if err = s.tokens.BulkCreateWithTx(ctx, tx, tokens); err != nil {
		return nil, recordStorageError(ctx, s.errorLogs, s.logger, "employee.import", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, recordStorageError(ctx, s.errorLogs, s.logger, "employee.import", err)
	}
	s.logger.Info("employees imported", zap.Int("count", len(inserted)), zap.Int("roles", len(roles)))
	return recipients, nil
}

// resolveRoles maps staged job positions to role rows. Tokens outside the
// known role set are skipped without error.
func resolveRoles(employees []models.Employee, staged importer.RoleAssignments) []models.EmployeeRole {
	rows := make([]models.EmployeeRole, 0, len(employees))
	for _, emp := range employees {
		seen := make(map[models.Role]struct{})
		for _, token := range staged.Lookup(emp.Email) {
			role, ok := models.ParseRole(token)
			if !ok {
				continue
			}
			if _, dup := seen[role]; dup {
				continue
			}
			seen[role] = struct{}{}
			rows = append(rows, models.EmployeeRole{EmployeeID: emp.ID, Role: role})
		}
	}
	return rows
}

func (s *EmployeeImportService) reject(actor Actor, res *importer.BatchResult) error {
	rejection := res.Rejection()
	if link, err := s.storeReport(actor, res.WrongCells); err != nil {
		s.logger.Warn("failed to store import report", zap.Error(err))
	} else if link != nil {
		rejection.ReportURL = link.URL
	}
	return appErrors.WithDetails(appErrors.ErrImportRejected, rejection)
}

// storeReport renders flagged cells to CSV and returns a signed download link.
func (s *EmployeeImportService) storeReport(actor Actor, cells []importer.WrongCell) (*dto.ImportReportLink, error) {
	if s.reports.Storage == nil || s.reports.Signer == nil || len(cells) == 0 {
		return nil, nil
	}
	sorted := append([]importer.WrongCell(nil), cells...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RowIndex != sorted[j].RowIndex {
			return sorted[i].RowIndex < sorted[j].RowIndex
		}
		return sorted[i].ColIndex < sorted[j].ColIndex
	})
	dataset := export.Dataset{Headers: []string{"Line", "Column", "Error"}}
	for _, cell := range sorted {
		column := ""
		if cell.ColIndex >= 0 {
			column = strconv.Itoa(cell.ColIndex + 1)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Line":   strconv.Itoa(cell.RowIndex + 1),
			"Column": column,
			"Error":  cell.ErrorMessage,
		})
	}
	payload, err := s.reports.Renderer.Render(dataset)
	if err != nil {
		return nil, err
	}
	relPath, err := s.reports.Storage.Save(fmt.Sprintf("reports/%s.csv", uuid.NewString()), payload)
	if err != nil {
		return nil, err
	}
	owner := actor.ID
	if owner == "" {
		owner = "anonymous"
	}
	token, expiresAt, err := s.reports.Signer.Sign(owner, relPath)
	if err != nil {
		return nil, err
	}
	return &dto.ImportReportLink{URL: strings.TrimRight(s.cfg.ReportPath, "/") + "/" + token, ExpiresAt: expiresAt}, nil
}

func (s *EmployeeImportService) parse(file io.Reader) (*importer.Sheet, error) {
	sheet, err := s.catalog.ParseCSV(file)
	if err != nil {
		if errors.Is(err, importer.ErrNoKnownColumns) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "CSV header does not contain any known column")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unable to read CSV file")
	}
	return sheet, nil
}

func (s *EmployeeImportService) checkSize(rows int) error {
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no lines to import")
	}
	if rows > s.cfg.MaxRows {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("import is limited to %d lines", s.cfg.MaxRows))
	}
	return nil
}

func (s *EmployeeImportService) recordAudit(ctx context.Context, actor Actor, inserted int, report DeliveryReport) {
	if s.audit == nil {
		return
	}
	payload := fmt.Sprintf(`{"inserted":%d,"mail_sent":%d,"mail_failed":%d}`, inserted, report.Sent, len(report.Failed))
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:   actor.idPtr(),
		Action:    models.AuditActionEmployeeImport,
		Resource:  "employee",
		NewValues: []byte(payload),
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record import audit log", zap.Error(err))
	}
}

func summarize(res *importer.BatchResult, rows int) *dto.EmployeeImportValidation {
	cells := res.WrongCells
	if cells == nil {
		cells = []importer.WrongCell{}
	}
	return &dto.EmployeeImportValidation{
		Valid:      !res.Rejected(),
		Rows:       rows,
		Errors:     strings.Join(res.Errors, "\n"),
		Warnings:   strings.Join(res.Warnings, "\n"),
		WrongCells: cells,
	}
}
