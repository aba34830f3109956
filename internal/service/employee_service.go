package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/dto"
	"github.com/noah-isme/hr-admin-api/internal/importer"
	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
)

type employeeRepository interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, emp *models.Employee) error
	UpdateWithTx(ctx context.Context, tx *sqlx.Tx, emp *models.Employee) error
	Delete(ctx context.Context, id string) error
	SetDisabled(ctx context.Context, id string, disabled bool, ts time.Time) error
	RevokeEmployeeRefreshTokens(ctx context.Context, employeeID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type employeeRoleRepository interface {
	BulkInsertWithTx(ctx context.Context, tx *sqlx.Tx, roles []models.EmployeeRole) error
	ReplaceWithTx(ctx context.Context, tx *sqlx.Tx, employeeID string, roles []models.Role) error
	ListByEmployee(ctx context.Context, employeeID string) ([]models.Role, error)
	ListByEmployees(ctx context.Context, employeeIDs []string) (map[string][]models.Role, error)
}

func employeeCacheKey(id string) string {
	return "employee:" + id
}

// EmployeeService implements employee CRUD and role management.
type EmployeeService struct {
	db        txProvider
	repo      employeeRepository
	roles     employeeRoleRepository
	tokens    activationTokenWriter
	errorLogs errorLogWriter
	notifier  activationNotifier
	cache     *CacheService
	batch     *importer.BatchValidator
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ImportConfig
}

// NewEmployeeService constructs an EmployeeService. Single creates follow the
// import rules, so cfg carries the activation token lifetime.
func NewEmployeeService(
	db txProvider,
	repo employeeRepository,
	roles employeeRoleRepository,
	tokens activationTokenWriter,
	errorLogs errorLogWriter,
	notifier activationNotifier,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ImportConfig,
) *EmployeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ActivationTTL <= 0 {
		cfg.ActivationTTL = 72 * time.Hour
	}
	return &EmployeeService{
		db:        db,
		repo:      repo,
		roles:     roles,
		tokens:    tokens,
		errorLogs: errorLogs,
		notifier:  notifier,
		cache:     cache,
		batch:     importer.NewBatchValidator(importer.NewCatalog()),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// List returns employees with their roles.
func (s *EmployeeService) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error) {
	employees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	if err := s.attachRoles(ctx, employees); err != nil {
		return nil, nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return employees, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single employee, served from cache when possible. The bool
// reports a cache hit.
func (s *EmployeeService) Get(ctx context.Context, id string) (*models.Employee, bool, error) {
	var cached models.Employee
	if hit, _ := s.cache.Get(ctx, employeeCacheKey(id), &cached); hit {
		return &cached, true, nil
	}

	emp, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	_ = s.cache.Set(ctx, employeeCacheKey(id), emp, 0)
	return emp, false, nil
}

// Create validates a single employee with the import rules and stores it
// together with its roles and an activation token, then emails the token.
func (s *EmployeeService) Create(ctx context.Context, actor Actor, req dto.EmployeeRequest) (*models.Employee, error) {
	res := s.batch.ValidateEmployee(req.Row())
	if res.Rejected() {
		return nil, rejectionError(res)
	}
	emp := res.Records[0].Employee()
	roles := resolveRoles([]models.Employee{{Email: emp.Email}}, res.Roles)

	token := uuid.NewString()
	err := s.withTx(ctx, "employee.create", func(tx *sqlx.Tx) error {
		if err := s.repo.CreateWithTx(ctx, tx, &emp); err != nil {
			return err
		}
		for i := range roles {
			roles[i].EmployeeID = emp.ID
		}
		if err := s.roles.BulkInsertWithTx(ctx, tx, roles); err != nil {
			return err
		}
		now := time.Now().UTC()
		return s.tokens.BulkCreateWithTx(ctx, tx, []models.OneTimeToken{{
			EmployeeID: emp.ID,
			Email:      emp.Email,
			Token:      token,
			Status:     models.TokenValid,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.cfg.ActivationTTL),
		}})
	})
	if err != nil {
		return nil, err
	}

	emp.Roles = make([]models.Role, 0, len(roles))
	for _, r := range roles {
		emp.Roles = append(emp.Roles, r.Role)
	}

	if s.notifier != nil {
		report := s.notifier.SendActivations(ctx, []Recipient{{Email: emp.Email, Name: emp.FullName(), Token: token}})
		if len(report.Failed) > 0 {
			s.logger.Warn("activation email not delivered", zap.String("employee_id", emp.ID), zap.Bool("requeued", report.Requeued > 0))
		}
	}
	s.audit(ctx, actor, models.AuditActionEmployeeCreate, emp.ID, nil, emp)
	return &emp, nil
}

// Update replaces the profile of an employee. Roles are replaced too when the
// request carries them.
func (s *EmployeeService) Update(ctx context.Context, actor Actor, id string, req dto.EmployeeRequest) (*models.Employee, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	replaceRoles := len(req.Roles) > 0
	if !replaceRoles {
		for _, r := range existing.Roles {
			req.Roles = append(req.Roles, string(r))
		}
	}

	res := s.batch.ValidateEmployee(req.Row())
	if res.Rejected() {
		return nil, rejectionError(res)
	}
	updated := res.Records[0].Employee()
	updated.ID = existing.ID
	updated.AccountStatus = existing.AccountStatus
	updated.Disabled = existing.Disabled
	updated.LastLogin = existing.LastLogin
	updated.CreatedAt = existing.CreatedAt
	updated.Roles = existing.Roles

	var roles []models.Role
	if replaceRoles {
		for _, r := range resolveRoles([]models.Employee{{ID: id, Email: updated.Email}}, res.Roles) {
			roles = append(roles, r.Role)
		}
	}

	err = s.withTx(ctx, "employee.update", func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateWithTx(ctx, tx, &updated); err != nil {
			return err
		}
		if replaceRoles {
			return s.roles.ReplaceWithTx(ctx, tx, id, roles)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, err
	}
	if replaceRoles {
		updated.Roles = roles
	}

	s.forget(ctx, id)
	s.audit(ctx, actor, models.AuditActionEmployeeUpdate, id, existing, updated)
	return &updated, nil
}

// Delete removes an employee.
func (s *EmployeeService) Delete(ctx context.Context, actor Actor, id string) error {
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return recordStorageError(ctx, s.errorLogs, s.logger, "employee.delete", err)
	}
	s.forget(ctx, id)
	s.audit(ctx, actor, models.AuditActionEmployeeDelete, id, nil, nil)
	return nil
}

// UpdateRoles replaces the role set. Unlike imports, unknown roles are rejected.
func (s *EmployeeService) UpdateRoles(ctx context.Context, actor Actor, id string, req dto.UpdateRolesRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roles payload")
	}
	roles := make([]models.Role, 0, len(req.Roles))
	seen := make(map[models.Role]struct{})
	var unknown []string
	for _, raw := range req.Roles {
		role, ok := models.ParseRole(raw)
		if !ok {
			unknown = append(unknown, raw)
			continue
		}
		if _, dup := seen[role]; !dup {
			seen[role] = struct{}{}
			roles = append(roles, role)
		}
	}
	if len(unknown) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown roles: %s", strings.Join(unknown, ", ")))
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.withTx(ctx, "employee.roles", func(tx *sqlx.Tx) error {
		return s.roles.ReplaceWithTx(ctx, tx, id, roles)
	}); err != nil {
		return nil, err
	}

	previous := existing.Roles
	existing.Roles = roles
	s.forget(ctx, id)
	s.audit(ctx, actor, models.AuditActionRolesUpdate, id, previous, roles)
	return existing, nil
}

// SetDisabled disables or re-enables an account. Disabling ends active sessions.
func (s *EmployeeService) SetDisabled(ctx context.Context, actor Actor, id string, req dto.SetDisabledRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	disabled := *req.Disabled
	if disabled && actor.ID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot disable your own account")
	}
	if err := s.repo.SetDisabled(ctx, id, disabled, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
	}
	if disabled {
		if err := s.repo.RevokeEmployeeRefreshTokens(ctx, id); err != nil {
			s.logger.Warn("failed to revoke sessions of disabled employee", zap.String("employee_id", id), zap.Error(err))
		}
	}
	s.forget(ctx, id)
	s.audit(ctx, actor, models.AuditActionEmployeeDisable, id, nil, map[string]bool{"disabled": disabled})
	return nil
}

func (s *EmployeeService) load(ctx context.Context, id string) (*models.Employee, error) {
	emp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	roles, err := s.roles.ListByEmployee(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roles")
	}
	emp.Roles = roles
	return emp, nil
}

func (s *EmployeeService) attachRoles(ctx context.Context, employees []models.Employee) error {
	if len(employees) == 0 {
		return nil
	}
	ids := make([]string, len(employees))
	for i := range employees {
		ids[i] = employees[i].ID
	}
	byEmployee, err := s.roles.ListByEmployees(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roles")
	}
	for i := range employees {
		employees[i].Roles = byEmployee[employees[i].ID]
		if employees[i].Roles == nil {
			employees[i].Roles = []models.Role{}
		}
	}
	return nil
}

// withTx runs fn in a transaction, mapping storage failures.
func (s *EmployeeService) withTx(ctx context.Context, operation string, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return recordStorageError(ctx, s.errorLogs, s.logger, operation, err)
	}
	if err = tx.Commit(); err != nil {
		return recordStorageError(ctx, s.errorLogs, s.logger, operation, err)
	}
	return nil
}

func (s *EmployeeService) forget(ctx context.Context, id string) {
	_ = s.cache.Forget(ctx, employeeCacheKey(id))
}

func (s *EmployeeService) audit(ctx context.Context, actor Actor, action, resourceID string, before, after interface{}) {
	entry := &models.AuditLog{
		ActorID:    actor.idPtr(),
		Action:     action,
		Resource:   "employee",
		ResourceID: &resourceID,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

// rejectionError turns a rejected single-row validation into a 400 carrying
// the same payload as a rejected import.
func rejectionError(res *importer.BatchResult) error {
	rejection := res.Rejection()
	message := strings.Join(append(append([]string{}, res.Errors...), res.Warnings...), "\n")
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, message), rejection)
}
