package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/dto"
	"github.com/noah-isme/hr-admin-api/internal/importer"
	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
)

type employeeRepoStub struct {
	byID      map[string]*models.Employee
	created   []models.Employee
	updated   []models.Employee
	deleted   []string
	disabled  map[string]bool
	revoked   []string
	auditLogs []*models.AuditLog
}

func newEmployeeRepoStub(employees ...*models.Employee) *employeeRepoStub {
	s := &employeeRepoStub{byID: map[string]*models.Employee{}, disabled: map[string]bool{}}
	for _, e := range employees {
		s.byID[e.ID] = e
	}
	return s
}

func (s *employeeRepoStub) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	emp, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *emp
	return &clone, nil
}

func (s *employeeRepoStub) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	out := make([]models.Employee, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (s *employeeRepoStub) CreateWithTx(ctx context.Context, tx *sqlx.Tx, emp *models.Employee) error {
	emp.ID = "new-employee"
	s.created = append(s.created, *emp)
	return nil
}

func (s *employeeRepoStub) UpdateWithTx(ctx context.Context, tx *sqlx.Tx, emp *models.Employee) error {
	if _, ok := s.byID[emp.ID]; !ok {
		return sql.ErrNoRows
	}
	s.updated = append(s.updated, *emp)
	return nil
}

func (s *employeeRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.byID[id]; !ok {
		return sql.ErrNoRows
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *employeeRepoStub) SetDisabled(ctx context.Context, id string, disabled bool, ts time.Time) error {
	if _, ok := s.byID[id]; !ok {
		return sql.ErrNoRows
	}
	s.disabled[id] = disabled
	return nil
}

func (s *employeeRepoStub) RevokeEmployeeRefreshTokens(ctx context.Context, employeeID string) error {
	s.revoked = append(s.revoked, employeeID)
	return nil
}

func (s *employeeRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.auditLogs = append(s.auditLogs, log)
	return nil
}

type employeeRoleStub struct {
	byEmployee map[string][]models.Role
	inserted   []models.EmployeeRole
	replaced   map[string][]models.Role
}

func newEmployeeRoleStub() *employeeRoleStub {
	return &employeeRoleStub{byEmployee: map[string][]models.Role{}, replaced: map[string][]models.Role{}}
}

func (s *employeeRoleStub) BulkInsertWithTx(ctx context.Context, tx *sqlx.Tx, roles []models.EmployeeRole) error {
	s.inserted = append(s.inserted, roles...)
	return nil
}

func (s *employeeRoleStub) ReplaceWithTx(ctx context.Context, tx *sqlx.Tx, employeeID string, roles []models.Role) error {
	s.replaced[employeeID] = roles
	return nil
}

func (s *employeeRoleStub) ListByEmployee(ctx context.Context, employeeID string) ([]models.Role, error) {
	return s.byEmployee[employeeID], nil
}

func (s *employeeRoleStub) ListByEmployees(ctx context.Context, employeeIDs []string) (map[string][]models.Role, error) {
	out := make(map[string][]models.Role, len(employeeIDs))
	for _, id := range employeeIDs {
		if roles, ok := s.byEmployee[id]; ok {
			out[id] = roles
		}
	}
	return out, nil
}

type employeeFixture struct {
	svc      *EmployeeService
	repo     *employeeRepoStub
	roles    *employeeRoleStub
	tokens   *tokenStoreStub
	notifier *notifierStub
}

func newEmployeeFixture(t *testing.T, employees ...*models.Employee) (*employeeFixture, func()) {
	t.Helper()
	db, mock := newTxProviderMock(t)
	f := &employeeFixture{
		repo:     newEmployeeRepoStub(employees...),
		roles:    newEmployeeRoleStub(),
		tokens:   &tokenStoreStub{},
		notifier: &notifierStub{},
	}
	f.svc = NewEmployeeService(db, f.repo, f.roles, f.tokens, &errorLogStub{}, f.notifier, nil, validator.New(), zap.NewNop(), ImportConfig{ActivationTTL: 24 * time.Hour})
	expectTx := func() {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	return f, expectTx
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func validEmployeeRequest() dto.EmployeeRequest {
	return dto.EmployeeRequest{
		FirstName:    "Amira",
		LastName:     "Ben Salah",
		Email:        "amira@example.com",
		Number:       int64Ptr(42),
		Gender:       "female",
		ContractType: "cdi",
		CNSSNumber:   strPtr("12345678-01"),
		PhoneNumber:  strPtr("+216 22 123 456"),
		Roles:        []string{"hr", "Employee"},
	}
}

func TestEmployeeServiceCreate(t *testing.T) {
	f, expectTx := newEmployeeFixture(t)
	expectTx()

	emp, err := f.svc.Create(context.Background(), Actor{ID: "admin"}, validEmployeeRequest())
	require.NoError(t, err)
	assert.Equal(t, "new-employee", emp.ID)
	assert.Equal(t, models.GenderFemale, emp.Gender)
	assert.Equal(t, models.ContractCDI, emp.ContractType)
	require.NotNil(t, emp.PhoneNumber)
	assert.Equal(t, "22123456", *emp.PhoneNumber)
	assert.Equal(t, []models.Role{models.RoleHR, models.RoleEmployee}, emp.Roles)

	assert.Equal(t, []models.EmployeeRole{
		{EmployeeID: "new-employee", Role: models.RoleHR},
		{EmployeeID: "new-employee", Role: models.RoleEmployee},
	}, f.roles.inserted)
	require.Len(t, f.tokens.tokens, 1)
	assert.Equal(t, "new-employee", f.tokens.tokens[0].EmployeeID)
	require.Len(t, f.notifier.recipients, 1)
	assert.Equal(t, f.tokens.tokens[0].Token, f.notifier.recipients[0].Token)
	require.Len(t, f.repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionEmployeeCreate, f.repo.auditLogs[0].Action)
}

func TestEmployeeServiceCreateAppliesImportRules(t *testing.T) {
	f, _ := newEmployeeFixture(t)
	req := validEmployeeRequest()
	req.CNSSNumber = nil

	_, err := f.svc.Create(context.Background(), Actor{}, req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	rejection, ok := appErr.Details.(*importer.Rejection)
	require.True(t, ok)
	assert.Contains(t, rejection.Errors, "Line 1:")
	assert.Empty(t, f.repo.created)
}

func TestEmployeeServiceUpdateKeepsRolesWhenOmitted(t *testing.T) {
	existing := &models.Employee{ID: "e1", Email: "amira@example.com", AccountStatus: models.AccountActive}
	f, expectTx := newEmployeeFixture(t, existing)
	f.roles.byEmployee["e1"] = []models.Role{models.RoleAccountant}
	expectTx()

	req := validEmployeeRequest()
	req.Roles = nil
	req.LastName = "Trabelsi"
	updated, err := f.svc.Update(context.Background(), Actor{ID: "admin"}, "e1", req)
	require.NoError(t, err)
	assert.Equal(t, "Trabelsi", updated.LastName)
	assert.Equal(t, models.AccountActive, updated.AccountStatus)
	assert.Equal(t, []models.Role{models.RoleAccountant}, updated.Roles)
	assert.Empty(t, f.roles.replaced)
}

func TestEmployeeServiceUpdateNotFound(t *testing.T) {
	f, _ := newEmployeeFixture(t)
	_, err := f.svc.Update(context.Background(), Actor{}, "missing", validEmployeeRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceUpdateRolesRejectsUnknown(t *testing.T) {
	f, _ := newEmployeeFixture(t, &models.Employee{ID: "e1"})
	_, err := f.svc.UpdateRoles(context.Background(), Actor{}, "e1", dto.UpdateRolesRequest{Roles: []string{"Admin", "Manager"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Manager")
}

func TestEmployeeServiceUpdateRoles(t *testing.T) {
	f, expectTx := newEmployeeFixture(t, &models.Employee{ID: "e1"})
	expectTx()

	emp, err := f.svc.UpdateRoles(context.Background(), Actor{}, "e1", dto.UpdateRolesRequest{Roles: []string{"admin", "ADMIN", "hr"}})
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleAdmin, models.RoleHR}, emp.Roles)
	assert.Equal(t, []models.Role{models.RoleAdmin, models.RoleHR}, f.roles.replaced["e1"])
}

func TestEmployeeServiceSetDisabledRevokesSessions(t *testing.T) {
	f, _ := newEmployeeFixture(t, &models.Employee{ID: "e1"})
	disabled := true

	require.NoError(t, f.svc.SetDisabled(context.Background(), Actor{ID: "admin"}, "e1", dto.SetDisabledRequest{Disabled: &disabled}))
	assert.True(t, f.repo.disabled["e1"])
	assert.Equal(t, []string{"e1"}, f.repo.revoked)

	err := f.svc.SetDisabled(context.Background(), Actor{ID: "e1"}, "e1", dto.SetDisabledRequest{Disabled: &disabled})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceDelete(t *testing.T) {
	f, _ := newEmployeeFixture(t, &models.Employee{ID: "e1"})

	err := f.svc.Delete(context.Background(), Actor{ID: "e1"}, "e1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.Delete(context.Background(), Actor{ID: "admin"}, "e1"))
	assert.Equal(t, []string{"e1"}, f.repo.deleted)

	err = f.svc.Delete(context.Background(), Actor{ID: "admin"}, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEmployeeServiceListAttachesRoles(t *testing.T) {
	f, _ := newEmployeeFixture(t, &models.Employee{ID: "e1"})
	f.roles.byEmployee["e1"] = []models.Role{models.RoleHR}

	employees, page, err := f.svc.List(context.Background(), models.EmployeeFilter{})
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, []models.Role{models.RoleHR}, employees[0].Roles)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func TestEmployeeServiceGetUsesCache(t *testing.T) {
	f, _ := newEmployeeFixture(t, &models.Employee{ID: "e1", Email: "amira@example.com"})
	f.roles.byEmployee["e1"] = []models.Role{models.RoleEmployee}
	cacheRepo := &memoryCacheRepo{entries: map[string][]byte{}}
	f.svc.cache = NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)

	emp, hit, err := f.svc.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []models.Role{models.RoleEmployee}, emp.Roles)

	emp, hit, err = f.svc.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "amira@example.com", emp.Email)

	disabled := true
	require.NoError(t, f.svc.SetDisabled(context.Background(), Actor{ID: "admin"}, "e1", dto.SetDisabledRequest{Disabled: &disabled}))
	assert.Empty(t, cacheRepo.entries)
}
