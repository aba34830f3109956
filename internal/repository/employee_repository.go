package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

const employeeColumns = `id, first_name, last_name, email, number, phone_number, address, birth_date, gender, contract_type, cnss_number, password_hash, account_status, disabled, last_login, created_at, updated_at`

// EmployeeRepository provides database access for employees, their sessions and the audit trail.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository creates a new instance of EmployeeRepository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByEmail returns an employee by email address, ignoring case.
func (r *EmployeeRepository) FindByEmail(ctx context.Context, email string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var emp models.Employee
	if err := r.db.GetContext(ctx, &emp, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by email: %w", err)
	}
	return &emp, nil
}

// FindByID returns an employee by identifier.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1 LIMIT 1`
	var emp models.Employee
	if err := r.db.GetContext(ctx, &emp, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by id: %w", err)
	}
	return &emp, nil
}

// List returns employees based on filters with total count. A negative Page
// disables pagination.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	baseQuery := `FROM employees WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ContractType != nil {
		conditions = append(conditions, fmt.Sprintf("contract_type = $%d", len(args)+1))
		args = append(args, *filter.ContractType)
	}
	if filter.AccountStatus != nil {
		conditions = append(conditions, fmt.Sprintf("account_status = $%d", len(args)+1))
		args = append(args, *filter.AccountStatus)
	}
	if filter.Disabled != nil {
		conditions = append(conditions, fmt.Sprintf("disabled = $%d", len(args)+1))
		args = append(args, *filter.Disabled)
	}
	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM employee_roles er WHERE er.employee_id = employees.id AND er.role = $%d)", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(first_name || ' ' || last_name) LIKE $%d)", idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"number":     true,
		"last_name":  true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s", employeeColumns, baseQuery, sortBy, sortOrder)
	if filter.Page >= 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		pageSize := filter.PageSize
		if pageSize <= 0 || pageSize > 100 {
			pageSize = 20
		}
		listQuery += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	}

	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}

	return employees, total, nil
}

// CreateWithTx inserts a single employee inside an existing transaction.
func (r *EmployeeRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, emp *models.Employee) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	employees := []models.Employee{*emp}
	if err := r.bulkInsert(ctx, tx, employees); err != nil {
		return err
	}
	*emp = employees[0]
	return nil
}

// BulkInsertWithTx inserts employees inside an existing transaction, assigning
// ids to rows that have none.
func (r *EmployeeRepository) BulkInsertWithTx(ctx context.Context, tx *sqlx.Tx, employees []models.Employee) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	return r.bulkInsert(ctx, tx, employees)
}

func (r *EmployeeRepository) bulkInsert(ctx context.Context, exec sqlx.ExecerContext, employees []models.Employee) error {
	if len(employees) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range employees {
		emp := &employees[i]
		if emp.ID == "" {
			emp.ID = uuid.NewString()
		}
		if emp.AccountStatus == "" {
			emp.AccountStatus = models.AccountInactive
		}
		if emp.CreatedAt.IsZero() {
			emp.CreatedAt = now
		}
		emp.UpdatedAt = now
	}

	const prefix = `INSERT INTO employees (id, first_name, last_name, email, number, phone_number, address, birth_date, gender, contract_type, cnss_number, account_status, disabled, created_at, updated_at)`
	err := execValues(ctx, exec, prefix, "", len(employees), 15, func(i int) []interface{} {
		emp := &employees[i]
		return []interface{}{emp.ID, emp.FirstName, emp.LastName, emp.Email, emp.Number, emp.PhoneNumber, emp.Address,
			emp.BirthDate, emp.Gender, emp.ContractType, emp.CNSSNumber, emp.AccountStatus, emp.Disabled, emp.CreatedAt, emp.UpdatedAt}
	})
	if err != nil {
		return fmt.Errorf("bulk insert employees: %w", err)
	}
	return nil
}

// FindByIDsWithTx returns the employees with the given ids, reading through
// the transaction so freshly inserted rows are visible.
func (r *EmployeeRepository) FindByIDsWithTx(ctx context.Context, tx *sqlx.Tx, ids []string) ([]models.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = ANY($1) ORDER BY email`
	var employees []models.Employee
	if err := tx.SelectContext(ctx, &employees, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find employees by ids: %w", err)
	}
	return employees, nil
}

// UpdateWithTx updates mutable profile fields of an employee inside a transaction.
func (r *EmployeeRepository) UpdateWithTx(ctx context.Context, tx *sqlx.Tx, emp *models.Employee) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	emp.UpdatedAt = time.Now().UTC()
	const query = `UPDATE employees SET first_name = :first_name, last_name = :last_name, email = :email, number = :number, phone_number = :phone_number, address = :address, birth_date = :birth_date, gender = :gender, contract_type = :contract_type, cnss_number = :cnss_number, updated_at = :updated_at WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, emp)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return expectAffected(res)
}

// Delete removes an employee; roles and tokens cascade.
func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	return expectAffected(res)
}

// SetDisabled toggles the disabled flag.
func (r *EmployeeRepository) SetDisabled(ctx context.Context, id string, disabled bool, ts time.Time) error {
	const query = `UPDATE employees SET disabled = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, disabled, ts)
	if err != nil {
		return fmt.Errorf("set employee disabled: %w", err)
	}
	return expectAffected(res)
}

// UpdateLastLogin updates the last_login timestamp for an employee.
func (r *EmployeeRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE employees SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePasswordWithTx updates the stored password hash inside a transaction.
func (r *EmployeeRepository) UpdatePasswordWithTx(ctx context.Context, tx *sqlx.Tx, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE employees SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *EmployeeRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE employees SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ActivateWithTx sets the first password and flips the account to Active.
func (r *EmployeeRepository) ActivateWithTx(ctx context.Context, tx *sqlx.Tx, id, passwordHash string, ts time.Time) error {
	const query = `UPDATE employees SET password_hash = $2, account_status = $3, updated_at = $4 WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, id, passwordHash, models.AccountActive, ts)
	if err != nil {
		return fmt.Errorf("activate employee: %w", err)
	}
	return expectAffected(res)
}

// CreateRefreshToken persists a refresh token entry.
func (r *EmployeeRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	const query = `INSERT INTO refresh_tokens (id, employee_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :employee_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *EmployeeRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, employee_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *EmployeeRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeEmployeeRefreshTokens revokes all refresh tokens of an employee.
func (r *EmployeeRepository) RevokeEmployeeRefreshTokens(ctx context.Context, employeeID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE employee_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, employeeID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke employee refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *EmployeeRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :actor_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
