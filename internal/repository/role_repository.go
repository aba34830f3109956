package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

// RoleRepository persists employee role assignments.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository constructs a RoleRepository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// BulkInsertWithTx stores role rows, ignoring assignments that already exist.
func (r *RoleRepository) BulkInsertWithTx(ctx context.Context, tx *sqlx.Tx, roles []models.EmployeeRole) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if len(roles) == 0 {
		return nil
	}
	err := execValues(ctx, tx, `INSERT INTO employee_roles (employee_id, role)`, ` ON CONFLICT (employee_id, role) DO NOTHING`, len(roles), 2, func(i int) []interface{} {
		return []interface{}{roles[i].EmployeeID, roles[i].Role}
	})
	if err != nil {
		return fmt.Errorf("bulk insert employee roles: %w", err)
	}
	return nil
}

// ReplaceWithTx swaps the full role set of an employee.
func (r *RoleRepository) ReplaceWithTx(ctx context.Context, tx *sqlx.Tx, employeeID string, roles []models.Role) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM employee_roles WHERE employee_id = $1`, employeeID); err != nil {
		return fmt.Errorf("clear employee roles: %w", err)
	}
	rows := make([]models.EmployeeRole, 0, len(roles))
	for _, role := range roles {
		rows = append(rows, models.EmployeeRole{EmployeeID: employeeID, Role: role})
	}
	return r.BulkInsertWithTx(ctx, tx, rows)
}

// ListByEmployee returns the roles of one employee.
func (r *RoleRepository) ListByEmployee(ctx context.Context, employeeID string) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, `SELECT role FROM employee_roles WHERE employee_id = $1 ORDER BY role`, employeeID); err != nil {
		return nil, fmt.Errorf("list employee roles: %w", err)
	}
	return roles, nil
}

// ListByEmployees returns roles grouped by employee id.
func (r *RoleRepository) ListByEmployees(ctx context.Context, employeeIDs []string) (map[string][]models.Role, error) {
	result := make(map[string][]models.Role, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return result, nil
	}
	var rows []models.EmployeeRole
	const query = `SELECT employee_id, role FROM employee_roles WHERE employee_id = ANY($1) ORDER BY employee_id, role`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(employeeIDs)); err != nil {
		return nil, fmt.Errorf("list roles by employees: %w", err)
	}
	for _, row := range rows {
		result[row.EmployeeID] = append(result[row.EmployeeID], row.Role)
	}
	return result, nil
}
