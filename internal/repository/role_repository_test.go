package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

func TestRoleBulkInsertWithTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO employee_roles (employee_id, role) VALUES ($1, $2), ($3, $4) ON CONFLICT (employee_id, role) DO NOTHING")).
		WithArgs("e1", models.RoleAdmin, "e1", models.RoleHR).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.BulkInsertWithTx(context.Background(), tx, []models.EmployeeRole{
		{EmployeeID: "e1", Role: models.RoleAdmin},
		{EmployeeID: "e1", Role: models.RoleHR},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleReplaceWithTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM employee_roles WHERE employee_id = \\$1").WithArgs("e1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO employee_roles").WithArgs("e1", models.RoleEmployee).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.ReplaceWithTx(context.Background(), tx, "e1", []models.Role{models.RoleEmployee}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleListByEmployees(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE employee_id = ANY($1)")).
		WithArgs(pq.Array([]string{"e1", "e2"})).
		WillReturnRows(sqlmock.NewRows([]string{"employee_id", "role"}).
			AddRow("e1", "Admin").
			AddRow("e1", "HR").
			AddRow("e2", "Employee"))

	roles, err := repo.ListByEmployees(context.Background(), []string{"e1", "e2"})
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleAdmin, models.RoleHR}, roles["e1"])
	assert.Equal(t, []models.Role{models.RoleEmployee}, roles["e2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
