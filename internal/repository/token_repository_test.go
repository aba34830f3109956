package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

func TestTokenBulkCreateWithTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTokenRepository(db, models.TokenPurposeActivation)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO account_activations (id, employee_id, email, token, status, created_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7), ($8,")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	tokens := []models.OneTimeToken{
		{EmployeeID: "e1", Email: "a@example.com", Token: "t1", ExpiresAt: time.Now().Add(time.Hour)},
		{EmployeeID: "e2", Email: "b@example.com", Token: "t2", ExpiresAt: time.Now().Add(time.Hour)},
	}
	require.NoError(t, repo.BulkCreateWithTx(context.Background(), tx, tokens))
	require.NoError(t, tx.Commit())
	for _, tok := range tokens {
		assert.Equal(t, models.TokenValid, tok.Status)
		assert.NotEmpty(t, tok.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenFindByTokenUsesPurposeTable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTokenRepository(db, models.TokenPurposePasswordReset)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM password_resets WHERE token = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "employee_id", "email", "token", "status", "created_at", "expires_at"}).
			AddRow("r1", "e1", "a@example.com", "t1", "Valid", now, now.Add(time.Hour)))

	tok, err := repo.FindByToken(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, tok.Usable(now))
	assert.False(t, tok.Usable(now.Add(2*time.Hour)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenExpireWithTxOnlyOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTokenRepository(db, models.TokenPurposeActivation)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE account_activations SET status = $2 WHERE id = $1 AND status = $3")).
		WithArgs("a1", models.TokenExpired, models.TokenValid).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE account_activations SET status = $2")).
		WithArgs("a1", models.TokenExpired, models.TokenValid).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.ExpireWithTx(context.Background(), tx, "a1"))
	assert.ErrorIs(t, repo.ExpireWithTx(context.Background(), tx, "a1"), sql.ErrNoRows)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorLogCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewErrorLogRepository(db)

	mock.ExpectExec("INSERT INTO error_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.ErrorLog{Operation: "employee.import", Message: "Email already exists.", Detail: "pq: duplicate key"}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest map[string]string
	assert.False(t, repo.Enabled())
	assert.Error(t, repo.Get(context.Background(), "employee:1", &dest))
	assert.NoError(t, repo.Set(context.Background(), "employee:1", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.Delete(context.Background(), "employee:1"))
}
