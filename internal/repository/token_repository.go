package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

// TokenRepository stores one-time tokens. Activation and password reset tokens
// share a shape but live in separate tables.
type TokenRepository struct {
	db    *sqlx.DB
	table string
}

// NewTokenRepository builds a repository for the given token purpose.
func NewTokenRepository(db *sqlx.DB, purpose models.TokenPurpose) *TokenRepository {
	table := "account_activations"
	if purpose == models.TokenPurposePasswordReset {
		table = "password_resets"
	}
	return &TokenRepository{db: db, table: table}
}

// Create persists a token outside of any transaction.
func (r *TokenRepository) Create(ctx context.Context, token *models.OneTimeToken) error {
	tokens := []models.OneTimeToken{*token}
	if err := r.bulkInsert(ctx, r.db, tokens); err != nil {
		return err
	}
	*token = tokens[0]
	return nil
}

// BulkCreateWithTx persists tokens inside an existing transaction.
func (r *TokenRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, tokens []models.OneTimeToken) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	return r.bulkInsert(ctx, tx, tokens)
}

func (r *TokenRepository) bulkInsert(ctx context.Context, exec sqlx.ExecerContext, tokens []models.OneTimeToken) error {
	if len(tokens) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range tokens {
		tok := &tokens[i]
		if tok.ID == "" {
			tok.ID = uuid.NewString()
		}
		if tok.Status == "" {
			tok.Status = models.TokenValid
		}
		if tok.CreatedAt.IsZero() {
			tok.CreatedAt = now
		}
	}
	prefix := fmt.Sprintf(`INSERT INTO %s (id, employee_id, email, token, status, created_at, expires_at)`, r.table)
	err := execValues(ctx, exec, prefix, "", len(tokens), 7, func(i int) []interface{} {
		tok := &tokens[i]
		return []interface{}{tok.ID, tok.EmployeeID, tok.Email, tok.Token, tok.Status, tok.CreatedAt, tok.ExpiresAt}
	})
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.table, err)
	}
	return nil
}

// FindByToken returns the token row for the opaque token value.
func (r *TokenRepository) FindByToken(ctx context.Context, token string) (*models.OneTimeToken, error) {
	query := fmt.Sprintf(`SELECT id, employee_id, email, token, status, created_at, expires_at FROM %s WHERE token = $1 LIMIT 1`, r.table)
	var tok models.OneTimeToken
	if err := r.db.GetContext(ctx, &tok, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find %s token: %w", r.table, err)
	}
	return &tok, nil
}

// ExpireWithTx flips a Valid token to Expired. It returns sql.ErrNoRows when the
// token was already consumed, so each token is spent exactly once.
func (r *TokenRepository) ExpireWithTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $2 WHERE id = $1 AND status = $3`, r.table)
	res, err := tx.ExecContext(ctx, query, id, models.TokenExpired, models.TokenValid)
	if err != nil {
		return fmt.Errorf("expire %s token: %w", r.table, err)
	}
	return expectAffected(res)
}

// ExpireByEmployee invalidates every outstanding token of an employee.
func (r *TokenRepository) ExpireByEmployee(ctx context.Context, employeeID string) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $2 WHERE employee_id = $1 AND status = $3`, r.table)
	if _, err := r.db.ExecContext(ctx, query, employeeID, models.TokenExpired, models.TokenValid); err != nil {
		return fmt.Errorf("expire %s tokens: %w", r.table, err)
	}
	return nil
}
