package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

// ErrorLogRepository records storage failures reported back to callers.
type ErrorLogRepository struct {
	db *sqlx.DB
}

// NewErrorLogRepository constructs an ErrorLogRepository.
func NewErrorLogRepository(db *sqlx.DB) *ErrorLogRepository {
	return &ErrorLogRepository{db: db}
}

// Create inserts an error log entry.
func (r *ErrorLogRepository) Create(ctx context.Context, entry *models.ErrorLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO error_logs (id, operation, message, detail, created_at) VALUES (:id, :operation, :message, :detail, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create error log: %w", err)
	}
	return nil
}
