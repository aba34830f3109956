package service

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/models"
	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
)

// constraintMessages maps unique/check constraint names to user facing messages.
var constraintMessages = []struct {
	key     string
	message string
}{
	{"employee_cnss_required", "CNSS number is required for CDI and CDD contracts."},
	{"employee_cnss_number_key", "CNSS number already exists."},
	{"employee_email_key", "Email already exists."},
	{"employee_number_key", "Employee number already exists."},
	{"employee_phone_number_key", "Phone number already exists."},
	{"employee_pkey", "Employee ID already exists."},
}

// storageErrorMessage resolves a storage failure to a readable message. The
// constraint name reported by PostgreSQL wins; otherwise the raw error text is
// searched for a known key.
func storageErrorMessage(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Constraint != "" {
		for _, entry := range constraintMessages {
			if pqErr.Constraint == entry.key {
				return entry.message, true
			}
		}
	}
	text := err.Error()
	for _, entry := range constraintMessages {
		if strings.Contains(text, entry.key) {
			return entry.message, true
		}
	}
	return appErrors.ErrUnknownStorage.Message, false
}

// mapStorageError converts a failed write into a service error.
func mapStorageError(err error) error {
	message, known := storageErrorMessage(err)
	if known {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
	}
	return appErrors.Wrap(err, appErrors.ErrUnknownStorage.Code, appErrors.ErrUnknownStorage.Status, message)
}

type errorLogWriter interface {
	Create(ctx context.Context, entry *models.ErrorLog) error
}

// recordStorageError persists the failure to error_logs and returns the mapped error.
func recordStorageError(ctx context.Context, logs errorLogWriter, logger *zap.Logger, operation string, err error) error {
	mapped := mapStorageError(err)
	message, _ := storageErrorMessage(err)
	logger.Error("storage failure", zap.String("operation", operation), zap.String("message", message), zap.Error(err))
	if logs != nil {
		entry := &models.ErrorLog{Operation: operation, Message: message, Detail: err.Error()}
		// the request context may already be cancelled
		if logErr := logs.Create(context.WithoutCancel(ctx), entry); logErr != nil {
			logger.Warn("failed to write error log", zap.Error(logErr))
		}
	}
	return mapped
}
