package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hr-admin-api/internal/models"
)

type execRecorder struct {
	queries []string
	params  []int
}

func (r *execRecorder) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	r.queries = append(r.queries, query)
	r.params = append(r.params, len(args))
	return nil, nil
}

func TestExecValuesStaysUnderParameterLimit(t *testing.T) {
	rec := &execRecorder{}
	err := execValues(context.Background(), rec, "INSERT INTO employee_roles (employee_id, role)", " ON CONFLICT DO NOTHING", 40000, 2, func(i int) []interface{} {
		return []interface{}{fmt.Sprintf("e%d", i), models.RoleEmployee}
	})
	require.NoError(t, err)

	require.Len(t, rec.params, 2)
	total := 0
	for i, n := range rec.params {
		assert.LessOrEqual(t, n, maxBindParams)
		assert.True(t, strings.HasSuffix(rec.queries[i], " ON CONFLICT DO NOTHING"))
		total += n
	}
	assert.Equal(t, 80000, total)
	assert.True(t, strings.HasPrefix(rec.queries[1], "INSERT INTO employee_roles (employee_id, role) VALUES ($1, $2), ($3, $4)"))
}

func TestExecValuesRejectsShortRow(t *testing.T) {
	err := execValues(context.Background(), &execRecorder{}, "INSERT INTO t (a, b)", "", 1, 2, func(int) []interface{} {
		return []interface{}{"only-one"}
	})
	assert.Error(t, err)
}

func TestTokenBulkInsertAtImportCeiling(t *testing.T) {
	repo := NewTokenRepository(nil, models.TokenPurposeActivation)
	tokens := make([]models.OneTimeToken, 10000)
	for i := range tokens {
		tokens[i] = models.OneTimeToken{EmployeeID: fmt.Sprintf("e%d", i), Email: fmt.Sprintf("e%d@example.com", i), Token: fmt.Sprintf("t%d", i)}
	}

	rec := &execRecorder{}
	require.NoError(t, repo.bulkInsert(context.Background(), rec, tokens))
	require.Len(t, rec.params, 2)
	assert.Equal(t, rowsPerStatement(7)*7, rec.params[0])
	assert.Equal(t, (10000-rowsPerStatement(7))*7, rec.params[1])
	assert.Equal(t, models.TokenValid, tokens[9999].Status)
}
