package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// maxBindParams is the PostgreSQL limit of bind parameters in one statement.
const maxBindParams = 65535

// rowsPerStatement returns how many rows of perRow parameters fit in one statement.
func rowsPerStatement(perRow int) int {
	if perRow <= 0 {
		return 1
	}
	return maxBindParams / perRow
}

// execValues runs prefix + VALUES tuples + suffix for n rows, splitting the
// rows over as many statements as needed to stay under maxBindParams. args
// returns the parameters of row i; every row must yield perRow values.
func execValues(ctx context.Context, exec sqlx.ExecerContext, prefix, suffix string, n, perRow int, args func(i int) []interface{}) error {
	step := rowsPerStatement(perRow)
	for lo := 0; lo < n; lo += step {
		hi := lo + step
		if hi > n {
			hi = n
		}
		tuples := make([]string, 0, hi-lo)
		params := make([]interface{}, 0, (hi-lo)*perRow)
		for i := lo; i < hi; i++ {
			row := args(i)
			if len(row) != perRow {
				return fmt.Errorf("row %d has %d values, want %d", i, len(row), perRow)
			}
			placeholders := make([]string, perRow)
			for j := range placeholders {
				placeholders[j] = fmt.Sprintf("$%d", len(params)+j+1)
			}
			tuples = append(tuples, "("+strings.Join(placeholders, ", ")+")")
			params = append(params, row...)
		}
		query := prefix + " VALUES " + strings.Join(tuples, ", ") + suffix
		if _, err := exec.ExecContext(ctx, query, params...); err != nil {
			return err
		}
	}
	return nil
}
