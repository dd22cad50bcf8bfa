package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// maxBulkRows keeps a single statement under the 65535 parameter limit for
// the widest table.
const maxBulkRows = 500

// bulkInsert writes n rows of cols values each as multi-VALUES statements.
// prefix is "INSERT INTO t (a, b, ...)" and suffix an optional ON CONFLICT
// clause. row appends the values of row i to args.
func bulkInsert(ctx context.Context, tx *sql.Tx, prefix, suffix string, cols, n int, row func(i int, args []any) []any) error {
	for start := 0; start < n; start += maxBulkRows {
		end := start + maxBulkRows
		if end > n {
			end = n
		}
		args := make([]any, 0, (end-start)*cols)
		values := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			base := len(args)
			args = row(i, args)
			placeholders := make([]string, cols)
			for c := 0; c < cols; c++ {
				placeholders[c] = fmt.Sprintf("$%d", base+c+1)
			}
			values = append(values, "("+strings.Join(placeholders, ", ")+")")
		}
		query := prefix + " VALUES " + strings.Join(values, ", ") + " " + suffix
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

// inTx runs fn in a transaction, rolling back on error.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
