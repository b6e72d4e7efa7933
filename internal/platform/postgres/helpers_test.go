package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// nopDBTX satisfies store.DBTX for tests that must not reach a database.
type nopDBTX struct{}

func (nopDBTX) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("unexpected database access")
}

func (nopDBTX) PrepareContext(context.Context, string) (*sql.Stmt, error) {
	return nil, errors.New("unexpected database access")
}

func (nopDBTX) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("unexpected database access")
}

func (nopDBTX) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// execRecorderDBTX captures the query and arguments passed to ExecContext
// and reports one affected row, so store methods complete without a
// database while tests inspect the exact values bound to the statement.
type execRecorderDBTX struct {
	nopDBTX
	query string
	args  []any
}

func (r *execRecorderDBTX) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.query = query
	r.args = args
	return fixedResult{rows: 1}, nil
}

type fixedResult struct{ rows int64 }

func (r fixedResult) LastInsertId() (int64, error) { return 0, nil }
func (r fixedResult) RowsAffected() (int64, error) { return r.rows, nil }
