package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/supermodelai/supermodel-api/internal/store"
)

// PostgreSQL constraint violation codes.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"
)

// pgErrorCode extracts the PostgreSQL error code, or "" for non-pg errors.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// MapError translates driver-level errors into the store package's
// sentinel errors so callers never depend on pgconn. The original error is
// always preserved in the chain.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case uniqueViolationCode:
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case foreignKeyViolationCode:
		return fmt.Errorf("%w: foreign key violation (%s): %v",
			store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case checkViolationCode:
		return fmt.Errorf("%w: check constraint violation (%s): %v",
			store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case notNullViolationCode:
		return fmt.Errorf("%w: not null violation (%s): %v",
			store.ErrInvalidEntity, pgErr.ColumnName, err)
	}

	return err
}

// IsForeignKeyViolation reports whether the error is a referential
// integrity failure, e.g. attaching a skill pack to a session that does
// not exist.
func IsForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == foreignKeyViolationCode
}
