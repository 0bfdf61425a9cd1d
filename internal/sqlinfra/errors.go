package sqlinfra

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-errors"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Text codes attached to mapped driver errors.
const (
	TextCodeUniqueViolation = "UNIQUE_VIOLATION"
	TextCodeConstraint      = "CONSTRAINT_VIOLATION"
	TextCodeDatabase        = "DATABASE_ERROR"
)

const pqUniqueViolation = "23505"

// MapError classifies driver errors into go-errors categories while keeping
// the driver error as the cause. Context errors pass through untouched.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == pqUniqueViolation {
			return wrap(err, errors.CategoryConflict, TextCodeUniqueViolation, "unique constraint violated").
				WithMetadata(map[string]any{"constraint": pqErr.Constraint, "table": pqErr.Table})
		}
		if pqErr.Code.Class() == "23" {
			return wrap(err, errors.CategoryConflict, TextCodeConstraint, "integrity constraint violated").
				WithMetadata(map[string]any{"constraint": pqErr.Constraint, "table": pqErr.Table})
		}
		return wrap(err, errors.CategoryExternal, TextCodeDatabase, "postgres error").
			WithMetadata(map[string]any{"code": string(pqErr.Code)})
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code == sqlite3.ErrConstraint {
			code := TextCodeConstraint
			if liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				code = TextCodeUniqueViolation
			}
			return wrap(err, errors.CategoryConflict, code, "sqlite constraint violated")
		}
		return wrap(err, errors.CategoryExternal, TextCodeDatabase, "sqlite error")
	}

	var goErr *errors.Error
	if errors.As(err, &goErr) {
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return wrap(err, errors.CategoryExternal, TextCodeDatabase, "database connection unavailable")
	}
	return wrap(err, errors.CategoryExternal, TextCodeDatabase, "database error")
}

func wrap(source error, category errors.Category, textCode, msg string) *errors.Error {
	err := errors.New(msg, category).WithTextCode(textCode)
	err.Source = source
	return err
}
