package repository

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

// Text codes attached to repository errors.
const (
	TextCodeNoIDProperty       = "NO_ID_PROPERTY"
	TextCodeMissingConstructor = "MISSING_CONSTRUCTOR"
	TextCodeUnknownColumn      = "UNKNOWN_COLUMN"
	TextCodeIDArity            = "ID_ARITY"
	TextCodeUnassignedID       = "UNASSIGNED_ID"
	TextCodeNotFound           = "ENTITY_NOT_FOUND"
)

func schemaError(kind, textCode, format string, args ...any) *errors.Error {
	return errors.New(fmt.Sprintf(format, args...), errors.CategoryValidation).
		WithTextCode(textCode).
		WithMetadata(map[string]any{"kind": kind})
}

func badInput(kind, textCode, format string, args ...any) *errors.Error {
	return errors.New(fmt.Sprintf(format, args...), errors.CategoryBadInput).
		WithTextCode(textCode).
		WithMetadata(map[string]any{"kind": kind})
}

func notFound(kind, table string) *errors.Error {
	return errors.New(fmt.Sprintf("no %s row matched the update", table), errors.CategoryNotFound).
		WithTextCode(TextCodeNotFound).
		WithMetadata(map[string]any{"kind": kind, "table": table})
}

// backendError keeps the executor error as the cause so callers can still
// inspect its category.
func backendError(err error, stmt Statement) error {
	return fmt.Errorf("%s %s: %w", stmt.Kind, stmt.Table, err)
}
