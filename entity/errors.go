package entity

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

// Text codes attached to configuration, access and mapping errors.
const (
	TextCodeNotEntity          = "ENTITY_NOT_MARKED"
	TextCodeDuplicateColumn    = "DUPLICATE_COLUMN"
	TextCodeTraitCycle         = "TRAIT_CYCLE"
	TextCodeInvalidColumn      = "INVALID_COLUMN"
	TextCodeSchemaTypeMismatch = "SCHEMA_TYPE_MISMATCH"
	TextCodePropertyAccess     = "PROPERTY_ACCESS"
	TextCodeMappingFailed      = "MAPPING_FAILED"
)

func configError(schema, textCode, format string, args ...any) *errors.Error {
	return errors.New(fmt.Sprintf(format, args...), errors.CategoryValidation).
		WithTextCode(textCode).
		WithMetadata(map[string]any{"schema": schema})
}

func accessError(source error, schema, column, op string) *errors.Error {
	msg := fmt.Sprintf("cannot %s property %s.%s", op, schema, column)
	return chain(source, errors.CategoryInternal, msg).
		WithTextCode(TextCodePropertyAccess).
		WithMetadata(map[string]any{"schema": schema, "column": column})
}

func mappingError(source error, schema, column, reason string) *errors.Error {
	msg := fmt.Sprintf("cannot map column %s onto %s: %s", column, schema, reason)
	return chain(source, errors.CategoryInternal, msg).
		WithTextCode(TextCodeMappingFailed).
		WithMetadata(map[string]any{"schema": schema, "column": column})
}

// chain keeps source as the cause. errors.Wrap would clone a go-errors
// source instead, dropping its text code from the chain.
func chain(source error, category errors.Category, msg string) *errors.Error {
	err := errors.New(msg, category)
	err.Source = source
	return err
}

// HasTextCode reports whether err carries a go-errors Error with the given
// text code anywhere in its chain.
func HasTextCode(err error, code string) bool {
	for err != nil {
		var e *errors.Error
		if !errors.As(err, &e) {
			return false
		}
		if e.TextCode == code {
			return true
		}
		err = e.Source
	}
	return false
}
