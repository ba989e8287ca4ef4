package field

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a field value that failed validation.
type ValidationError struct {
	Name string // Field name
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("field: validation failed for %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// JSONValue is a JSON column bound to a Go type with `validate` struct tags.
// Values are validated both before writing and after reading, so a column
// only ever holds data the type accepts.
//
// Rows written under an older shape of T can be migrated on demand: Coerce
// receives the raw column bytes when validation fails and may rewrite them;
// the rewritten bytes are validated again. If that also fails and ForceLoad
// is set, the decoded value is kept despite validation errors. Otherwise
// scanning fails with a ValidationError.
type JSONValue[T any] struct {
	V T

	// Coerce rewrites raw column bytes that failed validation.
	Coerce func([]byte) ([]byte, error)
	// ForceLoad keeps values that remain invalid after coercion.
	ForceLoad bool
}

// JSON wraps v for writing to a JSON column.
func JSON[T any](v T) JSONValue[T] {
	return JSONValue[T]{V: v}
}

// Value implements driver.Valuer. The value is validated before encoding.
func (j JSONValue[T]) Value() (driver.Value, error) {
	if err := validateStruct(j.V); err != nil {
		return nil, &ValidationError{Name: "json", Err: err}
	}
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, fmt.Errorf("field: encode json: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (j *JSONValue[T]) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		var zero T
		j.V = zero
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("field: cannot scan %T into JSONValue", src)
	}
	var decoded T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return &ValidationError{Name: "json", Err: fmt.Errorf("decode: %w", err)}
	}
	verr := validateStruct(decoded)
	if verr == nil {
		j.V = decoded
		return nil
	}
	if j.Coerce != nil {
		coerced, err := j.Coerce(raw)
		if err == nil {
			var migrated T
			if err := json.Unmarshal(coerced, &migrated); err == nil {
				if err := validateStruct(migrated); err == nil {
					j.V = migrated
					return nil
				}
			}
		}
	}
	if j.ForceLoad {
		j.V = decoded
		return nil
	}
	return &ValidationError{Name: "json", Err: verr}
}

// validateStruct runs struct-tag validation when v is (a pointer to) a
// struct; other JSON shapes (maps, slices, scalars) pass through.
func validateStruct(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(rv.Interface())
}
