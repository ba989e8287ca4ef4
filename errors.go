package veloxdb

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for configuration handling.
var (
	// ErrInvalidConfig is returned when a loaded configuration fails
	// validation.
	ErrInvalidConfig = errors.New("veloxdb: invalid configuration")
)

// ConfigError reports which configuration field failed validation and why.
type ConfigError struct {
	field  string
	reason string
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("veloxdb: invalid configuration: %s: %s", e.field, e.reason)
}

// Is reports whether the target error matches ConfigError.
// This allows errors.Is(configErr, ErrInvalidConfig) to return true.
func (e *ConfigError) Is(err error) bool {
	return err == ErrInvalidConfig
}

// Field returns the configuration field that failed validation.
func (e *ConfigError) Field() string {
	return e.field
}

// NewConfigError returns a new ConfigError for the given field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{field: field, reason: reason}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e) || errors.Is(err, ErrInvalidConfig)
}
