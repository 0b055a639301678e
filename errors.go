// FILE: lixenwraith/pexconfig/errors.go
package pexconfig

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the package wraps one of these,
// so callers can classify failures with errors.Is.
var (
	// ErrValidation is wrapped by every FieldValidationError
	ErrValidation = errors.New("field validation failed")

	// ErrDefinition marks errors raised while constructing fields, registries or types
	ErrDefinition = errors.New("invalid definition")

	// ErrOverride marks errors raised while applying assignments or overrides
	ErrOverride = errors.New("override failed")

	// ErrScript marks errors raised while parsing or evaluating a config script
	ErrScript = errors.New("invalid config script")

	// ErrConfigNotFound is returned when an override file or script does not exist
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrCLIParse is returned when command-line overrides cannot be parsed
	ErrCLIParse = errors.New("failed to parse command-line arguments")

	// ErrValueSize is returned when an environment value exceeds MaxValueSize
	ErrValueSize = fmt.Errorf("value size exceeds maximum %d bytes", MaxValueSize)
)

// Override and path resolution errors
var (
	ErrUnknownField      = fmt.Errorf("%w: unknown field", ErrOverride)
	ErrMalformedPath     = fmt.Errorf("%w: malformed field name", ErrOverride)
	ErrAmbiguousOverride = fmt.Errorf("%w: ambiguous dict", ErrOverride)
	ErrTypeMismatch      = fmt.Errorf("%w: type mismatch", ErrOverride)
	ErrRestricted        = fmt.Errorf("%w: restricted registry", ErrOverride)
	ErrUnknownKey        = fmt.Errorf("%w: unknown registry key", ErrOverride)
	ErrNotIndexable      = fmt.Errorf("%w: value does not support indexing", ErrOverride)
	ErrInvalidValue      = fmt.Errorf("%w: invalid value", ErrOverride)
)

// Definition errors
var (
	ErrEmptyChoices     = fmt.Errorf("%w: choice field must allow at least one choice", ErrDefinition)
	ErrEmptyTypemap     = fmt.Errorf("%w: restricted registry requires a non-empty typemap", ErrDefinition)
	ErrNotConfigType    = fmt.Errorf("%w: type is not a config type", ErrDefinition)
	ErrDuplicateType    = fmt.Errorf("%w: config type already defined", ErrDefinition)
	ErrInvalidFieldName = fmt.Errorf("%w: invalid field name", ErrDefinition)
	ErrFieldReuse       = fmt.Errorf("%w: field already bound to another name", ErrDefinition)
)

// FieldValidationError reports a field whose current value breaks one of its rules.
type FieldValidationError struct {
	// Kind is the field kind, e.g. "RangeField"
	Kind string

	// Path is the full dotted path of the field
	Path string

	// Message describes the failure
	Message string

	// Value is the offending value (may be nil)
	Value any
}

// Error implements the error interface.
func (e *FieldValidationError) Error() string {
	return fmt.Sprintf("%s '%s' failed validation: %s", e.Kind, e.Path, e.Message)
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e *FieldValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(f Field, c *Config, value any, format string, args ...any) *FieldValidationError {
	return &FieldValidationError{
		Kind:    f.Kind(),
		Path:    JoinNamePath(c.path, f.Name(), nil),
		Message: fmt.Sprintf(format, args...),
		Value:   value,
	}
}
