package remold

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/hengadev/errsx"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("configuration error")

	// ErrRuntime matches every *RuntimeError.
	ErrRuntime = errors.New("runtime error")

	// ErrValidation indicates one or more fields failed to decode or validate.
	ErrValidation = errors.New("validation failed")

	// ErrNotStruct indicates metadata was declared on a non-struct type.
	ErrNotStruct = errors.New("not a struct type")

	// ErrUnknownField indicates a rule names a field the type does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrExcludedField indicates an attribute was set on an excluded field.
	ErrExcludedField = errors.New("field is excluded")

	// ErrRuleExists indicates a field cannot be excluded because it already has rules.
	ErrRuleExists = errors.New("field already has rules")

	// ErrProtectedAttribute indicates an attribute that SetField may not change.
	ErrProtectedAttribute = errors.New("attribute cannot be set directly")

	// ErrUnknownAttribute indicates an attribute name outside the known set.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrInvalidValue indicates an attribute value of the wrong type.
	ErrInvalidValue = errors.New("invalid attribute value")

	// ErrDuplicateKey indicates two fields claim the same document key.
	ErrDuplicateKey = errors.New("document key already used")

	// ErrVersionSet indicates a version was declared twice on one type.
	ErrVersionSet = errors.New("version already set")

	// ErrParentSet indicates a type already extends a different parent.
	ErrParentSet = errors.New("parent already set")

	// ErrCyclicHierarchy indicates an Extend call would make a type its own ancestor.
	ErrCyclicHierarchy = errors.New("cyclic type hierarchy")

	// ErrInvalidTag indicates a `doc` struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidExpression indicates a validation expression failed to compile.
	ErrInvalidExpression = errors.New("invalid expression")

	// ErrCircular indicates a value reached itself while being encoded.
	ErrCircular = errors.New("circular dependency")

	// ErrKeyCollision indicates two encoded entries produced the same document key.
	ErrKeyCollision = errors.New("document key collision")

	// ErrUnsupportedKey indicates a map key that cannot become a document key.
	ErrUnsupportedKey = errors.New("unsupported map key")

	// ErrTypeMismatch indicates a document value cannot be decoded into its target.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidField indicates a validator rejected a decoded value.
	ErrInvalidField = errors.New("invalid field value")

	// ErrMigration indicates a migrator failed.
	ErrMigration = errors.New("migration failed")

	// ErrUnmarshal indicates the format failed to unmarshal input data.
	ErrUnmarshal = errors.New("unmarshal failed")

	// ErrMarshal indicates the format failed to marshal output data.
	ErrMarshal = errors.New("marshal failed")
)

// ConfigurationError reports an illegal metadata declaration.
// It wraps a sentinel error with the type and field that triggered it.
type ConfigurationError struct {
	Err    error  // Underlying sentinel error (ErrDuplicateKey, etc.)
	Type   string // Type the declaration targeted
	Field  string // Source key, when the error concerns one field
	Detail string // Extra context
}

func (e *ConfigurationError) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	switch {
	case e.Type != "" && e.Field != "":
		return fmt.Sprintf("%s (field %s.%s)", msg, e.Type, e.Field)
	case e.Type != "":
		return fmt.Sprintf("%s (type %s)", msg, e.Type)
	case e.Field != "":
		return fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// RuntimeError reports a structural violation found while encoding.
type RuntimeError struct {
	Err    error  // Underlying sentinel error (ErrCircular, ErrKeyCollision)
	Type   string // Type being encoded
	Key    string // Document key involved, if any
	Detail string
}

func (e *RuntimeError) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key %q)", msg, e.Key)
	}
	if e.Type != "" {
		msg = fmt.Sprintf("%s in %s", msg, e.Type)
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRuntime.
func (e *RuntimeError) Is(target error) bool {
	return target == ErrRuntime
}

// ValidationError aggregates every field that failed while decoding one
// document. Errors is keyed by source key.
type ValidationError struct {
	Type   string
	Fields []string
	Errors errsx.Map
}

// Cause returns the error recorded for a source key.
func (e *ValidationError) Cause(field string) error {
	return e.Errors[field]
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		msgs = append(msgs, field+": "+e.Errors.Get(field))
	}
	return fmt.Sprintf("failed validating fields of %s: %s", e.Type, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// FormatError represents a marshal/unmarshal error at the text boundary.
type FormatError struct {
	Err         error  // Underlying sentinel error (ErrMarshal, ErrUnmarshal)
	ContentType string // Content type of the format that failed
	Cause       error  // Original error from the format
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Err.Error(), e.ContentType, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Err.Error(), e.ContentType)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// newConfigurationError creates a ConfigurationError for a declaration on t.
func newConfigurationError(sentinel error, t reflect.Type, field, detail string) error {
	return &ConfigurationError{
		Err:    sentinel,
		Type:   typeName(t),
		Field:  field,
		Detail: detail,
	}
}

// newRuntimeError creates a RuntimeError for an encode of t.
func newRuntimeError(sentinel error, t reflect.Type, key, detail string) error {
	return &RuntimeError{
		Err:    sentinel,
		Type:   typeName(t),
		Key:    key,
		Detail: detail,
	}
}

// newValidationError builds a ValidationError with sorted field names.
func newValidationError(t reflect.Type, causes map[string]error) error {
	fields := make([]string, 0, len(causes))
	errs := make(errsx.Map)
	for name, cause := range causes {
		fields = append(fields, name)
		errs.Set(name, cause)
	}
	sort.Strings(fields)
	return &ValidationError{
		Type:   typeName(t),
		Fields: fields,
		Errors: errs,
	}
}

// newFormatError creates a FormatError for marshal/unmarshal failures.
func newFormatError(sentinel error, contentType string, cause error) error {
	return &FormatError{
		Err:         sentinel,
		ContentType: contentType,
		Cause:       cause,
	}
}

// mismatch reports a document value that cannot become target.
func mismatch(doc any, target reflect.Type) error {
	return fmt.Errorf("%w: cannot decode %T into %s", ErrTypeMismatch, doc, target)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}
