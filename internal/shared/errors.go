package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrProtectedRole indicates a delete attempt against a user holding the
	// protected role. The target record is left untouched.
	ErrProtectedRole = errors.New("user holds a protected role")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationError carries field-keyed messages for caller-recoverable input
// failures. It never represents a committed state change.
type ValidationError struct {
	Fields map[string]string
}

// Error renders the field messages in deterministic order.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records an additional field message.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

// DuplicateNameError reports a uniqueness violation as a field error.
func DuplicateNameError(field, value string) *ValidationError {
	return NewValidationError(field, fmt.Sprintf("the %s %q has already been taken", field, value))
}

// UnknownReferenceError reports a reference to a record that does not exist.
func UnknownReferenceError(field, value string) *ValidationError {
	return NewValidationError(field, fmt.Sprintf("the selected %s %q does not exist", field, value))
}

// UserSafeMessage returns a message fit for end users. Validation errors are
// already caller-facing; anything else is replaced by a generic failure so
// storage internals stay in the logs.
func UserSafeMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrProtectedRole):
		return err.Error()
	}
	return "something went wrong, please try again"
}
