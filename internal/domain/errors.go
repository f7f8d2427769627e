package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the boundary error taxonomy. Handlers map these to
// HTTP status codes; services never write status codes themselves.
var (
	// ErrNotFound: the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOutOfScope: the row exists but the principal cannot see it.
	// The REST boundary maps this to 404, never 403, to avoid confirming
	// existence.
	ErrOutOfScope = errors.New("out of scope")
	// ErrConflict: a unique or other constraint was violated.
	ErrConflict = errors.New("conflict")
	// ErrRoleForbidden: the principal's role is not permitted this operation.
	ErrRoleForbidden = errors.New("role forbidden")
	// ErrPayloadTooLarge: an upload exceeded the size limit.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ValidationError carries a per-field error map. The REST boundary maps it
// to 422.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// PreconditionError signals a stage guard, outstanding conditions, or a
// compliance FAIL blocking the operation. The REST boundary maps it to 400
// with a machine-readable error code.
type PreconditionError struct {
	Code    string // e.g. "wrong_stage", "compliance_failed", "denial_reason_required"
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPreconditionError builds a PreconditionError.
func NewPreconditionError(code, format string, args ...any) *PreconditionError {
	return &PreconditionError{Code: code, Message: fmt.Sprintf(format, args...)}
}
