// Package fault defines the error taxonomy shared by the intake pipeline,
// the resolver, and the HTTP boundary. Callers classify with errors.As.
package fault

import "fmt"

// ValidationError reports a missing or malformed input field. It is never
// retried; the caller must fix the payload and resubmit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError for a single field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports a unique-constraint violation that re-lookup could
// not resolve. It indicates a constraint the resolver did not anticipate and
// is surfaced, never swallowed.
type ConflictError struct {
	Entity string
	Key    string
	Err    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unresolvable conflict on %s (%s): %v", e.Entity, e.Key, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// TransientError reports a store timeout or connection failure. The whole
// intake call may be retried by the upstream orchestrator; the idempotency
// guard makes that retry safe.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
