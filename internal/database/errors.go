package database

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes query errors with a stable machine-checkable code.
type ErrorKind string

const (
	// KindValidation indicates the statement was rejected before execution.
	KindValidation ErrorKind = "VALIDATION_FAILED"

	// KindExecution indicates the engine rejected or failed an already
	// validated statement.
	KindExecution ErrorKind = "EXECUTION_FAILED"
)

// QueryError represents a query that could not be run or completed.
type QueryError struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Reason is a human-readable description.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a QueryError for a rejected statement.
func NewValidationError(reason string) *QueryError {
	return &QueryError{Kind: KindValidation, Reason: reason}
}

// NewExecutionError creates a QueryError for an engine failure.
func NewExecutionError(reason string, err error) *QueryError {
	return &QueryError{Kind: KindExecution, Reason: reason, Err: err}
}

// IsValidationError reports whether err is a validation rejection.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind == KindValidation
	}
	return false
}

// IsExecutionError reports whether err is an engine failure.
// Uses errors.As to handle wrapped errors.
func IsExecutionError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind == KindExecution
	}
	return false
}
