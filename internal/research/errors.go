package research

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Category classifies a pipeline failure for caller-side handling.
type Category string

const (
	CategoryAPI        Category = "API_ERROR"
	CategoryNetwork    Category = "NETWORK_ERROR"
	CategoryValidation Category = "VALIDATION_ERROR"
	CategoryJob        Category = "JOB_ERROR"
	CategoryDatabase   Category = "DATABASE_ERROR"
	CategoryUnknown    Category = "UNKNOWN_ERROR"
)

// Error is the terminal error type surfaced by a research run. Message is
// human-readable; Err carries the technical cause; Retryable drives whether
// the caller should offer a retry action.
type Error struct {
	Category  Category
	Message   string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewAPIError marks an upstream-service failure (retryable).
func NewAPIError(msg string, err error) *Error {
	return &Error{Category: CategoryAPI, Message: msg, Err: err, Retryable: true}
}

// NewNetworkError marks a transport or abort failure (not retryable).
func NewNetworkError(msg string, err error) *Error {
	return &Error{Category: CategoryNetwork, Message: msg, Err: err, Retryable: false}
}

// NewValidationError marks malformed or constraint-violating data (not retryable).
func NewValidationError(msg string, err error) *Error {
	return &Error{Category: CategoryValidation, Message: msg, Err: err, Retryable: false}
}

// NewJobError marks a background-execution failure (retryable).
func NewJobError(msg string, err error) *Error {
	return &Error{Category: CategoryJob, Message: msg, Err: err, Retryable: true}
}

// NewDatabaseError marks a persistence failure.
func NewDatabaseError(msg string, err error) *Error {
	return &Error{Category: CategoryDatabase, Message: msg, Err: err, Retryable: true}
}

// AsError coerces any error into a research *Error, defaulting unclassified
// failures to UNKNOWN_ERROR (retryable).
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{
		Category:  CategoryUnknown,
		Message:   "research run failed",
		Err:       eris.Wrap(err, "unclassified"),
		Retryable: true,
	}
}
