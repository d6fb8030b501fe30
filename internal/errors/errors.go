package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeFatalInconsistency indicates a shared-state combination that
	// should be impossible (e.g., an account that was just asserted to exist
	// but resolves to nothing). Never auto-retried: retrying cannot fix a
	// data-consistency bug.
	ErrCodeFatalInconsistency ErrorCode = "fatal_inconsistency"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// FatalInconsistency creates a new FatalInconsistency error.
func FatalInconsistency(message string) *AppError {
	return &AppError{Code: ErrCodeFatalInconsistency, Message: message}
}

// FatalInconsistencyf creates a new FatalInconsistency error with formatted message.
func FatalInconsistencyf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeFatalInconsistency, Message: fmt.Sprintf(format, args...)}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsFatalInconsistency checks if an error is a FatalInconsistency error.
func IsFatalInconsistency(err error) bool {
	return isCode(err, ErrCodeFatalInconsistency)
}
