package errors

import (
	"fmt"
)

// QuillError is the structured error type for Quill.
// It provides rich context for error handling, logging, and user presentation.
type QuillError struct {
	// Code is the unique error code (e.g., "ERR_202_CORRUPT_SNAPSHOT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *QuillError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *QuillError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with QuillError.
func (e *QuillError) Is(target error) bool {
	if t, ok := target.(*QuillError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *QuillError) WithDetail(key, value string) *QuillError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *QuillError) WithSuggestion(suggestion string) *QuillError {
	e.Suggestion = suggestion
	return e
}

// New creates a new QuillError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *QuillError {
	return &QuillError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a QuillError from an existing error.
// The error's message becomes the QuillError message.
func Wrap(code string, err error) *QuillError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *QuillError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a snapshot or disk I/O error.
func StorageError(message string, cause error) *QuillError {
	return New(ErrCodeCorruptSnapshot, message, cause)
}

// ProviderError creates an embedding-provider error.
// Provider errors are typically retryable.
func ProviderError(message string, cause error) *QuillError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *QuillError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *QuillError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a QuillError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QuillError); ok {
		return qe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QuillError); ok {
		return qe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a QuillError.
// Returns empty string if not a QuillError.
func GetCode(err error) string {
	if qe, ok := err.(*QuillError); ok {
		return qe.Code
	}
	return ""
}

// GetCategory extracts the category from a QuillError.
// Returns empty string if not a QuillError.
func GetCategory(err error) Category {
	if qe, ok := err.(*QuillError); ok {
		return qe.Category
	}
	return ""
}
