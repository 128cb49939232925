// Package errors defines the structured error kinds returned by the store.
//
// Every failure a caller can act on carries an ErrorCode. The HTTP boundary
// uses StatusCode to pick a response status; the core itself never looks at
// it.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode defines specific error kinds.
type ErrorCode string

const (
	// ErrNotFound is returned when a database, schema, table, field or user is missing.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	// ErrPermissionDenied is returned when a read or write check fails.
	ErrPermissionDenied ErrorCode = "PERMISSION_DENIED"
	// ErrInvalidDatatype is returned when a value does not match the declared field type.
	ErrInvalidDatatype ErrorCode = "INVALID_DATATYPE"

	// ErrValidationFailed is returned when input data fails validation.
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrUnauthorized is returned when authentication is missing or invalid.
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrConflict is returned when a resource already exists.
	ErrConflict ErrorCode = "CONFLICT"
	// ErrRateLimited is returned when a client exceeds its request budget.
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	// ErrInternal is returned when an unexpected failure occurs.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is a concrete error type with status code, code, and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
		details:    make(map[string]any),
	}
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Message returns the message without the wrapped error.
func (e *APIError) Message() string {
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// CodeOf returns the ErrorCode carried by err, or ErrInternal when err is not
// an ErrorWithStatus.
func CodeOf(err error) ErrorCode {
	var ews ErrorWithStatus
	if stderrors.As(err, &ews) {
		return ews.Code()
	}
	return ErrInternal
}

// IsKind reports whether err carries the given code.
func IsKind(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// NotFound creates a 404 error. The message is used verbatim, e.g. "Table not found".
func NotFound(message string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrNotFound, message)
}

// InvalidCredentials creates a 401 error for a failed password check.
func InvalidCredentials(message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrInvalidCredentials, message)
}

// PermissionDenied creates a 403 error.
func PermissionDenied(message string) *APIError {
	return NewAPIError(http.StatusForbidden, ErrPermissionDenied, message)
}

// InvalidDatatype creates a 400 error for a value of the wrong type.
func InvalidDatatype(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrInvalidDatatype, message)
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, fmt.Sprintf("Missing required field: %s", fieldName))
}

// Conflict creates a 409 error.
func Conflict(message string) *APIError {
	return NewAPIError(http.StatusConflict, ErrConflict, message)
}

// Unauthorized returns a 401 Unauthorized error.
func Unauthorized(message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrUnauthorized, message)
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message)
}

// RateLimited returns a 429 Too Many Requests error.
func RateLimited(message string) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrRateLimited, message)
}
