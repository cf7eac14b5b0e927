package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError is the engine's structured error. Handlers map StatusCode to
// the HTTP response; callers branch on Type via the Is* predicates.
type ServiceError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Cause      error  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for this error.
func (e *ServiceError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// NewNotFoundError: referenced user or badge does not exist.
func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{
		Type:       "NOT_FOUND",
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewValidationError: negative amount, unknown activity type, malformed date.
func NewValidationError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewConflictError: an optimistic update lost a race. Retried internally —
// callers outside this package should never see one.
func NewConflictError(message string) *ServiceError {
	return &ServiceError{
		Type:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewPersistenceError: the storage layer failed, or a conflict exhausted
// its retry budget.
func NewPersistenceError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       "PERSISTENCE_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func isType(err error, t string) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Type == t
	}
	return false
}

func IsNotFoundError(err error) bool    { return isType(err, "NOT_FOUND") }
func IsValidationError(err error) bool  { return isType(err, "VALIDATION_ERROR") }
func IsConflictError(err error) bool    { return isType(err, "CONFLICT") }
func IsPersistenceError(err error) bool { return isType(err, "PERSISTENCE_ERROR") }
