package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors used to mark failures across the billing core.
// Mark an error with ierr.WithError(err)...Mark(ierr.ErrX) and test with errors.Is.
var (
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = new(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation       = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation = new(ErrCodeInvalidOperation, "invalid operation")
	ErrDatabase         = new(ErrCodeDatabase, "database error")
	ErrSystem           = new(ErrCodeSystemError, "system error")
	// ErrContention marks lock waits, deadlocks and serialization failures.
	// Nothing was applied; the whole operation can be retried.
	ErrContention = new(ErrCodeContention, "concurrent update in progress")
	// ErrConstraintViolation marks a uniqueness violation on an issued
	// invoice number. It signals a defect and must never be retried.
	ErrConstraintViolation = new(ErrCodeConstraintViolation, "constraint violation")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrDatabase:            http.StatusInternalServerError,
		ErrNotFound:            http.StatusNotFound,
		ErrAlreadyExists:       http.StatusConflict,
		ErrValidation:          http.StatusBadRequest,
		ErrInvalidOperation:    http.StatusBadRequest,
		ErrSystem:              http.StatusInternalServerError,
		ErrContention:          http.StatusServiceUnavailable,
		ErrConstraintViolation: http.StatusInternalServerError,
	}
)

const (
	ErrCodeSystemError         = "system_error"
	ErrCodeNotFound            = "not_found"
	ErrCodeAlreadyExists       = "already_exists"
	ErrCodeValidation          = "validation_error"
	ErrCodeInvalidOperation    = "invalid_operation"
	ErrCodeDatabase            = "database_error"
	ErrCodeContention          = "concurrency_contention"
	ErrCodeConstraintViolation = "constraint_violation"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsContention checks if an error is a transient lock contention error
func IsContention(err error) bool {
	return errors.Is(err, ErrContention)
}

// IsConstraintViolation checks if an error is a uniqueness violation on issued numbers
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

// IsRetryable reports whether the caller may retry the whole operation
func IsRetryable(err error) bool {
	return IsContention(err)
}

func HTTPStatusFromErr(err error) int {
	// contention and constraint violations win over the generic database mark
	for _, e := range []error{ErrConstraintViolation, ErrContention} {
		if errors.Is(err, e) {
			return statusCodeMap[e]
		}
	}
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
