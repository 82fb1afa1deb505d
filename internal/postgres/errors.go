package postgres

import (
	"database/sql"

	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
)

// SQLSTATE codes the billing core reacts to
const (
	codeUniqueViolation      = "23505"
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
)

// IsContentionError reports lock waits, deadlocks and serialization failures.
// Cancelled statements (57014) are not contention: they come from a client
// that went away or a statement timeout, and retrying them does not help.
func IsContentionError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
		return true
	}
	return false
}

// UniqueViolation returns the violated constraint when err is a unique violation
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// TranslateError marks a raw driver error with the matching sentinel. Errors
// that already carry a mark pass through untouched. Unique violations are
// left to the repository that knows which constraint fired.
func TranslateError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ierr.ErrContention) || errors.Is(err, ierr.ErrConstraintViolation) ||
		errors.Is(err, ierr.ErrAlreadyExists) || errors.Is(err, ierr.ErrNotFound) {
		return err
	}
	if IsContentionError(err) {
		return ierr.WithError(err).
			WithMessage(msg).
			WithHint("The record is being modified by another user, please retry").
			Mark(ierr.ErrContention)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithMessage(msg).
			WithHint("Record not found").
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("Database operation failed").
		Mark(ierr.ErrDatabase)
}
