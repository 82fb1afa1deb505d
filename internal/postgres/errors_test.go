package postgres

import (
	"context"
	"database/sql"
	"testing"

	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		contention bool
		sentinel   error
	}{
		{
			name:       "lock timeout",
			err:        &pq.Error{Code: codeLockNotAvailable},
			contention: true,
			sentinel:   ierr.ErrContention,
		},
		{
			name:       "deadlock",
			err:        &pq.Error{Code: codeDeadlockDetected},
			contention: true,
			sentinel:   ierr.ErrContention,
		},
		{
			name:       "serialization failure",
			err:        &pq.Error{Code: codeSerializationFailure},
			contention: true,
			sentinel:   ierr.ErrContention,
		},
		{
			name:     "cancelled statement",
			err:      &pq.Error{Code: "57014"},
			sentinel: ierr.ErrDatabase,
		},
		{
			name:     "client went away",
			err:      errors.Wrap(context.Canceled, "query"),
			sentinel: ierr.ErrDatabase,
		},
		{
			name:     "no rows",
			err:      sql.ErrNoRows,
			sentinel: ierr.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.contention, IsContentionError(tt.err))

			err := TranslateError(tt.err, "failed to run query")
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			assert.Equal(t, tt.contention, ierr.IsRetryable(err))
		})
	}
}

func TestTranslateErrorKeepsMarks(t *testing.T) {
	marked := ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
	assert.Equal(t, marked, TranslateError(marked, "failed to get invoice"))
	assert.NoError(t, TranslateError(nil, "unused"))
}

func TestUniqueViolation(t *testing.T) {
	constraint, ok := UniqueViolation(&pq.Error{Code: codeUniqueViolation, Constraint: "idx_invoices_practice_number"})
	assert.True(t, ok)
	assert.Equal(t, "idx_invoices_practice_number", constraint)

	_, ok = UniqueViolation(&pq.Error{Code: codeLockNotAvailable})
	assert.False(t, ok)
}
