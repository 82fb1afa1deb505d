package postgres

import (
	"context"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/sequence"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/postgres"
)

type sequenceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewSequenceRepository creates the repository of the invoice counter
func NewSequenceRepository(db *postgres.DB, logger *logger.Logger) sequence.Repository {
	return &sequenceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *sequenceRepository) Lock(ctx context.Context) (*sequence.Counter, error) {
	if !postgres.InTx(ctx) {
		return nil, ierr.NewError("counter lock outside transaction").
			WithHint("The invoice counter can only be locked inside a transaction").
			Mark(ierr.ErrSystem)
	}
	q := r.db.GetQuerier(ctx)

	// first use creates the row; concurrent creators collapse on the primary key
	if _, err := q.ExecContext(ctx,
		`INSERT INTO invoice_sequences (id, next_value) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		sequence.InitialValue,
	); err != nil {
		return nil, postgres.TranslateError(err, "failed to initialize invoice counter")
	}

	var counter sequence.Counter
	if err := q.GetContext(ctx, &counter,
		`SELECT next_value, updated_at FROM invoice_sequences WHERE id = 1 FOR UPDATE`,
	); err != nil {
		return nil, postgres.TranslateError(err, "failed to lock invoice counter")
	}

	r.logger.Debugw("locked invoice counter", "next_value", counter.NextValue)
	return &counter, nil
}

func (r *sequenceRepository) Advance(ctx context.Context, next int64) error {
	if next < sequence.InitialValue {
		return ierr.NewError("invalid counter value").
			WithHintf("Counter value %d is below %d", next, sequence.InitialValue).
			Mark(ierr.ErrValidation)
	}

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`UPDATE invoice_sequences SET next_value = $1, updated_at = $2 WHERE id = 1`,
		next, time.Now().UTC(),
	)
	if err != nil {
		return postgres.TranslateError(err, "failed to advance invoice counter")
	}
	return requireRows(result, 1, "invoice counter", "1")
}

func (r *sequenceRepository) Peek(ctx context.Context) (*sequence.Counter, error) {
	var counters []sequence.Counter
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &counters,
		`SELECT next_value, updated_at FROM invoice_sequences WHERE id = 1`,
	); err != nil {
		return nil, postgres.TranslateError(err, "failed to read invoice counter")
	}
	if len(counters) == 0 {
		return &sequence.Counter{NextValue: sequence.InitialValue}, nil
	}
	return &counters[0], nil
}
