package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/postgres"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
)

// constraint backing the uniqueness of practice invoice numbers
const invoiceNumberConstraint = "idx_invoices_practice_number"

const invoiceColumns = `
	id, patient_id, act_date, invoice_date, issuance_site, care_pathway_exempt,
	numbering_status, invoice_number, reference, total_amount, third_party_amount,
	amount_paid, batch_id, batch_date, created_at, updated_at, created_by, updated_by`

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewInvoiceRepository creates a new instance of invoice repository
func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (
			:id, :patient_id, :act_date, :invoice_date, :issuance_site, :care_pathway_exempt,
			:numbering_status, :invoice_number, :reference, :total_amount, :third_party_amount,
			:amount_paid, :batch_id, :batch_date, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"issuance_site", inv.IssuanceSite,
		"invoice_number", inv.InvoiceNumber,
	)

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv); err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok && constraint == invoiceNumberConstraint {
			return ierr.WithError(err).
				WithHintf("Invoice number %s is already used by another invoice", inv.InvoiceNumber).
				WithReportableDetails(map[string]any{"invoice_number": inv.InvoiceNumber}).
				Mark(ierr.ErrAlreadyExists)
		}
		return postgres.TranslateError(err, "failed to create invoice")
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, id, false)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, id, true)
}

func (r *invoiceRepository) get(ctx context.Context, id string, forUpdate bool) (*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var inv invoice.Invoice
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Invoice %s not found", id).
				WithReportableDetails(map[string]any{"invoice_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, postgres.TranslateError(err, "failed to get invoice")
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			patient_id = :patient_id,
			act_date = :act_date,
			invoice_date = :invoice_date,
			issuance_site = :issuance_site,
			care_pathway_exempt = :care_pathway_exempt,
			reference = :reference,
			total_amount = :total_amount,
			third_party_amount = :third_party_amount,
			amount_paid = :amount_paid,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	r.logger.Debugw("updating invoice", "invoice_id", inv.ID)

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv)
	if err != nil {
		return postgres.TranslateError(err, "failed to update invoice")
	}
	return requireRows(result, 1, "invoice", inv.ID)
}

func (r *invoiceRepository) SetNumbering(ctx context.Context, id string, number string, status types.NumberingStatus) error {
	// the guard keeps the number write-once even if a caller skipped the row lock
	query := `
		UPDATE invoices SET
			invoice_number = $2,
			numbering_status = $3,
			updated_at = $4,
			updated_by = $5
		WHERE id = $1
		AND invoice_number = ''
		AND numbering_status = $6`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		id, number, status, time.Now().UTC(), types.GetUserID(ctx), types.NumberingStatusUnnumbered)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok && constraint == invoiceNumberConstraint {
			return ierr.WithError(err).
				WithMessagef("invoice number %s already used while numbering invoice %s", number, id).
				WithHintf("Invoice number %s is already used by another invoice", number).
				WithReportableDetails(map[string]any{
					"invoice_id":     id,
					"invoice_number": number,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return postgres.TranslateError(err, "failed to set invoice number")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return postgres.TranslateError(err, "failed to read affected rows")
	}
	if affected != 1 {
		return ierr.NewError("invoice numbering already finalized").
			WithHintf("Invoice %s already has its numbering decided", id).
			WithReportableDetails(map[string]any{"invoice_id": id}).
			Mark(ierr.ErrInvalidOperation)
	}

	r.logger.Debugw("set invoice numbering",
		"invoice_id", id,
		"invoice_number", number,
		"numbering_status", status,
	)
	return nil
}

func (r *invoiceRepository) ListBatchCandidates(ctx context.Context, forUpdate bool) ([]*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + ` FROM invoices
		WHERE third_party_amount > 0
		AND batch_id = ''
		ORDER BY invoice_number, id`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var invoices []*invoice.Invoice
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &invoices, query); err != nil {
		return nil, postgres.TranslateError(err, "failed to list batch candidates")
	}
	return invoices, nil
}

func (r *invoiceRepository) AssignBatch(ctx context.Context, ids []string, batchID string, batchDate time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE invoices SET
			batch_id = $1,
			batch_date = $2,
			updated_at = $3,
			updated_by = $4
		WHERE id = ANY($5)
		AND batch_id = ''`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		batchID, batchDate, time.Now().UTC(), types.GetUserID(ctx), pq.Array(ids))
	if err != nil {
		return 0, postgres.TranslateError(err, "failed to assign batch")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, postgres.TranslateError(err, "failed to read affected rows")
	}

	r.logger.Debugw("assigned batch to invoices",
		"batch_id", batchID,
		"requested", len(ids),
		"affected", affected,
	)
	return affected, nil
}

func (r *invoiceRepository) ListByBatch(ctx context.Context, batchID string) ([]*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + ` FROM invoices
		WHERE batch_id = $1
		ORDER BY invoice_number, id`

	var invoices []*invoice.Invoice
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &invoices, query, batchID); err != nil {
		return nil, postgres.TranslateError(err, "failed to list batch invoices")
	}
	return invoices, nil
}

// requireRows turns a missed single-row update into ErrNotFound
func requireRows(result sql.Result, want int64, entity, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return postgres.TranslateError(err, "failed to read affected rows")
	}
	if affected != want {
		return ierr.NewError(entity+" not found").
			WithHintf("%s %s not found", entity, id).
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
