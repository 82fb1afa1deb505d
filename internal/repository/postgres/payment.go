package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/payment"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/postgres"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
)

const paymentColumns = `
	id, invoice_id, payment_date, method, bank, holder, amount, listed, listed_at,
	listing_id, listing_cutoff, created_at, updated_at, created_by, updated_by`

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewPaymentRepository creates a new instance of payment repository
func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (
			:id, :invoice_id, :payment_date, :method, :bank, :holder, :amount, :listed, :listed_at,
			:listing_id, :listing_cutoff, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"invoice_id", p.InvoiceID,
		"method", p.Method,
	)

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p); err != nil {
		return postgres.TranslateError(err, "failed to create payment")
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.GetQuerier(ctx).GetContext(ctx, &p,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHintf("Payment %s not found", id).
				WithReportableDetails(map[string]any{"payment_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, postgres.TranslateError(err, "failed to get payment")
	}
	return &p, nil
}

func (r *paymentRepository) ListUnlisted(ctx context.Context, method types.PaymentMethod, cutoff time.Time, forUpdate bool) ([]*payment.Payment, error) {
	query := `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE method = $1
		AND listed = false
		AND payment_date <= $2
		ORDER BY payment_date, id`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var payments []*payment.Payment
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments, query, method, cutoff); err != nil {
		return nil, postgres.TranslateError(err, "failed to list unlisted payments")
	}
	return payments, nil
}

func (r *paymentRepository) MarkListed(ctx context.Context, ids []string, mark payment.ListingMark) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE payments SET
			listed = true,
			listed_at = $1,
			listing_id = $2,
			listing_cutoff = $3,
			updated_at = $1,
			updated_by = $4
		WHERE id = ANY($5)
		AND listed = false`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		mark.ListedAt, mark.ListingID, mark.Cutoff, types.GetUserID(ctx), pq.Array(ids))
	if err != nil {
		return 0, postgres.TranslateError(err, "failed to mark payments listed")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, postgres.TranslateError(err, "failed to read affected rows")
	}

	r.logger.Debugw("marked payments listed",
		"listing_id", mark.ListingID,
		"requested", len(ids),
		"affected", affected,
	)
	return affected, nil
}

func (r *paymentRepository) ListByListing(ctx context.Context, listingID string) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments,
		`SELECT `+paymentColumns+` FROM payments WHERE listing_id = $1 ORDER BY payment_date, id`, listingID)
	if err != nil {
		return nil, postgres.TranslateError(err, "failed to list payments of listing")
	}
	return payments, nil
}

func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1 ORDER BY payment_date, id`, invoiceID)
	if err != nil {
		return nil, postgres.TranslateError(err, "failed to list invoice payments")
	}
	return payments, nil
}
