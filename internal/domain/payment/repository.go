package payment

import (
	"context"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/types"
)

// Repository defines the interface for payment persistence operations
type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)

	// ListUnlisted returns the payments of the given method dated on or
	// before cutoff that were never listed, ordered by date then id.
	// With forUpdate the rows stay locked until the transaction ends.
	ListUnlisted(ctx context.Context, method types.PaymentMethod, cutoff time.Time, forUpdate bool) ([]*Payment, error)

	// MarkListed flags the given payments as listed under mark, skipping
	// any already listed, and returns the number of rows changed
	MarkListed(ctx context.Context, ids []string, mark ListingMark) (int64, error)

	// ListByListing returns the payments of one listing, ordered by date then id
	ListByListing(ctx context.Context, listingID string) ([]*Payment, error)

	// ListByInvoice returns the payments recorded against an invoice
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Payment, error)
}
