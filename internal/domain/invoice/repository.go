package invoice

import (
	"context"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/types"
)

// Repository defines the interface for invoice persistence operations.
// Methods run inside the transaction carried by ctx when there is one.
type Repository interface {
	// Create creates a new invoice. A duplicate practice invoice number
	// fails with ErrAlreadyExists.
	Create(ctx context.Context, invoice *Invoice) error

	// Get retrieves an invoice by ID
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetForUpdate retrieves an invoice by ID and row-locks it until the
	// surrounding transaction ends
	GetForUpdate(ctx context.Context, id string) (*Invoice, error)

	// Update persists the descriptive fields of an invoice. Numbering and
	// batch fields are only written through SetNumbering and AssignBatch.
	Update(ctx context.Context, invoice *Invoice) error

	// SetNumbering moves an unnumbered invoice to its terminal numbering
	// state. It never overwrites an existing number.
	SetNumbering(ctx context.Context, id string, number string, status types.NumberingStatus) error

	// ListBatchCandidates returns invoices with a positive third-party
	// amount that are not yet batched, ordered by invoice number then id.
	// With forUpdate the rows stay locked until the transaction ends.
	ListBatchCandidates(ctx context.Context, forUpdate bool) ([]*Invoice, error)

	// AssignBatch stamps the batch on the given invoices, skipping any that
	// are already batched, and returns the number of rows changed
	AssignBatch(ctx context.Context, ids []string, batchID string, batchDate time.Time) (int64, error)

	// ListByBatch returns the invoices of a committed batch
	ListByBatch(ctx context.Context, batchID string) ([]*Invoice, error)
}
