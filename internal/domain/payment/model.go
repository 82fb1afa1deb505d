package payment

import (
	"time"

	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/shopspring/decimal"
)

// Payment is money received against an invoice. Cheques are later
// gathered into a remittance listing, which flips Listed exactly once.
type Payment struct {
	ID          string              `db:"id" json:"id"`
	InvoiceID   string              `db:"invoice_id" json:"invoice_id"`
	PaymentDate time.Time           `db:"payment_date" json:"payment_date"`
	Method      types.PaymentMethod `db:"method" json:"method"`
	Bank        string              `db:"bank" json:"bank"`
	Holder      string              `db:"holder" json:"holder"`
	Amount      decimal.Decimal     `db:"amount" json:"amount"`
	Listed      bool                `db:"listed" json:"listed"`
	ListedAt    *time.Time          `db:"listed_at" json:"listed_at,omitempty"`
	// ListingID and ListingCutoff identify the remittance listing the
	// payment was gathered into
	ListingID     string     `db:"listing_id" json:"listing_id,omitempty"`
	ListingCutoff *time.Time `db:"listing_cutoff" json:"listing_cutoff,omitempty"`

	types.BaseModel
}

func (p *Payment) Validate() error {
	if p.InvoiceID == "" {
		return ierr.NewError("invoice_id is required").
			WithHint("Payment must reference an invoice").
			Mark(ierr.ErrValidation)
	}
	if p.PaymentDate.IsZero() {
		return ierr.NewError("payment_date is required").
			WithHint("Payment date is required").
			Mark(ierr.ErrValidation)
	}
	if err := p.Method.Validate(); err != nil {
		return err
	}
	if p.Amount.IsNegative() {
		return ierr.NewError("negative payment amount").
			WithHint("Payment amount must not be negative").
			WithReportableDetails(map[string]any{"amount": p.Amount.String()}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ListingMark is what a remittance writes on every payment it gathers
type ListingMark struct {
	ListingID string
	Cutoff    time.Time
	ListedAt  time.Time
}

// TotalAmount sums the amounts of the given payments
func TotalAmount(payments []*Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
