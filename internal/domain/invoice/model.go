package invoice

import (
	"time"

	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is the billing document of a single act. Its invoice number is
// write-once: once set it is never changed or cleared.
type Invoice struct {
	ID        string    `db:"id" json:"id"`
	PatientID string    `db:"patient_id" json:"patient_id"`
	ActDate   time.Time `db:"act_date" json:"act_date"`
	// InvoiceDate defaults to the act date when not provided
	InvoiceDate       time.Time             `db:"invoice_date" json:"invoice_date"`
	IssuanceSite      types.IssuanceSite    `db:"issuance_site" json:"issuance_site"`
	CarePathwayExempt bool                  `db:"care_pathway_exempt" json:"care_pathway_exempt"`
	NumberingStatus   types.NumberingStatus `db:"numbering_status" json:"numbering_status"`
	// InvoiceNumber is empty until the invoice is numbered
	InvoiceNumber string `db:"invoice_number" json:"invoice_number"`
	// Reference is the printed timestamp stamp, unrelated to the invoice number
	Reference        string          `db:"reference" json:"reference"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"total_amount"`
	ThirdPartyAmount decimal.Decimal `db:"third_party_amount" json:"third_party_amount"`
	AmountPaid       decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	// BatchID is the deposit slip the invoice was claimed by, empty when unbatched
	BatchID   string     `db:"batch_id" json:"batch_id"`
	BatchDate *time.Time `db:"batch_date" json:"batch_date,omitempty"`

	types.BaseModel
}

// HasNumber reports whether an invoice number was already issued or entered
func (i *Invoice) HasNumber() bool {
	return i.InvoiceNumber != ""
}

// IsBatched reports whether the invoice already belongs to a deposit slip
func (i *Invoice) IsBatched() bool {
	return i.BatchID != ""
}

// IsBatchEligible reports whether the invoice would be picked by the next deposit slip
func (i *Invoice) IsBatchEligible() bool {
	return i.ThirdPartyAmount.IsPositive() && !i.IsBatched()
}

// BypassesCounter reports whether the invoice must never consume a counter value
func (i *Invoice) BypassesCounter() bool {
	return i.IssuanceSite == types.IssuanceSiteClinic || i.CarePathwayExempt
}

func (i *Invoice) Validate() error {
	if i.PatientID == "" {
		return ierr.NewError("patient_id is required").
			WithHint("Invoice must reference a patient").
			Mark(ierr.ErrValidation)
	}
	if i.ActDate.IsZero() {
		return ierr.NewError("act_date is required").
			WithHint("Invoice must carry the date of the act").
			Mark(ierr.ErrValidation)
	}
	if err := i.IssuanceSite.Validate(); err != nil {
		return err
	}
	for field, amount := range map[string]decimal.Decimal{
		"total_amount":       i.TotalAmount,
		"third_party_amount": i.ThirdPartyAmount,
		"amount_paid":        i.AmountPaid,
	} {
		if amount.IsNegative() {
			return ierr.NewError("negative invoice amount").
				WithHintf("%s must not be negative", field).
				WithReportableDetails(map[string]any{
					"field":  field,
					"amount": amount.String(),
				}).
				Mark(ierr.ErrValidation)
		}
	}
	if i.IssuanceSite == types.IssuanceSiteClinic && i.HasNumber() {
		return ierr.NewError("clinic invoice carries a number").
			WithHint("Invoices issued at the clinic cannot have a practice invoice number").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TotalThirdParty sums the third-party share of the given invoices
func TotalThirdParty(invoices []*Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.ThirdPartyAmount)
	}
	return total
}
