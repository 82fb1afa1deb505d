package dto

import (
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// BatchPreview is the read-only view of the next deposit slip
type BatchPreview struct {
	ProposedBatchID string             `json:"proposed_batch_id"`
	BatchDate       time.Time          `json:"batch_date"`
	Invoices        []*invoice.Invoice `json:"invoices"`
	Count           int                `json:"count"`
	Total           decimal.Decimal    `json:"total_third_party_amount"`
}

// Empty reports whether no invoice is waiting for a deposit slip
func (p *BatchPreview) Empty() bool {
	return p == nil || p.Count == 0
}

// BatchResult is the set of invoices claimed by a committed deposit slip.
// It is the only input used to render the slip.
type BatchResult struct {
	BatchID   string             `json:"batch_id"`
	BatchDate time.Time          `json:"batch_date"`
	Invoices  []*invoice.Invoice `json:"invoices"`
	Count     int                `json:"count"`
	Total     decimal.Decimal    `json:"total_third_party_amount"`
}

// Empty reports whether the commit claimed nothing
func (r *BatchResult) Empty() bool {
	return r == nil || r.Count == 0
}

func NewBatchResult(batchID string, batchDate time.Time, invoices []*invoice.Invoice) *BatchResult {
	if invoices == nil {
		invoices = []*invoice.Invoice{}
	}
	return &BatchResult{
		BatchID:   batchID,
		BatchDate: batchDate,
		Invoices:  invoices,
		Count:     len(invoices),
		Total:     invoice.TotalThirdParty(invoices),
	}
}
