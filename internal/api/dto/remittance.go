package dto

import (
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/payment"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/clinicdesk/clinicdesk/internal/validator"
	"github.com/shopspring/decimal"
)

// ReconcileListingRequest selects the payments to list. Method defaults to
// cheques and Date, the inclusive cutoff, to today in the practice timezone.
type ReconcileListingRequest struct {
	Method string `json:"method,omitempty" form:"method"`
	Date   string `json:"date,omitempty" form:"date"`
}

func (r *ReconcileListingRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// Resolve parses the request against the practice timezone and current time
func (r *ReconcileListingRequest) Resolve(now time.Time, loc *time.Location) (types.PaymentMethod, time.Time, error) {
	method := types.PaymentMethodCheque
	if r.Method != "" {
		m, err := types.ParsePaymentMethod(r.Method)
		if err != nil {
			return "", time.Time{}, err
		}
		method = m
	}

	cutoff := types.LocalDate(now, loc)
	if r.Date != "" {
		d, err := types.ParseFlexDate(r.Date, loc)
		if err != nil {
			return "", time.Time{}, err
		}
		cutoff = types.DateOnly(d)
	}
	return method, cutoff, nil
}

// Listing is the set of payments gathered by one remittance, frozen at the
// moment they were marked listed
type Listing struct {
	// ID is set once the listing is reconciled and stays empty on previews
	ID       string              `json:"listing_id,omitempty"`
	Method   types.PaymentMethod `json:"method"`
	Cutoff   time.Time           `json:"cutoff"`
	Payments []*payment.Payment  `json:"payments"`
	Count    int                 `json:"count"`
	Total    decimal.Decimal     `json:"total_amount"`
}

// Empty reports whether nothing was listed
func (l *Listing) Empty() bool {
	return l == nil || l.Count == 0
}

func NewListing(method types.PaymentMethod, cutoff time.Time, payments []*payment.Payment) *Listing {
	if payments == nil {
		payments = []*payment.Payment{}
	}
	return &Listing{
		Method:   method,
		Cutoff:   cutoff,
		Payments: payments,
		Count:    len(payments),
		Total:    payment.TotalAmount(payments),
	}
}
