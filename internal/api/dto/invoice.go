package dto

import (
	"context"
	"strings"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/clinicdesk/clinicdesk/internal/validator"
	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest represents the request to create an invoice
type CreateInvoiceRequest struct {
	PatientID string `json:"patient_id" validate:"required"`
	// ActDate accepts YYYY-MM-DD or DD/MM/YYYY
	ActDate string `json:"act_date" validate:"required"`
	// InvoiceDate defaults to the act date
	InvoiceDate       string             `json:"invoice_date,omitempty"`
	IssuanceSite      types.IssuanceSite `json:"issuance_site" validate:"required"`
	CarePathwayExempt bool               `json:"care_pathway_exempt"`
	// InvoiceNumber is an optional manually entered number. It must not be a
	// bare integer since that space belongs to the automatic counter.
	InvoiceNumber    string          `json:"invoice_number,omitempty" validate:"omitempty,max=50"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ThirdPartyAmount decimal.Decimal `json:"third_party_amount"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
}

func (r *CreateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.IssuanceSite.Validate(); err != nil {
		return err
	}
	return ValidateManualInvoiceNumber(r.InvoiceNumber)
}

// ToInvoice builds the invoice to persist, with dates read in the practice timezone
func (r *CreateInvoiceRequest) ToInvoice(ctx context.Context, loc *time.Location) (*invoice.Invoice, error) {
	actDate, err := types.ParseFlexDate(r.ActDate, loc)
	if err != nil {
		return nil, err
	}
	invoiceDate := actDate
	if r.InvoiceDate != "" {
		if invoiceDate, err = types.ParseFlexDate(r.InvoiceDate, loc); err != nil {
			return nil, err
		}
	}

	inv := &invoice.Invoice{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		PatientID:         r.PatientID,
		ActDate:           types.DateOnly(actDate),
		InvoiceDate:       types.DateOnly(invoiceDate),
		IssuanceSite:      r.IssuanceSite,
		CarePathwayExempt: r.CarePathwayExempt,
		NumberingStatus:   types.NumberingStatusUnnumbered,
		InvoiceNumber:     strings.TrimSpace(r.InvoiceNumber),
		TotalAmount:       r.TotalAmount,
		ThirdPartyAmount:  r.ThirdPartyAmount,
		AmountPaid:        r.AmountPaid,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
	return inv, nil
}

// UpdateInvoiceRequest carries the fields to change; nil means unchanged
type UpdateInvoiceRequest struct {
	PatientID         *string             `json:"patient_id,omitempty"`
	ActDate           *string             `json:"act_date,omitempty"`
	InvoiceDate       *string             `json:"invoice_date,omitempty"`
	IssuanceSite      *types.IssuanceSite `json:"issuance_site,omitempty"`
	CarePathwayExempt *bool               `json:"care_pathway_exempt,omitempty"`
	InvoiceNumber     *string             `json:"invoice_number,omitempty" validate:"omitempty,max=50"`
	TotalAmount       *decimal.Decimal    `json:"total_amount,omitempty"`
	ThirdPartyAmount  *decimal.Decimal    `json:"third_party_amount,omitempty"`
	AmountPaid        *decimal.Decimal    `json:"amount_paid,omitempty"`
}

func (r *UpdateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.IssuanceSite != nil {
		if err := r.IssuanceSite.Validate(); err != nil {
			return err
		}
	}
	if r.InvoiceNumber != nil {
		return ValidateManualInvoiceNumber(*r.InvoiceNumber)
	}
	return nil
}

// ChangesNumbering reports whether the request touches a field that drives numbering
func (r *UpdateInvoiceRequest) ChangesNumbering(inv *invoice.Invoice) bool {
	if r.IssuanceSite != nil && *r.IssuanceSite != inv.IssuanceSite {
		return true
	}
	if r.CarePathwayExempt != nil && *r.CarePathwayExempt != inv.CarePathwayExempt {
		return true
	}
	if r.InvoiceNumber != nil && strings.TrimSpace(*r.InvoiceNumber) != inv.InvoiceNumber {
		return true
	}
	return false
}

// Apply copies the descriptive changes onto inv. Numbering fields are applied by the service.
func (r *UpdateInvoiceRequest) Apply(inv *invoice.Invoice, loc *time.Location) error {
	if r.PatientID != nil {
		inv.PatientID = *r.PatientID
	}
	if r.ActDate != nil {
		d, err := types.ParseFlexDate(*r.ActDate, loc)
		if err != nil {
			return err
		}
		inv.ActDate = types.DateOnly(d)
	}
	if r.InvoiceDate != nil {
		d, err := types.ParseFlexDate(*r.InvoiceDate, loc)
		if err != nil {
			return err
		}
		inv.InvoiceDate = types.DateOnly(d)
	}
	if r.IssuanceSite != nil {
		inv.IssuanceSite = *r.IssuanceSite
	}
	if r.CarePathwayExempt != nil {
		inv.CarePathwayExempt = *r.CarePathwayExempt
	}
	if r.TotalAmount != nil {
		inv.TotalAmount = *r.TotalAmount
	}
	if r.ThirdPartyAmount != nil {
		inv.ThirdPartyAmount = *r.ThirdPartyAmount
	}
	if r.AmountPaid != nil {
		inv.AmountPaid = *r.AmountPaid
	}
	return nil
}

// ValidateManualInvoiceNumber rejects manual numbers that could collide with
// counter-issued ones
func ValidateManualInvoiceNumber(number string) error {
	if types.IsBareInvoiceNumber(number) {
		return ierr.NewError("manual invoice number is a bare integer").
			WithHint("Manual invoice numbers must contain at least one non-digit character").
			WithReportableDetails(map[string]any{"invoice_number": number}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InvoiceResponse represents the response for invoice operations
type InvoiceResponse struct {
	*invoice.Invoice
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	if inv == nil {
		return nil
	}
	return &InvoiceResponse{Invoice: inv}
}

// InvoiceNumberResponse is returned by the explicit numbering endpoint
type InvoiceNumberResponse struct {
	InvoiceID       string                `json:"invoice_id"`
	InvoiceNumber   string                `json:"invoice_number"`
	NumberingStatus types.NumberingStatus `json:"numbering_status"`
}
