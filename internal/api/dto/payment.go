package dto

import (
	"context"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/payment"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/clinicdesk/clinicdesk/internal/validator"
	"github.com/shopspring/decimal"
)

// RecordPaymentRequest records money received against an invoice
type RecordPaymentRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
	// PaymentDate defaults to the invoice date
	PaymentDate string `json:"payment_date,omitempty"`
	// Method accepts the canonical names and the front desk labels (CB, Chèque, ...)
	Method string `json:"method" validate:"required"`
	Bank   string `json:"bank,omitempty" validate:"omitempty,max=100"`
	Holder string `json:"holder,omitempty" validate:"omitempty,max=100"`
	// Amount defaults to the amount paid on the invoice
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

func (r *RecordPaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if _, err := types.ParsePaymentMethod(r.Method); err != nil {
		return err
	}
	return nil
}

// ToPayment builds the payment, filling the date and amount from inv when omitted
func (r *RecordPaymentRequest) ToPayment(ctx context.Context, inv *invoice.Invoice, loc *time.Location) (*payment.Payment, error) {
	method, err := types.ParsePaymentMethod(r.Method)
	if err != nil {
		return nil, err
	}

	paymentDate := inv.InvoiceDate
	if r.PaymentDate != "" {
		d, err := types.ParseFlexDate(r.PaymentDate, loc)
		if err != nil {
			return nil, err
		}
		paymentDate = d
	}

	amount := inv.AmountPaid
	if r.Amount != nil {
		amount = *r.Amount
	}

	return &payment.Payment{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:   inv.ID,
		PaymentDate: types.DateOnly(paymentDate),
		Method:      method,
		Bank:        r.Bank,
		Holder:      r.Holder,
		Amount:      amount,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}, nil
}

// PaymentResponse represents a payment response
type PaymentResponse struct {
	*payment.Payment
}

func NewPaymentResponse(p *payment.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	return &PaymentResponse{Payment: p}
}

// ListPaymentsResponse is the payments recorded against one invoice
type ListPaymentsResponse struct {
	Items []*PaymentResponse `json:"items"`
	Count int                `json:"count"`
	Total decimal.Decimal    `json:"total_amount"`
}

func NewListPaymentsResponse(payments []*payment.Payment) *ListPaymentsResponse {
	items := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		items = append(items, NewPaymentResponse(p))
	}
	return &ListPaymentsResponse{
		Items: items,
		Count: len(items),
		Total: payment.TotalAmount(payments),
	}
}
