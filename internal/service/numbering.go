package service

import (
	"context"

	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/sequence"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/types"
)

// NumberingService is the single entry point that gives practice invoices
// their number. Every call site (create, update, explicit generation)
// goes through AssignNumberIfNeeded instead of checking the number itself.
type NumberingService interface {
	// AssignNumberIfNeeded returns the invoice with its numbering decided.
	// Calling it again on the same invoice is a no-op.
	AssignNumberIfNeeded(ctx context.Context, inv *invoice.Invoice) (*invoice.Invoice, error)

	// PeekNextNumber returns the number the next numbered invoice will get
	PeekNextNumber(ctx context.Context) (int64, error)
}

type numberingService struct {
	ServiceParams
}

func NewNumberingService(params ServiceParams) NumberingService {
	return &numberingService{
		ServiceParams: params,
	}
}

func (s *numberingService) AssignNumberIfNeeded(ctx context.Context, inv *invoice.Invoice) (*invoice.Invoice, error) {
	if inv == nil || inv.ID == "" {
		return nil, ierr.NewError("invoice is required").
			WithHint("An existing invoice is required to assign a number").
			Mark(ierr.ErrValidation)
	}

	var result *invoice.Invoice
	err := s.inTx(ctx, "assign_invoice_number", func(ctx context.Context) error {
		assigned, err := s.assign(ctx, inv.ID)
		if err != nil {
			return err
		}
		result = assigned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// assign decides the numbering from the row-locked state only, never from
// the copy the caller holds
func (s *numberingService) assign(ctx context.Context, invoiceID string) (*invoice.Invoice, error) {
	locked, err := s.InvoiceRepo.GetForUpdate(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if locked.HasNumber() || locked.NumberingStatus.IsTerminal() {
		return locked, nil
	}

	if locked.BypassesCounter() {
		if err := s.InvoiceRepo.SetNumbering(ctx, locked.ID, "", types.NumberingStatusExempt); err != nil {
			return nil, err
		}
		locked.InvoiceNumber = ""
		locked.NumberingStatus = types.NumberingStatusExempt

		s.Logger.Debugw("invoice exempt from numbering",
			"invoice_id", locked.ID,
			"issuance_site", locked.IssuanceSite,
			"care_pathway_exempt", locked.CarePathwayExempt,
		)
		return locked, nil
	}

	counter, err := s.SequenceRepo.Lock(ctx)
	if err != nil {
		return nil, err
	}

	number := sequence.Format(counter.NextValue)
	if err := s.InvoiceRepo.SetNumbering(ctx, locked.ID, number, types.NumberingStatusNumbered); err != nil {
		if ierr.IsAlreadyExists(err) {
			return nil, s.reportCollision(err, locked.ID, number)
		}
		return nil, err
	}
	if err := s.SequenceRepo.Advance(ctx, counter.NextValue+1); err != nil {
		return nil, err
	}

	locked.InvoiceNumber = number
	locked.NumberingStatus = types.NumberingStatusNumbered

	s.Logger.Infow("assigned invoice number",
		"invoice_id", locked.ID,
		"invoice_number", number,
	)
	return locked, nil
}

// reportCollision handles a counter value that is already taken. Retrying
// cannot fix it, so it is escalated instead.
func (s *numberingService) reportCollision(err error, invoiceID, number string) error {
	err = ierr.WithError(err).
		WithMessagef("counter issued number %s which is already taken", number).
		WithHint("Invoice numbering is inconsistent, please contact support").
		WithReportableDetails(map[string]any{
			"invoice_id":     invoiceID,
			"invoice_number": number,
		}).
		Mark(ierr.ErrConstraintViolation)

	s.Logger.Errorw("invoice number collision",
		"invoice_id", invoiceID,
		"invoice_number", number,
		"error", err,
	)
	s.Sentry.CaptureExceptionWithTags(err, map[string]string{
		"invoice_id":     invoiceID,
		"invoice_number": number,
	})
	return err
}

func (s *numberingService) PeekNextNumber(ctx context.Context) (int64, error) {
	counter, err := s.SequenceRepo.Peek(ctx)
	if err != nil {
		return 0, err
	}
	return counter.NextValue, nil
}
