package service

import (
	"context"
	"strings"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/types"
)

type InvoiceService interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error)
	// GenerateNumber is the explicit "give this invoice its number" action
	GenerateNumber(ctx context.Context, id string) (*dto.InvoiceNumberResponse, error)
}

type invoiceService struct {
	ServiceParams
	numbering NumberingService
}

func NewInvoiceService(params ServiceParams, numbering NumberingService) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
		numbering:     numbering,
	}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	// clinic acts are invoiced by the clinic and never carry a practice number
	if req.IssuanceSite == types.IssuanceSiteClinic {
		req.InvoiceNumber = ""
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := req.ToInvoice(ctx, s.location())
	if err != nil {
		return nil, err
	}
	inv.Reference = types.NewReferenceStamp(s.Config.Billing.GetReferencePrefix(), s.now().In(s.location()))
	if inv.HasNumber() {
		inv.NumberingStatus = types.NumberingStatusNumbered
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	var created *invoice.Invoice
	err = s.inTx(ctx, "create_invoice", func(ctx context.Context) error {
		draft := *inv
		if err := s.InvoiceRepo.Create(ctx, &draft); err != nil {
			return err
		}
		numbered, err := s.numbering.AssignNumberIfNeeded(ctx, &draft)
		if err != nil {
			return err
		}
		created = numbered
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created invoice",
		"invoice_id", created.ID,
		"issuance_site", created.IssuanceSite,
		"numbering_status", created.NumberingStatus,
		"invoice_number", created.InvoiceNumber,
	)
	return dto.NewInvoiceResponse(created), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if id == "" {
		return nil, ierr.NewError("invoice_id is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation)
	}
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated *invoice.Invoice
	err := s.inTx(ctx, "update_invoice", func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if inv.NumberingStatus.IsTerminal() && req.ChangesNumbering(inv) {
			return ierr.NewError("invoice numbering is final").
				WithHintf("Invoice %s is %s, its site, exemption and number can no longer change", inv.ID, inv.NumberingStatus).
				WithReportableDetails(map[string]any{
					"invoice_id":       inv.ID,
					"numbering_status": inv.NumberingStatus,
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		if err := req.Apply(inv, s.location()); err != nil {
			return err
		}
		if err := inv.Validate(); err != nil {
			return err
		}
		inv.UpdatedAt = s.now().UTC()
		inv.UpdatedBy = types.GetUserID(ctx)

		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}

		manual := ""
		if req.InvoiceNumber != nil {
			manual = strings.TrimSpace(*req.InvoiceNumber)
		}
		if manual != "" && !inv.HasNumber() {
			if inv.IssuanceSite == types.IssuanceSiteClinic {
				return ierr.NewError("clinic invoice carries a number").
					WithHint("Invoices issued at the clinic cannot have a practice invoice number").
					Mark(ierr.ErrValidation)
			}
			if err := s.InvoiceRepo.SetNumbering(ctx, inv.ID, manual, types.NumberingStatusNumbered); err != nil {
				return err
			}
			inv.InvoiceNumber = manual
			inv.NumberingStatus = types.NumberingStatusNumbered
		}

		numbered, err := s.numbering.AssignNumberIfNeeded(ctx, inv)
		if err != nil {
			return err
		}
		updated = numbered
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(updated), nil
}

func (s *invoiceService) GenerateNumber(ctx context.Context, id string) (*dto.InvoiceNumberResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	numbered, err := s.numbering.AssignNumberIfNeeded(ctx, inv)
	if err != nil {
		return nil, err
	}

	return &dto.InvoiceNumberResponse{
		InvoiceID:       numbered.ID,
		InvoiceNumber:   numbered.InvoiceNumber,
		NumberingStatus: numbered.NumberingStatus,
	}, nil
}
