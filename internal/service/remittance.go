package service

import (
	"context"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	"github.com/clinicdesk/clinicdesk/internal/domain/payment"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/samber/lo"
)

// RemittanceService records payments and gathers them into remittance
// listings. A payment appears on at most one listing.
type RemittanceService interface {
	RecordPayment(ctx context.Context, req dto.RecordPaymentRequest) (*dto.PaymentResponse, error)

	// PreviewListing shows the payments the next listing would contain
	PreviewListing(ctx context.Context, method types.PaymentMethod, cutoff time.Time) (*dto.Listing, error)

	// ReconcileListing marks every unlisted payment of method dated on or
	// before cutoff as listed and returns exactly that set
	ReconcileListing(ctx context.Context, method types.PaymentMethod, cutoff time.Time) (*dto.Listing, error)

	// GetListing returns a reconciled listing again, for reprinting
	GetListing(ctx context.Context, listingID string) (*dto.Listing, error)

	// ListInvoicePayments returns the payments recorded against an invoice
	ListInvoicePayments(ctx context.Context, invoiceID string) (*dto.ListPaymentsResponse, error)

	// ResolveListingRequest applies the defaults (cheques, today in the
	// practice timezone) and parses the request
	ResolveListingRequest(req dto.ReconcileListingRequest) (types.PaymentMethod, time.Time, error)
}

type remittanceService struct {
	ServiceParams
}

func NewRemittanceService(params ServiceParams) RemittanceService {
	return &remittanceService{
		ServiceParams: params,
	}
}

func (s *remittanceService) RecordPayment(ctx context.Context, req dto.RecordPaymentRequest) (*dto.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	p, err := req.ToPayment(ctx, inv, s.location())
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.PaymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.Logger.Infow("recorded payment",
		"payment_id", p.ID,
		"invoice_id", p.InvoiceID,
		"method", p.Method,
		"amount", p.Amount.String(),
	)
	return dto.NewPaymentResponse(p), nil
}

func (s *remittanceService) PreviewListing(ctx context.Context, method types.PaymentMethod, cutoff time.Time) (*dto.Listing, error) {
	if err := validateListingInput(method, cutoff); err != nil {
		return nil, err
	}
	cutoff = types.DateOnly(cutoff)

	payments, err := s.PaymentRepo.ListUnlisted(ctx, method, cutoff, false)
	if err != nil {
		return nil, err
	}
	return dto.NewListing(method, cutoff, payments), nil
}

func (s *remittanceService) ReconcileListing(ctx context.Context, method types.PaymentMethod, cutoff time.Time) (*dto.Listing, error) {
	if err := validateListingInput(method, cutoff); err != nil {
		return nil, err
	}
	cutoff = types.DateOnly(cutoff)

	var listing *dto.Listing
	err := s.inTx(ctx, "reconcile_listing", func(ctx context.Context) error {
		listed, err := s.PaymentRepo.ListUnlisted(ctx, method, cutoff, true)
		if err != nil {
			return err
		}
		if len(listed) == 0 {
			listing = dto.NewListing(method, cutoff, nil)
			return nil
		}

		mark := payment.ListingMark{
			ListingID: types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LISTING),
			Cutoff:    cutoff,
			ListedAt:  s.now().UTC(),
		}
		ids := lo.Map(listed, func(p *payment.Payment, _ int) string { return p.ID })
		affected, err := s.PaymentRepo.MarkListed(ctx, ids, mark)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return ierr.NewError("listing marked a different set than it selected").
				WithHint("The remittance listing could not be created, please retry").
				WithReportableDetails(map[string]any{
					"method":   method,
					"selected": len(ids),
					"marked":   affected,
				}).
				Mark(ierr.ErrSystem)
		}

		for _, p := range listed {
			p.Listed = true
			p.ListedAt = lo.ToPtr(mark.ListedAt)
			p.ListingID = mark.ListingID
			p.ListingCutoff = lo.ToPtr(cutoff)
		}
		listing = dto.NewListing(method, cutoff, listed)
		listing.ID = mark.ListingID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("reconciled remittance listing",
		"listing_id", listing.ID,
		"method", method,
		"cutoff", cutoff.Format(types.DateFormatISO),
		"count", listing.Count,
		"total", listing.Total.String(),
	)
	s.Sentry.AddBreadcrumb("remittance", "reconciled remittance listing", map[string]interface{}{
		"method": method.String(),
		"count":  listing.Count,
	})
	return listing, nil
}

func (s *remittanceService) GetListing(ctx context.Context, listingID string) (*dto.Listing, error) {
	if listingID == "" {
		return nil, ierr.NewError("listing id is required").
			WithHint("Please provide the remittance listing id").
			Mark(ierr.ErrValidation)
	}

	payments, err := s.PaymentRepo.ListByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, ierr.NewError("listing not found").
			WithHintf("Remittance listing %s not found", listingID).
			WithReportableDetails(map[string]any{"listing_id": listingID}).
			Mark(ierr.ErrNotFound)
	}

	first := payments[0]
	listing := dto.NewListing(first.Method, types.DateOnly(lo.FromPtr(first.ListingCutoff)), payments)
	listing.ID = listingID
	return listing, nil
}

func (s *remittanceService) ListInvoicePayments(ctx context.Context, invoiceID string) (*dto.ListPaymentsResponse, error) {
	if _, err := s.InvoiceRepo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return dto.NewListPaymentsResponse(payments), nil
}

func (s *remittanceService) ResolveListingRequest(req dto.ReconcileListingRequest) (types.PaymentMethod, time.Time, error) {
	if err := req.Validate(); err != nil {
		return "", time.Time{}, err
	}
	return req.Resolve(s.now(), s.location())
}

func validateListingInput(method types.PaymentMethod, cutoff time.Time) error {
	if err := method.Validate(); err != nil {
		return err
	}
	if cutoff.IsZero() {
		return ierr.NewError("cutoff date is required").
			WithHint("Please provide the listing date").
			Mark(ierr.ErrValidation)
	}
	return nil
}
