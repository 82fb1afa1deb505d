package service

import (
	"context"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/samber/lo"
)

// BordereauService groups invoices with a third-party share into bank
// deposit slips. An invoice belongs to at most one slip, ever.
type BordereauService interface {
	// PreviewBatch shows what the next slip would contain without changing anything
	PreviewBatch(ctx context.Context) (*dto.BatchPreview, error)

	// CommitBatch claims every eligible invoice for batchID and returns
	// exactly the set it claimed. An empty result is not an error.
	CommitBatch(ctx context.Context, batchID string) (*dto.BatchResult, error)

	// GetBatch returns the invoices of an already committed slip
	GetBatch(ctx context.Context, batchID string) (*dto.BatchResult, error)
}

type bordereauService struct {
	ServiceParams
}

func NewBordereauService(params ServiceParams) BordereauService {
	return &bordereauService{
		ServiceParams: params,
	}
}

func (s *bordereauService) PreviewBatch(ctx context.Context) (*dto.BatchPreview, error) {
	invoices, err := s.InvoiceRepo.ListBatchCandidates(ctx, false)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []*invoice.Invoice{}
	}

	today := s.today()
	return &dto.BatchPreview{
		ProposedBatchID: types.NewBatchID(today),
		BatchDate:       today,
		Invoices:        invoices,
		Count:           len(invoices),
		Total:           invoice.TotalThirdParty(invoices),
	}, nil
}

func (s *bordereauService) CommitBatch(ctx context.Context, batchID string) (*dto.BatchResult, error) {
	if err := types.ValidateBatchID(batchID); err != nil {
		return nil, err
	}

	var result *dto.BatchResult
	err := s.inTx(ctx, "commit_batch", func(ctx context.Context) error {
		batchDate := s.today()

		claimed, err := s.InvoiceRepo.ListBatchCandidates(ctx, true)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			result = dto.NewBatchResult(batchID, batchDate, nil)
			return nil
		}

		ids := lo.Map(claimed, func(inv *invoice.Invoice, _ int) string { return inv.ID })
		affected, err := s.InvoiceRepo.AssignBatch(ctx, ids, batchID, batchDate)
		if err != nil {
			return err
		}
		if affected != int64(len(ids)) {
			return ierr.NewError("deposit slip claimed a different set than it selected").
				WithHint("The deposit slip could not be created, please retry").
				WithReportableDetails(map[string]any{
					"batch_id": batchID,
					"selected": len(ids),
					"claimed":  affected,
				}).
				Mark(ierr.ErrSystem)
		}

		for _, inv := range claimed {
			inv.BatchID = batchID
			inv.BatchDate = lo.ToPtr(batchDate)
		}
		result = dto.NewBatchResult(batchID, batchDate, claimed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Empty() {
		s.Logger.Infow("no invoice waiting for a deposit slip", "batch_id", batchID)
	} else {
		s.Logger.Infow("committed deposit slip",
			"batch_id", result.BatchID,
			"count", result.Count,
			"total", result.Total.String(),
		)
		s.Sentry.AddBreadcrumb("bordereau", "committed deposit slip", map[string]interface{}{
			"batch_id": result.BatchID,
			"count":    result.Count,
		})
	}
	return result, nil
}

func (s *bordereauService) GetBatch(ctx context.Context, batchID string) (*dto.BatchResult, error) {
	if err := types.ValidateBatchID(batchID); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, ierr.NewError("deposit slip not found").
			WithHintf("Deposit slip %s not found", batchID).
			WithReportableDetails(map[string]any{"batch_id": batchID}).
			Mark(ierr.ErrNotFound)
	}

	batchDate := s.today()
	if invoices[0].BatchDate != nil {
		batchDate = *invoices[0].BatchDate
	}
	return dto.NewBatchResult(batchID, batchDate, invoices), nil
}
