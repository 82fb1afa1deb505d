package testutil

import (
	"context"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/samber/lo"
)

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

// NewInMemoryInvoiceStore creates a new in-memory invoice store
func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore(copyInvoice),
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	if inv.BatchDate != nil {
		c.BatchDate = lo.ToPtr(*inv.BatchDate)
	}
	return &c
}

// numberTaken mirrors the partial unique index on practice invoice numbers
func (s *InMemoryInvoiceStore) numberTaken(ctx context.Context, number, exceptID string) bool {
	if number == "" {
		return false
	}
	return len(s.List(ctx, func(_ context.Context, inv *invoice.Invoice) bool {
		return inv.ID != exceptID &&
			inv.IssuanceSite == types.IssuanceSitePractice &&
			inv.InvoiceNumber == number
	}, nil)) > 0
}

func duplicateNumberError(number string) error {
	return ierr.NewError("duplicate invoice number").
		WithHintf("Invoice number %s is already used by another invoice", number).
		WithReportableDetails(map[string]any{"invoice_number": number}).
		Mark(ierr.ErrAlreadyExists)
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if err := s.faults.take("Create"); err != nil {
		return err
	}
	if inv.IssuanceSite == types.IssuanceSitePractice && s.numberTaken(ctx, inv.InvoiceNumber, inv.ID) {
		return duplicateNumberError(inv.InvoiceNumber)
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	if err := s.faults.take("GetForUpdate"); err != nil {
		return nil, err
	}
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	if err := s.faults.take("Update"); err != nil {
		return err
	}
	existing, err := s.InMemoryStore.Get(ctx, inv.ID)
	if err != nil {
		return err
	}

	// numbering and batch fields are not written by Update
	updated := copyInvoice(inv)
	updated.InvoiceNumber = existing.InvoiceNumber
	updated.NumberingStatus = existing.NumberingStatus
	updated.BatchID = existing.BatchID
	updated.BatchDate = existing.BatchDate
	return s.InMemoryStore.Update(ctx, inv.ID, updated)
}

func (s *InMemoryInvoiceStore) SetNumbering(ctx context.Context, id string, number string, status types.NumberingStatus) error {
	if err := s.faults.take("SetNumbering"); err != nil {
		return err
	}
	existing, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.InvoiceNumber != "" || existing.NumberingStatus != types.NumberingStatusUnnumbered {
		return ierr.NewError("invoice numbering already finalized").
			WithHintf("Invoice %s already has its numbering decided", id).
			Mark(ierr.ErrInvalidOperation)
	}
	if existing.IssuanceSite == types.IssuanceSitePractice && s.numberTaken(ctx, number, id) {
		return duplicateNumberError(number)
	}

	existing.InvoiceNumber = number
	existing.NumberingStatus = status
	existing.UpdatedAt = time.Now().UTC()
	existing.UpdatedBy = types.GetUserID(ctx)
	return s.InMemoryStore.Update(ctx, id, existing)
}

func sortByNumberThenID(a, b *invoice.Invoice) bool {
	if a.InvoiceNumber != b.InvoiceNumber {
		return a.InvoiceNumber < b.InvoiceNumber
	}
	return a.ID < b.ID
}

func (s *InMemoryInvoiceStore) ListBatchCandidates(ctx context.Context, forUpdate bool) ([]*invoice.Invoice, error) {
	if err := s.faults.take("ListBatchCandidates"); err != nil {
		return nil, err
	}
	return s.List(ctx, func(_ context.Context, inv *invoice.Invoice) bool {
		return inv.IsBatchEligible()
	}, sortByNumberThenID), nil
}

func (s *InMemoryInvoiceStore) AssignBatch(ctx context.Context, ids []string, batchID string, batchDate time.Time) (int64, error) {
	if err := s.faults.take("AssignBatch"); err != nil {
		return 0, err
	}
	return s.Mutate(func(_ context.Context, inv *invoice.Invoice) bool {
		return lo.Contains(ids, inv.ID) && !inv.IsBatched()
	}, func(inv *invoice.Invoice) *invoice.Invoice {
		inv.BatchID = batchID
		inv.BatchDate = lo.ToPtr(batchDate)
		inv.UpdatedAt = time.Now().UTC()
		inv.UpdatedBy = types.GetUserID(ctx)
		return inv
	}), nil
}

func (s *InMemoryInvoiceStore) ListByBatch(ctx context.Context, batchID string) ([]*invoice.Invoice, error) {
	return s.List(ctx, func(_ context.Context, inv *invoice.Invoice) bool {
		return inv.BatchID == batchID
	}, sortByNumberThenID), nil
}
