package testutil

import (
	"context"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/domain/payment"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/samber/lo"
)

var _ payment.Repository = (*InMemoryPaymentStore)(nil)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore(copyPayment),
	}
}

func copyPayment(p *payment.Payment) *payment.Payment {
	if p == nil {
		return nil
	}
	c := *p
	if p.ListedAt != nil {
		c.ListedAt = lo.ToPtr(*p.ListedAt)
	}
	if p.ListingCutoff != nil {
		c.ListingCutoff = lo.ToPtr(*p.ListingCutoff)
	}
	return &c
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if err := s.faults.take("Create"); err != nil {
		return err
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPaymentStore) ListUnlisted(ctx context.Context, method types.PaymentMethod, cutoff time.Time, forUpdate bool) ([]*payment.Payment, error) {
	if err := s.faults.take("ListUnlisted"); err != nil {
		return nil, err
	}
	return s.List(ctx, func(_ context.Context, p *payment.Payment) bool {
		return p.Method == method && !p.Listed && !p.PaymentDate.After(cutoff)
	}, paymentsByDate), nil
}

func paymentsByDate(a, b *payment.Payment) bool {
	if !a.PaymentDate.Equal(b.PaymentDate) {
		return a.PaymentDate.Before(b.PaymentDate)
	}
	return a.ID < b.ID
}

func (s *InMemoryPaymentStore) MarkListed(ctx context.Context, ids []string, mark payment.ListingMark) (int64, error) {
	if err := s.faults.take("MarkListed"); err != nil {
		return 0, err
	}
	return s.Mutate(func(_ context.Context, p *payment.Payment) bool {
		return lo.Contains(ids, p.ID) && !p.Listed
	}, func(p *payment.Payment) *payment.Payment {
		p.Listed = true
		p.ListedAt = lo.ToPtr(mark.ListedAt)
		p.ListingID = mark.ListingID
		p.ListingCutoff = lo.ToPtr(mark.Cutoff)
		p.UpdatedAt = mark.ListedAt
		p.UpdatedBy = types.GetUserID(ctx)
		return p
	}), nil
}

func (s *InMemoryPaymentStore) ListByListing(ctx context.Context, listingID string) ([]*payment.Payment, error) {
	if err := s.faults.take("ListByListing"); err != nil {
		return nil, err
	}
	return s.List(ctx, func(_ context.Context, p *payment.Payment) bool {
		return listingID != "" && p.ListingID == listingID
	}, paymentsByDate), nil
}

func (s *InMemoryPaymentStore) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	if err := s.faults.take("ListByInvoice"); err != nil {
		return nil, err
	}
	return s.List(ctx, func(_ context.Context, p *payment.Payment) bool {
		return p.InvoiceID == invoiceID
	}, paymentsByDate), nil
}
