package service

import (
	"sync"
	"testing"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/payment"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/testutil"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/suite"
)

type RemittanceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service RemittanceService
	cutoff  time.Time
	// before holds the cheques dated on or before cutoff, after the later ones
	before []*payment.Payment
	after  []*payment.Payment
}

func TestRemittanceService(t *testing.T) {
	suite.Run(t, new(RemittanceServiceSuite))
}

func (s *RemittanceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewRemittanceService(newTestServiceParams(&s.BaseServiceTestSuite))
	s.cutoff = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.setupTestData()
}

func (s *RemittanceServiceSuite) setupTestData() {
	day := func(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }

	s.before = []*payment.Payment{
		s.SeedPayment(&payment.Payment{PaymentDate: day(31), Method: types.PaymentMethodCheque, Amount: decimal.NewFromInt(40), Bank: "Banque de Tahiti"}),
		s.SeedPayment(&payment.Payment{PaymentDate: day(2), Method: types.PaymentMethodCheque, Amount: decimal.NewFromInt(25)}),
		s.SeedPayment(&payment.Payment{PaymentDate: s.cutoff, Method: types.PaymentMethodCheque, Amount: decimal.RequireFromString("12.50")}),
		s.SeedPayment(&payment.Payment{PaymentDate: day(15), Method: types.PaymentMethodCheque, Amount: decimal.NewFromInt(60)}),
		s.SeedPayment(&payment.Payment{PaymentDate: day(15), Method: types.PaymentMethodCheque, Amount: decimal.NewFromInt(30)}),
	}
	s.after = []*payment.Payment{
		s.SeedPayment(&payment.Payment{PaymentDate: s.cutoff.AddDate(0, 0, 1), Method: types.PaymentMethodCheque, Amount: decimal.NewFromInt(80)}),
		s.SeedPayment(&payment.Payment{PaymentDate: s.cutoff.AddDate(0, 0, 9), Method: types.PaymentMethodCheque, Amount: decimal.NewFromInt(90)}),
	}

	// other methods never show up on a cheque listing
	s.SeedPayment(&payment.Payment{PaymentDate: day(20), Method: types.PaymentMethodCard, Amount: decimal.NewFromInt(55)})
	s.SeedPayment(&payment.Payment{PaymentDate: day(20), Method: types.PaymentMethodCash, Amount: decimal.NewFromInt(15)})
}

func paymentIDs(payments []*payment.Payment) []string {
	return lo.Map(payments, func(p *payment.Payment, _ int) string { return p.ID })
}

func (s *RemittanceServiceSuite) TestReconcileListingMarksChequesUpToCutoff() {
	listing, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)

	s.Equal(5, listing.Count)
	s.ElementsMatch(paymentIDs(s.before), paymentIDs(listing.Payments))
	s.True(listing.Total.Equal(decimal.RequireFromString("167.50")), "total %s", listing.Total)
	s.Equal(types.PaymentMethodCheque, listing.Method)
	s.Equal(s.cutoff, listing.Cutoff)

	for _, p := range s.before {
		stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
		s.Require().NoError(err)
		s.True(stored.Listed)
		s.Require().NotNil(stored.ListedAt)
		s.Equal(s.GetNow(), *stored.ListedAt)
		s.Equal(listing.ID, stored.ListingID)
	}
	for _, p := range s.after {
		stored, err := s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
		s.Require().NoError(err)
		s.False(stored.Listed)
	}
}

func (s *RemittanceServiceSuite) TestReconcileListingOrdersByDate() {
	listing, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)

	for i := 1; i < len(listing.Payments); i++ {
		prev, cur := listing.Payments[i-1], listing.Payments[i]
		s.False(cur.PaymentDate.Before(prev.PaymentDate))
		if cur.PaymentDate.Equal(prev.PaymentDate) {
			s.Less(prev.ID, cur.ID)
		}
	}
	s.Equal(s.before[1].ID, listing.Payments[0].ID)
	s.Equal(s.before[2].ID, listing.Payments[4].ID)
}

func (s *RemittanceServiceSuite) TestRepeatedReconcileIsEmpty() {
	_, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)

	again, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)
	s.True(again.Empty())
	s.True(again.Total.IsZero())
	s.NotNil(again.Payments)
}

func (s *RemittanceServiceSuite) TestLaterCutoffPicksUpRemainingCheques() {
	_, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)

	later, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff.AddDate(0, 1, 0))
	s.Require().NoError(err)
	s.ElementsMatch(paymentIDs(s.after), paymentIDs(later.Payments))
}

func (s *RemittanceServiceSuite) TestGetListingReturnsReconciledSet() {
	listing, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)
	s.Require().NotEmpty(listing.ID)

	again, err := s.service.GetListing(s.GetContext(), listing.ID)
	s.Require().NoError(err)
	s.Equal(listing.ID, again.ID)
	s.Equal(paymentIDs(listing.Payments), paymentIDs(again.Payments))
	s.True(listing.Total.Equal(again.Total), "total %s, want %s", again.Total, listing.Total)
	s.Equal(listing.Count, again.Count)
	s.Equal(types.PaymentMethodCheque, again.Method)
	s.Equal(s.cutoff, again.Cutoff)
}

func (s *RemittanceServiceSuite) TestGetListingKeepsListingsApart() {
	first, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)
	second, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff.AddDate(0, 1, 0))
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)

	got, err := s.service.GetListing(s.GetContext(), second.ID)
	s.Require().NoError(err)
	s.ElementsMatch(paymentIDs(s.after), paymentIDs(got.Payments))
	s.Equal(s.cutoff.AddDate(0, 1, 0), got.Cutoff)

	got, err = s.service.GetListing(s.GetContext(), first.ID)
	s.Require().NoError(err)
	s.ElementsMatch(paymentIDs(s.before), paymentIDs(got.Payments))
}

func (s *RemittanceServiceSuite) TestGetListingErrors() {
	preview, err := s.service.PreviewListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)
	s.Empty(preview.ID)

	empty, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodTransfer, s.cutoff)
	s.Require().NoError(err)
	s.Empty(empty.ID)

	_, err = s.service.GetListing(s.GetContext(), "")
	s.True(ierr.IsValidation(err))

	_, err = s.service.GetListing(s.GetContext(), "rem_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *RemittanceServiceSuite) TestListInvoicePayments() {
	inv := s.SeedInvoice(&invoice.Invoice{InvoiceNumber: "A-3"})
	s.SeedPayment(&payment.Payment{InvoiceID: inv.ID, PaymentDate: s.cutoff, Method: types.PaymentMethodCheque, Amount: decimal.NewFromInt(20)})
	s.SeedPayment(&payment.Payment{InvoiceID: inv.ID, PaymentDate: s.cutoff, Method: types.PaymentMethodCash, Amount: decimal.NewFromInt(16)})

	resp, err := s.service.ListInvoicePayments(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Equal(2, resp.Count)
	s.True(resp.Total.Equal(decimal.NewFromInt(36)))
	for _, item := range resp.Items {
		s.Equal(inv.ID, item.InvoiceID)
	}

	_, err = s.service.ListInvoicePayments(s.GetContext(), "inv_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *RemittanceServiceSuite) TestCutoffKeepsOnlyTheCalendarDay() {
	// a cutoff carrying a time of day still includes the whole day
	listing, err := s.service.PreviewListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff.Add(15*time.Hour))
	s.Require().NoError(err)
	s.Equal(5, listing.Count)
	s.Equal(s.cutoff, listing.Cutoff)
}

func (s *RemittanceServiceSuite) TestPreviewListingHasNoSideEffects() {
	preview, err := s.service.PreviewListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)
	s.Equal(5, preview.Count)

	listing, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)
	s.Equal(paymentIDs(preview.Payments), paymentIDs(listing.Payments))
}

func (s *RemittanceServiceSuite) TestOtherMethodsAreListedSeparately() {
	listing, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCard, s.cutoff)
	s.Require().NoError(err)
	s.Equal(1, listing.Count)
	s.True(listing.Total.Equal(decimal.NewFromInt(55)))

	cheques, err := s.service.PreviewListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)
	s.Equal(5, cheques.Count)
}

func (s *RemittanceServiceSuite) TestInvalidInputIsRejectedBeforeTransaction() {
	_, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethod("BITCOIN"), s.cutoff)
	s.True(ierr.IsValidation(err))

	_, err = s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, time.Time{})
	s.True(ierr.IsValidation(err))

	s.Equal(0, s.GetDB().Commits())
	s.Equal(0, s.GetDB().Aborts())
}

func (s *RemittanceServiceSuite) TestConcurrentReconcileListsEachPaymentOnce() {
	var (
		mu     sync.Mutex
		listed []string
		wg     conc.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Go(func() {
			listing, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
			s.NoError(err)
			if err != nil {
				return
			}
			mu.Lock()
			listed = append(listed, paymentIDs(listing.Payments)...)
			mu.Unlock()
		})
	}
	wg.Wait()

	s.ElementsMatch(paymentIDs(s.before), listed)
}

func (s *RemittanceServiceSuite) TestReconcileRollsBackOnFailure() {
	s.PaymentStore().FailNext("MarkListed", ierr.NewError("connection reset").Mark(ierr.ErrDatabase))

	_, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().Error(err)

	preview, err := s.service.PreviewListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)
	s.Equal(5, preview.Count)
}

func (s *RemittanceServiceSuite) TestReconcileRetriesContention() {
	s.PaymentStore().FailNext("ListUnlisted", contentionError())

	listing, err := s.service.ReconcileListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)
	s.Equal(5, listing.Count)
}

func (s *RemittanceServiceSuite) TestRecordPaymentDefaultsFromInvoice() {
	inv := s.SeedInvoice(&invoice.Invoice{
		InvoiceNumber: "12",
		InvoiceDate:   time.Date(2024, 5, 28, 0, 0, 0, 0, time.UTC),
		AmountPaid:    decimal.NewFromInt(36),
	})

	resp, err := s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{
		InvoiceID: inv.ID,
		Method:    "Chèque",
		Bank:      "Socredo",
		Holder:    "M. Teriierooiterai",
	})
	s.Require().NoError(err)

	s.Equal(types.PaymentMethodCheque, resp.Method)
	s.Equal(inv.InvoiceDate, resp.PaymentDate)
	s.True(resp.Amount.Equal(decimal.NewFromInt(36)))
	s.False(resp.Listed)

	listing, err := s.service.PreviewListing(s.GetContext(), types.PaymentMethodCheque, s.cutoff)
	s.Require().NoError(err)
	s.Contains(paymentIDs(listing.Payments), resp.ID)
}

func (s *RemittanceServiceSuite) TestRecordPaymentWithExplicitValues() {
	inv := s.SeedInvoice(&invoice.Invoice{InvoiceNumber: "13", AmountPaid: decimal.NewFromInt(36)})

	resp, err := s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{
		InvoiceID:   inv.ID,
		Method:      "cb",
		PaymentDate: "03/06/2024",
		Amount:      lo.ToPtr(decimal.NewFromInt(20)),
	})
	s.Require().NoError(err)
	s.Equal(types.PaymentMethodCard, resp.Method)
	s.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), resp.PaymentDate)
	s.True(resp.Amount.Equal(decimal.NewFromInt(20)))
}

func (s *RemittanceServiceSuite) TestRecordPaymentValidation() {
	inv := s.SeedInvoice(&invoice.Invoice{InvoiceNumber: "14"})

	_, err := s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{InvoiceID: inv.ID, Method: "bitcoin"})
	s.True(ierr.IsValidation(err))

	_, err = s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{InvoiceID: inv.ID})
	s.True(ierr.IsValidation(err))

	_, err = s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{InvoiceID: "inv_missing", Method: "CHEQUE"})
	s.True(ierr.IsNotFound(err))

	_, err = s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{
		InvoiceID: inv.ID,
		Method:    "CHEQUE",
		Amount:    lo.ToPtr(decimal.NewFromInt(-5)),
	})
	s.True(ierr.IsValidation(err))
}

func (s *RemittanceServiceSuite) TestResolveListingRequest() {
	method, cutoff, err := s.service.ResolveListingRequest(dto.ReconcileListingRequest{})
	s.Require().NoError(err)
	s.Equal(types.PaymentMethodCheque, method)
	s.Equal(s.cutoff, cutoff)

	// 11:30 UTC on 2024-06-02 is already the 2nd in Tahiti
	s.SetNow(time.Date(2024, 6, 2, 11, 30, 0, 0, time.UTC))
	_, cutoff, err = s.service.ResolveListingRequest(dto.ReconcileListingRequest{})
	s.Require().NoError(err)
	s.Equal(s.cutoff.AddDate(0, 0, 1), cutoff)

	method, cutoff, err = s.service.ResolveListingRequest(dto.ReconcileListingRequest{Method: "Chèque", Date: "31/05/2024"})
	s.Require().NoError(err)
	s.Equal(types.PaymentMethodCheque, method)
	s.Equal(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), cutoff)

	_, _, err = s.service.ResolveListingRequest(dto.ReconcileListingRequest{Date: "31-05-2024"})
	s.True(ierr.IsValidation(err))

	_, _, err = s.service.ResolveListingRequest(dto.ReconcileListingRequest{Method: "bitcoin"})
	s.True(ierr.IsValidation(err))
}
