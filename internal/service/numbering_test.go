package service

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/sequence"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/testutil"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/suite"
)

// newTestServiceParams wires the in-memory stores of the base suite
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	return ServiceParams{
		Logger:       s.GetLogger(),
		Config:       s.GetConfig(),
		DB:           s.GetDB(),
		Sentry:       s.GetSentry(),
		InvoiceRepo:  s.GetStores().InvoiceRepo,
		SequenceRepo: s.GetStores().SequenceRepo,
		PaymentRepo:  s.GetStores().PaymentRepo,
		Now:          s.Clock(),
	}
}

func contentionError() error {
	return ierr.NewError("lock timeout").
		WithHint("The record is being modified by another user, please retry").
		Mark(ierr.ErrContention)
}

type NumberingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service NumberingService
}

func TestNumberingService(t *testing.T) {
	suite.Run(t, new(NumberingServiceSuite))
}

func (s *NumberingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewNumberingService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *NumberingServiceSuite) nextNumber() int64 {
	next, err := s.service.PeekNextNumber(s.GetContext())
	s.Require().NoError(err)
	return next
}

func (s *NumberingServiceSuite) TestAssignsConsecutiveNumbersFromCounter() {
	s.SequenceStore().Seed(42)

	var got []string
	for i := 0; i < 3; i++ {
		inv := s.SeedInvoice(&invoice.Invoice{})
		numbered, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
		s.Require().NoError(err)
		s.Equal(types.NumberingStatusNumbered, numbered.NumberingStatus)
		got = append(got, numbered.InvoiceNumber)
	}

	s.Equal([]string{"42", "43", "44"}, got)
	s.Equal(int64(45), s.nextNumber())
}

func (s *NumberingServiceSuite) TestFirstUseStartsAtOne() {
	inv := s.SeedInvoice(&invoice.Invoice{})

	numbered, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
	s.Require().NoError(err)
	s.Equal("1", numbered.InvoiceNumber)
	s.Equal(int64(2), s.nextNumber())
}

func (s *NumberingServiceSuite) TestIsIdempotent() {
	inv := s.SeedInvoice(&invoice.Invoice{})

	first, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
	s.Require().NoError(err)
	// a stale copy without the number must not get a second one
	second, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
	s.Require().NoError(err)

	s.Equal(first.InvoiceNumber, second.InvoiceNumber)
	s.Equal(int64(2), s.nextNumber())
	s.Equal(1, s.SequenceStore().LockCount())
}

func (s *NumberingServiceSuite) TestClinicInvoiceNeverConsumesCounter() {
	inv := s.SeedInvoice(&invoice.Invoice{IssuanceSite: types.IssuanceSiteClinic})

	result, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
	s.Require().NoError(err)
	s.Empty(result.InvoiceNumber)
	s.Equal(types.NumberingStatusExempt, result.NumberingStatus)
	s.Equal(0, s.SequenceStore().LockCount())
	s.Equal(int64(1), s.nextNumber())

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Equal(types.NumberingStatusExempt, stored.NumberingStatus)
}

func (s *NumberingServiceSuite) TestCarePathwayExemptNeverConsumesCounter() {
	inv := s.SeedInvoice(&invoice.Invoice{CarePathwayExempt: true})

	result, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
	s.Require().NoError(err)
	s.Empty(result.InvoiceNumber)
	s.Equal(types.NumberingStatusExempt, result.NumberingStatus)
	s.Equal(0, s.SequenceStore().LockCount())
}

func (s *NumberingServiceSuite) TestManualNumberIsKept() {
	s.SequenceStore().Seed(10)
	inv := s.SeedInvoice(&invoice.Invoice{InvoiceNumber: "JA-MANUAL-7"})

	result, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
	s.Require().NoError(err)
	s.Equal("JA-MANUAL-7", result.InvoiceNumber)
	s.Equal(int64(10), s.nextNumber())
	s.Equal(0, s.SequenceStore().LockCount())
}

func (s *NumberingServiceSuite) TestRejectsMissingInvoice() {
	_, err := s.service.AssignNumberIfNeeded(s.GetContext(), nil)
	s.True(ierr.IsValidation(err))

	_, err = s.service.AssignNumberIfNeeded(s.GetContext(), &invoice.Invoice{ID: "inv_missing"})
	s.True(ierr.IsNotFound(err))
	s.Equal(int64(1), s.nextNumber())
}

func (s *NumberingServiceSuite) TestConcurrentAssignmentsGetDistinctConsecutiveNumbers() {
	const start, n = int64(100), 50
	s.SequenceStore().Seed(start)

	invoices := make([]*invoice.Invoice, n)
	for i := range invoices {
		invoices[i] = s.SeedInvoice(&invoice.Invoice{})
	}

	var (
		mu      sync.Mutex
		numbers []string
		wg      conc.WaitGroup
	)
	for _, inv := range invoices {
		inv := inv
		wg.Go(func() {
			numbered, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
			s.NoError(err)
			if err == nil {
				mu.Lock()
				numbers = append(numbers, numbered.InvoiceNumber)
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	expected := make([]string, 0, n)
	for v := start; v < start+n; v++ {
		expected = append(expected, sequence.Format(v))
	}
	sort.Strings(numbers)
	sort.Strings(expected)
	s.Equal(expected, numbers)
	s.Equal(start+n, s.nextNumber())
}

func (s *NumberingServiceSuite) TestConcurrentCallsOnSameInvoiceConsumeOneNumber() {
	inv := s.SeedInvoice(&invoice.Invoice{})

	var (
		mu      sync.Mutex
		numbers = map[string]int{}
		wg      conc.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Go(func() {
			numbered, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
			s.NoError(err)
			if err == nil {
				mu.Lock()
				numbers[numbered.InvoiceNumber]++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	s.Equal(map[string]int{"1": 20}, numbers)
	s.Equal(int64(2), s.nextNumber())
}

func (s *NumberingServiceSuite) TestContentionIsRetried() {
	inv := s.SeedInvoice(&invoice.Invoice{})
	s.SequenceStore().FailNext("Lock", contentionError())

	numbered, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
	s.Require().NoError(err)
	s.Equal("1", numbered.InvoiceNumber)
	s.GreaterOrEqual(s.GetDB().Aborts(), 1)
}

func (s *NumberingServiceSuite) TestContentionSurfacesAfterRetriesAndChangesNothing() {
	inv := s.SeedInvoice(&invoice.Invoice{})
	for i := 0; i < s.GetConfig().Billing.RetryMaxAttempts; i++ {
		s.SequenceStore().FailNext("Lock", contentionError())
	}

	_, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
	s.True(ierr.IsContention(err))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Empty(stored.InvoiceNumber)
	s.Equal(types.NumberingStatusUnnumbered, stored.NumberingStatus)
	s.Equal(int64(1), s.nextNumber())
}

func (s *NumberingServiceSuite) TestContentionInsideCallerTransactionIsNotRetried() {
	inv := s.SeedInvoice(&invoice.Invoice{})
	s.SequenceStore().FailNext("Lock", contentionError())

	err := s.GetDB().WithTx(s.GetContext(), func(ctx context.Context) error {
		_, err := s.service.AssignNumberIfNeeded(ctx, inv)
		return err
	})
	s.True(ierr.IsContention(err))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Equal(types.NumberingStatusUnnumbered, stored.NumberingStatus)
}

func (s *NumberingServiceSuite) TestCollisionIsConstraintViolationAndNotRetried() {
	// a number issued outside the counter sits where the counter points
	s.SeedInvoice(&invoice.Invoice{InvoiceNumber: "5"})
	s.SequenceStore().Seed(5)
	inv := s.SeedInvoice(&invoice.Invoice{})

	_, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
	s.True(ierr.IsConstraintViolation(err))
	s.False(ierr.IsRetryable(err))
	s.Equal(1, s.SequenceStore().LockCount())

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Empty(stored.InvoiceNumber)
	s.Equal(int64(5), s.nextNumber())
}

func (s *NumberingServiceSuite) TestFailureAfterNumberingRollsBackInvoice() {
	inv := s.SeedInvoice(&invoice.Invoice{})
	s.SequenceStore().FailNext("Advance", ierr.NewError("connection reset").Mark(ierr.ErrDatabase))

	_, err := s.service.AssignNumberIfNeeded(s.GetContext(), inv)
	s.Require().Error(err)
	s.True(errors.Is(err, ierr.ErrDatabase))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Empty(stored.InvoiceNumber)
	s.Equal(types.NumberingStatusUnnumbered, stored.NumberingStatus)
	s.Equal(int64(1), s.nextNumber())
}
