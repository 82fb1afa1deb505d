package service

import (
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/testutil"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InvoiceService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewInvoiceService(params, NewNumberingService(params))
}

func (s *InvoiceServiceSuite) practiceRequest() dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		PatientID:        "patient_1",
		ActDate:          "01/06/2024",
		IssuanceSite:     types.IssuanceSitePractice,
		TotalAmount:      decimal.NewFromInt(120),
		ThirdPartyAmount: decimal.NewFromInt(84),
		AmountPaid:       decimal.NewFromInt(36),
	}
}

func (s *InvoiceServiceSuite) TestCreatePracticeInvoiceIsNumbered() {
	resp, err := s.service.CreateInvoice(s.GetContext(), s.practiceRequest())
	s.Require().NoError(err)

	s.Equal("1", resp.InvoiceNumber)
	s.Equal(types.NumberingStatusNumbered, resp.NumberingStatus)
	s.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), resp.ActDate)
	s.Equal(resp.ActDate, resp.InvoiceDate)
	// 20:00 UTC is 10:00 in Tahiti
	s.Equal("JA/2024/06/01/10:00", resp.Reference)
	s.NotEqual(resp.Reference, resp.InvoiceNumber)

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), resp.ID)
	s.Require().NoError(err)
	s.Equal("1", stored.InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestCreateClinicInvoiceDropsNumber() {
	req := s.practiceRequest()
	req.IssuanceSite = types.IssuanceSiteClinic
	req.InvoiceNumber = "CLIN-001"

	resp, err := s.service.CreateInvoice(s.GetContext(), req)
	s.Require().NoError(err)
	s.Empty(resp.InvoiceNumber)
	s.Equal(types.NumberingStatusExempt, resp.NumberingStatus)
	s.Equal(0, s.SequenceStore().LockCount())
}

func (s *InvoiceServiceSuite) TestCreateCarePathwayExemptInvoice() {
	req := s.practiceRequest()
	req.CarePathwayExempt = true

	resp, err := s.service.CreateInvoice(s.GetContext(), req)
	s.Require().NoError(err)
	s.Empty(resp.InvoiceNumber)
	s.Equal(types.NumberingStatusExempt, resp.NumberingStatus)
}

func (s *InvoiceServiceSuite) TestCreateWithManualNumber() {
	req := s.practiceRequest()
	req.InvoiceNumber = "A-12"

	resp, err := s.service.CreateInvoice(s.GetContext(), req)
	s.Require().NoError(err)
	s.Equal("A-12", resp.InvoiceNumber)
	s.Equal(types.NumberingStatusNumbered, resp.NumberingStatus)
	s.Equal(0, s.SequenceStore().LockCount())
}

func (s *InvoiceServiceSuite) TestCreateRejectsBareIntegerManualNumber() {
	req := s.practiceRequest()
	req.InvoiceNumber = "12"

	_, err := s.service.CreateInvoice(s.GetContext(), req)
	s.True(ierr.IsValidation(err))
	s.Equal(0, s.InvoiceStore().Count())
}

func (s *InvoiceServiceSuite) TestCreateDuplicateManualNumber() {
	req := s.practiceRequest()
	req.InvoiceNumber = "A-12"
	_, err := s.service.CreateInvoice(s.GetContext(), req)
	s.Require().NoError(err)

	_, err = s.service.CreateInvoice(s.GetContext(), req)
	s.True(ierr.IsAlreadyExists(err))
	s.Equal(1, s.InvoiceStore().Count())
}

func (s *InvoiceServiceSuite) TestCreateValidation() {
	tests := []struct {
		name   string
		mutate func(*dto.CreateInvoiceRequest)
	}{
		{"missing patient", func(r *dto.CreateInvoiceRequest) { r.PatientID = "" }},
		{"bad act date", func(r *dto.CreateInvoiceRequest) { r.ActDate = "2024-13-45" }},
		{"unknown site", func(r *dto.CreateInvoiceRequest) { r.IssuanceSite = "hospital" }},
		{"negative amount", func(r *dto.CreateInvoiceRequest) { r.ThirdPartyAmount = decimal.NewFromInt(-1) }},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.practiceRequest()
			tt.mutate(&req)
			_, err := s.service.CreateInvoice(s.GetContext(), req)
			s.True(ierr.IsValidation(err), "got %v", err)
		})
	}
	s.Equal(0, s.InvoiceStore().Count())
	s.Equal(0, s.SequenceStore().LockCount())
}

func (s *InvoiceServiceSuite) TestFailedCreateDoesNotConsumeNumber() {
	s.SequenceStore().FailNext("Advance", ierr.NewError("connection reset").Mark(ierr.ErrDatabase))

	_, err := s.service.CreateInvoice(s.GetContext(), s.practiceRequest())
	s.Require().Error(err)
	s.Equal(0, s.InvoiceStore().Count())

	resp, err := s.service.CreateInvoice(s.GetContext(), s.practiceRequest())
	s.Require().NoError(err)
	s.Equal("1", resp.InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestConcurrentCreatesHaveNoGapsOrDuplicates() {
	const n = 30

	var (
		mu      sync.Mutex
		numbers []int
		wg      conc.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Go(func() {
			resp, err := s.service.CreateInvoice(s.GetContext(), s.practiceRequest())
			s.NoError(err)
			if err != nil {
				return
			}
			v, convErr := strconv.Atoi(resp.InvoiceNumber)
			s.NoError(convErr)
			mu.Lock()
			numbers = append(numbers, v)
			mu.Unlock()
		})
	}
	wg.Wait()

	sort.Ints(numbers)
	s.Equal(lo.RangeFrom(1, n), numbers)
}

func (s *InvoiceServiceSuite) TestUpdateUnnumberedInvoiceGoesThroughNumbering() {
	inv := s.SeedInvoice(&invoice.Invoice{TotalAmount: decimal.NewFromInt(50)})

	resp, err := s.service.UpdateInvoice(s.GetContext(), inv.ID, dto.UpdateInvoiceRequest{
		TotalAmount: lo.ToPtr(decimal.NewFromInt(70)),
	})
	s.Require().NoError(err)
	s.Equal("1", resp.InvoiceNumber)
	s.True(resp.TotalAmount.Equal(decimal.NewFromInt(70)))
}

func (s *InvoiceServiceSuite) TestUpdateUnnumberedInvoiceToClinic() {
	inv := s.SeedInvoice(&invoice.Invoice{})

	resp, err := s.service.UpdateInvoice(s.GetContext(), inv.ID, dto.UpdateInvoiceRequest{
		IssuanceSite: lo.ToPtr(types.IssuanceSiteClinic),
	})
	s.Require().NoError(err)
	s.Empty(resp.InvoiceNumber)
	s.Equal(types.NumberingStatusExempt, resp.NumberingStatus)
	s.Equal(0, s.SequenceStore().LockCount())
}

func (s *InvoiceServiceSuite) TestUpdateWithManualNumber() {
	inv := s.SeedInvoice(&invoice.Invoice{})

	resp, err := s.service.UpdateInvoice(s.GetContext(), inv.ID, dto.UpdateInvoiceRequest{
		InvoiceNumber: lo.ToPtr("REPRISE-2023-88"),
	})
	s.Require().NoError(err)
	s.Equal("REPRISE-2023-88", resp.InvoiceNumber)
	s.Equal(0, s.SequenceStore().LockCount())
}

func (s *InvoiceServiceSuite) TestUpdateNumberedInvoiceKeepsNumber() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.practiceRequest())
	s.Require().NoError(err)

	resp, err := s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{
		AmountPaid: lo.ToPtr(decimal.NewFromInt(40)),
	})
	s.Require().NoError(err)
	s.Equal(created.InvoiceNumber, resp.InvoiceNumber)
	s.Equal(1, s.SequenceStore().LockCount())
}

func (s *InvoiceServiceSuite) TestUpdateTerminalInvoiceRejectsNumberingChanges() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.practiceRequest())
	s.Require().NoError(err)

	tests := []struct {
		name string
		req  dto.UpdateInvoiceRequest
	}{
		{"site", dto.UpdateInvoiceRequest{IssuanceSite: lo.ToPtr(types.IssuanceSiteClinic)}},
		{"exemption", dto.UpdateInvoiceRequest{CarePathwayExempt: lo.ToPtr(true)}},
		{"number", dto.UpdateInvoiceRequest{InvoiceNumber: lo.ToPtr("OTHER-1")}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.UpdateInvoice(s.GetContext(), created.ID, tt.req)
			s.True(ierr.IsInvalidOperation(err), "got %v", err)
		})
	}

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(created.InvoiceNumber, stored.InvoiceNumber)
	s.Equal(types.IssuanceSitePractice, stored.IssuanceSite)
}

func (s *InvoiceServiceSuite) TestUpdateNotFound() {
	_, err := s.service.UpdateInvoice(s.GetContext(), "inv_missing", dto.UpdateInvoiceRequest{})
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestGenerateNumberIsIdempotent() {
	inv := s.SeedInvoice(&invoice.Invoice{})

	first, err := s.service.GenerateNumber(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	second, err := s.service.GenerateNumber(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	s.Equal("1", first.InvoiceNumber)
	s.Equal(first, second)
}

func (s *InvoiceServiceSuite) TestGenerateNumberForClinicInvoice() {
	inv := s.SeedInvoice(&invoice.Invoice{IssuanceSite: types.IssuanceSiteClinic})

	resp, err := s.service.GenerateNumber(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Empty(resp.InvoiceNumber)
	s.Equal(types.NumberingStatusExempt, resp.NumberingStatus)
}

func (s *InvoiceServiceSuite) TestGetInvoice() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.practiceRequest())
	s.Require().NoError(err)

	got, err := s.service.GetInvoice(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(created.InvoiceNumber, got.InvoiceNumber)

	_, err = s.service.GetInvoice(s.GetContext(), "inv_missing")
	s.True(ierr.IsNotFound(err))
}
