package testutil

import (
	"context"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/payment"
	"github.com/clinicdesk/clinicdesk/internal/domain/sequence"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/sentry"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/clinicdesk/clinicdesk/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	// practice timezones are resolved without relying on the host tz database
	_ "time/tzdata"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	InvoiceRepo  invoice.Repository
	SequenceRepo sequence.Repository
	PaymentRepo  payment.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	db     *MockPostgresClient
	logger *logger.Logger
	config *config.Configuration
	sentry *sentry.Service
	now    time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Billing.Timezone = "Pacific/Tahiti"
	cfg.Billing.RetryMaxAttempts = 3
	cfg.Billing.RetryInitialIntervalMs = 1
	cfg.Billing.RetryMaxIntervalMs = 5
	s.config = cfg

	s.logger = logger.NewNopLogger()
	s.sentry = sentry.NewSentryService(cfg, s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	// 20:00 UTC on 2024-06-01 is 10:00 the same day in Tahiti
	s.now = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	invoiceStore := NewInMemoryInvoiceStore()
	sequenceStore := NewInMemorySequenceStore()
	paymentStore := NewInMemoryPaymentStore()

	s.stores = Stores{
		InvoiceRepo:  invoiceStore,
		SequenceRepo: sequenceStore,
		PaymentRepo:  paymentStore,
	}
	s.db = NewMockPostgresClient(s.logger, invoiceStore, sequenceStore, paymentStore)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.SequenceRepo.(*InMemorySequenceStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.db.Reset()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns the test stores
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the mock transaction client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetSentry returns a disabled sentry service
func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

// GetNow returns the pinned current time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// SetNow moves the pinned current time
func (s *BaseServiceTestSuite) SetNow(now time.Time) {
	s.now = now
}

// Clock returns a clock reading the pinned current time
func (s *BaseServiceTestSuite) Clock() func() time.Time {
	return func() time.Time { return s.now }
}

// InvoiceStore returns the concrete invoice store for seeding and fault injection
func (s *BaseServiceTestSuite) InvoiceStore() *InMemoryInvoiceStore {
	return s.stores.InvoiceRepo.(*InMemoryInvoiceStore)
}

// SequenceStore returns the concrete counter store
func (s *BaseServiceTestSuite) SequenceStore() *InMemorySequenceStore {
	return s.stores.SequenceRepo.(*InMemorySequenceStore)
}

// PaymentStore returns the concrete payment store
func (s *BaseServiceTestSuite) PaymentStore() *InMemoryPaymentStore {
	return s.stores.PaymentRepo.(*InMemoryPaymentStore)
}

// SeedInvoice stores an invoice directly, bypassing services
func (s *BaseServiceTestSuite) SeedInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv.ID == "" {
		inv.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE)
	}
	if inv.PatientID == "" {
		inv.PatientID = "patient_1"
	}
	if inv.IssuanceSite == "" {
		inv.IssuanceSite = types.IssuanceSitePractice
	}
	if inv.NumberingStatus == "" {
		inv.NumberingStatus = types.NumberingStatusUnnumbered
		if inv.InvoiceNumber != "" {
			inv.NumberingStatus = types.NumberingStatusNumbered
		}
	}
	if inv.ActDate.IsZero() {
		inv.ActDate = types.DateOnly(s.now)
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = inv.ActDate
	}
	if inv.BaseModel.CreatedAt.IsZero() {
		inv.BaseModel = types.GetDefaultBaseModel(s.ctx)
	}
	s.Require().NoError(s.stores.InvoiceRepo.Create(s.ctx, inv))
	return inv
}

// SeedPayment stores a payment directly, bypassing services
func (s *BaseServiceTestSuite) SeedPayment(p *payment.Payment) *payment.Payment {
	if p.ID == "" {
		p.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT)
	}
	if p.InvoiceID == "" {
		p.InvoiceID = "inv_seed"
	}
	if p.Amount.IsZero() {
		p.Amount = decimal.NewFromInt(100)
	}
	if p.BaseModel.CreatedAt.IsZero() {
		p.BaseModel = types.GetDefaultBaseModel(s.ctx)
	}
	s.Require().NoError(s.stores.PaymentRepo.Create(s.ctx, p))
	return p
}
