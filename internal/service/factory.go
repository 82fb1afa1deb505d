package service

import (
	"time"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/payment"
	"github.com/clinicdesk/clinicdesk/internal/domain/sequence"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/postgres"
	"github.com/clinicdesk/clinicdesk/internal/sentry"
	"github.com/clinicdesk/clinicdesk/internal/types"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Sentry *sentry.Service

	// Repositories
	InvoiceRepo  invoice.Repository
	SequenceRepo sequence.Repository
	PaymentRepo  payment.Repository

	// Now is the clock used for batch dates, listing timestamps and reference
	// stamps. Tests replace it to pin the current day.
	Now func() time.Time
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	sentry *sentry.Service,
	invoiceRepo invoice.Repository,
	sequenceRepo sequence.Repository,
	paymentRepo payment.Repository,
) ServiceParams {
	return ServiceParams{
		Logger:       logger,
		Config:       config,
		DB:           db,
		Sentry:       sentry,
		InvoiceRepo:  invoiceRepo,
		SequenceRepo: sequenceRepo,
		PaymentRepo:  paymentRepo,
		Now:          time.Now,
	}
}

func (p ServiceParams) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// location returns the practice timezone. Configuration validation already
// rejected unknown zones, so UTC is only a fallback for hand-built params.
func (p ServiceParams) location() *time.Location {
	if p.Config == nil {
		return time.UTC
	}
	loc, err := p.Config.Billing.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}

// today is the current calendar day in the practice timezone
func (p ServiceParams) today() time.Time {
	return types.LocalDate(p.now(), p.location())
}
