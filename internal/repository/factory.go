package repository

import (
	"github.com/clinicdesk/clinicdesk/internal/domain/invoice"
	"github.com/clinicdesk/clinicdesk/internal/domain/payment"
	"github.com/clinicdesk/clinicdesk/internal/domain/sequence"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/postgres"
	postgresRepo "github.com/clinicdesk/clinicdesk/internal/repository/postgres"
)

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewSequenceRepository(db *postgres.DB, logger *logger.Logger) sequence.Repository {
	return postgresRepo.NewSequenceRepository(db, logger)
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}
