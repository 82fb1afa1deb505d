package v1

import (
	"net/http"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/service"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	remittanceService service.RemittanceService
	log               *logger.Logger
}

func NewPaymentHandler(remittanceService service.RemittanceService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{remittanceService: remittanceService, log: log}
}

// @Summary Record a payment
// @Description Records money received against an invoice. Date and amount default to the invoice's.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payment body dto.RecordPaymentRequest true "Payment"
// @Success 201 {object} dto.PaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.remittanceService.RecordPayment(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary List the payments of an invoice
// @Tags Payments
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.ListPaymentsResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /invoices/{id}/payments [get]
func (h *PaymentHandler) ListInvoicePayments(c *gin.Context) {
	resp, err := h.remittanceService.ListInvoicePayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
