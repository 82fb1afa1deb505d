package v1

import (
	"fmt"
	"net/http"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/manifest"
	"github.com/clinicdesk/clinicdesk/internal/service"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/gin-gonic/gin"
)

// headerListingID carries the listing id on spreadsheet downloads
const headerListingID = "X-Listing-ID"

type RemittanceHandler struct {
	remittanceService service.RemittanceService
	manifest          manifest.Generator
	logger            *logger.Logger
}

func NewRemittanceHandler(
	remittanceService service.RemittanceService,
	manifest manifest.Generator,
	logger *logger.Logger,
) *RemittanceHandler {
	return &RemittanceHandler{
		remittanceService: remittanceService,
		manifest:          manifest,
		logger:            logger,
	}
}

// @Summary Preview a remittance listing
// @Description Lists the unlisted payments of a method dated on or before the cutoff. Nothing is changed.
// @Tags Remittances
// @Produce json
// @Param method query string false "Payment method, defaults to CHEQUE"
// @Param date query string false "Cutoff date, YYYY-MM-DD or DD/MM/YYYY, defaults to today"
// @Success 200 {object} dto.Listing
// @Failure 400 {object} ierr.ErrorResponse
// @Router /remittances [get]
func (h *RemittanceHandler) PreviewListing(c *gin.Context) {
	var req dto.ReconcileListingRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	method, cutoff, err := h.remittanceService.ResolveListingRequest(req)
	if err != nil {
		c.Error(err)
		return
	}

	resp, err := h.remittanceService.PreviewListing(c.Request.Context(), method, cutoff)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Reconcile a remittance listing
// @Description Marks every matching payment as listed and returns exactly that set
// @Tags Remittances
// @Accept json
// @Produce json
// @Param listing body dto.ReconcileListingRequest false "Method and cutoff"
// @Success 200 {object} dto.Listing
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 503 {object} ierr.ErrorResponse
// @Router /remittances [post]
func (h *RemittanceHandler) ReconcileListing(c *gin.Context) {
	listing, ok := h.reconcile(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, listing)
}

// @Summary Reconcile a remittance listing and download it
// @Description Responds 204 when no payment was waiting
// @Tags Remittances
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param listing body dto.ReconcileListingRequest false "Method and cutoff"
// @Success 200 {file} file
// @Success 204
// @Router /remittances/export [post]
func (h *RemittanceHandler) ExportListing(c *gin.Context) {
	listing, ok := h.reconcile(c)
	if !ok {
		return
	}
	if listing.Empty() {
		c.Status(http.StatusNoContent)
		return
	}

	h.sendListing(c, listing)
}

// @Summary Get a reconciled remittance listing
// @Description Returns the payments of a listing reconciled earlier
// @Tags Remittances
// @Produce json
// @Param listing_id path string true "Listing id"
// @Success 200 {object} dto.Listing
// @Failure 404 {object} ierr.ErrorResponse
// @Router /remittances/{listing_id} [get]
func (h *RemittanceHandler) GetListing(c *gin.Context) {
	listing, err := h.remittanceService.GetListing(c.Request.Context(), c.Param("listing_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// @Summary Download a reconciled remittance listing again
// @Description Renders a listing reconciled earlier, for a lost or failed download
// @Tags Remittances
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param listing_id path string true "Listing id"
// @Success 200 {file} file
// @Failure 404 {object} ierr.ErrorResponse
// @Router /remittances/{listing_id}/export [get]
func (h *RemittanceHandler) ReprintListing(c *gin.Context) {
	listing, err := h.remittanceService.GetListing(c.Request.Context(), c.Param("listing_id"))
	if err != nil {
		c.Error(err)
		return
	}

	h.sendListing(c, listing)
}

func (h *RemittanceHandler) sendListing(c *gin.Context, listing *dto.Listing) {
	data, err := h.manifest.RenderRemittance(c.Request.Context(), listing)
	if err != nil {
		h.logger.Errorw("failed to render remittance listing",
			"listing_id", listing.ID,
			"method", listing.Method,
			"count", listing.Count,
			"error", err,
		)
		c.Error(err)
		return
	}

	filename := fmt.Sprintf("remise-%s-%s.xlsx", listing.Method, listing.Cutoff.Format(types.DateFormatISO))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header(headerListingID, listing.ID)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *RemittanceHandler) reconcile(c *gin.Context) (*dto.Listing, bool) {
	var req dto.ReconcileListingRequest
	// an empty body means cheques up to today
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid request format").
				Mark(ierr.ErrValidation))
			return nil, false
		}
	}

	method, cutoff, err := h.remittanceService.ResolveListingRequest(req)
	if err != nil {
		c.Error(err)
		return nil, false
	}

	listing, err := h.remittanceService.ReconcileListing(c.Request.Context(), method, cutoff)
	if err != nil {
		c.Error(err)
		return nil, false
	}
	return listing, true
}
