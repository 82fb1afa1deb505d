package v1

import (
	"fmt"
	"net/http"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/manifest"
	"github.com/clinicdesk/clinicdesk/internal/service"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type BordereauHandler struct {
	bordereauService service.BordereauService
	manifest         manifest.Generator
	logger           *logger.Logger
}

func NewBordereauHandler(bordereauService service.BordereauService, manifest manifest.Generator, logger *logger.Logger) *BordereauHandler {
	return &BordereauHandler{
		bordereauService: bordereauService,
		manifest:         manifest,
		logger:           logger,
	}
}

// @Summary Preview the next deposit slip
// @Description Lists the invoices the next deposit slip would claim. Nothing is changed.
// @Tags Bordereaux
// @Produce json
// @Success 200 {object} dto.BatchPreview
// @Router /bordereaux/preview [get]
func (h *BordereauHandler) PreviewBatch(c *gin.Context) {
	resp, err := h.bordereauService.PreviewBatch(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Commit a deposit slip
// @Description Claims every eligible invoice for the slip and returns exactly that set
// @Tags Bordereaux
// @Produce json
// @Param batch_id path string true "Deposit slip number"
// @Success 200 {object} dto.BatchResult
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 503 {object} ierr.ErrorResponse
// @Router /bordereaux/{batch_id} [post]
func (h *BordereauHandler) CommitBatch(c *gin.Context) {
	resp, err := h.bordereauService.CommitBatch(c.Request.Context(), c.Param("batch_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Commit a deposit slip and download it
// @Description Commits the slip, then renders the claimed invoices as a spreadsheet.
// @Description Responds 204 when no invoice was waiting.
// @Tags Bordereaux
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param batch_id path string true "Deposit slip number"
// @Success 200 {file} file
// @Success 204
// @Router /bordereaux/{batch_id}/export [post]
func (h *BordereauHandler) ExportBatch(c *gin.Context) {
	result, err := h.bordereauService.CommitBatch(c.Request.Context(), c.Param("batch_id"))
	if err != nil {
		c.Error(err)
		return
	}
	if result.Empty() {
		c.Status(http.StatusNoContent)
		return
	}

	// the slip is rendered from the claimed set after the commit, never re-queried
	h.sendSlip(c, result)
}

// @Summary Get a committed deposit slip
// @Description Returns the invoices of a slip committed earlier, for reprinting
// @Tags Bordereaux
// @Produce json
// @Param batch_id path string true "Deposit slip number"
// @Success 200 {object} dto.BatchResult
// @Failure 404 {object} ierr.ErrorResponse
// @Router /bordereaux/{batch_id} [get]
func (h *BordereauHandler) GetBatch(c *gin.Context) {
	resp, err := h.bordereauService.GetBatch(c.Request.Context(), c.Param("batch_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Download a committed deposit slip again
// @Description Renders a slip committed earlier, for a lost or failed download
// @Tags Bordereaux
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param batch_id path string true "Deposit slip number"
// @Success 200 {file} file
// @Failure 404 {object} ierr.ErrorResponse
// @Router /bordereaux/{batch_id}/export [get]
func (h *BordereauHandler) ReprintBatch(c *gin.Context) {
	result, err := h.bordereauService.GetBatch(c.Request.Context(), c.Param("batch_id"))
	if err != nil {
		c.Error(err)
		return
	}

	h.sendSlip(c, result)
}

func (h *BordereauHandler) sendSlip(c *gin.Context, result *dto.BatchResult) {
	data, err := h.manifest.RenderBordereau(c.Request.Context(), result)
	if err != nil {
		h.logger.Errorw("failed to render deposit slip",
			"batch_id", result.BatchID,
			"error", err,
		)
		c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=bordereau-%s.xlsx", result.BatchID))
	c.Data(http.StatusOK, xlsxContentType, data)
}
