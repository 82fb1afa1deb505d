package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/api/dto"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/service"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	numbering service.NumberingService
	logger    *logger.Logger
}

func NewHealthHandler(
	numbering service.NumberingService,
	logger *logger.Logger,
) *HealthHandler {
	return &HealthHandler{
		numbering: numbering,
		logger:    logger,
	}
}

// @Summary Health check
// @Description Reports whether the service can reach its store
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	next, err := h.numbering.PeekNextNumber(ctx)
	if err != nil {
		h.logger.Warnw("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable"})
		return
	}

	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok", NextInvoiceNumber: next})
}
