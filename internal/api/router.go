package api

import (
	v1 "github.com/clinicdesk/clinicdesk/internal/api/v1"
	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/rest/middleware"
	"github.com/clinicdesk/clinicdesk/internal/sentry"
	"github.com/clinicdesk/clinicdesk/internal/types"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health     *v1.HealthHandler
	Invoice    *v1.InvoiceHandler
	Payment    *v1.PaymentHandler
	Bordereau  *v1.BordereauHandler
	Remittance *v1.RemittanceHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, sentrySvc *sentry.Service) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.SentryMiddleware(sentrySvc),
		middleware.RequestIDMiddleware,
		middleware.SentryTagsMiddleware,
		middleware.LoggingMiddleware(logger),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	invoices := router.Group("/invoices")
	{
		invoices.POST("", handlers.Invoice.CreateInvoice)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.PUT("/:id", handlers.Invoice.UpdateInvoice)
		invoices.POST("/:id/number", handlers.Invoice.GenerateNumber)
		invoices.GET("/:id/payments", handlers.Payment.ListInvoicePayments)
	}

	payments := router.Group("/payments")
	{
		payments.POST("", handlers.Payment.RecordPayment)
	}

	bordereaux := router.Group("/bordereaux")
	{
		bordereaux.GET("/preview", handlers.Bordereau.PreviewBatch)
		bordereaux.GET("/:batch_id", handlers.Bordereau.GetBatch)
		bordereaux.POST("/:batch_id", handlers.Bordereau.CommitBatch)
		bordereaux.POST("/:batch_id/export", handlers.Bordereau.ExportBatch)
		bordereaux.GET("/:batch_id/export", handlers.Bordereau.ReprintBatch)
	}

	remittances := router.Group("/remittances")
	{
		remittances.GET("", handlers.Remittance.PreviewListing)
		remittances.POST("", handlers.Remittance.ReconcileListing)
		remittances.POST("/export", handlers.Remittance.ExportListing)
		remittances.GET("/:listing_id", handlers.Remittance.GetListing)
		remittances.GET("/:listing_id/export", handlers.Remittance.ReprintListing)
	}
}
