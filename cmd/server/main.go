package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/api"
	v1 "github.com/clinicdesk/clinicdesk/internal/api/v1"
	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/manifest"
	"github.com/clinicdesk/clinicdesk/internal/postgres"
	"github.com/clinicdesk/clinicdesk/internal/repository"
	"github.com/clinicdesk/clinicdesk/internal/sentry"
	"github.com/clinicdesk/clinicdesk/internal/service"
	"github.com/clinicdesk/clinicdesk/internal/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func init() {
	// database timestamps are UTC; the practice timezone only applies to calendar days
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Repositories
			repository.NewInvoiceRepository,
			repository.NewSequenceRepository,
			repository.NewPaymentRepository,

			// Rendering
			manifest.NewGenerator,
		),
		sentry.Module(),
		postgres.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewNumberingService,
			service.NewInvoiceService,
			service.NewBordereauService,
			service.NewRemittanceService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			api.NewRouter,
		),
		fx.Invoke(startAPIServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	logger *logger.Logger,
	generator manifest.Generator,
	numberingService service.NumberingService,
	invoiceService service.InvoiceService,
	bordereauService service.BordereauService,
	remittanceService service.RemittanceService,
) api.Handlers {
	return api.Handlers{
		Health:     v1.NewHealthHandler(numberingService, logger),
		Invoice:    v1.NewInvoiceHandler(invoiceService, logger),
		Payment:    v1.NewPaymentHandler(remittanceService, logger),
		Bordereau:  v1.NewBordereauHandler(bordereauService, generator, logger),
		Remittance: v1.NewRemittanceHandler(remittanceService, generator, logger),
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down API server")
			return srv.Shutdown(ctx)
		},
	})
}
