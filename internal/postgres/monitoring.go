package postgres

import (
	"context"

	sentryService "github.com/clinicdesk/clinicdesk/internal/sentry"
)

// SentryClient wraps the transaction client with Sentry span tracking
type SentryClient struct {
	db     *DB
	sentry *sentryService.Service
}

// NewSentryClient creates a new Sentry-instrumented transaction client
func NewSentryClient(db *DB, sentry *sentryService.Service) IClient {
	return &SentryClient{
		db:     db,
		sentry: sentry,
	}
}

// WithTx wraps the given function in a transaction with Sentry span tracking
func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"operation": "transaction",
		"nested":    InTx(ctx),
	})
	if span != nil {
		defer span.Finish()
	}

	return c.db.WithTx(spanCtx, fn)
}

func (c *SentryClient) InTx(ctx context.Context) bool {
	return c.db.InTx(ctx)
}
