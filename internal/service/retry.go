package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
)

// inTx runs fn in a transaction. When the caller already opened one, fn joins
// it and any error goes straight back to the caller, who owns the retry.
// Otherwise the whole transaction is retried with exponential backoff for as
// long as it fails on lock contention.
func (p ServiceParams) inTx(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if p.DB.InTx(ctx) {
		return p.DB.WithTx(ctx, fn)
	}

	attempts := 1
	if p.Config != nil && p.Config.Billing.RetryMaxAttempts > 1 {
		attempts = p.Config.Billing.RetryMaxAttempts
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(p.newBackOff(), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := p.DB.WithTx(ctx, fn)
		if err == nil || !ierr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		p.Logger.Warnw("retrying transaction after contention",
			"operation", operation,
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	})
}

func (p ServiceParams) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.Config != nil {
		b.InitialInterval = p.Config.Billing.RetryInitialInterval()
		if max := p.Config.Billing.RetryMaxInterval(); max > 0 {
			b.MaxInterval = max
		}
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
