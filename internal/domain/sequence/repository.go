package sequence

import "context"

// Repository persists the invoice counter. Both methods must be called
// inside a transaction; the lock taken by Lock is held until it ends.
type Repository interface {
	// Lock row-locks the counter, creating it with InitialValue on first use
	Lock(ctx context.Context) (*Counter, error)

	// Advance stores next as the value the following caller will receive
	Advance(ctx context.Context, next int64) error

	// Peek reads the counter without locking it
	Peek(ctx context.Context) (*Counter, error)
}
