package testutil

import (
	"context"
	"sync"

	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

type mockTxKey struct{}

// mockTx tracks one in-flight transaction of the mock client
type mockTx struct {
	depth int
}

// MockPostgresClient stands in for the database transaction boundary. It
// runs one top-level transaction at a time, which gives the in-memory stores
// the same isolation row locks give the real repositories, and restores the
// stores' state when a transaction or savepoint fails.
type MockPostgresClient struct {
	txMu    sync.Mutex
	stores  []Snapshotter
	logger  *logger.Logger
	mu      sync.Mutex
	commits int
	aborts  int
}

// NewMockPostgresClient creates a new mock postgres client over the given stores
func NewMockPostgresClient(logger *logger.Logger, stores ...Snapshotter) *MockPostgresClient {
	return &MockPostgresClient{
		stores: stores,
		logger: logger,
	}
}

func (c *MockPostgresClient) InTx(ctx context.Context) bool {
	_, ok := ctx.Value(mockTxKey{}).(*mockTx)
	return ok
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	tx, nested := ctx.Value(mockTxKey{}).(*mockTx)
	if !nested {
		c.txMu.Lock()
		defer c.txMu.Unlock()
		tx = &mockTx{}
		ctx = context.WithValue(ctx, mockTxKey{}, tx)
	}
	tx.depth++
	defer func() { tx.depth-- }()

	snapshots := make([]any, len(c.stores))
	for i, store := range c.stores {
		snapshots[i] = store.Snapshot()
	}
	rollback := func() {
		for i, store := range c.stores {
			store.Restore(snapshots[i])
		}
		c.mu.Lock()
		c.aborts++
		c.mu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		c.logger.Debugw("rolling back mock transaction", "depth", tx.depth, "error", err)
		rollback()
		return err
	}

	if !nested {
		c.mu.Lock()
		c.commits++
		c.mu.Unlock()
	}
	return nil
}

// Commits returns the number of committed top-level transactions
func (c *MockPostgresClient) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

// Aborts returns the number of rolled back transactions and savepoints
func (c *MockPostgresClient) Aborts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborts
}

func (c *MockPostgresClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits = 0
	c.aborts = 0
}
