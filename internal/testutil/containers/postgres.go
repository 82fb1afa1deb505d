//go:build integration

package containers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// schema already migrated
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *postgres.DB
}

var (
	sharedOnce sync.Once
	shared     *PostgresContainer
	sharedErr  error
)

// GetPostgres returns the container shared by every suite of the test
// binary, starting it on first use. Ryuk removes it when the binary exits.
func GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	sharedOnce.Do(func() {
		shared, sharedErr = newPostgresContainer(context.Background())
	})
	if sharedErr != nil {
		t.Fatalf("failed to start postgres container: %v", sharedErr)
	}
	return shared
}

func newPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("clinicdesk"),
		tcpostgres.WithUsername("clinicdesk"),
		tcpostgres.WithPassword("clinicdesk"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	sqlDB, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)

	db := postgres.NewFromSqlx(sqlDB, logger.NewNopLogger(), 2*time.Second)
	if err := db.Migrate(ctx); err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}, nil
}

// TruncateTables empties the given tables. Use between tests to ensure isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE")
	return err
}

// ResetCounter removes the counter row so the next invoice gets number 1
func (p *PostgresContainer) ResetCounter(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, "DELETE FROM invoice_sequences")
	return err
}
