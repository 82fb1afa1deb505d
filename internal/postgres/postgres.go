package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/fx"
)

// IClient is the transaction boundary used by services. Repositories pick the
// transaction up from the context through DB.GetQuerier.
type IClient interface {
	// WithTx runs fn in a transaction. When ctx already carries one, fn runs
	// inside a savepoint of the outer transaction instead.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// InTx reports whether ctx already carries a transaction
	InTx(ctx context.Context) bool
}

// DB wraps sqlx.DB to provide transaction management
type DB struct {
	*sqlx.DB
	logger      *logger.Logger
	lockTimeout time.Duration
}

// Querier interface defines all database operations
// Both *sqlx.DB and *sqlx.Tx implement these methods
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// Module provides the database handle and the transaction client
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewSentryClient,
		),
		fx.Invoke(registerHooks),
	)
}

// NewDB opens the connection pool and applies the configured pool limits
func NewDB(cfg *config.Configuration, logger *logger.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		return nil, err
	}

	if cfg.Postgres.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	}
	if cfg.Postgres.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}
	if cfg.Postgres.ConnMaxLifetimeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetimeMinutes) * time.Minute)
	}

	return NewFromSqlx(db, logger, cfg.Postgres.LockTimeout()), nil
}

// NewFromSqlx wraps an already opened handle
func NewFromSqlx(db *sqlx.DB, logger *logger.Logger, lockTimeout time.Duration) *DB {
	return &DB{DB: db, logger: logger, lockTimeout: lockTimeout}
}

func registerHooks(lc fx.Lifecycle, cfg *config.Configuration, db *DB, logger *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.Postgres.AutoMigrate {
				return nil
			}
			return db.Migrate(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing database connection pool")
			db.Close()
			return nil
		},
	})
}

// Close closes the database connection
func (db *DB) Close() {
	if err := db.DB.Close(); err != nil {
		db.logger.Errorw("error closing database", "error", err)
	}
}

// GetQuerier returns either the transaction from context or the base DB
func (db *DB) GetQuerier(ctx context.Context) Querier {
	if tx, ok := GetTx(ctx); ok {
		return NewTracedQuerier(tx.Tx, db.logger, tx.ID)
	}
	return NewTracedQuerier(db.DB, db.logger, "")
}
