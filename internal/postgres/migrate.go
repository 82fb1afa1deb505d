package postgres

import (
	"context"
	"io/fs"
	"sort"
	"strings"

	"github.com/clinicdesk/clinicdesk/migrations"
	"github.com/samber/lo"
)

// migrationLockID serialises concurrent migrators through an advisory lock
const migrationLockID = 7_314_502

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations, each one in its own transaction.
func (db *DB) Migrate(ctx context.Context) error {
	return db.MigrateFS(ctx, migrations.Postgres, "postgres")
}

// MigrateFS applies the *.sql files found in dir of fsys in lexical order
func (db *DB) MigrateFS(ctx context.Context, fsys fs.FS, dir string) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return TranslateError(err, "failed to create schema_migrations")
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	files := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		return e.Name(), !e.IsDir() && strings.HasSuffix(e.Name(), ".sql")
	})
	sort.Strings(files)

	for _, name := range files {
		body, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return err
		}

		version := strings.TrimSuffix(name, ".sql")
		applied := false
		err = db.WithTx(ctx, func(ctx context.Context) error {
			q := db.GetQuerier(ctx)
			if _, err := q.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
				return TranslateError(err, "failed to acquire migration lock")
			}

			var count int
			if err := q.GetContext(ctx, &count,
				"SELECT count(*) FROM schema_migrations WHERE version = $1", version); err != nil {
				return TranslateError(err, "failed to read schema_migrations")
			}
			if count > 0 {
				return nil
			}

			if _, err := q.ExecContext(ctx, string(body)); err != nil {
				return TranslateError(err, "failed to apply migration "+name)
			}
			if _, err := q.ExecContext(ctx,
				"INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
				return TranslateError(err, "failed to record migration "+name)
			}
			applied = true
			return nil
		})
		if err != nil {
			return err
		}
		if applied {
			db.logger.Infow("applied migration", "version", version)
		}
	}
	return nil
}
