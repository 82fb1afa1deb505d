package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/logger"
	"github.com/clinicdesk/clinicdesk/internal/postgres"
	"github.com/clinicdesk/clinicdesk/migrations"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Print the embedded migrations without applying them")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if *dryRun {
		logger.Info("Dry run mode - printing migration SQL without executing")
		err := fs.WalkDir(migrations.Postgres, "postgres", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			body, err := fs.ReadFile(migrations.Postgres, path)
			if err != nil {
				return err
			}
			fmt.Printf("-- %s\n%s\n", path, body)
			return nil
		})
		if err != nil {
			logger.Fatalw("Failed to read embedded migrations", "error", err)
		}
		return
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host, "database", cfg.Postgres.DBName)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("Running database migrations...")
	if err := db.Migrate(ctx); err != nil {
		logger.Fatalw("Failed to apply migrations", "error", err)
	}
	logger.Info("Migration completed successfully")
}
