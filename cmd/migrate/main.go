// migrate applies the embedded SQL migrations to DATABASE_URL.
//
// Usage: go run ./cmd/migrate
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"crm-workflow/internal/config"
	"crm-workflow/internal/db"
	"crm-workflow/internal/logging"
	"crm-workflow/migrations"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Production())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Database.URL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}
