// seed creates a tenant, a customer company and an admin login so a fresh
// database can be used from the web API and the CLI. Re-running it resets the
// admin password and leaves existing data alone.
//
// Usage: SEED_ADMIN_PASSWORD=... go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"crm-workflow/internal/config"
	"crm-workflow/internal/db"
	"crm-workflow/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
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

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		logger.Fatal("SEED_ADMIN_PASSWORD is required")
	}
	if cfg.Database.URL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Fatal("failed to hash password", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		logger.Fatal("failed to begin transaction", zap.Error(err))
	}
	defer tx.Rollback(ctx)

	logger.Info("restoring tenant", zap.Int64("tenant_id", cfg.TenantID))
	if _, err := tx.Exec(ctx, `
		INSERT INTO tenants (id, name) VALUES ($1, 'Demo Tenant')
		ON CONFLICT (id) DO NOTHING`, cfg.TenantID); err != nil {
		logger.Fatal("failed to restore tenant", zap.Error(err))
	}
	// Keep BIGSERIAL ahead of the explicit id.
	if _, err := tx.Exec(ctx, `SELECT setval('tenants_id_seq', GREATEST((SELECT max(id) FROM tenants), 1))`); err != nil {
		logger.Fatal("failed to advance tenant sequence", zap.Error(err))
	}

	logger.Info("restoring customer company")
	if _, err := tx.Exec(ctx, `
		INSERT INTO companies (tenant_id, name, currency, payment_terms_days)
		SELECT $1, 'Demo Customer GmbH', 'EUR', $2
		WHERE NOT EXISTS (SELECT 1 FROM companies WHERE tenant_id = $1)`,
		cfg.TenantID, cfg.Workflow.DefaultPaymentTermsDays); err != nil {
		logger.Fatal("failed to restore company", zap.Error(err))
	}

	logger.Info("restoring admin user")
	var userID int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO users (tenant_id, username, email, password_hash, role)
		VALUES ($1, 'admin', 'admin@example.com', $2, 'admin')
		ON CONFLICT (username) DO UPDATE
		  SET password_hash = EXCLUDED.password_hash,
		      is_active = true
		RETURNING id`, cfg.TenantID, string(hash)).Scan(&userID); err != nil {
		logger.Fatal("failed to restore admin user", zap.Error(err))
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Fatal("failed to commit", zap.Error(err))
	}
	logger.Info("seed data restored", zap.Int64("admin_user_id", userID))
}
