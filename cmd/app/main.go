package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"crm-workflow/internal/adapters/cli"
	"crm-workflow/internal/adapters/repl"
	"crm-workflow/internal/app"
	"crm-workflow/internal/config"
	"crm-workflow/internal/core"
	"crm-workflow/internal/db"
	"crm-workflow/internal/logging"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("unable to connect to database", zap.Error(err))
	}
	defer pool.Close()

	store := db.NewStore(pool)
	svc := app.NewAppService(
		core.NewWorkflowService(store, core.WithDefaultPaymentTerms(cfg.Workflow.DefaultPaymentTermsDays)),
		core.NewDocumentService(store, nil),
		db.NewUserStore(pool),
		cfg.Workflow.TxTimeout,
		logger,
	)

	actor, err := resolveActor(ctx, svc, cfg)
	if err != nil {
		logger.Fatal("cannot resolve CLI user", zap.Int64("user_id", cfg.UserID), zap.Error(err))
	}

	if len(os.Args) > 1 {
		if err := cli.Run(ctx, svc, actor, os.Args[1:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if errors.Is(err, cli.ErrUsage) {
				os.Exit(2)
			}
			os.Exit(1)
		}
		return
	}
	repl.Run(ctx, svc, actor, bufio.NewReader(os.Stdin), os.Stdout)
}

// resolveActor loads USER_ID and checks it belongs to TENANT_ID.
func resolveActor(ctx context.Context, svc app.ApplicationService, cfg *config.Config) (core.Actor, error) {
	user, err := svc.GetUser(ctx, cfg.UserID)
	if err != nil {
		return core.Actor{}, err
	}
	if user.TenantID != cfg.TenantID {
		return core.Actor{}, fmt.Errorf("user %d does not belong to tenant %d", cfg.UserID, cfg.TenantID)
	}
	return core.Actor{UserID: user.UserID, TenantID: user.TenantID, Role: user.Role}, nil
}
