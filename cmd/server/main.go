package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "crm-workflow/internal/adapters/web"
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

	if err := cfg.RequireServer(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	store := db.NewStore(pool)
	workflow := core.NewWorkflowService(store, core.WithDefaultPaymentTerms(cfg.Workflow.DefaultPaymentTermsDays))
	docs := core.NewDocumentService(store, nil)
	svc := app.NewAppService(workflow, docs, db.NewUserStore(pool), cfg.Workflow.TxTimeout, logger)

	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Server.JWTSecret,
		JWTExpiry:      cfg.Server.JWTExpiry,
		SecureCookies:  cfg.Production(),
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
	logger.Info("server stopped")
}
