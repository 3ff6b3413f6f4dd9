package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-workflow/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens and pings a connection pool for databaseURL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse DATABASE_URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// Store is the PostgreSQL core.Store. Transactions run at READ COMMITTED;
// document rows are locked with SELECT ... FOR UPDATE and order writes carry
// an optimistic version check.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (s *Store) WithReadTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx core.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer pgTx.Rollback(ctx)

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return mapError(err, "", nil)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err), "", nil)
	}
	return nil
}

// tx implements core.Tx over one pgx transaction.
type tx struct {
	tx pgx.Tx
}

// PostgreSQL error codes surfaced as typed conflicts.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// mapError turns constraint and concurrency failures into core conflicts.
// Anything else, including already typed core errors, passes through unchanged.
func mapError(err error, entity string, id any) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return core.NewConflict(entity, id, "already exists (%s)", pgErr.ConstraintName)
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return core.NewRetryableConflict(entity, id, "concurrent update, retry the request (%s)", pgErr.Code)
	}
	return err
}

// notFound converts pgx.ErrNoRows into a core.NotFoundError.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NewNotFound(entity, id)
	}
	return fmt.Errorf("failed to load %s %v: %w", entity, id, err)
}

func lockClause(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

// listWhere appends the optional filters of f to a tenant-scoped WHERE clause.
func listWhere(f core.ListFilter, args []any) (string, []any) {
	where := ""
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.CompanyID != nil {
		args = append(args, *f.CompanyID)
		where += fmt.Sprintf(" AND company_id = $%d", len(args))
	}
	where += " ORDER BY id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		where += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return where, args
}
