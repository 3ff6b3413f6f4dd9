// Package migrations embeds the schema and applies it under an advisory lock,
// recording a checksum per applied file in schema_migrations.
package migrations

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed *.sql
var files embed.FS

// advisoryLockKey serialises concurrent migrators.
const advisoryLockKey = 7462839

// Migration is one embedded SQL file.
type Migration struct {
	Version  string
	Filename string
	Checksum string
	SQL      string
}

// Discover lists the embedded migrations in filename order.
// Filenames must look like NNN_description.sql with unique versions.
func Discover() ([]Migration, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(names))
	out := make([]Migration, 0, len(names))
	for _, name := range names {
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid migration filename %s: expected NNN_description.sql", name)
		}
		if seen[parts[0]] {
			return nil, fmt.Errorf("duplicate migration version %s", parts[0])
		}
		seen[parts[0]] = true

		body, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		sum := sha256.Sum256(body)
		out = append(out, Migration{
			Version:  parts[0],
			Filename: name,
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(body),
		})
	}
	return out, nil
}

// Apply runs every pending migration, each in its own transaction.
// A changed file that was already applied is an error.
func Apply(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for lock: %w", err)
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&locked); err != nil {
		return fmt.Errorf("failed to query advisory lock: %w", err)
	}
	if !locked {
		return errors.New("another migrator is currently running")
	}
	defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", advisoryLockKey)

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	migrations, err := Discover()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if err := apply(ctx, conn.Conn(), m, log); err != nil {
			return err
		}
	}
	log.Info("all migrations processed", zap.Int("count", len(migrations)))
	return nil
}

func apply(ctx context.Context, conn *pgx.Conn, m Migration, log *zap.Logger) error {
	var existing string
	err := conn.QueryRow(ctx, "SELECT checksum FROM schema_migrations WHERE version = $1", m.Version).Scan(&existing)
	switch {
	case err == nil && existing == m.Checksum:
		log.Debug("migration already applied", zap.String("file", m.Filename))
		return nil
	case err == nil:
		return fmt.Errorf("checksum mismatch for %s: recorded %s, file %s", m.Filename, existing, m.Checksum)
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("failed to query schema_migrations for %s: %w", m.Filename, err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", m.Filename, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", m.Filename, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, filename, checksum) VALUES ($1, $2, $3)",
		m.Version, m.Filename, m.Checksum); err != nil {
		return fmt.Errorf("failed to insert migration record for %s: %w", m.Filename, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.Filename, err)
	}
	log.Info("migration applied", zap.String("file", m.Filename))
	return nil
}
