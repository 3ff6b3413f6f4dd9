package db

import (
	"context"

	"crm-workflow/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
)

type userStore struct {
	pool *pgxpool.Pool
}

// NewUserStore constructs a core.UserStore backed by PostgreSQL.
func NewUserStore(pool *pgxpool.Pool) core.UserStore {
	return &userStore{pool: pool}
}

func (s *userStore) GetByUsername(ctx context.Context, username string) (*core.User, error) {
	u := &core.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, username, email, password_hash, role, is_active, created_at
		FROM users
		WHERE username = $1 AND is_active = true
		LIMIT 1`,
		username,
	).Scan(&u.ID, &u.TenantID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return u, nil
}

func (s *userStore) GetByID(ctx context.Context, userID int64) (*core.User, error) {
	u := &core.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, username, email, password_hash, role, is_active, created_at
		FROM users
		WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.TenantID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return u, nil
}
