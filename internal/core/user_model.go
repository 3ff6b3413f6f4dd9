package core

import (
	"context"
	"time"
)

// Roles understood by the application layer.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// User represents an authenticated system user scoped to a tenant.
type User struct {
	ID           int64
	TenantID     int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// Actor is the identity a workflow operation runs as. TenantID partitions every
// read and write; UserID is stamped into createdBy/updatedBy/confirmedBy/cancelledBy.
type Actor struct {
	UserID   int64
	TenantID int64
	Role     string
}

// CanWrite reports whether the actor may mutate documents.
func (a Actor) CanWrite() bool {
	return a.Role == RoleAdmin || a.Role == RoleMember
}

// UserStore provides user lookup operations.
type UserStore interface {
	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int64) (*User, error)
}
