// Package provision holds the one-time setup steps the api-server runs
// at startup.
package provision

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool provisioning needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureAdmin creates the administrator account if none exists yet.
// Safe to call on every process start; concurrent starts are absorbed
// by the email uniqueness constraint.
func EnsureAdmin(ctx context.Context, db DB, email string) error {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE role = 'admin')
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check admin account: %w", err)
	}
	if exists {
		return nil
	}

	_, err = db.Exec(ctx, `
		INSERT INTO accounts (id, email, role)
		VALUES ($1, $2, 'admin')
		ON CONFLICT (email) DO NOTHING
	`, uuid.New(), email)
	if err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	return nil
}
