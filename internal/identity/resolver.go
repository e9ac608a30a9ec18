// Package identity reconciles the two doctor-reference forms callers
// legitimately use: the doctor-record id and the id of the account
// holding the doctor role. Every slot and billing computation goes
// through the canonical doctor-record id.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrDoctorNotFound = errors.New("doctor not found")
)

// Querier is the subset of pgxpool.Pool the resolver needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Resolver struct {
	db Querier
}

func NewResolver(pool *pgxpool.Pool) *Resolver {
	if pool == nil {
		panic("identity: pgx pool required")
	}
	return &Resolver{db: pool}
}

// NewResolverWithDB allows injecting a mock database for testing.
func NewResolverWithDB(db Querier) *Resolver {
	return &Resolver{db: db}
}

// ResolveDoctor maps a doctor reference to the canonical doctor-record
// id. The reference is tried as a record id first, then as the account
// id behind the doctor role. Pure lookup, no side effects.
func (r *Resolver) ResolveDoctor(ctx context.Context, ref uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID

	err := r.db.QueryRow(ctx, `
		SELECT id FROM doctors WHERE id = $1
	`, ref).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("resolve doctor by record id: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT id FROM doctors WHERE account_id = $1
	`, ref).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrDoctorNotFound
		}
		return uuid.Nil, fmt.Errorf("resolve doctor by account id: %w", err)
	}

	return id, nil
}

// PatientExists reports whether the id belongs to a known patient.
func (r *Resolver) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient exists: %w", err)
	}
	return exists, nil
}
