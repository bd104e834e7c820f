// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrIdentityTaken    = errors.New("identity already bound to another account")
	ErrInsufficientPool = errors.New("insufficient pool balance")
	ErrResourceNotFound = errors.New("resource not found")
)

// DBTX is the subset of pgxpool.Pool and pgx.Tx the repositories need.
// Repositories are constructed against the pool and rebound to a transaction
// with WithTx when an operation must be atomic across tables.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
