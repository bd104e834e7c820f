package repository

import (
	"context"
	"fmt"
	"time"

	"royalbot/internal/model"
)

// LedgerRepository handles ledger entry persistence.
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *LedgerRepository) WithTx(tx DBTX) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

// Append records a balance change.
func (r *LedgerRepository) Append(ctx context.Context, userID int64, pool model.Pool, amount int64, reason string, ref *string) (*model.LedgerEntry, error) {
	const query = `
		INSERT INTO ledger_entries (user_id, pool, amount, reason, ref, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, user_id, pool, amount, reason, ref, created_at`

	var e model.LedgerEntry
	err := r.db.QueryRow(ctx, query, userID, pool, amount, reason, ref).Scan(
		&e.ID, &e.UserID, &e.Pool, &e.Amount, &e.Reason, &e.Ref, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return &e, nil
}

// Recent retrieves a user's latest entries, newest first.
func (r *LedgerRepository) Recent(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, user_id, pool, amount, reason, ref, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Pool, &e.Amount, &e.Reason, &e.Ref, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// SumByReason returns the net amount for a user and reason within [from, to).
// Used for audit checks alongside the lifetime counters.
func (r *LedgerRepository) SumByReason(ctx context.Context, userID int64, reason string, from, to time.Time) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE user_id = $1 AND reason = $2 AND created_at >= $3 AND created_at < $4`

	var sum int64
	if err := r.db.QueryRow(ctx, query, userID, reason, from, to).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}
