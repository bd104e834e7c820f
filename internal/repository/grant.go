package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"royalbot/internal/model"
)

// GrantRepository handles the append-only grant history. A (user, key) row
// exists at most once; Insert reports whether this call created it, which is
// the check-and-set primitive the grant registry builds on.
type GrantRepository struct {
	db DBTX
}

// NewGrantRepository creates a new GrantRepository instance.
func NewGrantRepository(db DBTX) *GrantRepository {
	return &GrantRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *GrantRepository) WithTx(tx DBTX) *GrantRepository {
	return &GrantRepository{db: tx}
}

// Get returns the grant for (user, key) or ErrGrantNotFound.
var ErrGrantNotFound = errors.New("grant not found")

// Get retrieves a grant record.
func (r *GrantRepository) Get(ctx context.Context, userID int64, key string) (*model.Grant, error) {
	const query = `
		SELECT user_id, grant_key, amount, created_at
		FROM grants
		WHERE user_id = $1 AND grant_key = $2`

	var g model.Grant
	err := r.db.QueryRow(ctx, query, userID, key).Scan(&g.UserID, &g.Key, &g.Amount, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return &g, nil
}

// Insert adds a grant row, returning false when the key already exists.
// The uniqueness lives in the primary key, so two concurrent inserts for the
// same (user, key) resolve to exactly one winner.
func (r *GrantRepository) Insert(ctx context.Context, userID int64, key string, amount int64) (bool, error) {
	const query = `
		INSERT INTO grants (user_id, grant_key, amount, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, grant_key) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, userID, key, amount)
	if err != nil {
		return false, fmt.Errorf("failed to insert grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Keys lists all grant keys held by a user.
func (r *GrantRepository) Keys(ctx context.Context, userID int64) ([]string, error) {
	const query = `SELECT grant_key FROM grants WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan grant key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}
	return keys, nil
}
