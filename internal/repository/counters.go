package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"royalbot/internal/model"
)

// CounterRepository handles per-day counter persistence. Counters are never
// proactively reset at midnight: writes pass the current day boundary so a
// stale row restarts from the delta, and reads return the raw row for the
// caller to run through the time-window staleness check.
type CounterRepository struct {
	db DBTX
}

// NewCounterRepository creates a new CounterRepository instance.
func NewCounterRepository(db DBTX) *CounterRepository {
	return &CounterRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *CounterRepository) WithTx(tx DBTX) *CounterRepository {
	return &CounterRepository{db: tx}
}

// Bump adds delta to a counter, lazily resetting any value last written
// before dayStart. Returns the counter value after the write.
func (r *CounterRepository) Bump(ctx context.Context, userID int64, name string, delta int64, dayStart time.Time) (int64, error) {
	const query = `
		INSERT INTO daily_counters (user_id, name, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, name) DO UPDATE SET
			value = CASE
				WHEN daily_counters.updated_at >= $4 THEN daily_counters.value + $3
				ELSE $3
			END,
			updated_at = NOW()
		RETURNING value`

	var value int64
	if err := r.db.QueryRow(ctx, query, userID, name, delta, dayStart).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to bump counter %s: %w", name, err)
	}
	return value, nil
}

// Get returns the raw stored counter. A missing row reads as a zero value
// with a zero timestamp, which the staleness check also treats as zero.
func (r *CounterRepository) Get(ctx context.Context, userID int64, name string) (*model.DailyCounter, error) {
	const query = `
		SELECT user_id, name, value, updated_at
		FROM daily_counters
		WHERE user_id = $1 AND name = $2`

	var c model.DailyCounter
	err := r.db.QueryRow(ctx, query, userID, name).Scan(&c.UserID, &c.Name, &c.Value, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.DailyCounter{UserID: userID, Name: name}, nil
		}
		return nil, fmt.Errorf("failed to get counter %s: %w", name, err)
	}
	return &c, nil
}

// GetAll returns all stored counters for a user, raw. Callers apply the
// staleness check per row.
func (r *CounterRepository) GetAll(ctx context.Context, userID int64) ([]*model.DailyCounter, error) {
	const query = `
		SELECT user_id, name, value, updated_at
		FROM daily_counters
		WHERE user_id = $1`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get counters: %w", err)
	}
	defer rows.Close()

	var counters []*model.DailyCounter
	for rows.Next() {
		var c model.DailyCounter
		if err := rows.Scan(&c.UserID, &c.Name, &c.Value, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan counter: %w", err)
		}
		counters = append(counters, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counters: %w", err)
	}
	return counters, nil
}

// BuffRepository handles consumable buff charges.
type BuffRepository struct {
	db DBTX
}

// NewBuffRepository creates a new BuffRepository instance.
func NewBuffRepository(db DBTX) *BuffRepository {
	return &BuffRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *BuffRepository) WithTx(tx DBTX) *BuffRepository {
	return &BuffRepository{db: tx}
}

// Add grants charges of a buff.
func (r *BuffRepository) Add(ctx context.Context, userID int64, name string, charges int) error {
	const query = `
		INSERT INTO buffs (user_id, name, charges, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, name)
		DO UPDATE SET charges = buffs.charges + $3, updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, userID, name, charges); err != nil {
		return fmt.Errorf("failed to add buff %s: %w", name, err)
	}
	return nil
}

// Consume decrements one charge. The charge predicate is part of the UPDATE
// so two concurrent consumers can never both spend the last charge. Returns
// whether a charge was spent.
func (r *BuffRepository) Consume(ctx context.Context, userID int64, name string) (bool, error) {
	const query = `
		UPDATE buffs
		SET charges = charges - 1, updated_at = NOW()
		WHERE user_id = $1 AND name = $2 AND charges > 0`

	tag, err := r.db.Exec(ctx, query, userID, name)
	if err != nil {
		return false, fmt.Errorf("failed to consume buff %s: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Charges returns the remaining charges of a buff; missing rows read as zero.
func (r *BuffRepository) Charges(ctx context.Context, userID int64, name string) (int, error) {
	const query = `SELECT charges FROM buffs WHERE user_id = $1 AND name = $2`

	var charges int
	err := r.db.QueryRow(ctx, query, userID, name).Scan(&charges)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get buff charges: %w", err)
	}
	return charges, nil
}

// Active returns all buffs with at least one charge.
func (r *BuffRepository) Active(ctx context.Context, userID int64) ([]*model.Buff, error) {
	const query = `
		SELECT user_id, name, charges, updated_at
		FROM buffs
		WHERE user_id = $1 AND charges > 0`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get buffs: %w", err)
	}
	defer rows.Close()

	var buffs []*model.Buff
	for rows.Next() {
		var b model.Buff
		if err := rows.Scan(&b.UserID, &b.Name, &b.Charges, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan buff: %w", err)
		}
		buffs = append(buffs, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating buffs: %w", err)
	}
	return buffs, nil
}
