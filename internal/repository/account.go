package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"royalbot/internal/model"
)

const accountColumns = `
	user_id, linked_account, wallet, vault, lifetime_earned, lifetime_spent,
	is_vip, power_rating, equipped_item, last_checkin_at, checkin_streak,
	total_checkins, win_streak, lose_streak, pity_counter, interest_marked_at,
	created_at, updated_at`

// AccountRepository handles account persistence.
type AccountRepository struct {
	db DBTX
}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AccountRepository) WithTx(tx DBTX) *AccountRepository {
	return &AccountRepository{db: tx}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.UserID, &a.LinkedAccount, &a.Wallet, &a.Vault, &a.LifetimeEarned,
		&a.LifetimeSpent, &a.IsVIP, &a.PowerRating, &a.EquippedItem,
		&a.LastCheckinAt, &a.CheckinStreak, &a.TotalCheckins, &a.WinStreak,
		&a.LoseStreak, &a.PityCounter, &a.InterestMarked, &a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create creates a new account with the given linked external identity.
// Balances start at zero; accounts exist only once an identity is bound.
func (r *AccountRepository) Create(ctx context.Context, userID int64, linked string) (*model.Account, error) {
	query := `
		INSERT INTO accounts (user_id, linked_account, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRow(ctx, query, userID, linked))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return a, nil
}

// GetByID retrieves an account by user id.
// Returns ErrAccountNotFound if it does not exist.
func (r *AccountRepository) GetByID(ctx context.Context, userID int64) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	a, err := scanAccount(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// isLinkedTaken reports whether err is the unique violation on the
// linked-identity index.
func isLinkedTaken(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" && // unique violation
		pgErr.ConstraintName == "idx_accounts_linked"
}

// Bind sets the linked external identity, creating the account when absent.
// Returns the account and whether it was newly created. An identity already
// bound to a different account returns ErrIdentityTaken.
func (r *AccountRepository) Bind(ctx context.Context, userID int64, linked string) (*model.Account, bool, error) {
	a, err := r.GetByID(ctx, userID)
	if err == nil {
		query := `
			UPDATE accounts SET linked_account = $2, updated_at = NOW()
			WHERE user_id = $1
			RETURNING ` + accountColumns
		a, err = scanAccount(r.db.QueryRow(ctx, query, userID, linked))
		if err != nil {
			if isLinkedTaken(err) {
				return nil, false, ErrIdentityTaken
			}
			return nil, false, fmt.Errorf("failed to rebind account: %w", err)
		}
		return a, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	a, err = r.Create(ctx, userID, linked)
	if err != nil {
		if isLinkedTaken(err) {
			return nil, false, ErrIdentityTaken
		}
		// Race: another request created the account first.
		a, err = r.GetByID(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return a, false, nil
	}
	return a, true, nil
}

// ListBound returns the accounts with a linked external identity.
func (r *AccountRepository) ListBound(ctx context.Context) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE linked_account IS NOT NULL`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bound accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// Exists checks if an account with the given user id exists.
func (r *AccountRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM accounts WHERE user_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}

func poolColumn(pool model.Pool) (string, error) {
	switch pool {
	case model.PoolWallet:
		return "wallet", nil
	case model.PoolVault:
		return "vault", nil
	default:
		return "", fmt.Errorf("unknown pool %q", pool)
	}
}

// Credit increases a balance pool and lifetime_earned by amount.
func (r *AccountRepository) Credit(ctx context.Context, userID int64, pool model.Pool, amount int64) (*model.Account, error) {
	col, err := poolColumn(pool)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE accounts
		SET %s = %s + $2, lifetime_earned = lifetime_earned + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+accountColumns, col, col)

	a, err := scanAccount(r.db.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to credit %s: %w", col, err)
	}
	return a, nil
}

// Debit decreases a balance pool and increases lifetime_spent by amount.
// The balance predicate is part of the UPDATE so two concurrent debits can
// never both pass a stale read; a shortfall returns ErrInsufficientPool with
// no mutation.
func (r *AccountRepository) Debit(ctx context.Context, userID int64, pool model.Pool, amount int64) (*model.Account, error) {
	col, err := poolColumn(pool)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE accounts
		SET %s = %s - $2, lifetime_spent = lifetime_spent + $2, updated_at = NOW()
		WHERE user_id = $1 AND %s >= $2
		RETURNING `+accountColumns, col, col, col)

	a, err := scanAccount(r.db.QueryRow(ctx, query, userID, amount))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to debit %s: %w", col, err)
	}

	// No row matched: either the account is missing or the pool is short.
	exists, exErr := r.Exists(ctx, userID)
	if exErr != nil {
		return nil, exErr
	}
	if !exists {
		return nil, ErrAccountNotFound
	}
	return nil, ErrInsufficientPool
}

// SetVIP sets the VIP flag.
func (r *AccountRepository) SetVIP(ctx context.Context, userID int64, isVIP bool) error {
	const query = `UPDATE accounts SET is_vip = $2, updated_at = NOW() WHERE user_id = $1`

	tag, err := r.db.Exec(ctx, query, userID, isVIP)
	if err != nil {
		return fmt.Errorf("failed to set vip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetEquipped sets (or clears) the equipped item reference.
func (r *AccountRepository) SetEquipped(ctx context.Context, userID int64, item *string) error {
	const query = `UPDATE accounts SET equipped_item = $2, updated_at = NOW() WHERE user_id = $1`

	tag, err := r.db.Exec(ctx, query, userID, item)
	if err != nil {
		return fmt.Errorf("failed to set equipped item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// AddPower adjusts the power rating, clamping at zero.
func (r *AccountRepository) AddPower(ctx context.Context, userID int64, delta int64) (int64, error) {
	const query = `
		UPDATE accounts
		SET power_rating = GREATEST(power_rating + $2, 0), updated_at = NOW()
		WHERE user_id = $1
		RETURNING power_rating`

	var power int64
	err := r.db.QueryRow(ctx, query, userID, delta).Scan(&power)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to add power: %w", err)
	}
	return power, nil
}

// RecordCheckin persists the check-in timestamp and streak counters.
func (r *AccountRepository) RecordCheckin(ctx context.Context, userID int64, at time.Time, streak, total int) error {
	const query = `
		UPDATE accounts
		SET last_checkin_at = $2, checkin_streak = $3, total_checkins = $4, updated_at = NOW()
		WHERE user_id = $1`

	tag, err := r.db.Exec(ctx, query, userID, at, streak, total)
	if err != nil {
		return fmt.Errorf("failed to record checkin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetPity persists the gacha pity counter.
func (r *AccountRepository) SetPity(ctx context.Context, userID int64, pity int) error {
	const query = `UPDATE accounts SET pity_counter = $2, updated_at = NOW() WHERE user_id = $1`

	tag, err := r.db.Exec(ctx, query, userID, pity)
	if err != nil {
		return fmt.Errorf("failed to set pity counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// RecordWin increments the win streak and resets the lose streak.
func (r *AccountRepository) RecordWin(ctx context.Context, userID int64) (int, error) {
	const query = `
		UPDATE accounts
		SET win_streak = win_streak + 1, lose_streak = 0, updated_at = NOW()
		WHERE user_id = $1
		RETURNING win_streak`

	var streak int
	err := r.db.QueryRow(ctx, query, userID).Scan(&streak)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to record win: %w", err)
	}
	return streak, nil
}

// RecordLoss increments the lose streak and resets the win streak.
func (r *AccountRepository) RecordLoss(ctx context.Context, userID int64) (int, error) {
	const query = `
		UPDATE accounts
		SET lose_streak = lose_streak + 1, win_streak = 0, updated_at = NOW()
		WHERE user_id = $1
		RETURNING lose_streak`

	var streak int
	err := r.db.QueryRow(ctx, query, userID).Scan(&streak)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to record loss: %w", err)
	}
	return streak, nil
}

// SetInterestMark moves the interest accrual marker.
func (r *AccountRepository) SetInterestMark(ctx context.Context, userID int64, at time.Time) error {
	const query = `UPDATE accounts SET interest_marked_at = $2, updated_at = NOW() WHERE user_id = $1`

	tag, err := r.db.Exec(ctx, query, userID, at)
	if err != nil {
		return fmt.Errorf("failed to set interest mark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// TopByWallet retrieves the top N accounts by wallet balance.
func (r *AccountRepository) TopByWallet(ctx context.Context, limit int) ([]*model.WalletRank, error) {
	const query = `
		SELECT user_id, wallet, vault
		FROM accounts
		ORDER BY wallet DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top accounts: %w", err)
	}
	defer rows.Close()

	var ranks []*model.WalletRank
	for rows.Next() {
		var rank model.WalletRank
		if err := rows.Scan(&rank.UserID, &rank.Wallet, &rank.Vault); err != nil {
			return nil, fmt.Errorf("failed to scan rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranks: %w", err)
	}
	return ranks, nil
}
