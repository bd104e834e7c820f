// Package grant implements the grant-once registry. A grant key identifies a
// reward that each account may receive at most once ever, no matter how many
// concurrent attempts race for it.
package grant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"royalbot/internal/model"
	"royalbot/internal/repository"
)

// Outcome classifies the result of a grant attempt.
type Outcome int

const (
	// OutcomeGranted means this attempt won: the grant was recorded and the
	// reward credited.
	OutcomeGranted Outcome = iota
	// OutcomeAlreadyGranted means the key was already held, either from an
	// earlier call or from a concurrent attempt that committed first.
	OutcomeAlreadyGranted
	// OutcomeConditionNotMet means the eligibility predicate rejected the
	// account; nothing was recorded.
	OutcomeConditionNotMet
)

// Result reports a grant attempt. Amount is the reward credited by this
// attempt when granted, or the originally recorded amount when the key was
// already held.
type Result struct {
	Outcome Outcome
	Key     string
	Amount  int64
}

// Condition is an eligibility predicate evaluated against the current
// account snapshot. A nil Condition always passes.
type Condition func(*model.Account) bool

// Registry arbitrates grant-once rewards. The uniqueness decision is made by
// the grants table primary key, so concurrent attempts for the same
// (account, key) pair resolve to exactly one winner regardless of process
// count.
type Registry struct {
	pool     *pgxpool.Pool
	accounts *repository.AccountRepository
	grants   *repository.GrantRepository
	entries  *repository.LedgerRepository
}

// NewRegistry creates a grant Registry.
func NewRegistry(
	pool *pgxpool.Pool,
	accounts *repository.AccountRepository,
	grants *repository.GrantRepository,
	entries *repository.LedgerRepository,
) *Registry {
	return &Registry{
		pool:     pool,
		accounts: accounts,
		grants:   grants,
		entries:  entries,
	}
}

// TryGrant attempts to give the account the reward identified by key.
// The condition check, the uniqueness insert and the wallet credit commit
// atomically: a duplicate key leaves the balance untouched, and a storage
// failure after the insert rolls the insert back.
func (r *Registry) TryGrant(ctx context.Context, userID int64, key string, cond Condition, reward int64, reason string) (*Result, error) {
	if reward < 0 {
		return nil, fmt.Errorf("negative grant reward %d for key %q", reward, key)
	}

	// Membership is decided before eligibility: a key granted earlier stays
	// AlreadyGranted even when the predicate no longer holds for the account.
	prior, err := r.grants.Get(ctx, userID, key)
	if err == nil {
		return &Result{Outcome: OutcomeAlreadyGranted, Key: key, Amount: prior.Amount}, nil
	}
	if !errors.Is(err, repository.ErrGrantNotFound) {
		return nil, err
	}

	account, err := r.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if cond != nil && !cond(account) {
		return &Result{Outcome: OutcomeConditionNotMet, Key: key}, nil
	}

	var result *Result
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		created, err := r.grants.WithTx(tx).Insert(ctx, userID, key, reward)
		if err != nil {
			return err
		}
		if !created {
			prior, err := r.grants.Get(ctx, userID, key)
			if err != nil {
				if errors.Is(err, repository.ErrGrantNotFound) {
					// Lost the race inside an uncommitted sibling; report
					// duplicate without an amount rather than block on it.
					result = &Result{Outcome: OutcomeAlreadyGranted, Key: key}
					return nil
				}
				return err
			}
			result = &Result{Outcome: OutcomeAlreadyGranted, Key: key, Amount: prior.Amount}
			return nil
		}

		if reward > 0 {
			if _, err := r.accounts.WithTx(tx).Credit(ctx, userID, model.PoolWallet, reward); err != nil {
				return err
			}
			ref := key
			if _, err := r.entries.WithTx(tx).Append(ctx, userID, model.PoolWallet, reward, reason, &ref); err != nil {
				return err
			}
		}
		result = &Result{Outcome: OutcomeGranted, Key: key, Amount: reward}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Has reports whether the account already holds the grant key.
func (r *Registry) Has(ctx context.Context, userID int64, key string) (bool, error) {
	_, err := r.grants.Get(ctx, userID, key)
	if err != nil {
		if errors.Is(err, repository.ErrGrantNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Keys returns all grant keys held by the account.
func (r *Registry) Keys(ctx context.Context, userID int64) ([]string, error) {
	return r.grants.Keys(ctx, userID)
}
