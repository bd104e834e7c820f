// Package service wires the economy engines into user-facing operations.
// Services return typed results; presentation is left to the caller.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"royalbot/internal/model"
	"royalbot/internal/repository"
	"royalbot/internal/timewin"
)

// Service errors.
var (
	ErrNotAdmin          = errors.New("not an admin")
	ErrInvalidBinding    = errors.New("invalid binding name")
	ErrDailyLimitReached = errors.New("daily limit reached")
	ErrItemNotPlayed     = errors.New("item not played by user")
)

// AccountService handles identity binding and profile reads.
type AccountService struct {
	accounts *repository.AccountRepository
	counters *repository.CounterRepository
	buffs    *repository.BuffRepository
	entries  *repository.LedgerRepository
	tw       *timewin.Policy
}

// NewAccountService creates an AccountService.
func NewAccountService(
	accounts *repository.AccountRepository,
	counters *repository.CounterRepository,
	buffs *repository.BuffRepository,
	entries *repository.LedgerRepository,
	tw *timewin.Policy,
) *AccountService {
	return &AccountService{
		accounts: accounts,
		counters: counters,
		buffs:    buffs,
		entries:  entries,
		tw:       tw,
	}
}

// Bind links the account to an external identity, creating the account on
// first bind. Returns the account and whether it was newly created.
func (s *AccountService) Bind(ctx context.Context, userID int64, linked string) (*model.Account, bool, error) {
	linked = strings.TrimSpace(linked)
	if linked == "" {
		return nil, false, ErrInvalidBinding
	}
	account, created, err := s.accounts.Bind(ctx, userID, linked)
	if err != nil {
		return nil, false, fmt.Errorf("failed to bind account: %w", err)
	}
	return account, created, nil
}

// Get returns the account by id.
func (s *AccountService) Get(ctx context.Context, userID int64) (*model.Account, error) {
	return s.accounts.GetByID(ctx, userID)
}

// Profile is a full account snapshot: balances, today's counters with stale
// values zeroed, and active buffs.
type Profile struct {
	Account  *model.Account
	Counters map[string]int64
	Buffs    []*model.Buff
}

// Profile builds the account snapshot. Counter values from a previous
// policy day read as zero.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	raw, err := s.counters.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	counters := make(map[string]int64, len(raw))
	for _, c := range raw {
		counters[c.Name] = s.tw.StaleToZero(c.Value, c.UpdatedAt, now)
	}

	buffs, err := s.buffs.Active(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Profile{Account: account, Counters: counters, Buffs: buffs}, nil
}

// History returns the most recent ledger entries for the account.
func (s *AccountService) History(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.entries.Recent(ctx, userID, limit)
}

// Top returns the wallet leaderboard.
func (s *AccountService) Top(ctx context.Context, limit int) ([]*model.WalletRank, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.accounts.TopByWallet(ctx, limit)
}
