package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"royalbot/internal/config"
	"royalbot/internal/model"
	"royalbot/internal/pkg/lock"
	"royalbot/internal/repository"
	"royalbot/internal/timewin"
	"royalbot/internal/vip"
)

// InterestService accrues daily interest on the vault balance. Interest is
// computed lazily from the last claim mark, so no scheduler touches
// accounts that never claim.
type InterestService struct {
	pool     *pgxpool.Pool
	accounts *repository.AccountRepository
	entries  *repository.LedgerRepository
	locks    *lock.AccountLock
	tw       *timewin.Policy
	cfg      config.BankConfig
}

// NewInterestService creates an InterestService.
func NewInterestService(
	pool *pgxpool.Pool,
	accounts *repository.AccountRepository,
	entries *repository.LedgerRepository,
	locks *lock.AccountLock,
	tw *timewin.Policy,
	cfg config.BankConfig,
) *InterestService {
	return &InterestService{
		pool:     pool,
		accounts: accounts,
		entries:  entries,
		locks:    locks,
		tw:       tw,
		cfg:      cfg,
	}
}

// InterestResult reports accrued or claimed interest.
type InterestResult struct {
	Days    int64
	Amount  int64
	Capped  bool
	Account *model.Account
}

// Accrued computes the interest the account could claim right now without
// touching anything. The mark falls back to account creation for accounts
// that never claimed.
func (s *InterestService) Accrued(account *model.Account, now time.Time) *InterestResult {
	mark := account.CreatedAt
	if account.InterestMarked != nil {
		mark = *account.InterestMarked
	}

	days := s.tw.ElapsedDays(mark, now)
	if days < 0 {
		days = 0
	}

	amount := days * account.Vault * s.cfg.InterestDailyBps / vip.BpsDenom
	capped := false
	if s.cfg.InterestCap > 0 && amount > s.cfg.InterestCap {
		amount = s.cfg.InterestCap
		capped = true
	}
	return &InterestResult{Days: days, Amount: amount, Capped: capped, Account: account}
}

// Claim pays the accrued interest into the wallet and advances the mark.
// A claim before the first full day elapses is a no-op.
func (s *InterestService) Claim(ctx context.Context, userID int64) (*InterestResult, error) {
	var result *InterestResult
	err := s.locks.WithLock(userID, func() error {
		account, err := s.accounts.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get account: %w", err)
		}

		now := time.Now()
		result = s.Accrued(account, now)
		if result.Days == 0 {
			return nil
		}

		// The mark advances even when the vault was empty, so days with no
		// balance never earn retroactive interest on a later deposit.
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			accounts := s.accounts.WithTx(tx)
			if result.Amount > 0 {
				if result.Account, err = accounts.Credit(ctx, userID, model.PoolWallet, result.Amount); err != nil {
					return err
				}
				if _, err = s.entries.WithTx(tx).Append(ctx, userID, model.PoolWallet, result.Amount, model.ReasonInterest, nil); err != nil {
					return err
				}
			}
			return accounts.SetInterestMark(ctx, userID, now)
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
