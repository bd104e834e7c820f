package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"royalbot/internal/config"
	"royalbot/internal/ledger"
	"royalbot/internal/model"
	"royalbot/internal/pkg/lock"
	"royalbot/internal/repository"
	"royalbot/internal/timewin"
	"royalbot/internal/vip"
)

// ForgeService handles weapon forging: pay the cost, roll for success, gain
// or lose power rating.
type ForgeService struct {
	pool     *pgxpool.Pool
	accounts *repository.AccountRepository
	counters *repository.CounterRepository
	buffs    *repository.BuffRepository
	entries  *repository.LedgerRepository
	locks    *lock.AccountLock
	tw       *timewin.Policy
	cfg      config.ForgeConfig
	rng      func(n int64) int64
}

// NewForgeService creates a ForgeService.
func NewForgeService(
	pool *pgxpool.Pool,
	accounts *repository.AccountRepository,
	counters *repository.CounterRepository,
	buffs *repository.BuffRepository,
	entries *repository.LedgerRepository,
	locks *lock.AccountLock,
	tw *timewin.Policy,
	cfg config.ForgeConfig,
) *ForgeService {
	return &ForgeService{
		pool:     pool,
		accounts: accounts,
		counters: counters,
		buffs:    buffs,
		entries:  entries,
		locks:    locks,
		tw:       tw,
		cfg:      cfg,
		rng:      rand.Int63n,
	}
}

// ForgeResult reports one forge attempt.
type ForgeResult struct {
	Success    bool
	Guaranteed bool  // a premium charge forced the success
	PowerDelta int64
	NewPower   int64
	Cost       int64 // 0 when a free-forge buff covered it
	Shielded   bool  // a shield charge absorbed the failure penalty
	WinStreak  int
	LoseStreak int
	ForgesLeft int64
}

// Forge runs one attempt. Success adds power and extends the win streak;
// failure costs power unless a shield charge absorbs it, and extends the
// lose streak. Cost, roll outcome and counter bump commit atomically.
func (s *ForgeService) Forge(ctx context.Context, userID int64) (*ForgeResult, error) {
	var result *ForgeResult
	err := s.locks.WithLock(userID, func() error {
		if _, err := s.accounts.GetByID(ctx, userID); err != nil {
			return fmt.Errorf("failed to get account: %w", err)
		}

		now := time.Now()
		counter, err := s.counters.Get(ctx, userID, model.CounterForge)
		if err != nil {
			return err
		}
		used := s.tw.StaleToZero(counter.Value, counter.UpdatedAt, now)
		if s.cfg.DailyLimit > 0 && used >= s.cfg.DailyLimit {
			return ErrDailyLimitReached
		}

		success := s.rng(vip.BpsDenom) < s.cfg.SuccessBps
		delta := s.cfg.MinPower
		if s.cfg.MaxPower > s.cfg.MinPower {
			delta += s.rng(s.cfg.MaxPower - s.cfg.MinPower + 1)
		}

		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			accounts := s.accounts.WithTx(tx)
			buffs := s.buffs.WithTx(tx)
			entries := s.entries.WithTx(tx)

			// Premium charges cover the cost and force success; plain
			// free-forge charges only cover the cost.
			premium, err := buffs.Consume(ctx, userID, model.BuffFreeForgePro)
			if err != nil {
				return err
			}
			free := premium
			if !free {
				if free, err = buffs.Consume(ctx, userID, model.BuffFreeForge); err != nil {
					return err
				}
			}
			if premium {
				success = true
			}
			cost := s.cfg.Cost
			if free {
				cost = 0
			}
			if cost > 0 {
				if _, err := accounts.Debit(ctx, userID, model.PoolWallet, cost); err != nil {
					if errors.Is(err, repository.ErrInsufficientPool) {
						return ledger.ErrInsufficientFunds
					}
					return err
				}
				if _, err := entries.Append(ctx, userID, model.PoolWallet, -cost, model.ReasonForgeCost, nil); err != nil {
					return err
				}
			}

			result = &ForgeResult{Success: success, Guaranteed: premium, Cost: cost}
			if success {
				result.PowerDelta = delta
				if result.NewPower, err = accounts.AddPower(ctx, userID, delta); err != nil {
					return err
				}
				if result.WinStreak, err = accounts.RecordWin(ctx, userID); err != nil {
					return err
				}
			} else {
				shielded, err := buffs.Consume(ctx, userID, model.BuffShield)
				if err != nil {
					return err
				}
				result.Shielded = shielded
				if !shielded {
					result.PowerDelta = -delta
				}
				if result.NewPower, err = accounts.AddPower(ctx, userID, result.PowerDelta); err != nil {
					return err
				}
				if result.LoseStreak, err = accounts.RecordLoss(ctx, userID); err != nil {
					return err
				}
			}

			used, err = s.counters.WithTx(tx).Bump(ctx, userID, model.CounterForge, 1, s.tw.DayStart(now))
			if err != nil {
				return err
			}
			result.ForgesLeft = s.cfg.DailyLimit - used
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
