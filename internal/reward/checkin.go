// Package reward implements the sibling reward engines: daily check-in,
// gacha boxes, the lucky multiplier, presence levels and vault interest.
// Each engine produces typed results; rendering is the caller's concern.
package reward

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"royalbot/internal/config"
	"royalbot/internal/grant"
	"royalbot/internal/model"
	"royalbot/internal/pkg/lock"
	"royalbot/internal/repository"
	"royalbot/internal/timewin"
	"royalbot/internal/vip"
)

// streakMilestones maps consecutive-day streak lengths to one-time bonuses.
var streakMilestones = []struct {
	Days   int
	Reward int64
}{
	{7, 100},
	{30, 500},
	{100, 2000},
	{365, 10000},
}

// CheckinService handles the once-per-day check-in reward.
type CheckinService struct {
	pool     *pgxpool.Pool
	accounts *repository.AccountRepository
	entries  *repository.LedgerRepository
	grants   *grant.Registry
	locks    *lock.AccountLock
	tw       *timewin.Policy
	lucky    *Lucky
	cfg      config.CheckinConfig
	vipMult  int64
	rng      func(n int64) int64
}

// NewCheckinService creates a CheckinService.
func NewCheckinService(
	pool *pgxpool.Pool,
	accounts *repository.AccountRepository,
	entries *repository.LedgerRepository,
	grants *grant.Registry,
	locks *lock.AccountLock,
	tw *timewin.Policy,
	lucky *Lucky,
	cfg config.CheckinConfig,
	vipMult int64,
) *CheckinService {
	return &CheckinService{
		pool:     pool,
		accounts: accounts,
		entries:  entries,
		grants:   grants,
		locks:    locks,
		tw:       tw,
		lucky:    lucky,
		cfg:      cfg,
		vipMult:  vipMult,
		rng:      rand.Int63n,
	}
}

// CheckinResult reports a check-in attempt. When Already is true no reward
// was paid and NextIn says how long until the window reopens.
type CheckinResult struct {
	Already    bool
	NextIn     time.Duration
	Base       int64
	Multiplier int64
	Amount     int64
	Streak     int
	Total      int
	Milestones []*grant.Result // newly reached streak bonuses
	Account    *model.Account
}

// Checkin claims the daily reward. A second call within the same policy day
// is a no-op; the streak continues only when the previous check-in was the
// immediately preceding day.
func (s *CheckinService) Checkin(ctx context.Context, userID int64) (*CheckinResult, error) {
	var result *CheckinResult
	err := s.locks.WithLock(userID, func() error {
		account, err := s.accounts.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get account: %w", err)
		}

		now := time.Now()
		if account.LastCheckinAt != nil && s.tw.SameDay(*account.LastCheckinAt, now) {
			result = &CheckinResult{
				Already: true,
				NextIn:  s.tw.UntilNextDay(now),
				Streak:  account.CheckinStreak,
				Total:   account.TotalCheckins,
				Account: account,
			}
			return nil
		}

		streak := 1
		if account.LastCheckinAt != nil && s.tw.IsYesterday(*account.LastCheckinAt, now) {
			streak = account.CheckinStreak + 1
		}
		total := account.TotalCheckins + 1

		base := s.cfg.MinReward + s.rng(s.cfg.MaxReward-s.cfg.MinReward+1)
		var (
			roll   *LuckyRoll
			amount int64
		)
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			// The boost charge is consumed in the same transaction as the
			// payout; a rollback leaves it unspent.
			if roll, err = s.lucky.Roll(ctx, tx, userID); err != nil {
				return err
			}
			amount = vip.Amount(base, account.IsVIP, s.vipMult) * roll.Multiplier
			accounts := s.accounts.WithTx(tx)
			if account, err = accounts.Credit(ctx, userID, model.PoolWallet, amount); err != nil {
				return err
			}
			if err = accounts.RecordCheckin(ctx, userID, now, streak, total); err != nil {
				return err
			}
			_, err = s.entries.WithTx(tx).Append(ctx, userID, model.PoolWallet, amount, model.ReasonCheckin, nil)
			return err
		})
		if err != nil {
			return err
		}

		result = &CheckinResult{
			Base:       base,
			Multiplier: roll.Multiplier,
			Amount:     amount,
			Streak:     streak,
			Total:      total,
			Account:    account,
		}

		for _, m := range streakMilestones {
			if streak < m.Days {
				break
			}
			key := fmt.Sprintf("checkin:days:%d", m.Days)
			granted, err := s.grants.TryGrant(ctx, userID, key, nil, m.Reward, model.ReasonAchievement)
			if err != nil {
				log.Error().Err(err).Int64("user_id", userID).Str("key", key).Msg("Streak milestone grant failed")
				continue
			}
			if granted.Outcome == grant.OutcomeGranted {
				result.Milestones = append(result.Milestones, granted)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
