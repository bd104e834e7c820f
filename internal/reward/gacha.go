package reward

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
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

// Gacha engine errors.
var (
	ErrDailyLimitReached = errors.New("daily limit reached")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// GachaService handles box draws with a pity counter: every miss of a rare
// band increments pity, and reaching the threshold forces the next draw rare.
type GachaService struct {
	pool     *pgxpool.Pool
	accounts *repository.AccountRepository
	counters *repository.CounterRepository
	buffs    *repository.BuffRepository
	entries  *repository.LedgerRepository
	locks    *lock.AccountLock
	tw       *timewin.Policy
	lucky    *Lucky
	cfg      config.GachaConfig
	tiers    []config.GachaTier
	vipMult  int64
	rng      func(n int64) int64
}

// NewGachaService creates a GachaService.
func NewGachaService(
	pool *pgxpool.Pool,
	accounts *repository.AccountRepository,
	counters *repository.CounterRepository,
	buffs *repository.BuffRepository,
	entries *repository.LedgerRepository,
	locks *lock.AccountLock,
	tw *timewin.Policy,
	lucky *Lucky,
	cfg config.GachaConfig,
	tiers []config.GachaTier,
	vipMult int64,
) *GachaService {
	return &GachaService{
		pool:     pool,
		accounts: accounts,
		counters: counters,
		buffs:    buffs,
		entries:  entries,
		locks:    locks,
		tw:       tw,
		lucky:    lucky,
		cfg:      cfg,
		tiers:    tiers,
		vipMult:  vipMult,
		rng:      rand.Int63n,
	}
}

// DrawResult reports one box draw.
type DrawResult struct {
	Tier       string
	Rare       bool
	PityBreak  bool // the pity threshold forced this rare
	Multiplier int64
	Reward     int64
	Cost       int64 // 0 when a free-draw buff was consumed
	Pity       int   // counter value after the draw
	DrawsLeft  int64
	Account    *model.Account
}

// Draw opens one box. The cost debit, reward credit, pity update and daily
// counter bump commit together, so a failed draw consumes nothing.
func (s *GachaService) Draw(ctx context.Context, userID int64) (*DrawResult, error) {
	var result *DrawResult
	err := s.locks.WithLock(userID, func() error {
		account, err := s.accounts.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get account: %w", err)
		}

		now := time.Now()
		counter, err := s.counters.Get(ctx, userID, model.CounterBox)
		if err != nil {
			return err
		}
		used := s.tw.StaleToZero(counter.Value, counter.UpdatedAt, now)
		if used >= s.cfg.DailyLimit {
			return ErrDailyLimitReached
		}

		pityBreak := account.PityCounter+1 >= s.cfg.PityThreshold
		tier := s.draw(pityBreak)
		base := tier.MinReward
		if tier.MaxReward > tier.MinReward {
			base += s.rng(tier.MaxReward - tier.MinReward + 1)
		}
		base = vip.Amount(base, account.IsVIP, s.vipMult)

		pity := account.PityCounter + 1
		if tier.Rare {
			pity = 0
		}

		var (
			cost   int64
			reward int64
			roll   *LuckyRoll
		)
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			accounts := s.accounts.WithTx(tx)
			entries := s.entries.WithTx(tx)

			// Consume a free-draw charge inside the transaction so a failed
			// draw does not burn it.
			free, err := s.buffs.WithTx(tx).Consume(ctx, userID, model.BuffGachaDraw)
			if err != nil {
				return err
			}
			cost = s.cfg.Cost
			if free {
				cost = 0
			}

			if roll, err = s.lucky.Roll(ctx, tx, userID); err != nil {
				return err
			}
			reward = base * roll.Multiplier

			if cost > 0 {
				if _, err := accounts.Debit(ctx, userID, model.PoolWallet, cost); err != nil {
					if errors.Is(err, repository.ErrInsufficientPool) {
						return ErrInsufficientFunds
					}
					return err
				}
				if _, err := entries.Append(ctx, userID, model.PoolWallet, -cost, model.ReasonGachaCost, nil); err != nil {
					return err
				}
				if _, err := s.counters.WithTx(tx).Bump(ctx, userID, model.CounterBoxBuy, 1, s.tw.DayStart(now)); err != nil {
					return err
				}
			}
			if account, err = accounts.Credit(ctx, userID, model.PoolWallet, reward); err != nil {
				return err
			}
			ref := tier.Name
			if _, err = entries.Append(ctx, userID, model.PoolWallet, reward, model.ReasonGacha, &ref); err != nil {
				return err
			}
			if err = accounts.SetPity(ctx, userID, pity); err != nil {
				return err
			}
			used, err = s.counters.WithTx(tx).Bump(ctx, userID, model.CounterBox, 1, s.tw.DayStart(now))
			return err
		})
		if err != nil {
			return err
		}

		result = &DrawResult{
			Tier:       tier.Name,
			Rare:       tier.Rare,
			PityBreak:  pityBreak && tier.Rare,
			Multiplier: roll.Multiplier,
			Reward:     reward,
			Cost:       cost,
			Pity:       pity,
			DrawsLeft:  s.cfg.DailyLimit - used,
			Account:    account,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// draw picks a tier by weight; forced draws pick the first rare band.
func (s *GachaService) draw(forced bool) config.GachaTier {
	if forced {
		for _, tier := range s.tiers {
			if tier.Rare {
				return tier
			}
		}
	}
	roll := s.rng(vip.BpsDenom)
	var acc int64
	for _, tier := range s.tiers {
		acc += tier.WeightBps
		if roll < acc {
			return tier
		}
	}
	// Weights short of 10000 fall through to the last band.
	return s.tiers[len(s.tiers)-1]
}
