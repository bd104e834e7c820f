package reward

import (
	"context"
	"math/rand"

	"github.com/jackc/pgx/v5"

	"royalbot/internal/config"
	"royalbot/internal/model"
	"royalbot/internal/repository"
	"royalbot/internal/vip"
)

// Lucky rolls the bonus multiplier applied to reward payouts. Each roll is
// independent; nothing carries over between events. A lucky_boost buff charge
// is consumed on roll and guarantees at least x2.
type Lucky struct {
	tiers []config.LuckyTier
	buffs *repository.BuffRepository
	rng   func(n int64) int64
}

// NewLucky creates the lucky-multiplier engine.
func NewLucky(tiers []config.LuckyTier, buffs *repository.BuffRepository) *Lucky {
	return &Lucky{tiers: tiers, buffs: buffs, rng: rand.Int63n}
}

// LuckyRoll reports one multiplier draw.
type LuckyRoll struct {
	Multiplier int64
	Boosted    bool // a lucky_boost charge was consumed
}

// Roll draws a multiplier for the given account. The table is checked from
// the rarest band down so overlapping bands resolve to the best multiplier.
// When tx is non-nil the boost charge is consumed inside that transaction,
// so a rolled-back payout does not burn the charge.
func (l *Lucky) Roll(ctx context.Context, tx pgx.Tx, userID int64) (*LuckyRoll, error) {
	boosted := false
	if l.buffs != nil {
		buffs := l.buffs
		if tx != nil {
			buffs = buffs.WithTx(tx)
		}
		var err error
		boosted, err = buffs.Consume(ctx, userID, model.BuffLuckyBoost)
		if err != nil {
			return nil, err
		}
	}

	multiplier := l.roll()
	if boosted && multiplier < 2 {
		multiplier = 2
	}
	return &LuckyRoll{Multiplier: multiplier, Boosted: boosted}, nil
}

func (l *Lucky) roll() int64 {
	draw := l.rng(vip.BpsDenom)
	best := int64(1)
	for _, tier := range l.tiers {
		if draw < tier.ChanceBps && tier.Multiplier > best {
			best = tier.Multiplier
		}
	}
	return best
}
