package reward

import (
	"context"

	"github.com/rs/zerolog/log"

	"royalbot/internal/grant"
	"royalbot/internal/model"
)

// Achievement is a one-time reward unlocked by an account snapshot
// predicate. The grant registry enforces the once-ever rule.
type Achievement struct {
	Key    string
	Title  string
	Reward int64
	Cond   grant.Condition
}

// defaultAchievements is the built-in achievement table.
var defaultAchievements = []Achievement{
	{
		Key:    "ach:first_checkin",
		Title:  "First Steps",
		Reward: 50,
		Cond:   func(a *model.Account) bool { return a.TotalCheckins >= 1 },
	},
	{
		Key:    "ach:checkins_30",
		Title:  "Regular",
		Reward: 300,
		Cond:   func(a *model.Account) bool { return a.TotalCheckins >= 30 },
	},
	{
		Key:    "ach:earned_10k",
		Title:  "Earner",
		Reward: 500,
		Cond:   func(a *model.Account) bool { return a.LifetimeEarned >= 10000 },
	},
	{
		Key:    "ach:earned_100k",
		Title:  "Tycoon",
		Reward: 2000,
		Cond:   func(a *model.Account) bool { return a.LifetimeEarned >= 100000 },
	},
	{
		Key:    "ach:vault_5k",
		Title:  "Saver",
		Reward: 250,
		Cond:   func(a *model.Account) bool { return a.Vault >= 5000 },
	},
	{
		Key:    "ach:power_100",
		Title:  "Armed",
		Reward: 200,
		Cond:   func(a *model.Account) bool { return a.PowerRating >= 100 },
	},
	{
		Key:    "ach:win_streak_5",
		Title:  "On Fire",
		Reward: 150,
		Cond:   func(a *model.Account) bool { return a.WinStreak >= 5 },
	},
}

// AchievementService evaluates the achievement table against accounts.
type AchievementService struct {
	grants *grant.Registry
	table  []Achievement
}

// NewAchievementService creates an AchievementService with the built-in
// table.
func NewAchievementService(grants *grant.Registry) *AchievementService {
	return &AchievementService{grants: grants, table: defaultAchievements}
}

// Unlocked reports an achievement granted by CheckAll.
type Unlocked struct {
	Achievement Achievement
	Reward      int64
}

// CheckAll evaluates every achievement for the account and grants the ones
// newly earned. Safe to call after any state change; held keys are skipped
// by the registry.
func (s *AchievementService) CheckAll(ctx context.Context, userID int64) ([]Unlocked, error) {
	var unlocked []Unlocked
	for _, ach := range s.table {
		res, err := s.grants.TryGrant(ctx, userID, ach.Key, ach.Cond, ach.Reward, model.ReasonAchievement)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Str("key", ach.Key).Msg("Achievement grant failed")
			continue
		}
		if res.Outcome == grant.OutcomeGranted {
			unlocked = append(unlocked, Unlocked{Achievement: ach, Reward: res.Amount})
		}
	}
	return unlocked, nil
}

// Earned returns the achievement keys the account holds, filtered to the
// known table.
func (s *AchievementService) Earned(ctx context.Context, userID int64) ([]Achievement, error) {
	keys, err := s.grants.Keys(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]bool, len(keys))
	for _, k := range keys {
		held[k] = true
	}
	var earned []Achievement
	for _, ach := range s.table {
		if held[ach.Key] {
			earned = append(earned, ach)
		}
	}
	return earned, nil
}
