package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"royalbot/internal/config"
	"royalbot/internal/grant"
	"royalbot/internal/model"
	"royalbot/internal/repository"
	"royalbot/internal/timewin"
)

// PresenceService accumulates daily activity points and pays level rewards.
// Points reset at day rollover; each level reward is granted once per
// account, ever, via the grant registry.
type PresenceService struct {
	counters *repository.CounterRepository
	grants   *grant.Registry
	tw       *timewin.Policy
	cfg      config.PresenceConfig
	levels   []config.PresenceLevel
}

// NewPresenceService creates a PresenceService.
func NewPresenceService(
	counters *repository.CounterRepository,
	grants *grant.Registry,
	tw *timewin.Policy,
	cfg config.PresenceConfig,
	levels []config.PresenceLevel,
) *PresenceService {
	return &PresenceService{
		counters: counters,
		grants:   grants,
		tw:       tw,
		cfg:      cfg,
		levels:   levels,
	}
}

// PresenceResult reports a presence update.
type PresenceResult struct {
	Points  int64 // today's total after the update
	Level   int   // highest level whose threshold today's points meet
	Rewards []*grant.Result
}

// RecordMessage adds message activity points for the account.
func (s *PresenceService) RecordMessage(ctx context.Context, userID int64) (*PresenceResult, error) {
	if _, err := s.counters.Bump(ctx, userID, model.CounterChat, 1, s.tw.DayStart(time.Now())); err != nil {
		return nil, err
	}
	return s.addPoints(ctx, userID, s.cfg.PointsPerMessage)
}

// RecordWatchMinutes adds playback activity points for the account.
func (s *PresenceService) RecordWatchMinutes(ctx context.Context, userID, minutes int64) (*PresenceResult, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("invalid watch minutes %d", minutes)
	}
	if _, err := s.counters.Bump(ctx, userID, model.CounterWatch, minutes, s.tw.DayStart(time.Now())); err != nil {
		return nil, err
	}
	return s.addPoints(ctx, userID, minutes*s.cfg.PointsPerMinute)
}

func (s *PresenceService) addPoints(ctx context.Context, userID, points int64) (*PresenceResult, error) {
	if points <= 0 {
		return s.snapshot(ctx, userID)
	}

	now := time.Now()
	total, err := s.counters.Bump(ctx, userID, model.CounterPresence, points, s.tw.DayStart(now))
	if err != nil {
		return nil, err
	}

	result := &PresenceResult{Points: total}
	for _, level := range s.levels {
		if total < level.Points {
			break
		}
		result.Level = level.Level

		key := fmt.Sprintf("presence:level:%d", level.Level)
		granted, err := s.grants.TryGrant(ctx, userID, key, nil, level.Reward, model.ReasonPresence)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Str("key", key).Msg("Presence level grant failed")
			continue
		}
		if granted.Outcome == grant.OutcomeGranted {
			result.Rewards = append(result.Rewards, granted)
		}
	}
	return result, nil
}

// snapshot reads today's presence state without adding points.
func (s *PresenceService) snapshot(ctx context.Context, userID int64) (*PresenceResult, error) {
	counter, err := s.counters.Get(ctx, userID, model.CounterPresence)
	if err != nil {
		return nil, err
	}
	total := s.tw.StaleToZero(counter.Value, counter.UpdatedAt, time.Now())
	result := &PresenceResult{Points: total}
	for _, level := range s.levels {
		if total < level.Points {
			break
		}
		result.Level = level.Level
	}
	return result, nil
}

// Today returns the current presence state for the account.
func (s *PresenceService) Today(ctx context.Context, userID int64) (*PresenceResult, error) {
	return s.snapshot(ctx, userID)
}
