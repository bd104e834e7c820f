package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"royalbot/internal/media"
	"royalbot/internal/model"
	"royalbot/internal/repository"
	"royalbot/internal/reward"
	"royalbot/internal/timewin"
)

// WatchSyncService pulls today's watch minutes from the media service for
// every bound account and feeds the not-yet-credited delta into presence.
// The watch counter records how many minutes have been credited today, so
// repeated sweeps never pay the same minutes twice.
type WatchSyncService struct {
	accounts *repository.AccountRepository
	counters *repository.CounterRepository
	media    media.Client
	presence *reward.PresenceService
	tw       *timewin.Policy
}

// NewWatchSyncService creates a WatchSyncService.
func NewWatchSyncService(
	accounts *repository.AccountRepository,
	counters *repository.CounterRepository,
	mediaClient media.Client,
	presence *reward.PresenceService,
	tw *timewin.Policy,
) *WatchSyncService {
	return &WatchSyncService{
		accounts: accounts,
		counters: counters,
		media:    mediaClient,
		presence: presence,
		tw:       tw,
	}
}

// SyncWatchTime runs one sweep over the bound accounts. Returns how many
// accounts received new watch credit. Per-account failures log and skip;
// the media client already degrades its own errors to zero.
func (s *WatchSyncService) SyncWatchTime(ctx context.Context) (int, error) {
	accounts, err := s.accounts.ListBound(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	credited := 0
	for _, account := range accounts {
		minutes, err := s.media.WatchMinutes(ctx, *account.LinkedAccount)
		if err != nil {
			log.Warn().Err(err).Int64("user_id", account.UserID).Msg("Watch lookup failed")
			continue
		}
		if minutes <= 0 {
			continue
		}

		counter, err := s.counters.Get(ctx, account.UserID, model.CounterWatch)
		if err != nil {
			log.Error().Err(err).Int64("user_id", account.UserID).Msg("Watch counter read failed")
			continue
		}
		delta := minutes - s.tw.StaleToZero(counter.Value, counter.UpdatedAt, now)
		if delta <= 0 {
			continue
		}

		if _, err := s.presence.RecordWatchMinutes(ctx, account.UserID, delta); err != nil {
			log.Error().Err(err).Int64("user_id", account.UserID).Msg("Watch credit failed")
			continue
		}
		credited++
	}
	return credited, nil
}
