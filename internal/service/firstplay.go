package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"royalbot/internal/arbiter"
	"royalbot/internal/config"
	"royalbot/internal/media"
	"royalbot/internal/model"
	"royalbot/internal/repository"
)

// FirstPlayService runs the first-N-players race on new media items. When an
// item lands in the library a system pot is opened; the first accounts to
// actually play it split the pot in fixed equal shares.
type FirstPlayService struct {
	arbiter   *arbiter.Arbiter
	resources *repository.ResourceRepository
	accounts  *repository.AccountRepository
	media     media.Client
	cfg       config.FirstPlayConfig
	ttl       time.Duration
}

// NewFirstPlayService creates a FirstPlayService. Pots expire on the same
// TTL as red packets.
func NewFirstPlayService(
	arb *arbiter.Arbiter,
	resources *repository.ResourceRepository,
	accounts *repository.AccountRepository,
	mediaClient media.Client,
	cfg config.FirstPlayConfig,
	ttl time.Duration,
) *FirstPlayService {
	return &FirstPlayService{
		arbiter:   arb,
		resources: resources,
		accounts:  accounts,
		media:     mediaClient,
		cfg:       cfg,
		ttl:       ttl,
	}
}

// EnsureRace opens the first-play pot for the item if none exists. Racing
// callers resolve through the item registration: the loser's freshly
// spawned pot is never registered and simply expires unclaimed.
func (s *FirstPlayService) EnsureRace(ctx context.Context, itemID string) (string, error) {
	resourceID, found, err := s.resources.FirstPlayResource(ctx, itemID)
	if err != nil {
		return "", err
	}
	if found {
		return resourceID, nil
	}

	res, err := s.arbiter.Spawn(ctx, nil, model.KindFirstPlay, s.cfg.Reward, s.cfg.Slots, s.ttl)
	if err != nil {
		return "", err
	}
	registered, err := s.resources.RegisterFirstPlay(ctx, itemID, res.ID)
	if err != nil {
		return "", err
	}
	if !registered {
		resourceID, _, err = s.resources.FirstPlayResource(ctx, itemID)
		return resourceID, err
	}

	log.Info().Str("item_id", itemID).Str("resource_id", res.ID).Msg("First-play race opened")
	return res.ID, nil
}

// SyncNewItems opens races for library items added since the given time and
// returns how many new races started.
func (s *FirstPlayService) SyncNewItems(ctx context.Context, since time.Time) (int, error) {
	items, err := s.media.ListRecentItems(ctx, since)
	if err != nil {
		return 0, err
	}
	opened := 0
	for _, item := range items {
		if _, found, err := s.resources.FirstPlayResource(ctx, item.ID); err != nil {
			return opened, err
		} else if found {
			continue
		}
		if _, err := s.EnsureRace(ctx, item.ID); err != nil {
			log.Error().Err(err).Str("item_id", item.ID).Msg("Failed to open first-play race")
			continue
		}
		opened++
	}
	return opened, nil
}

// Claim pays the account its first-play share if it has actually played the
// item. Playback is verified against the media service using the account's
// linked identity.
func (s *FirstPlayService) Claim(ctx context.Context, itemID string, userID int64) (*arbiter.ClaimResult, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !account.Bound() {
		return nil, ErrItemNotPlayed
	}

	players, err := s.media.WhoHasPlayed(ctx, itemID)
	if err != nil {
		return nil, err
	}
	played := false
	for _, p := range players {
		if account.LinkedAccount != nil && p == *account.LinkedAccount {
			played = true
			break
		}
	}
	if !played {
		return nil, ErrItemNotPlayed
	}

	resourceID, found, err := s.resources.FirstPlayResource(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, arbiter.ErrResourceNotFound
	}
	return s.arbiter.Claim(ctx, resourceID, userID)
}
