package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"royalbot/internal/config"
	"royalbot/internal/ledger"
	"royalbot/internal/model"
	"royalbot/internal/repository"
	"royalbot/internal/timewin"
)

// TransferService wraps wallet transfers with the daily gift allowance.
type TransferService struct {
	ledger   *ledger.Service
	counters *repository.CounterRepository
	tw       *timewin.Policy
	cfg      config.TransferConfig
}

// NewTransferService creates a TransferService.
func NewTransferService(
	ledger *ledger.Service,
	counters *repository.CounterRepository,
	tw *timewin.Policy,
	cfg config.TransferConfig,
) *TransferService {
	return &TransferService{
		ledger:   ledger,
		counters: counters,
		tw:       tw,
		cfg:      cfg,
	}
}

// SendResult reports a completed gift.
type SendResult struct {
	*ledger.TransferResult
	GiftsLeft int64
}

// Send gifts amount from one wallet to another, counting against the
// sender's daily gift allowance. The allowance is reserved first with an
// atomic bump, so concurrent sends race on the counter row instead of on a
// stale read. A rejected or failed transfer returns its reservation.
func (s *TransferService) Send(ctx context.Context, fromID, toID, amount int64) (*SendResult, error) {
	now := time.Now()
	dayStart := s.tw.DayStart(now)

	used, err := s.counters.Bump(ctx, fromID, model.CounterGift, 1, dayStart)
	if err != nil {
		return nil, err
	}
	if s.cfg.DailyGiftLimit > 0 && used > s.cfg.DailyGiftLimit {
		if _, rerr := s.counters.Bump(ctx, fromID, model.CounterGift, -1, dayStart); rerr != nil {
			log.Error().Err(rerr).Int64("user_id", fromID).Msg("Failed to return gift allowance")
		}
		return nil, ErrDailyLimitReached
	}

	result, err := s.ledger.Transfer(ctx, fromID, toID, amount)
	if err != nil {
		if _, rerr := s.counters.Bump(ctx, fromID, model.CounterGift, -1, dayStart); rerr != nil {
			log.Error().Err(rerr).Int64("user_id", fromID).Msg("Failed to return gift allowance")
		}
		return nil, err
	}

	return &SendResult{
		TransferResult: result,
		GiftsLeft:      s.cfg.DailyGiftLimit - used,
	}, nil
}
