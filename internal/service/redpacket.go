package service

import (
	"context"
	"fmt"

	"royalbot/internal/arbiter"
	"royalbot/internal/config"
	"royalbot/internal/model"
)

// RedPacketService fronts the arbiter for user-funded giveaways.
type RedPacketService struct {
	arbiter *arbiter.Arbiter
	cfg     config.RedPacketConfig
}

// NewRedPacketService creates a RedPacketService.
func NewRedPacketService(arb *arbiter.Arbiter, cfg config.RedPacketConfig) *RedPacketService {
	return &RedPacketService{arbiter: arb, cfg: cfg}
}

// Spawn creates a red packet funded from the creator's wallet.
func (s *RedPacketService) Spawn(ctx context.Context, creatorID, totalValue, totalSlots int64) (*model.Resource, error) {
	if totalValue < s.cfg.MinValue {
		return nil, fmt.Errorf("%w: value %d below minimum %d", arbiter.ErrInvalidResource, totalValue, s.cfg.MinValue)
	}
	if s.cfg.MaxSlots > 0 && totalSlots > s.cfg.MaxSlots {
		return nil, fmt.Errorf("%w: %d slots above maximum %d", arbiter.ErrInvalidResource, totalSlots, s.cfg.MaxSlots)
	}
	return s.arbiter.Spawn(ctx, &creatorID, model.KindRedPacket, totalValue, totalSlots, s.cfg.TTL)
}

// Claim grabs a random share of the packet.
func (s *RedPacketService) Claim(ctx context.Context, packetID string, userID int64) (*arbiter.ClaimResult, error) {
	return s.arbiter.Claim(ctx, packetID, userID)
}

// Summary returns the packet and its claims in claim order.
func (s *RedPacketService) Summary(ctx context.Context, packetID string) (*model.Resource, []*model.ResourceClaim, error) {
	res, err := s.arbiter.Get(ctx, packetID)
	if err != nil {
		return nil, nil, err
	}
	claims, err := s.arbiter.Claims(ctx, packetID)
	if err != nil {
		return nil, nil, err
	}
	return res, claims, nil
}

// SweepExpired expires overdue packets and refunds creators. Meant to run
// on a timer.
func (s *RedPacketService) SweepExpired(ctx context.Context) (int, error) {
	return s.arbiter.SweepExpired(ctx)
}
