package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"royalbot/internal/arbiter"
	"royalbot/internal/config"
	"royalbot/internal/ledger"
	"royalbot/internal/model"
	"royalbot/internal/repository"
)

// AdminService handles privileged operations. Every call checks the caller
// against the configured admin list; mutations go through the ledger so
// admin money is as audited as everyone else's.
type AdminService struct {
	cfg        *config.Config
	ledger     *ledger.Service
	accounts   *repository.AccountRepository
	buffs      *repository.BuffRepository
	arbiter    *arbiter.Arbiter
	airdropTTL time.Duration
}

// NewAdminService creates an AdminService.
func NewAdminService(
	cfg *config.Config,
	ledger *ledger.Service,
	accounts *repository.AccountRepository,
	buffs *repository.BuffRepository,
	arb *arbiter.Arbiter,
	airdropTTL time.Duration,
) *AdminService {
	return &AdminService{
		cfg:        cfg,
		ledger:     ledger,
		accounts:   accounts,
		buffs:      buffs,
		arbiter:    arb,
		airdropTTL: airdropTTL,
	}
}

// Grant mints amount into the target's wallet.
func (s *AdminService) Grant(ctx context.Context, adminID, targetID, amount int64) (*model.Account, error) {
	if !s.cfg.IsAdmin(adminID) {
		return nil, ErrNotAdmin
	}
	account, err := s.ledger.Credit(ctx, targetID, model.PoolWallet, amount, model.ReasonAdminGrant, nil)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("admin_id", adminID).Int64("target_id", targetID).Int64("amount", amount).Msg("Admin grant")
	return account, nil
}

// Burn destroys amount from the target's wallet.
func (s *AdminService) Burn(ctx context.Context, adminID, targetID, amount int64) (*model.Account, error) {
	if !s.cfg.IsAdmin(adminID) {
		return nil, ErrNotAdmin
	}
	account, err := s.ledger.Debit(ctx, targetID, model.PoolWallet, amount, model.ReasonAdminBurn, nil)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("admin_id", adminID).Int64("target_id", targetID).Int64("amount", amount).Msg("Admin burn")
	return account, nil
}

// SetVIP toggles VIP status on the target account.
func (s *AdminService) SetVIP(ctx context.Context, adminID, targetID int64, isVIP bool) error {
	if !s.cfg.IsAdmin(adminID) {
		return ErrNotAdmin
	}
	if err := s.accounts.SetVIP(ctx, targetID, isVIP); err != nil {
		return err
	}
	log.Info().Int64("admin_id", adminID).Int64("target_id", targetID).Bool("vip", isVIP).Msg("Admin VIP change")
	return nil
}

// Airdrop spawns a system-funded claimable pot. Nothing is debited; the pot
// mints value the way admin grants do, split across the first claimants.
func (s *AdminService) Airdrop(ctx context.Context, adminID, totalValue, totalSlots int64) (*model.Resource, error) {
	if !s.cfg.IsAdmin(adminID) {
		return nil, ErrNotAdmin
	}
	resource, err := s.arbiter.Spawn(ctx, nil, model.KindAirdrop, totalValue, totalSlots, s.airdropTTL)
	if err != nil {
		return nil, err
	}
	log.Info().Int64("admin_id", adminID).Str("resource_id", resource.ID).Int64("value", totalValue).Int64("slots", totalSlots).Msg("Admin airdrop")
	return resource, nil
}

// GrantBuff gives the target account buff charges.
func (s *AdminService) GrantBuff(ctx context.Context, adminID, targetID int64, name string, charges int) error {
	if !s.cfg.IsAdmin(adminID) {
		return ErrNotAdmin
	}
	return s.buffs.Add(ctx, targetID, name, charges)
}
