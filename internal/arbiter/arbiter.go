// Package arbiter resolves races over contested resources: red packets,
// airdrops and first-N-players pots. Many claimants race for a finite number
// of slots; the arbiter guarantees exactly one winner per slot, one claim per
// claimant, and exact conservation of the pot.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"royalbot/internal/model"
	"royalbot/internal/repository"
)

// Arbiter errors.
var (
	ErrInvalidResource   = errors.New("invalid resource parameters")
	ErrInsufficientFunds = errors.New("insufficient funds to fund resource")
	ErrResourceNotFound  = errors.New("resource not found")
)

// ClaimStatus classifies the outcome of a claim attempt.
type ClaimStatus int

const (
	// ClaimWon means the claimant secured a slot and was credited.
	ClaimWon ClaimStatus = iota
	// ClaimAlreadyClaimed means the claimant already holds a slot on this
	// resource; Amount carries the originally won share.
	ClaimAlreadyClaimed
	// ClaimExhausted means all slots were taken before this attempt.
	ClaimExhausted
	// ClaimExpired means the resource deadline passed.
	ClaimExpired
	// ClaimSelfClaim means the claimant created the resource.
	ClaimSelfClaim
)

// ClaimResult reports a claim attempt.
type ClaimResult struct {
	Status    ClaimStatus
	Amount    int64
	Resource  *model.Resource
	SlotsLeft int64
}

// Arbiter coordinates resource lifecycle. All claim decisions happen inside
// a transaction holding a row lock on the resource, so two claimants can
// never observe the same remaining state.
type Arbiter struct {
	pool      *pgxpool.Pool
	accounts  *repository.AccountRepository
	resources *repository.ResourceRepository
	entries   *repository.LedgerRepository
	rng       func(n int64) int64
}

// New creates an Arbiter.
func New(
	pool *pgxpool.Pool,
	accounts *repository.AccountRepository,
	resources *repository.ResourceRepository,
	entries *repository.LedgerRepository,
) *Arbiter {
	return &Arbiter{
		pool:      pool,
		accounts:  accounts,
		resources: resources,
		entries:   entries,
		rng:       rand.Int63n,
	}
}

// Spawn creates a contested resource. A non-nil creator is debited the total
// value in the same transaction, so an underfunded creator spawns nothing.
// A nil creator spawns a system pool with no funding debit.
func (a *Arbiter) Spawn(ctx context.Context, creatorID *int64, kind model.ResourceKind, totalValue, totalSlots int64, ttl time.Duration) (*model.Resource, error) {
	if totalSlots < 1 || totalValue < totalSlots {
		return nil, fmt.Errorf("%w: value=%d slots=%d", ErrInvalidResource, totalValue, totalSlots)
	}

	id := uuid.NewString()
	expiresAt := time.Now().Add(ttl)

	var resource *model.Resource
	err := pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		if creatorID != nil {
			if _, err := a.accounts.WithTx(tx).Debit(ctx, *creatorID, model.PoolWallet, totalValue); err != nil {
				if errors.Is(err, repository.ErrInsufficientPool) {
					return ErrInsufficientFunds
				}
				return err
			}
			ref := id
			if _, err := a.entries.WithTx(tx).Append(ctx, *creatorID, model.PoolWallet, -totalValue, model.ReasonRedPacketFund, &ref); err != nil {
				return err
			}
		}
		var err error
		resource, err = a.resources.WithTx(tx).Create(ctx, &model.Resource{
			ID:         id,
			Kind:       kind,
			CreatorID:  creatorID,
			TotalValue: totalValue,
			TotalSlots: totalSlots,
			ExpiresAt:  expiresAt,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	evt := log.Info().
		Str("resource_id", id).
		Str("kind", string(kind)).
		Int64("value", totalValue).
		Int64("slots", totalSlots)
	if creatorID != nil {
		evt = evt.Int64("creator_id", *creatorID)
	}
	evt.Msg("Resource spawned")
	return resource, nil
}

// Claim attempts to win a slot on the resource. Checks run in a fixed order
// against the locked row: expiry, exhaustion, self-claim, duplicate claim.
// A winning random-split claim receives a uniform share of the remaining
// value that always leaves at least 1 per remaining slot; the last slot
// drains the pot exactly. First-play pots pay a fixed equal share instead.
func (a *Arbiter) Claim(ctx context.Context, resourceID string, claimantID int64) (*ClaimResult, error) {
	var result *ClaimResult
	err := pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		resources := a.resources.WithTx(tx)

		resource, err := resources.GetForUpdate(ctx, resourceID)
		if err != nil {
			if errors.Is(err, repository.ErrResourceNotFound) {
				return ErrResourceNotFound
			}
			return err
		}

		now := time.Now()
		switch {
		case expired(resource, now):
			result = &ClaimResult{Status: ClaimExpired, Resource: resource}
			return nil
		case resource.Status == model.StatusExhausted || resource.RemainingSlots == 0:
			result = &ClaimResult{Status: ClaimExhausted, Resource: resource}
			return nil
		case resource.CreatorID != nil && claimantID == *resource.CreatorID:
			result = &ClaimResult{Status: ClaimSelfClaim, Resource: resource}
			return nil
		}

		prior, found, err := resources.GetClaim(ctx, resourceID, claimantID)
		if err != nil {
			return err
		}
		if found {
			result = &ClaimResult{Status: ClaimAlreadyClaimed, Amount: prior.Amount, Resource: resource}
			return nil
		}

		amount := a.share(resource)
		if _, err := resources.InsertClaim(ctx, resourceID, claimantID, amount); err != nil {
			return err
		}
		updated, err := resources.ApplyClaim(ctx, resourceID, amount)
		if err != nil {
			return err
		}
		if _, err := a.accounts.WithTx(tx).Credit(ctx, claimantID, model.PoolWallet, amount); err != nil {
			return err
		}
		ref := resourceID
		reason := model.ReasonRedPacket
		switch resource.Kind {
		case model.KindFirstPlay:
			reason = model.ReasonFirstPlay
		case model.KindAirdrop:
			reason = model.ReasonAirdrop
		}
		if _, err := a.entries.WithTx(tx).Append(ctx, claimantID, model.PoolWallet, amount, reason, &ref); err != nil {
			return err
		}

		result = &ClaimResult{
			Status:    ClaimWon,
			Amount:    amount,
			Resource:  updated,
			SlotsLeft: updated.RemainingSlots,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// expired reports whether a resource is past its deadline. The deadline
// instant itself is already out of window.
func expired(resource *model.Resource, now time.Time) bool {
	return resource.Status == model.StatusExpired || !now.Before(resource.ExpiresAt)
}

// share computes the payout for the next slot of a locked resource.
func (a *Arbiter) share(resource *model.Resource) int64 {
	if resource.Kind == model.KindFirstPlay {
		// Fixed equal shares; remainder from integer division stays with
		// the last slot.
		if resource.RemainingSlots == 1 {
			return resource.RemainingValue
		}
		return resource.TotalValue / resource.TotalSlots
	}
	// Random split. The last slot takes everything left; otherwise draw
	// uniformly from [1, remaining - (slots-1)] so every later slot can
	// still receive at least 1.
	if resource.RemainingSlots == 1 {
		return resource.RemainingValue
	}
	max := resource.RemainingValue - resource.RemainingSlots + 1
	return 1 + a.rng(max)
}

// Claims lists the recorded claims of a resource in claim order.
func (a *Arbiter) Claims(ctx context.Context, resourceID string) ([]*model.ResourceClaim, error) {
	return a.resources.Claims(ctx, resourceID)
}

// Get returns the resource by id.
func (a *Arbiter) Get(ctx context.Context, resourceID string) (*model.Resource, error) {
	resource, err := a.resources.Get(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrResourceNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return resource, nil
}

// SweepExpired marks every active resource past its deadline as expired and
// refunds the unclaimed remainder to the creator. Each resource is settled
// in one transaction, so the mark and the refund commit or fail together.
// Meant to run periodically; already-claimed shares are untouched.
func (a *Arbiter) SweepExpired(ctx context.Context) (int, error) {
	due, err := a.resources.Due(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range due {
		var res *model.Resource
		err := pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
			var err error
			res, err = a.resources.WithTx(tx).MarkExpired(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrResourceNotFound) {
					// Settled by a concurrent sweep or drained by a claim.
					res = nil
					return nil
				}
				return err
			}
			// System pools have no creator to refund.
			if res.RemainingValue <= 0 || res.CreatorID == nil {
				return nil
			}
			if _, err := a.accounts.WithTx(tx).Credit(ctx, *res.CreatorID, model.PoolWallet, res.RemainingValue); err != nil {
				return err
			}
			ref := res.ID
			_, err = a.entries.WithTx(tx).Append(ctx, *res.CreatorID, model.PoolWallet, res.RemainingValue, model.ReasonRedPacketRefund, &ref)
			return err
		})
		if err != nil {
			log.Error().Err(err).Str("resource_id", id).Msg("Failed to settle expired resource")
			continue
		}
		if res == nil {
			continue
		}
		swept++
		if res.RemainingValue > 0 && res.CreatorID != nil {
			log.Info().
				Str("resource_id", res.ID).
				Int64("creator_id", *res.CreatorID).
				Int64("refund", res.RemainingValue).
				Msg("Expired resource refunded")
		}
	}
	return swept, nil
}
