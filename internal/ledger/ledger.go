// Package ledger provides the atomic balance mutation primitives. Every MP
// movement in the system goes through Credit, Debit, Transfer, Deposit or
// Withdraw; nothing else touches the balance columns.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"royalbot/internal/model"
	"royalbot/internal/pkg/lock"
	"royalbot/internal/repository"
	"royalbot/internal/vip"
)

// Ledger errors. Validation failures are expected outcomes and are returned,
// never logged; ErrStorageUnavailable is the only retryable class.
var (
	ErrInvalidAmount      = errors.New("invalid amount: must be positive")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAccountNotBound    = errors.New("account has no linked identity")
	ErrInvalidTarget      = errors.New("invalid transfer target")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

const (
	retryAttempts = 3
	retryBaseWait = 50 * time.Millisecond
)

// Config carries the fee rates in basis points.
type Config struct {
	TransferFeeBps int64
	WithdrawFeeBps int64
}

// Service implements the ledger primitives on top of the account store.
type Service struct {
	pool     *pgxpool.Pool
	accounts *repository.AccountRepository
	entries  *repository.LedgerRepository
	locks    *lock.AccountLock
	cfg      Config
}

// NewService creates a ledger Service.
func NewService(
	pool *pgxpool.Pool,
	accounts *repository.AccountRepository,
	entries *repository.LedgerRepository,
	locks *lock.AccountLock,
	cfg Config,
) *Service {
	return &Service{
		pool:     pool,
		accounts: accounts,
		entries:  entries,
		locks:    locks,
		cfg:      cfg,
	}
}

// TransferResult reports the amounts moved by a transfer or withdraw.
type TransferResult struct {
	Amount   int64
	Fee      int64 // destroyed, credited nowhere
	Received int64
	Sender   *model.Account
	Receiver *model.Account
}

// retryable reports whether a storage error is a transient lock or
// serialization failure worth retrying.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization, deadlock, lock not available
			return true
		}
	}
	return false
}

// inTx runs fn inside a transaction, retrying with backoff on transient
// storage failures. Exhausted retries surface as ErrStorageUnavailable.
func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBaseWait * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := pgx.BeginFunc(ctx, s.pool, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}

	log.Error().Err(lastErr).Msg("Ledger transaction retries exhausted")
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, lastErr)
}

// Credit increases a pool by amount and appends the ledger entry. Credits
// have no upper bound; lifetime_earned moves with the pool.
func (s *Service) Credit(ctx context.Context, userID int64, pool model.Pool, amount int64, reason string, ref *string) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var account *model.Account
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		account, err = s.accounts.WithTx(tx).Credit(ctx, userID, pool, amount)
		if err != nil {
			return err
		}
		_, err = s.entries.WithTx(tx).Append(ctx, userID, pool, amount, reason, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Debit decreases a pool by amount and appends the ledger entry. A shortfall
// aborts the whole operation with ErrInsufficientFunds and no partial effect.
func (s *Service) Debit(ctx context.Context, userID int64, pool model.Pool, amount int64, reason string, ref *string) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var account *model.Account
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		account, err = s.accounts.WithTx(tx).Debit(ctx, userID, pool, amount)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientPool) {
				return ErrInsufficientFunds
			}
			return err
		}
		_, err = s.entries.WithTx(tx).Append(ctx, userID, pool, -amount, reason, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Transfer moves amount from one wallet to another. Non-VIP senders pay
// fee = floor(amount * rate); the fee is destroyed by policy, not credited
// anywhere. Both parties must be bound; self-transfer is rejected. The debit
// and credit land in one transaction, so a failure on either side leaves
// both balances untouched.
func (s *Service) Transfer(ctx context.Context, fromID, toID, amount int64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromID == toID {
		return nil, ErrInvalidTarget
	}

	var result *TransferResult
	err := s.locks.WithPairLock(fromID, toID, func() error {
		sender, err := s.accounts.GetByID(ctx, fromID)
		if err != nil {
			return fmt.Errorf("failed to get sender: %w", err)
		}
		if !sender.Bound() {
			return ErrAccountNotBound
		}
		receiver, err := s.accounts.GetByID(ctx, toID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return ErrInvalidTarget
			}
			return fmt.Errorf("failed to get receiver: %w", err)
		}
		if !receiver.Bound() {
			return ErrAccountNotBound
		}

		fee := vip.Fee(amount, vip.FeeRate(sender.IsVIP, s.cfg.TransferFeeBps))
		received := amount - fee

		outRef := fmt.Sprintf("user:%d", toID)
		inRef := fmt.Sprintf("user:%d", fromID)

		return s.inTx(ctx, func(tx pgx.Tx) error {
			accounts := s.accounts.WithTx(tx)
			entries := s.entries.WithTx(tx)

			sender, err = accounts.Debit(ctx, fromID, model.PoolWallet, amount)
			if err != nil {
				if errors.Is(err, repository.ErrInsufficientPool) {
					return ErrInsufficientFunds
				}
				return err
			}
			receiver, err = accounts.Credit(ctx, toID, model.PoolWallet, received)
			if err != nil {
				return err
			}
			if _, err = entries.Append(ctx, fromID, model.PoolWallet, -amount, model.ReasonTransferOut, &outRef); err != nil {
				return err
			}
			if _, err = entries.Append(ctx, toID, model.PoolWallet, received, model.ReasonTransferIn, &inRef); err != nil {
				return err
			}

			result = &TransferResult{
				Amount:   amount,
				Fee:      fee,
				Received: received,
				Sender:   sender,
				Receiver: receiver,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Deposit moves amount from wallet to vault, fee-free.
func (s *Service) Deposit(ctx context.Context, userID, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var account *model.Account
	err := s.locks.WithLock(userID, func() error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			accounts := s.accounts.WithTx(tx)
			entries := s.entries.WithTx(tx)

			if _, err := accounts.Debit(ctx, userID, model.PoolWallet, amount); err != nil {
				if errors.Is(err, repository.ErrInsufficientPool) {
					return ErrInsufficientFunds
				}
				return err
			}
			var err error
			account, err = accounts.Credit(ctx, userID, model.PoolVault, amount)
			if err != nil {
				return err
			}
			if _, err = entries.Append(ctx, userID, model.PoolWallet, -amount, model.ReasonDeposit, nil); err != nil {
				return err
			}
			_, err = entries.Append(ctx, userID, model.PoolVault, amount, model.ReasonDeposit, nil)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Withdraw moves amount from vault to wallet. Non-VIP accounts pay
// fee = floor(amount * rate); the wallet receives amount - fee and the fee
// is destroyed, same sink policy as transfer.
func (s *Service) Withdraw(ctx context.Context, userID, amount int64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result *TransferResult
	err := s.locks.WithLock(userID, func() error {
		account, err := s.accounts.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		fee := vip.Fee(amount, vip.FeeRate(account.IsVIP, s.cfg.WithdrawFeeBps))
		received := amount - fee

		return s.inTx(ctx, func(tx pgx.Tx) error {
			accounts := s.accounts.WithTx(tx)
			entries := s.entries.WithTx(tx)

			if _, err := accounts.Debit(ctx, userID, model.PoolVault, amount); err != nil {
				if errors.Is(err, repository.ErrInsufficientPool) {
					return ErrInsufficientFunds
				}
				return err
			}
			account, err = accounts.Credit(ctx, userID, model.PoolWallet, received)
			if err != nil {
				return err
			}
			if _, err = entries.Append(ctx, userID, model.PoolVault, -amount, model.ReasonWithdraw, nil); err != nil {
				return err
			}
			if _, err = entries.Append(ctx, userID, model.PoolWallet, received, model.ReasonWithdraw, nil); err != nil {
				return err
			}

			result = &TransferResult{
				Amount:   amount,
				Fee:      fee,
				Received: received,
				Sender:   account,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
