package service

import (
	"context"
	"time"

	"royalbot/internal/ledger"
	"royalbot/internal/model"
	"royalbot/internal/repository"
	"royalbot/internal/reward"
)

// BankService handles the vault: deposits, withdrawals and interest.
type BankService struct {
	ledger   *ledger.Service
	interest *reward.InterestService
	accounts *repository.AccountRepository
}

// NewBankService creates a BankService.
func NewBankService(
	ledger *ledger.Service,
	interest *reward.InterestService,
	accounts *repository.AccountRepository,
) *BankService {
	return &BankService{
		ledger:   ledger,
		interest: interest,
		accounts: accounts,
	}
}

// Deposit moves amount from wallet to vault.
func (s *BankService) Deposit(ctx context.Context, userID, amount int64) (*model.Account, error) {
	return s.ledger.Deposit(ctx, userID, amount)
}

// Withdraw moves amount from vault to wallet, minus the withdraw fee for
// non-VIP accounts.
func (s *BankService) Withdraw(ctx context.Context, userID, amount int64) (*ledger.TransferResult, error) {
	return s.ledger.Withdraw(ctx, userID, amount)
}

// Accrued reports the interest the account could claim right now.
func (s *BankService) Accrued(ctx context.Context, userID int64) (*reward.InterestResult, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.interest.Accrued(account, time.Now()), nil
}

// ClaimInterest pays accrued interest into the wallet.
func (s *BankService) ClaimInterest(ctx context.Context, userID int64) (*reward.InterestResult, error) {
	return s.interest.Claim(ctx, userID)
}
