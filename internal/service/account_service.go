package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/truthpool/internal/crypto"
	"github.com/alanyoungcy/truthpool/internal/domain"
)

// AccountService moves funds between users and the outside world. It is a
// thin layer over the ledger; pool accounts are not addressable.
type AccountService struct {
	ledger domain.Ledger
	logger *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(ledger domain.Ledger, logger *slog.Logger) *AccountService {
	return &AccountService{ledger: ledger, logger: logger}
}

// Deposit credits amount to account and returns the new balance.
func (s *AccountService) Deposit(ctx context.Context, account string, amount uint64) (uint64, error) {
	account, err := s.check(account, amount)
	if err != nil {
		return 0, fmt.Errorf("account_service: deposit: %w", err)
	}
	if err := s.ledger.Credit(ctx, account, amount); err != nil {
		return 0, fmt.Errorf("account_service: deposit %s: %w", account, err)
	}
	s.logger.InfoContext(ctx, "account_service: deposit",
		slog.String("account", account),
		slog.Uint64("amount", amount),
	)
	return s.Balance(ctx, account)
}

// Withdraw debits amount from account and returns the new balance.
func (s *AccountService) Withdraw(ctx context.Context, account string, amount uint64) (uint64, error) {
	account, err := s.check(account, amount)
	if err != nil {
		return 0, fmt.Errorf("account_service: withdraw: %w", err)
	}
	if err := s.ledger.Debit(ctx, account, amount); err != nil {
		return 0, fmt.Errorf("account_service: withdraw %s: %w", account, err)
	}
	s.logger.InfoContext(ctx, "account_service: withdraw",
		slog.String("account", account),
		slog.Uint64("amount", amount),
	)
	return s.Balance(ctx, account)
}

// Balance returns the ledger balance of account. Pool accounts are readable.
func (s *AccountService) Balance(ctx context.Context, account string) (uint64, error) {
	account, err := crypto.NormalizeIdentity(account)
	if err != nil {
		return 0, fmt.Errorf("account_service: balance: %w", err)
	}
	bal, err := s.ledger.Balance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("account_service: balance %s: %w", account, err)
	}
	return bal, nil
}

func (s *AccountService) check(account string, amount uint64) (string, error) {
	if amount == 0 {
		return "", domain.ErrInvalidAmount
	}
	return normalizeAccount(account)
}
