package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// AccountService passes deposits and withdrawals through to the ledger.
type AccountService interface {
	Deposit(ctx context.Context, account string, amount uint64) (uint64, error)
	Withdraw(ctx context.Context, account string, amount uint64) (uint64, error)
	Balance(ctx context.Context, account string) (uint64, error)
}

// AccountHandler serves ledger pass-through endpoints.
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type transferRequest struct {
	Account string      `json:"account"`
	Amount  amountParam `json:"amount"`
}

// account falls back to the caller when the body names no account.
func (req transferRequest) account(r *http.Request) string {
	if req.Account != "" {
		return req.Account
	}
	return caller(r)
}

// Deposit credits an account and returns the new balance.
// POST /api/accounts/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, false)
		return
	}
	bal, err := h.accounts.Deposit(r.Context(), req.account(r), uint64(req.Amount))
	writeResult(w, r, h.logger, bal, err, false)
}

// Withdraw debits the caller's account and returns the new balance.
// POST /api/accounts/withdraw
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, false)
		return
	}
	// Withdrawals always come out of the caller's own account.
	bal, err := h.accounts.Withdraw(r.Context(), caller(r), uint64(req.Amount))
	writeResult(w, r, h.logger, bal, err, false)
}

// Balance returns an account's balance.
// GET /api/accounts/{account}
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.accounts.Balance(r.Context(), r.PathValue("account"))
	writeResult(w, r, h.logger, bal, err, false)
}
