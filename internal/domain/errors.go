package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrMarketClosed      = errors.New("market closed")
	ErrMarketNotResolved = errors.New("market not resolved")
	ErrAlreadyResolved   = errors.New("market already resolved")
	ErrAlreadyClaimed    = errors.New("winnings already claimed")
	ErrNothingToClaim    = errors.New("nothing to claim")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotRevealed       = errors.New("submission not revealed")
	ErrEscrowUnavailable = errors.New("escrow key not configured")
	ErrLockHeld          = errors.New("lock already held")
)

// Code is the numeric error code carried by a failed Result.
type Code int

const (
	CodeOK                Code = 0
	CodeNotFound          Code = 101
	CodeAlreadyResolved   Code = 102
	CodeAlreadyClaimed    Code = 103
	CodeNothingToClaim    Code = 104
	CodeMarketClosed      Code = 105
	CodeMarketNotResolved Code = 106
	CodeInsufficientFunds Code = 107
	CodeInvalidAmount     Code = 108
	CodeUnauthorized      Code = 109
	CodeInvalidInput      Code = 110
	CodeNotRevealed       Code = 111
	CodeEscrowUnavailable Code = 112
	CodeBusy              Code = 113
	CodeInternal          Code = 500
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrNotFound, CodeNotFound},
	{ErrAlreadyResolved, CodeAlreadyResolved},
	{ErrAlreadyClaimed, CodeAlreadyClaimed},
	{ErrNothingToClaim, CodeNothingToClaim},
	{ErrMarketClosed, CodeMarketClosed},
	{ErrMarketNotResolved, CodeMarketNotResolved},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrNotRevealed, CodeNotRevealed},
	{ErrEscrowUnavailable, CodeEscrowUnavailable},
	{ErrLockHeld, CodeBusy},
}

// CodeOf maps err onto the error taxonomy. A nil error yields CodeOK and an
// error outside the taxonomy yields CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// LegacyCode folds the taxonomy down to the two codes older clients know:
// 101 for a missing record and 105 for any market state violation. Codes
// with no legacy counterpart pass through unchanged. The legacy placeBet and
// claimWinnings calls report a missing market as closed, so callers of those
// set closedOnMissing.
func LegacyCode(err error, closedOnMissing bool) Code {
	switch c := CodeOf(err); c {
	case CodeMarketClosed, CodeMarketNotResolved, CodeAlreadyResolved:
		return CodeMarketClosed
	case CodeNotFound:
		if closedOnMissing {
			return CodeMarketClosed
		}
		return c
	default:
		return c
	}
}
