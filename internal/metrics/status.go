// Package metrics exposes Prometheus collectors for the engine.
package metrics

import (
	"errors"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

var statusLabels = []struct {
	err   error
	label string
}{
	{domain.ErrNotFound, "not_found"},
	{domain.ErrMarketClosed, "closed"},
	{domain.ErrMarketNotResolved, "not_resolved"},
	{domain.ErrAlreadyResolved, "already_resolved"},
	{domain.ErrAlreadyClaimed, "already_claimed"},
	{domain.ErrNothingToClaim, "nothing"},
	{domain.ErrInsufficientFunds, "insufficient_funds"},
	{domain.ErrInvalidAmount, "invalid_amount"},
	{domain.ErrUnauthorized, "unauthorized"},
	{domain.ErrInvalidInput, "invalid_input"},
	{domain.ErrNotRevealed, "not_revealed"},
	{domain.ErrEscrowUnavailable, "escrow_unavailable"},
	{domain.ErrLockHeld, "busy"},
}

// StatusOf maps err to a low-cardinality label value.
func StatusOf(err error) string {
	if err == nil {
		return "success"
	}
	for _, s := range statusLabels {
		if errors.Is(err, s.err) {
			return s.label
		}
	}
	return "error"
}
