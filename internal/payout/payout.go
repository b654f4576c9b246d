// Package payout computes pari-mutuel settlement for resolved markets using
// 256-bit intermediates so stake*pool never overflows.
package payout

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// Compute returns the claim owed on bet for the resolved market m.
//
// A winner receives stake*pool/winningTotal, truncated. The claimant that
// settles the last outstanding winning stake receives whatever remains of the
// pool instead, so the payouts of a market sum to exactly its pool. When
// nobody backed the winning side every losing stake is refunded in full.
func Compute(m domain.Market, bet domain.Bet) (domain.Claim, error) {
	winner, ok := m.WinningSide()
	if !ok {
		return domain.Claim{}, domain.ErrMarketNotResolved
	}
	if bet.Claimed {
		return domain.Claim{}, domain.ErrAlreadyClaimed
	}

	pool := m.TotalPool()
	paySide := winner
	refund := m.Total(winner) == 0
	if refund {
		paySide = !winner
	}
	denom := m.Total(paySide)
	stake := bet.Stake(paySide)
	if stake == 0 || denom == 0 {
		return domain.Claim{}, domain.ErrNothingToClaim
	}
	if m.Disbursed > pool || m.ClaimedWinningStake+stake > denom {
		return domain.Claim{}, fmt.Errorf("payout: market %d counters exceed pool: %w", m.ID, domain.ErrInvalidInput)
	}

	remaining := pool - m.Disbursed
	var amount uint64
	if m.ClaimedWinningStake+stake == denom {
		amount = remaining
	} else {
		amount = MulDiv(stake, pool, denom)
		if amount > remaining {
			amount = remaining
		}
	}

	return domain.Claim{
		MarketID: m.ID,
		User:     bet.User,
		Stake:    stake,
		Payout:   amount,
		Refund:   refund,
	}, nil
}

// MulDiv returns floor(a*b/d). d must be non-zero and the quotient must fit
// in 64 bits, which holds whenever a <= d.
func MulDiv(a, b, d uint64) uint64 {
	x := uint256.NewInt(a)
	x.Mul(x, uint256.NewInt(b))
	x.Div(x, uint256.NewInt(d))
	return x.Uint64()
}
