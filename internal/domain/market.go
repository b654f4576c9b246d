package domain

import (
	"strconv"
	"strings"
	"time"
)

// MarketStatus is the derived lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "open"
	MarketStatusClosed   MarketStatus = "closed" // past resolution time, awaiting resolution
	MarketStatusResolved MarketStatus = "resolved"
)

// Side is the outcome a stake backs.
type Side bool

const (
	SideYes Side = true
	SideNo  Side = false
)

func (s Side) String() string {
	if s {
		return "yes"
	}
	return "no"
}

// ParseSide accepts "yes"/"no" (and "true"/"false").
func ParseSide(v string) (Side, error) {
	switch v {
	case "yes", "YES", "Yes", "true":
		return SideYes, nil
	case "no", "NO", "No", "false":
		return SideNo, nil
	default:
		return SideNo, ErrInvalidInput
	}
}

// Market is a binary Yes/No wager pool.
//
// Disbursed and ClaimedWinningStake are bookkeeping counters used to keep
// the sum of all payouts within the pool: the last claimant receives the
// residual TotalPool - Disbursed.
type Market struct {
	ID                  uint64     `json:"id"`
	Description         string     `json:"description"`
	ResolutionTime      uint64     `json:"resolution_time"`
	TotalYes            uint64     `json:"total_yes_amount"`
	TotalNo             uint64     `json:"total_no_amount"`
	Resolved            bool       `json:"resolved"`
	Outcome             *bool      `json:"outcome"`
	Creator             string     `json:"creator,omitempty"`
	Disbursed           uint64     `json:"disbursed"`
	ClaimedWinningStake uint64     `json:"claimed_winning_stake"`
	CreatedAt           time.Time  `json:"created_at"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
}

// TotalPool is the sum of stake on both sides.
func (m Market) TotalPool() uint64 {
	return m.TotalYes + m.TotalNo
}

// Total returns the stake accumulated on side.
func (m Market) Total(side Side) uint64 {
	if side == SideYes {
		return m.TotalYes
	}
	return m.TotalNo
}

// WinningSide reports the resolved outcome. ok is false while unresolved.
func (m Market) WinningSide() (side Side, ok bool) {
	if !m.Resolved || m.Outcome == nil {
		return SideNo, false
	}
	return Side(*m.Outcome), true
}

// Status derives the lifecycle state against the logical time now.
func (m Market) Status(now uint64) MarketStatus {
	switch {
	case m.Resolved:
		return MarketStatusResolved
	case now >= m.ResolutionTime:
		return MarketStatusClosed
	default:
		return MarketStatusOpen
	}
}

// PoolAccount is the ledger account holding a market's pooled stake.
func PoolAccount(marketID uint64) string {
	return "market:" + strconv.FormatUint(marketID, 10)
}

// Bet is one user's accumulated stake in one market.
type Bet struct {
	MarketID  uint64 `json:"market_id"`
	User      string `json:"user"`
	YesAmount uint64 `json:"yes_amount"`
	NoAmount  uint64 `json:"no_amount"`
	Claimed   bool   `json:"claimed"`
	Payout    uint64 `json:"payout"`
}

// Stake returns the amount the bet holds on side.
func (b Bet) Stake(side Side) uint64 {
	if side == SideYes {
		return b.YesAmount
	}
	return b.NoAmount
}

// Claim is the settlement recorded for one bet.
type Claim struct {
	MarketID uint64 `json:"market_id"`
	User     string `json:"user"`
	Stake    uint64 `json:"stake"`
	Payout   uint64 `json:"payout"`
	Refund   bool   `json:"refund"`
}

// IsPoolAccount reports whether account is reserved for a market pool.
func IsPoolAccount(account string) bool {
	return strings.HasPrefix(account, "market:")
}
