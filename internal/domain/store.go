package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists markets and the bets placed on them. Implementations
// assign market IDs sequentially from zero and never reuse them.
type MarketStore interface {
	Create(ctx context.Context, m Market) (Market, error)
	GetByID(ctx context.Context, id uint64) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)

	// AddStake adds amount to side on both the market totals and the
	// user's bet. It returns ErrMarketClosed when the market is resolved.
	AddStake(ctx context.Context, id uint64, user string, side Side, amount uint64) (Market, error)
	// Resolve fixes the outcome exactly once; later calls return
	// ErrAlreadyResolved.
	Resolve(ctx context.Context, id uint64, outcome bool, at time.Time) (Market, error)

	GetBet(ctx context.Context, marketID uint64, user string) (Bet, error)
	ListBets(ctx context.Context, marketID uint64) ([]Bet, error)

	// RecordClaim flips the bet's claimed flag with compare-and-set semantics
	// and adds the claim to the market's disbursement counters. A bet that is
	// already claimed yields ErrAlreadyClaimed and nothing changes.
	RecordClaim(ctx context.Context, c Claim) error
	// RevertClaim undoes RecordClaim after a failed ledger transfer.
	RevertClaim(ctx context.Context, c Claim) error
}

// SubmissionStore persists whistleblower submissions. IDs are sequential
// from zero.
type SubmissionStore interface {
	Create(ctx context.Context, s Submission) (Submission, error)
	GetByID(ctx context.Context, id uint64) (Submission, error)
	List(ctx context.Context, opts ListOpts) ([]Submission, error)
	// MarkRevealed sets revealed=true. changed is false when the submission
	// was already revealed.
	MarkRevealed(ctx context.Context, id uint64, at time.Time) (s Submission, changed bool, err error)
}

// PartyStore persists the authorized-party table. An absent party is
// unauthorized.
type PartyStore interface {
	Set(ctx context.Context, party string, authorized bool) error
	IsAuthorized(ctx context.Context, party string) (bool, error)
	List(ctx context.Context) ([]AuthorizedParty, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
