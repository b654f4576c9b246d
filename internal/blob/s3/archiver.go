package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/truthpool/internal/domain"
	"github.com/alanyoungcy/truthpool/internal/payout"
)

// SettlementReport is the archived summary of a resolved market.
type SettlementReport struct {
	Market      domain.Market `json:"market"`
	Bets        []SettledBet  `json:"bets"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// SettledBet is a bet with the payout it was (or will be) entitled to.
type SettledBet struct {
	domain.Bet
	Entitled uint64 `json:"entitled"`
}

// EvidenceBundle is the archived copy of a revealed submission. The content
// stays encrypted.
type EvidenceBundle struct {
	Submission domain.Submission `json:"submission"`
	Scheme     string            `json:"scheme"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// Archiver writes settlement reports and evidence bundles to the bucket.
// Each object is written once; an existing object is left untouched.
type Archiver struct {
	writer  domain.BlobWriter
	reader  domain.BlobReader
	markets domain.MarketStore
	subs    domain.SubmissionStore
	audit   domain.AuditStore
	scheme  string
}

// NewArchiver creates an Archiver. scheme names the cipher the archived
// ciphertexts were produced with.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	markets domain.MarketStore,
	subs domain.SubmissionStore,
	audit domain.AuditStore,
	scheme string,
) *Archiver {
	return &Archiver{
		writer:  writer,
		reader:  reader,
		markets: markets,
		subs:    subs,
		audit:   audit,
		scheme:  scheme,
	}
}

// ArchiveSettlement uploads the settlement report of a resolved market to
// settlements/market-<id>.json and its bets to settlements/market-<id>.jsonl.
// It returns the report path.
func (a *Archiver) ArchiveSettlement(ctx context.Context, marketID uint64) (string, error) {
	m, err := a.markets.GetByID(ctx, marketID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive settlement %d: %w", marketID, err)
	}
	if !m.Resolved {
		return "", fmt.Errorf("s3blob: archive settlement %d: %w", marketID, domain.ErrMarketNotResolved)
	}

	path := domain.SettlementPath(marketID)
	if ok, err := a.reader.Exists(ctx, path); err != nil {
		return "", fmt.Errorf("s3blob: archive settlement %d: %w", marketID, err)
	} else if ok {
		return path, nil
	}

	bets, err := a.markets.ListBets(ctx, marketID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive settlement %d: bets: %w", marketID, err)
	}
	report := SettlementReport{Market: m, Bets: entitlements(m, bets), GeneratedAt: time.Now().UTC()}

	lines, err := marshalJSONL(bets)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive settlement %d: %w", marketID, err)
	}
	betsPath := domain.SettlementBetsPath(marketID)
	if err := a.writer.Put(ctx, betsPath, bytes.NewReader(lines), contentTypeJSONL); err != nil {
		return "", fmt.Errorf("s3blob: archive settlement %d: %w", marketID, err)
	}
	if err := a.putJSON(ctx, path, report); err != nil {
		return "", fmt.Errorf("s3blob: archive settlement %d: %w", marketID, err)
	}

	if err := a.audit.Log(ctx, "archive.settlement", map[string]any{
		"path":      path,
		"market_id": marketID,
		"bets":      len(bets),
		"pool":      m.TotalPool(),
	}); err != nil {
		return path, fmt.Errorf("s3blob: archive settlement %d: audit log: %w", marketID, err)
	}
	return path, nil
}

// ArchiveEvidence uploads a revealed submission to
// evidence/submission-<id>.json and returns the path.
func (a *Archiver) ArchiveEvidence(ctx context.Context, submissionID uint64) (string, error) {
	sub, err := a.subs.GetByID(ctx, submissionID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive evidence %d: %w", submissionID, err)
	}
	if !sub.Revealed {
		return "", fmt.Errorf("s3blob: archive evidence %d: %w", submissionID, domain.ErrNotRevealed)
	}

	path := domain.EvidencePath(submissionID)
	if ok, err := a.reader.Exists(ctx, path); err != nil {
		return "", fmt.Errorf("s3blob: archive evidence %d: %w", submissionID, err)
	} else if ok {
		return path, nil
	}

	bundle := EvidenceBundle{Submission: sub, Scheme: a.scheme, ArchivedAt: time.Now().UTC()}
	if err := a.putJSON(ctx, path, bundle); err != nil {
		return "", fmt.Errorf("s3blob: archive evidence %d: %w", submissionID, err)
	}

	if err := a.audit.Log(ctx, "archive.evidence", map[string]any{
		"path":          path,
		"submission_id": submissionID,
	}); err != nil {
		return path, fmt.Errorf("s3blob: archive evidence %d: audit log: %w", submissionID, err)
	}
	return path, nil
}

func (a *Archiver) putJSON(ctx context.Context, path string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(body), contentTypeJSON)
}

// entitlements computes what each bet is owed, replaying claims in bet
// order so the residual lands on the last winning claimant.
func entitlements(m domain.Market, bets []domain.Bet) []SettledBet {
	replay := m
	replay.Disbursed = 0
	replay.ClaimedWinningStake = 0

	out := make([]SettledBet, 0, len(bets))
	for _, b := range bets {
		sb := SettledBet{Bet: b}
		unclaimed := b
		unclaimed.Claimed = false
		if c, err := payout.Compute(replay, unclaimed); err == nil {
			sb.Entitled = c.Payout
			replay.Disbursed += c.Payout
			replay.ClaimedWinningStake += c.Stake
		}
		if b.Claimed {
			sb.Entitled = b.Payout
		}
		out = append(out, sb)
	}
	return out
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
