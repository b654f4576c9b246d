package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/truthpool?sslmode=disable", DSN(ClientConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Database: "truthpool", SSLMode: "disable",
	}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
	assert.Equal(t, "postgres://u:p%40ss%20w@db:5432/truthpool?sslmode=require", DSN(ClientConfig{
		Host: "db", User: "u", Password: "p@ss w", Database: "truthpool", SSLMode: "require",
	}))
}

func TestListClause(t *testing.T) {
	since := time.Unix(100, 0)
	q, args := listClause("SELECT 1 WHERE 1=1", []any{"x"}, domain.ListOpts{Since: &since, Limit: 5, Offset: 10}, "id ASC")
	assert.Equal(t, "SELECT 1 WHERE 1=1 AND created_at >= $2 ORDER BY id ASC LIMIT $3 OFFSET $4", q)
	assert.Equal(t, []any{"x", since, 5, 10}, args)
}

func TestToInt8(t *testing.T) {
	v, err := toInt8(42)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)

	_, err = toInt8(1 << 63)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

// newTestClient connects to TRUTHPOOL_TEST_POSTGRES_DSN, applies migrations
// and truncates all tables. The test is skipped when the variable is unset.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("TRUTHPOOL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRUTHPOOL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	c, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.RunMigrations(ctx))

	_, err = c.Pool().Exec(ctx, `
		TRUNCATE bets, markets, submissions, authorized_parties, audit_log;
		ALTER SEQUENCE market_id_seq RESTART WITH 0;
		ALTER SEQUENCE submission_id_seq RESTART WITH 0`)
	require.NoError(t, err)
	return c
}

func TestMarketStoreLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	s := NewMarketStore(c.Pool())

	m, err := s.Create(ctx, domain.Market{Description: "rain", ResolutionTime: 1000, Creator: "alice"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.ID)

	_, err = s.AddStake(ctx, m.ID, "alice", domain.SideYes, 100)
	require.NoError(t, err)
	got, err := s.AddStake(ctx, m.ID, "bob", domain.SideNo, 300)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got.TotalYes)
	assert.Equal(t, uint64(300), got.TotalNo)

	bets, err := s.ListBets(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, bets, 2)
	assert.Equal(t, "alice", bets[0].User)

	resolved, err := s.Resolve(ctx, m.ID, true, time.Now())
	require.NoError(t, err)
	require.NotNil(t, resolved.Outcome)
	assert.True(t, *resolved.Outcome)

	_, err = s.Resolve(ctx, m.ID, false, time.Now())
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)
	_, err = s.AddStake(ctx, m.ID, "carol", domain.SideYes, 1)
	require.ErrorIs(t, err, domain.ErrMarketClosed)
	_, err = s.Resolve(ctx, 99, true, time.Now())
	require.ErrorIs(t, err, domain.ErrNotFound)

	claim := domain.Claim{MarketID: m.ID, User: "alice", Stake: 100, Payout: 400}
	require.NoError(t, s.RecordClaim(ctx, claim))
	require.ErrorIs(t, s.RecordClaim(ctx, claim), domain.ErrAlreadyClaimed)
	require.ErrorIs(t, s.RecordClaim(ctx, domain.Claim{MarketID: m.ID, User: "nobody"}), domain.ErrNothingToClaim)

	after, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), after.Disbursed)
	assert.Equal(t, uint64(100), after.ClaimedWinningStake)

	require.NoError(t, s.RevertClaim(ctx, claim))
	bet, err := s.GetBet(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.False(t, bet.Claimed)
}

func TestSubmissionAndPartyStores(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	subs := NewSubmissionStore(c.Pool())

	sub, err := subs.Create(ctx, domain.Submission{EncryptedContent: "0xabcd", Conditions: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), sub.ID)

	_, changed, err := subs.MarkRevealed(ctx, sub.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	again, changed, err := subs.MarkRevealed(ctx, sub.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, again.Revealed)
	assert.Equal(t, []string{"a", "b"}, again.Conditions)

	parties := NewPartyStore(c.Pool())
	require.NoError(t, parties.Set(ctx, "judge", true))
	ok, err := parties.IsAuthorized(ctx, "judge")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, parties.Set(ctx, "judge", false))
	ok, err = parties.IsAuthorized(ctx, "judge")
	require.NoError(t, err)
	assert.False(t, ok)

	audit := NewAuditStore(c.Pool())
	require.NoError(t, audit.Log(ctx, "market_resolved", map[string]any{"market_id": 0}))
	entries, err := audit.List(ctx, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "market_resolved", entries[0].Event)
}
