package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

func TestMarketStoreSequentialIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMarketStore()

	for want := uint64(0); want < 3; want++ {
		m, err := s.Create(ctx, domain.Market{Description: "m", ResolutionTime: 100})
		require.NoError(t, err)
		assert.Equal(t, want, m.ID)
	}
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	page, err := s.List(ctx, domain.ListOpts{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(1), page[0].ID)
}

func TestMarketStoreStakeAndResolve(t *testing.T) {
	ctx := context.Background()
	s := NewMarketStore()
	m, err := s.Create(ctx, domain.Market{Description: "m"})
	require.NoError(t, err)

	_, err = s.AddStake(ctx, m.ID, "alice", domain.SideYes, 40)
	require.NoError(t, err)
	_, err = s.AddStake(ctx, m.ID, "alice", domain.SideNo, 10)
	require.NoError(t, err)
	got, err := s.AddStake(ctx, m.ID, "bob", domain.SideYes, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(45), got.TotalYes)
	assert.Equal(t, uint64(10), got.TotalNo)

	bet, err := s.GetBet(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), bet.YesAmount)
	assert.Equal(t, uint64(10), bet.NoAmount)

	bets, err := s.ListBets(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, bets, 2)
	assert.Equal(t, "alice", bets[0].User)

	_, err = s.Resolve(ctx, m.ID, true, time.Now())
	require.NoError(t, err)
	_, err = s.Resolve(ctx, m.ID, false, time.Now())
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)

	_, err = s.AddStake(ctx, m.ID, "carol", domain.SideNo, 1)
	require.ErrorIs(t, err, domain.ErrMarketClosed)

	_, err = s.AddStake(ctx, 99, "carol", domain.SideNo, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketStoreClaimIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewMarketStore()
	m, _ := s.Create(ctx, domain.Market{Description: "m"})
	_, err := s.AddStake(ctx, m.ID, "alice", domain.SideYes, 10)
	require.NoError(t, err)

	c := domain.Claim{MarketID: m.ID, User: "alice", Stake: 10, Payout: 10}
	require.NoError(t, s.RecordClaim(ctx, c))
	require.ErrorIs(t, s.RecordClaim(ctx, c), domain.ErrAlreadyClaimed)

	got, _ := s.GetByID(ctx, m.ID)
	assert.Equal(t, uint64(10), got.Disbursed)
	assert.Equal(t, uint64(10), got.ClaimedWinningStake)

	require.NoError(t, s.RevertClaim(ctx, c))
	got, _ = s.GetByID(ctx, m.ID)
	assert.Zero(t, got.Disbursed)
	bet, _ := s.GetBet(ctx, m.ID, "alice")
	assert.False(t, bet.Claimed)

	require.ErrorIs(t, s.RecordClaim(ctx, domain.Claim{MarketID: m.ID, User: "nobody"}), domain.ErrNothingToClaim)
}

func TestGetByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMarketStore()
	m, _ := s.Create(ctx, domain.Market{Description: "m"})
	_, _ = s.Resolve(ctx, m.ID, true, time.Now())

	got, _ := s.GetByID(ctx, m.ID)
	*got.Outcome = false

	again, _ := s.GetByID(ctx, m.ID)
	assert.True(t, *again.Outcome)
}
