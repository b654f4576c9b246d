package service

import (
	"context"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

func TestRainScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "alice", 100)

	m, err := h.market.CreateMarket(ctx, "", "Will it rain tomorrow?", 1000)
	require.NoError(t, err)
	assert.EqualValues(t, 0, m.ID)

	_, err = h.market.PlaceBet(ctx, "alice", 0, domain.SideYes, 100)
	require.NoError(t, err)

	_, err = h.market.ResolveMarket(ctx, 0, true)
	require.NoError(t, err)

	c, err := h.market.ClaimWinnings(ctx, "alice", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 100, c.Payout)

	bal, err := h.accounts.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 100, bal)
	pool, err := h.accounts.Balance(ctx, domain.PoolAccount(0))
	require.NoError(t, err)
	assert.Zero(t, pool)

	assert.Equal(t, []domain.EventType{
		domain.EventMarketCreated,
		domain.EventBetPlaced,
		domain.EventMarketResolved,
		domain.EventWinningsClaimed,
	}, h.events(t))
}

func TestBetAfterResolveIsClosed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "alice", 1000)

	_, err := h.market.CreateMarket(ctx, "", "Will it rain tomorrow?", 1000)
	require.NoError(t, err)
	_, err = h.market.ResolveMarket(ctx, 0, true)
	require.NoError(t, err)

	for range 5 {
		_, err = h.market.PlaceBet(ctx, "alice", 0, domain.SideYes, 100)
		assert.ErrorIs(t, err, domain.ErrMarketClosed)
		assert.Equal(t, domain.CodeMarketClosed, domain.LegacyCode(err, false))
	}

	bal, _ := h.accounts.Balance(ctx, "alice")
	assert.EqualValues(t, 1000, bal, "rejected bets leave funds untouched")
}

func TestCreateMarketValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.clock.Set(50)

	_, err := h.market.CreateMarket(ctx, "", "   ", 100)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.market.CreateMarket(ctx, "", "past", 50)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	m, err := h.market.CreateMarket(ctx, "carol", "future", 51)
	require.NoError(t, err)
	assert.Equal(t, "carol", m.Creator)
}

func TestPlaceBetRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "alice", 50)
	_, err := h.market.CreateMarket(ctx, "", "m", 10)
	require.NoError(t, err)

	_, err = h.market.PlaceBet(ctx, "alice", 0, domain.SideYes, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = h.market.PlaceBet(ctx, "alice", 7, domain.SideYes, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.CodeMarketClosed, domain.LegacyCode(err, true))

	_, err = h.market.PlaceBet(ctx, "alice", 0, domain.SideYes, 51)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = h.market.PlaceBet(ctx, "market:0", 0, domain.SideYes, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	m, err := h.market.PlaceBet(ctx, "alice", 0, domain.SideYes, 20)
	require.NoError(t, err)
	m, err = h.market.PlaceBet(ctx, "alice", 0, domain.SideNo, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 20, m.TotalYes)
	assert.EqualValues(t, 5, m.TotalNo)

	bet, err := h.market.GetBet(ctx, 0, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 20, bet.YesAmount)
	assert.EqualValues(t, 5, bet.NoAmount)

	h.clock.Set(10)
	_, err = h.market.PlaceBet(ctx, "alice", 0, domain.SideYes, 1)
	assert.ErrorIs(t, err, domain.ErrMarketClosed)

	got, err := h.market.GetMarket(ctx, 0)
	require.NoError(t, err)
	status, err := h.market.Status(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusClosed, status)
}

func TestPlaceBetCompensatesLedger(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "alice", 10)
	_, err := h.market.CreateMarket(ctx, "", "m", 10)
	require.NoError(t, err)

	broken := &failingLedger{Ledger: h.ledger, failCredit: domain.PoolAccount(0)}
	svc := NewMarketService(h.markets, broken, h.clock, nil, nil, nil, discardLogger())

	_, err = svc.PlaceBet(ctx, "alice", 0, domain.SideYes, 4)
	require.Error(t, err)

	bal, _ := h.ledger.Balance(ctx, "alice")
	assert.EqualValues(t, 10, bal, "user debit is reversed")
	m, err := h.markets.GetByID(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, m.TotalYes)
}

func TestResolveIsSingleShot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.market.CreateMarket(ctx, "", "m", 10)
	require.NoError(t, err)

	_, err = h.market.ResolveMarket(ctx, 3, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m, err := h.market.ResolveMarket(ctx, 0, false)
	require.NoError(t, err)
	require.NotNil(t, m.Outcome)
	assert.False(t, *m.Outcome)

	_, err = h.market.ResolveMarket(ctx, 0, true)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	m, err = h.market.GetMarket(ctx, 0)
	require.NoError(t, err)
	assert.False(t, *m.Outcome, "outcome is frozen")
}

func TestClaimRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "alice", 100)
	h.fund(t, "bob", 100)
	_, err := h.market.CreateMarket(ctx, "", "m", 10)
	require.NoError(t, err)
	_, err = h.market.PlaceBet(ctx, "alice", 0, domain.SideYes, 30)
	require.NoError(t, err)
	_, err = h.market.PlaceBet(ctx, "bob", 0, domain.SideNo, 70)
	require.NoError(t, err)

	_, err = h.market.ClaimWinnings(ctx, "alice", 0)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)
	_, err = h.market.ClaimWinnings(ctx, "alice", 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.market.ResolveMarket(ctx, 0, true)
	require.NoError(t, err)

	_, err = h.market.ClaimWinnings(ctx, "bob", 0)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
	_, err = h.market.ClaimWinnings(ctx, "dave", 0)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)

	c, err := h.market.ClaimWinnings(ctx, "alice", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 100, c.Payout)

	_, err = h.market.ClaimWinnings(ctx, "alice", 0)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	bal, _ := h.accounts.Balance(ctx, "alice")
	assert.EqualValues(t, 170, bal)
}

func TestClaimRefundsWhenNoWinners(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "alice", 10)
	h.fund(t, "bob", 10)
	_, err := h.market.CreateMarket(ctx, "", "m", 10)
	require.NoError(t, err)
	_, err = h.market.PlaceBet(ctx, "alice", 0, domain.SideNo, 4)
	require.NoError(t, err)
	_, err = h.market.PlaceBet(ctx, "bob", 0, domain.SideNo, 6)
	require.NoError(t, err)
	_, err = h.market.ResolveMarket(ctx, 0, true)
	require.NoError(t, err)

	for _, u := range []string{"alice", "bob"} {
		c, err := h.market.ClaimWinnings(ctx, u, 0)
		require.NoError(t, err)
		assert.True(t, c.Refund)
		bal, _ := h.accounts.Balance(ctx, u)
		assert.EqualValues(t, 10, bal)
	}
}

func TestClaimRevertsOnLedgerFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "alice", 10)
	_, err := h.market.CreateMarket(ctx, "", "m", 10)
	require.NoError(t, err)
	_, err = h.market.PlaceBet(ctx, "alice", 0, domain.SideYes, 10)
	require.NoError(t, err)
	_, err = h.market.ResolveMarket(ctx, 0, true)
	require.NoError(t, err)

	broken := &failingLedger{Ledger: h.ledger, failCredit: "alice"}
	svc := NewMarketService(h.markets, broken, h.clock, nil, nil, nil, discardLogger())
	_, err = svc.ClaimWinnings(ctx, "alice", 0)
	require.Error(t, err)

	bet, err := h.markets.GetBet(ctx, 0, "alice")
	require.NoError(t, err)
	assert.False(t, bet.Claimed, "claim record is rolled back")
	pool, _ := h.ledger.Balance(ctx, domain.PoolAccount(0))
	assert.EqualValues(t, 10, pool)

	c, err := h.market.ClaimWinnings(ctx, "alice", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 10, c.Payout)
}

func TestPayoutsNeverExceedPool(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(3, 5))

	for round := range 50 {
		h := newHarness(t)
		_, err := h.market.CreateMarket(ctx, "", "m", 10)
		require.NoError(t, err)

		var pool uint64
		users := 2 + rng.IntN(8)
		for i := range users {
			u := "u" + strconv.Itoa(i)
			amt := 1 + rng.Uint64N(1_000_003)
			h.fund(t, u, amt)
			_, err := h.market.PlaceBet(ctx, u, 0, domain.Side(rng.IntN(2) == 0), amt)
			require.NoError(t, err)
			pool += amt
		}
		_, err = h.market.ResolveMarket(ctx, 0, rng.IntN(2) == 0)
		require.NoError(t, err)

		var paid uint64
		for i := range users {
			c, err := h.market.ClaimWinnings(ctx, "u"+strconv.Itoa(i), 0)
			if err != nil {
				require.ErrorIs(t, err, domain.ErrNothingToClaim)
				continue
			}
			paid += c.Payout
		}
		assert.Equal(t, pool, paid, "round %d", round)
		left, _ := h.ledger.Balance(ctx, domain.PoolAccount(0))
		assert.Zero(t, left, "round %d", round)
	}
}

func TestMarketServiceUsesCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cache := &mapCache{m: map[uint64]domain.Market{}}
	svc := NewMarketService(h.markets, h.ledger, h.clock, cache, nil, nil, discardLogger())

	m, err := svc.CreateMarket(ctx, "", "cached", 10)
	require.NoError(t, err)
	assert.Contains(t, cache.m, m.ID)

	cache.m[m.ID] = domain.Market{ID: m.ID, Description: "from cache"}
	got, err := svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "from cache", got.Description)

	list, total, err := svc.ListMarkets(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "cached", list[0].Description)
}

type mapCache struct {
	m map[uint64]domain.Market
}

func (c *mapCache) Set(_ context.Context, m domain.Market) error {
	c.m[m.ID] = m
	return nil
}

func (c *mapCache) Get(_ context.Context, id uint64) (domain.Market, error) {
	m, ok := c.m[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *mapCache) Invalidate(_ context.Context, id uint64) error {
	delete(c.m, id)
	return nil
}
