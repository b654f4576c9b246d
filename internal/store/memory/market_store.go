// Package memory implements the domain store interfaces in process memory.
// It backs single-instance deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

type betKey struct {
	market uint64
	user   string
}

// MarketStore implements domain.MarketStore with mutex-guarded maps.
type MarketStore struct {
	mu      sync.RWMutex
	nextID  uint64
	markets map[uint64]domain.Market
	bets    map[betKey]domain.Bet
	order   map[uint64][]string // bettors per market in first-bet order
}

// NewMarketStore creates an empty MarketStore.
func NewMarketStore() *MarketStore {
	return &MarketStore{
		markets: make(map[uint64]domain.Market),
		bets:    make(map[betKey]domain.Bet),
		order:   make(map[uint64][]string),
	}
}

// Create stores m under the next sequential ID.
func (s *MarketStore) Create(_ context.Context, m domain.Market) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextID
	s.nextID++
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.markets[m.ID] = m
	return m, nil
}

// GetByID returns the market or domain.ErrNotFound.
func (s *MarketStore) GetByID(_ context.Context, id uint64) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return copyMarket(m), nil
}

// List returns markets ordered by ID.
func (s *MarketStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Market, 0, len(s.markets))
	for _, m := range s.markets {
		if opts.Since != nil && m.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && m.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, copyMarket(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts), nil
}

// Count returns the number of markets.
func (s *MarketStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.markets)), nil
}

// AddStake accumulates amount on side for both the market and the bet.
func (s *MarketStore) AddStake(_ context.Context, id uint64, user string, side domain.Side, amount uint64) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	if m.Resolved {
		return domain.Market{}, domain.ErrMarketClosed
	}

	key := betKey{market: id, user: user}
	b, seen := s.bets[key]
	if !seen {
		b = domain.Bet{MarketID: id, User: user}
		s.order[id] = append(s.order[id], user)
	}
	if side == domain.SideYes {
		m.TotalYes += amount
		b.YesAmount += amount
	} else {
		m.TotalNo += amount
		b.NoAmount += amount
	}
	s.markets[id] = m
	s.bets[key] = b
	return copyMarket(m), nil
}

// Resolve fixes the market outcome once.
func (s *MarketStore) Resolve(_ context.Context, id uint64, outcome bool, at time.Time) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	if m.Resolved {
		return domain.Market{}, domain.ErrAlreadyResolved
	}
	m.Resolved = true
	m.Outcome = &outcome
	m.ResolvedAt = &at
	s.markets[id] = m
	return copyMarket(m), nil
}

// GetBet returns the user's bet or domain.ErrNotFound.
func (s *MarketStore) GetBet(_ context.Context, marketID uint64, user string) (domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.markets[marketID]; !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	b, ok := s.bets[betKey{market: marketID, user: user}]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

// ListBets returns a market's bets in first-bet order.
func (s *MarketStore) ListBets(_ context.Context, marketID uint64) ([]domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.markets[marketID]; !ok {
		return nil, domain.ErrNotFound
	}
	users := s.order[marketID]
	out := make([]domain.Bet, 0, len(users))
	for _, u := range users {
		out = append(out, s.bets[betKey{market: marketID, user: u}])
	}
	return out, nil
}

// RecordClaim marks the bet claimed and bumps the market counters.
func (s *MarketStore) RecordClaim(_ context.Context, c domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[c.MarketID]
	if !ok {
		return domain.ErrNotFound
	}
	key := betKey{market: c.MarketID, user: c.User}
	b, ok := s.bets[key]
	if !ok {
		return domain.ErrNothingToClaim
	}
	if b.Claimed {
		return domain.ErrAlreadyClaimed
	}
	b.Claimed = true
	b.Payout = c.Payout
	m.Disbursed += c.Payout
	m.ClaimedWinningStake += c.Stake
	s.bets[key] = b
	s.markets[c.MarketID] = m
	return nil
}

// RevertClaim reverses a RecordClaim.
func (s *MarketStore) RevertClaim(_ context.Context, c domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[c.MarketID]
	if !ok {
		return domain.ErrNotFound
	}
	key := betKey{market: c.MarketID, user: c.User}
	b, ok := s.bets[key]
	if !ok || !b.Claimed {
		return domain.ErrNotFound
	}
	b.Claimed = false
	b.Payout = 0
	m.Disbursed -= c.Payout
	m.ClaimedWinningStake -= c.Stake
	s.bets[key] = b
	s.markets[c.MarketID] = m
	return nil
}

func copyMarket(m domain.Market) domain.Market {
	if m.Outcome != nil {
		o := *m.Outcome
		m.Outcome = &o
	}
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		m.ResolvedAt = &t
	}
	return m
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return items[:0]
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
