package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/truthpool/internal/crypto"
	"github.com/alanyoungcy/truthpool/internal/domain"
	"github.com/alanyoungcy/truthpool/internal/metrics"
	"github.com/alanyoungcy/truthpool/internal/payout"
)

const (
	// marketLockTTL bounds how long a crashed instance can hold a market lock.
	marketLockTTL = 10 * time.Second
	lockAttempts  = 5
	lockBackoff   = 20 * time.Millisecond
)

// MarketService runs the prediction market state machine: markets are
// created open, accept stake until they close or resolve, resolve exactly
// once, and then pay out each bet exactly once.
//
// Mutations are serialized in process by a mutex and, when a LockManager is
// configured, across instances by a per-market lock.
type MarketService struct {
	markets domain.MarketStore
	ledger  domain.Ledger
	clock   domain.Clock
	cache   domain.MarketCache
	locks   domain.LockManager
	events  *EventPublisher
	logger  *slog.Logger

	mu sync.Mutex
}

// NewMarketService creates a MarketService. cache and locks may be nil.
func NewMarketService(
	markets domain.MarketStore,
	ledger domain.Ledger,
	clock domain.Clock,
	cache domain.MarketCache,
	locks domain.LockManager,
	events *EventPublisher,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets: markets,
		ledger:  ledger,
		clock:   clock,
		cache:   cache,
		locks:   locks,
		events:  events,
		logger:  logger,
	}
}

// CreateMarket opens a new market closing at resolutionTime, which must lie
// strictly after the clock's current reading.
func (s *MarketService) CreateMarket(ctx context.Context, creator, description string, resolutionTime uint64) (domain.Market, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.Market{}, fmt.Errorf("market_service: create: empty description: %w", domain.ErrInvalidInput)
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: read clock: %w", err)
	}
	if resolutionTime <= now {
		return domain.Market{}, fmt.Errorf("market_service: create: resolution time %d not after now %d: %w",
			resolutionTime, now, domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.markets.Create(ctx, domain.Market{
		Description:    description,
		ResolutionTime: resolutionTime,
		Creator:        creator,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: %w", err)
	}

	s.refreshCache(ctx, m)
	metrics.MarketsCreated.Inc()
	s.events.Emit(ctx, domain.EventMarketCreated, map[string]any{
		"market_id":       m.ID,
		"description":     m.Description,
		"resolution_time": m.ResolutionTime,
		"creator":         m.Creator,
	})
	s.logger.InfoContext(ctx, "market_service: market created",
		slog.Uint64("market_id", m.ID),
		slog.Uint64("resolution_time", m.ResolutionTime),
	)
	return m, nil
}

// PlaceBet stakes amount from user on side of the market. Funds move on the
// ledger first (user to pool account); the stake is recorded only after both
// ledger moves succeed, and the moves are reversed if recording fails.
func (s *MarketService) PlaceBet(ctx context.Context, user string, marketID uint64, side domain.Side, amount uint64) (m domain.Market, err error) {
	defer func() { metrics.RecordBet(side.String(), amount, err) }()

	if amount == 0 {
		return domain.Market{}, fmt.Errorf("market_service: bet: %w", domain.ErrInvalidAmount)
	}
	user, err = normalizeAccount(user)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: bet: %w", err)
	}

	err = s.withMarketLock(ctx, marketID, func() error {
		cur, err := s.markets.GetByID(ctx, marketID)
		if err != nil {
			return fmt.Errorf("market_service: bet on %d: %w", marketID, err)
		}
		if cur.Resolved {
			return fmt.Errorf("market_service: bet on %d: resolved: %w", marketID, domain.ErrMarketClosed)
		}
		now, err := s.clock.Now(ctx)
		if err != nil {
			return fmt.Errorf("market_service: bet on %d: read clock: %w", marketID, err)
		}
		if now >= cur.ResolutionTime {
			return fmt.Errorf("market_service: bet on %d: past resolution time: %w", marketID, domain.ErrMarketClosed)
		}

		pool := domain.PoolAccount(marketID)
		if err := s.ledger.Debit(ctx, user, amount); err != nil {
			return fmt.Errorf("market_service: bet on %d: debit %s: %w", marketID, user, err)
		}
		if err := s.ledger.Credit(ctx, pool, amount); err != nil {
			return errors.Join(
				fmt.Errorf("market_service: bet on %d: credit pool: %w", marketID, err),
				s.compensate(ctx, "credit", user, amount),
			)
		}

		m, err = s.markets.AddStake(ctx, marketID, user, side, amount)
		if err != nil {
			return errors.Join(
				fmt.Errorf("market_service: bet on %d: record stake: %w", marketID, err),
				s.compensate(ctx, "debit", pool, amount),
				s.compensate(ctx, "credit", user, amount),
			)
		}
		return nil
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.refreshCache(ctx, m)
	s.events.Emit(ctx, domain.EventBetPlaced, map[string]any{
		"market_id": marketID,
		"user":      user,
		"side":      side.String(),
		"amount":    amount,
		"total_yes": m.TotalYes,
		"total_no":  m.TotalNo,
	})
	s.logger.InfoContext(ctx, "market_service: bet placed",
		slog.Uint64("market_id", marketID),
		slog.String("user", user),
		slog.String("side", side.String()),
		slog.Uint64("amount", amount),
	)
	return m, nil
}

// ResolveMarket fixes the outcome of a market. It succeeds once per market;
// later calls fail with domain.ErrAlreadyResolved. Resolution is allowed
// before the resolution time.
func (s *MarketService) ResolveMarket(ctx context.Context, marketID uint64, outcome bool) (domain.Market, error) {
	var m domain.Market
	err := s.withMarketLock(ctx, marketID, func() error {
		var err error
		m, err = s.markets.Resolve(ctx, marketID, outcome, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("market_service: resolve %d: %w", marketID, err)
		}
		return nil
	})
	if err != nil {
		return domain.Market{}, err
	}

	s.refreshCache(ctx, m)
	metrics.MarketsResolved.WithLabelValues(domain.Side(outcome).String()).Inc()
	s.events.Emit(ctx, domain.EventMarketResolved, map[string]any{
		"market_id":   m.ID,
		"description": m.Description,
		"outcome":     outcome,
		"total_yes":   m.TotalYes,
		"total_no":    m.TotalNo,
	})
	s.logger.InfoContext(ctx, "market_service: market resolved",
		slog.Uint64("market_id", m.ID),
		slog.Bool("outcome", outcome),
		slog.Uint64("pool", m.TotalPool()),
	)
	return m, nil
}

// ClaimWinnings pays user their share of a resolved market. The claim is
// recorded with compare-and-set semantics before any funds move, so a bet
// can be paid at most once; a failed transfer rolls the record back.
func (s *MarketService) ClaimWinnings(ctx context.Context, user string, marketID uint64) (c domain.Claim, err error) {
	defer func() { metrics.RecordClaim(c.Payout, c.Refund, err) }()

	user, err = normalizeAccount(user)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("market_service: claim: %w", err)
	}

	var m domain.Market
	err = s.withMarketLock(ctx, marketID, func() error {
		cur, err := s.markets.GetByID(ctx, marketID)
		if err != nil {
			return fmt.Errorf("market_service: claim on %d: %w", marketID, err)
		}
		if !cur.Resolved {
			return fmt.Errorf("market_service: claim on %d: %w", marketID, domain.ErrMarketNotResolved)
		}
		bet, err := s.markets.GetBet(ctx, marketID, user)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("market_service: claim on %d: no bet for %s: %w", marketID, user, domain.ErrNothingToClaim)
		}
		if err != nil {
			return fmt.Errorf("market_service: claim on %d: %w", marketID, err)
		}

		c, err = payout.Compute(cur, bet)
		if err != nil {
			return fmt.Errorf("market_service: claim on %d: %w", marketID, err)
		}
		if err := s.markets.RecordClaim(ctx, c); err != nil {
			return fmt.Errorf("market_service: claim on %d: record: %w", marketID, err)
		}
		if err := s.transferPayout(ctx, c); err != nil {
			if revertErr := s.markets.RevertClaim(ctx, c); revertErr != nil {
				s.logger.ErrorContext(ctx, "market_service: revert claim failed",
					slog.Uint64("market_id", marketID),
					slog.String("user", user),
					slog.Uint64("payout", c.Payout),
					slog.String("error", revertErr.Error()),
				)
				err = errors.Join(err, revertErr)
			}
			return fmt.Errorf("market_service: claim on %d: %w", marketID, err)
		}

		m, err = s.markets.GetByID(ctx, marketID)
		if err != nil {
			s.logger.WarnContext(ctx, "market_service: reload after claim failed",
				slog.Uint64("market_id", marketID),
				slog.String("error", err.Error()),
			)
			m = cur
		}
		return nil
	})
	if err != nil {
		return domain.Claim{}, err
	}

	s.refreshCache(ctx, m)
	s.events.Emit(ctx, domain.EventWinningsClaimed, c)
	s.logger.InfoContext(ctx, "market_service: winnings claimed",
		slog.Uint64("market_id", marketID),
		slog.String("user", user),
		slog.Uint64("payout", c.Payout),
		slog.Bool("refund", c.Refund),
	)
	return c, nil
}

func (s *MarketService) transferPayout(ctx context.Context, c domain.Claim) error {
	if c.Payout == 0 {
		return nil
	}
	pool := domain.PoolAccount(c.MarketID)
	if err := s.ledger.Debit(ctx, pool, c.Payout); err != nil {
		return fmt.Errorf("debit pool: %w", err)
	}
	if err := s.ledger.Credit(ctx, c.User, c.Payout); err != nil {
		return errors.Join(fmt.Errorf("credit %s: %w", c.User, err), s.compensate(ctx, "credit", pool, c.Payout))
	}
	return nil
}

// compensate reverses a ledger move made earlier in a failed operation.
func (s *MarketService) compensate(ctx context.Context, op, account string, amount uint64) error {
	var err error
	if op == "credit" {
		err = s.ledger.Credit(ctx, account, amount)
	} else {
		err = s.ledger.Debit(ctx, account, amount)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "market_service: ledger compensation failed",
			slog.String("op", op),
			slog.String("account", account),
			slog.Uint64("amount", amount),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("compensating %s of %d on %s: %w", op, amount, account, err)
	}
	return nil
}

// GetMarket returns a market, from the cache when one is configured.
func (s *MarketService) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %d: %w", id, err)
	}
	s.refreshCache(ctx, m)
	return m, nil
}

// ListMarkets returns a page of markets and the total count.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, int64, error) {
	ms, err := s.markets.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("market_service: list: %w", err)
	}
	n, err := s.markets.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("market_service: count: %w", err)
	}
	return ms, n, nil
}

// GetBet returns user's bet on a market.
func (s *MarketService) GetBet(ctx context.Context, marketID uint64, user string) (domain.Bet, error) {
	user, err := normalizeAccount(user)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("market_service: get bet: %w", err)
	}
	b, err := s.markets.GetBet(ctx, marketID, user)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("market_service: get bet on %d: %w", marketID, err)
	}
	return b, nil
}

// ListBets returns every bet on a market.
func (s *MarketService) ListBets(ctx context.Context, marketID uint64) ([]domain.Bet, error) {
	bets, err := s.markets.ListBets(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("market_service: list bets on %d: %w", marketID, err)
	}
	return bets, nil
}

// Status derives the lifecycle state of m against the current clock.
func (s *MarketService) Status(ctx context.Context, m domain.Market) (domain.MarketStatus, error) {
	now, err := s.clock.Now(ctx)
	if err != nil {
		return "", fmt.Errorf("market_service: read clock: %w", err)
	}
	return m.Status(now), nil
}

func (s *MarketService) withMarketLock(ctx context.Context, marketID uint64, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locks != nil {
		unlock, err := s.acquire(ctx, domain.PoolAccount(marketID))
		if err != nil {
			return fmt.Errorf("market_service: lock market %d: %w", marketID, err)
		}
		defer unlock()
	}
	return fn()
}

// acquire retries a held lock a few times before giving up with
// domain.ErrLockHeld.
func (s *MarketService) acquire(ctx context.Context, key string) (func(), error) {
	var err error
	for attempt := range lockAttempts {
		var unlock func()
		unlock, err = s.locks.Acquire(ctx, key, marketLockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * lockBackoff):
		}
	}
	return nil, err
}

func (s *MarketService) refreshCache(ctx context.Context, m domain.Market) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.Uint64("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

// normalizeAccount canonicalizes a user account and rejects identifiers
// reserved for market pools.
func normalizeAccount(account string) (string, error) {
	a, err := crypto.NormalizeIdentity(account)
	if err != nil {
		return "", err
	}
	if domain.IsPoolAccount(a) {
		return "", fmt.Errorf("account %q is reserved: %w", a, domain.ErrInvalidInput)
	}
	return a, nil
}
