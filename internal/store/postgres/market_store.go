package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Market IDs
// come from market_id_seq, which starts at zero.
type MarketStore struct {
	pool *pgxpool.Pool
}

var _ domain.MarketStore = (*MarketStore)(nil)

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, description, resolution_time, total_yes, total_no,
	resolved, outcome, creator, disbursed, claimed_winning_stake,
	created_at, resolved_at`

const betCols = `market_id, user_id, yes_amount, no_amount, claimed, payout`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var id, resTime, yes, no, disbursed, claimed int64
	err := row.Scan(
		&id, &m.Description, &resTime, &yes, &no,
		&m.Resolved, &m.Outcome, &m.Creator, &disbursed, &claimed,
		&m.CreatedAt, &m.ResolvedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.ID = uint64(id)
	m.ResolutionTime = uint64(resTime)
	m.TotalYes = uint64(yes)
	m.TotalNo = uint64(no)
	m.Disbursed = uint64(disbursed)
	m.ClaimedWinningStake = uint64(claimed)
	return m, nil
}

func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	var marketID, yes, no, payout int64
	if err := row.Scan(&marketID, &b.User, &yes, &no, &b.Claimed, &payout); err != nil {
		return domain.Bet{}, err
	}
	b.MarketID = uint64(marketID)
	b.YesAmount = uint64(yes)
	b.NoAmount = uint64(no)
	b.Payout = uint64(payout)
	return b, nil
}

// Create inserts m and returns it with the assigned ID.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) (domain.Market, error) {
	resTime, err := toInt8(m.ResolutionTime)
	if err != nil {
		return domain.Market{}, err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO markets (description, resolution_time, creator, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+marketCols,
		m.Description, resTime, m.Creator, m.CreatedAt,
	)
	created, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: create market: %w", err)
	}
	return created, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id uint64) (domain.Market, error) {
	return s.get(ctx, s.pool, id, false)
}

func (s *MarketStore) get(ctx context.Context, q querier, id uint64, forUpdate bool) (domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	m, err := scanMarket(q.QueryRow(ctx, query, int64(id)))
	if err != nil {
		if noRows(err) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// List returns markets ordered by ID.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query, args := listClause(`SELECT `+marketCols+` FROM markets WHERE 1=1`, nil, opts, "id ASC")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return out, nil
}

// Count returns the number of markets ever created.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

// AddStake locks the market row, rejects resolved markets and adds amount
// to both the market total and the user's bet in one transaction.
func (s *MarketStore) AddStake(ctx context.Context, id uint64, user string, side domain.Side, amount uint64) (domain.Market, error) {
	amt, err := toInt8(amount)
	if err != nil {
		return domain.Market{}, err
	}
	var yes, no int64
	if side == domain.SideYes {
		yes = amt
	} else {
		no = amt
	}

	var out domain.Market
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		m, err := s.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if m.Resolved {
			return domain.ErrMarketClosed
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO bets (market_id, user_id, yes_amount, no_amount)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (market_id, user_id) DO UPDATE SET
				yes_amount = bets.yes_amount + EXCLUDED.yes_amount,
				no_amount  = bets.no_amount + EXCLUDED.no_amount`,
			int64(id), user, yes, no,
		)
		if err != nil {
			return fmt.Errorf("postgres: upsert bet: %w", err)
		}

		out, err = scanMarket(tx.QueryRow(ctx, `
			UPDATE markets SET total_yes = total_yes + $2, total_no = total_no + $3
			WHERE id = $1
			RETURNING `+marketCols,
			int64(id), yes, no,
		))
		if err != nil {
			return fmt.Errorf("postgres: update totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Market{}, err
	}
	return out, nil
}

// Resolve sets the outcome if the market is still unresolved.
func (s *MarketStore) Resolve(ctx context.Context, id uint64, outcome bool, at time.Time) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE markets SET resolved = TRUE, outcome = $2, resolved_at = $3
		WHERE id = $1 AND NOT resolved
		RETURNING `+marketCols,
		int64(id), outcome, at,
	)
	m, err := scanMarket(row)
	if err == nil {
		return m, nil
	}
	if !noRows(err) {
		return domain.Market{}, fmt.Errorf("postgres: resolve market %d: %w", id, err)
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return domain.Market{}, err
	}
	return domain.Market{}, domain.ErrAlreadyResolved
}

// GetBet returns the user's bet or domain.ErrNotFound.
func (s *MarketStore) GetBet(ctx context.Context, marketID uint64, user string) (domain.Bet, error) {
	b, err := scanBet(s.pool.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 AND user_id = $2`, int64(marketID), user))
	if err != nil {
		if noRows(err) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %d/%s: %w", marketID, user, err)
	}
	return b, nil
}

// ListBets returns the market's bets in first-bet order.
func (s *MarketStore) ListBets(ctx context.Context, marketID uint64) ([]domain.Bet, error) {
	if _, err := s.GetByID(ctx, marketID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 ORDER BY seq ASC`, int64(marketID))
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets %d: %w", marketID, err)
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return out, nil
}

// RecordClaim flips bets.claimed with a conditional update and bumps the
// market's disbursement counters in the same transaction.
func (s *MarketStore) RecordClaim(ctx context.Context, c domain.Claim) error {
	return s.applyClaim(ctx, c, false)
}

// RevertClaim undoes a RecordClaim.
func (s *MarketStore) RevertClaim(ctx context.Context, c domain.Claim) error {
	return s.applyClaim(ctx, c, true)
}

func (s *MarketStore) applyClaim(ctx context.Context, c domain.Claim, revert bool) error {
	payout, err := toInt8(c.Payout)
	if err != nil {
		return err
	}
	stake, err := toInt8(c.Stake)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		var stmt string
		var args []any
		if revert {
			stmt = `UPDATE bets SET claimed = FALSE, payout = 0
				WHERE market_id = $1 AND user_id = $2 AND claimed`
			args = []any{int64(c.MarketID), c.User}
			payout, stake = -payout, -stake
		} else {
			stmt = `UPDATE bets SET claimed = TRUE, payout = $3
				WHERE market_id = $1 AND user_id = $2 AND NOT claimed`
			args = []any{int64(c.MarketID), c.User, payout}
		}

		res, err := tx.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("postgres: update bet claim: %w", err)
		}
		if res.RowsAffected() == 0 {
			if revert {
				return domain.ErrNotFound
			}
			var exists bool
			err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM bets WHERE market_id = $1 AND user_id = $2)`,
				int64(c.MarketID), c.User).Scan(&exists)
			if err != nil {
				return fmt.Errorf("postgres: check bet: %w", err)
			}
			if !exists {
				return domain.ErrNothingToClaim
			}
			return domain.ErrAlreadyClaimed
		}

		_, err = tx.Exec(ctx, `
			UPDATE markets SET disbursed = disbursed + $2,
				claimed_winning_stake = claimed_winning_stake + $3
			WHERE id = $1`,
			int64(c.MarketID), payout, stake,
		)
		if err != nil {
			return fmt.Errorf("postgres: update disbursement: %w", err)
		}
		return nil
	})
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// inTx runs fn in a transaction, committing on nil and rolling back
// otherwise.
func (s *MarketStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return inTx(ctx, s.pool, fn)
}

func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}
