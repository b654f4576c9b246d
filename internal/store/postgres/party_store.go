package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// PartyStore implements domain.PartyStore. Only authorized parties have a
// row; revoking deletes it.
type PartyStore struct {
	pool *pgxpool.Pool
}

var _ domain.PartyStore = (*PartyStore)(nil)

// NewPartyStore creates a new PartyStore backed by the given pool.
func NewPartyStore(pool *pgxpool.Pool) *PartyStore {
	return &PartyStore{pool: pool}
}

// Set grants or revokes party.
func (s *PartyStore) Set(ctx context.Context, party string, authorized bool) error {
	var err error
	if authorized {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO authorized_parties (party, updated_at) VALUES ($1, NOW())
			ON CONFLICT (party) DO UPDATE SET updated_at = NOW()`, party)
	} else {
		_, err = s.pool.Exec(ctx, `DELETE FROM authorized_parties WHERE party = $1`, party)
	}
	if err != nil {
		return fmt.Errorf("postgres: set party %s: %w", party, err)
	}
	return nil
}

// IsAuthorized reports whether party has a row.
func (s *PartyStore) IsAuthorized(ctx context.Context, party string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM authorized_parties WHERE party = $1)`, party).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("postgres: check party %s: %w", party, err)
	}
	return ok, nil
}

// List returns every authorized party sorted by name.
func (s *PartyStore) List(ctx context.Context) ([]domain.AuthorizedParty, error) {
	rows, err := s.pool.Query(ctx, `SELECT party, updated_at FROM authorized_parties ORDER BY party`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list parties: %w", err)
	}
	defer rows.Close()

	var out []domain.AuthorizedParty
	for rows.Next() {
		p := domain.AuthorizedParty{Authorized: true}
		if err := rows.Scan(&p.Party, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan party: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list parties rows: %w", err)
	}
	return out, nil
}
