package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// SubmissionStore implements domain.SubmissionStore using PostgreSQL.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

var _ domain.SubmissionStore = (*SubmissionStore)(nil)

// NewSubmissionStore creates a new SubmissionStore backed by the given pool.
func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

const submissionCols = `id, encrypted_content, conditions, revealed, submitter, created_at, revealed_at`

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var sub domain.Submission
	var id int64
	err := row.Scan(&id, &sub.EncryptedContent, &sub.Conditions, &sub.Revealed,
		&sub.Submitter, &sub.CreatedAt, &sub.RevealedAt)
	if err != nil {
		return domain.Submission{}, err
	}
	sub.ID = uint64(id)
	return sub, nil
}

// Create inserts sub and returns it with the assigned ID.
func (s *SubmissionStore) Create(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	conds := sub.Conditions
	if conds == nil {
		conds = []string{}
	}
	created, err := scanSubmission(s.pool.QueryRow(ctx, `
		INSERT INTO submissions (encrypted_content, conditions, submitter, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+submissionCols,
		sub.EncryptedContent, conds, sub.Submitter, sub.CreatedAt,
	))
	if err != nil {
		return domain.Submission{}, fmt.Errorf("postgres: create submission: %w", err)
	}
	return created, nil
}

// GetByID retrieves a submission by its primary key.
func (s *SubmissionStore) GetByID(ctx context.Context, id uint64) (domain.Submission, error) {
	sub, err := scanSubmission(s.pool.QueryRow(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE id = $1`, int64(id)))
	if err != nil {
		if noRows(err) {
			return domain.Submission{}, domain.ErrNotFound
		}
		return domain.Submission{}, fmt.Errorf("postgres: get submission %d: %w", id, err)
	}
	return sub, nil
}

// List returns submissions ordered by ID.
func (s *SubmissionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Submission, error) {
	query, args := listClause(`SELECT `+submissionCols+` FROM submissions WHERE 1=1`, nil, opts, "id ASC")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list submissions rows: %w", err)
	}
	return out, nil
}

// MarkRevealed sets revealed once. A repeat call returns the stored row
// with changed=false.
func (s *SubmissionStore) MarkRevealed(ctx context.Context, id uint64, at time.Time) (domain.Submission, bool, error) {
	sub, err := scanSubmission(s.pool.QueryRow(ctx, `
		UPDATE submissions SET revealed = TRUE, revealed_at = $2
		WHERE id = $1 AND NOT revealed
		RETURNING `+submissionCols,
		int64(id), at,
	))
	if err == nil {
		return sub, true, nil
	}
	if !noRows(err) {
		return domain.Submission{}, false, fmt.Errorf("postgres: reveal submission %d: %w", id, err)
	}
	sub, err = s.GetByID(ctx, id)
	if err != nil {
		return domain.Submission{}, false, err
	}
	return sub, false, nil
}
