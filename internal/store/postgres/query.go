package postgres

import (
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// listClause appends created_at filters, ordering and pagination to query.
// Placeholders are numbered after the arguments already in args.
func listClause(query string, args []any, opts domain.ListOpts, order string) (string, []any) {
	argIdx := len(args) + 1
	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY " + order

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

// toInt8 converts an amount to the BIGINT columns' range. Larger values
// cannot be stored and are rejected as invalid input.
func toInt8(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("postgres: amount %d exceeds column range: %w", v, domain.ErrInvalidInput)
	}
	return int64(v), nil
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
