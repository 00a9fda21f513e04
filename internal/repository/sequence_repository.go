package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SequenceRepository hands out monotonically increasing counter values for
// enrollment codes. One row per sequence key; the increment happens inside a
// single upsert statement so concurrent callers serialize on the row lock and
// can never observe the same value. The counter restarts at 1 whenever the
// stored year differs from the requested one.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository constructs the repository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

const nextSequenceQuery = `INSERT INTO enrollment_sequences (key, prefix, year, last_number)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET
    last_number = CASE WHEN enrollment_sequences.year = EXCLUDED.year
        THEN enrollment_sequences.last_number + EXCLUDED.last_number
        ELSE EXCLUDED.last_number END,
    year = EXCLUDED.year,
    prefix = EXCLUDED.prefix
RETURNING last_number`

// Next advances the sequence identified by key and returns the new value.
func (r *SequenceRepository) Next(ctx context.Context, key, prefix string, year int) (int, error) {
	return r.NextRange(ctx, key, prefix, year, 1)
}

// NextRange advances the sequence by count in one statement and returns the
// first value of the reserved block [first, first+count). Bulk creation uses
// this to reserve one block per distinct subject instead of one row-level
// round trip per enrollment.
func (r *SequenceRepository) NextRange(ctx context.Context, key, prefix string, year, count int) (int, error) {
	if count <= 0 {
		return 0, fmt.Errorf("sequence range count must be positive, got %d", count)
	}
	var last int
	if err := r.db.GetContext(ctx, &last, nextSequenceQuery, key, prefix, year, count); err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", key, err)
	}
	return last - count + 1, nil
}
