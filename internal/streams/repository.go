package streams

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists broadcast-session history. The in-memory registry is
// the source of truth while a broadcast runs; this table only records that a
// session happened and how large it got.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a broadcast session history repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordStart opens a history row for the event unless one is already open.
func (r *Repository) RecordStart(ctx context.Context, eventID uuid.UUID) error {
	const q = `INSERT INTO broadcast_sessions (event_id)
		SELECT $1 WHERE NOT EXISTS (
			SELECT 1 FROM broadcast_sessions WHERE event_id = $1 AND ended_at IS NULL
		)`
	_, err := r.pool.Exec(ctx, q, eventID)
	return err
}

// RecordPeak raises peak_viewers on the open row when the count exceeds it.
func (r *Repository) RecordPeak(ctx context.Context, eventID uuid.UUID, viewers int) error {
	const q = `UPDATE broadcast_sessions SET peak_viewers = $2
		WHERE event_id = $1 AND ended_at IS NULL AND $2 > peak_viewers`
	_, err := r.pool.Exec(ctx, q, eventID, viewers)
	return err
}

// RecordEnd closes the open history row for the event.
func (r *Repository) RecordEnd(ctx context.Context, eventID uuid.UUID) error {
	const q = `UPDATE broadcast_sessions SET ended_at = NOW()
		WHERE event_id = $1 AND ended_at IS NULL`
	_, err := r.pool.Exec(ctx, q, eventID)
	return err
}
