package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatherin/backend/internal/models"
)

// ErrNotFound is returned when an event does not exist.
var ErrNotFound = errors.New("event not found")

const eventColumns = `id, title, description, category, location, starts_at, capacity, price_cents, is_virtual, streaming, organizer_id, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.Location, &e.StartsAt,
		&e.Capacity, &e.PriceCents, &e.IsVirtual, &e.Streaming, &e.OrganizerID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (title, description, category, location, starts_at, capacity, price_cents, is_virtual, organizer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, streaming, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Category, e.Location, e.StartsAt,
		e.Capacity, e.PriceCents, e.IsVirtual, e.OrganizerID).
		Scan(&e.ID, &e.Streaming, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.pool.QueryRow(ctx, q, id))
}

// List returns events ordered by start time, optionally filtered by category
// or a case-insensitive title/description search.
func (r *Repository) List(ctx context.Context, category, search string) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	var args []interface{}
	var conds []string
	if category != "" {
		args = append(args, category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			q += " WHERE " + cond
		} else {
			q += " AND " + cond
		}
	}
	q += " ORDER BY starts_at"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Update modifies an event's editable fields.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $1, description = $2, category = $3, location = $4,
		starts_at = $5, capacity = $6, price_cents = $7, is_virtual = $8, updated_at = NOW()
		WHERE id = $9 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, e.Title, e.Description, e.Category, e.Location, e.StartsAt,
		e.Capacity, e.PriceCents, e.IsVirtual, e.ID).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes an event.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStreaming flips the event's streaming flag. Called only by the
// broadcast lifecycle coordinator.
func (r *Repository) SetStreaming(ctx context.Context, eventID uuid.UUID, streaming bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE events SET streaming = $1, updated_at = NOW() WHERE id = $2`, streaming, eventID)
	return err
}
