package models

import (
	"time"

	"github.com/google/uuid"
)

// Event represents an event record. Streaming reflects whether a live
// broadcast is currently running for the event; it is flipped only by the
// broadcast lifecycle coordinator.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
	Capacity    int       `json:"capacity"`
	PriceCents  int       `json:"price_cents"`
	IsVirtual   bool      `json:"is_virtual"`
	Streaming   bool      `json:"streaming"`
	OrganizerID uuid.UUID `json:"organizer_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
