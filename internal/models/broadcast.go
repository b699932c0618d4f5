package models

import (
	"time"

	"github.com/google/uuid"
)

// Broadcast represents one broadcast session for an event. It lives only in
// process memory: the registry is the single owner and sessions do not
// survive a restart.
type Broadcast struct {
	ID      string    `json:"id"`
	EventID uuid.UUID `json:"event_id"`
	Title   string    `json:"title"`
	// IsLive is true from broadcaster registration until explicit end or
	// broadcaster disconnect. A live broadcast always has a non-empty
	// BroadcasterConnID.
	IsLive            bool       `json:"is_live"`
	BroadcasterConnID string     `json:"-"`
	Viewers           int        `json:"viewers"`
	CreatedAt         time.Time  `json:"created_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
}
