// Package realtime implements the live-broadcast signaling core: an
// in-memory session registry, viewer presence tracking, a WebSocket
// signaling router and the session lifecycle coordinator. All state is
// process-lifetime only; clients rebuild it by reconnecting after a restart.
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherin/backend/internal/models"
)

// Registry is the single owner of broadcast sessions. It maps session id to
// session and keeps an event-id index so session creation is idempotent per
// event. A single lock guards both maps; no I/O ever happens under it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*models.Broadcast
	byEvent  map[uuid.UUID]string
	logger   *zap.Logger
}

// NewRegistry creates an empty broadcast registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*models.Broadcast),
		byEvent:  make(map[uuid.UUID]string),
		logger:   logger,
	}
}

// GetOrCreate returns the active session for an event, creating one if none
// exists. Concurrent calls for the same event yield exactly one session.
// A new session is not live until a broadcaster registers.
func (r *Registry) GetOrCreate(eventID uuid.UUID, title string) models.Broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byEvent[eventID]; ok {
		if s, ok := r.sessions[id]; ok {
			return *s
		}
	}

	s := &models.Broadcast{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Title:     title,
		IsLive:    false,
		Viewers:   0,
		CreatedAt: time.Now(),
	}
	r.sessions[s.ID] = s
	r.byEvent[eventID] = s.ID
	r.logger.Info("broadcast session created",
		zap.String("session_id", s.ID),
		zap.String("event_id", eventID.String()))
	return *s
}

// Get returns a snapshot of the session, if present.
func (r *Registry) Get(sessionID string) (models.Broadcast, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Broadcast{}, false
	}
	return *s, true
}

// Remove deletes a session. Removing an absent id is a no-op.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	if r.byEvent[s.EventID] == sessionID {
		delete(r.byEvent, s.EventID)
	}
}

// ListLive returns a snapshot of all currently live sessions for discovery.
// The set may be stale by the time the caller acts on it.
func (r *Registry) ListLive() []models.Broadcast {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Broadcast, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.IsLive {
			out = append(out, *s)
		}
	}
	return out
}

// SetBroadcaster records connID as the session's broadcaster and marks it
// live. If another broadcaster was registered, the newest one wins and the
// previous connection id is returned so the caller can log the replacement;
// the old connection is neither closed nor notified.
func (r *Registry) SetBroadcaster(sessionID, connID string) (models.Broadcast, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Broadcast{}, "", false
	}
	prev := s.BroadcasterConnID
	s.BroadcasterConnID = connID
	s.IsLive = true
	return *s, prev, true
}

// MarkEnded flips the session to ended, setting EndedAt exactly once.
// Returns false if the session is absent or already ended.
func (r *Registry) MarkEnded(sessionID string) (models.Broadcast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.EndedAt != nil {
		return models.Broadcast{}, false
	}
	now := time.Now()
	s.IsLive = false
	s.EndedAt = &now
	return *s, true
}
