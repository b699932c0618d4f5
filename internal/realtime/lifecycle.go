package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherin/backend/internal/models"
)

// collaboratorTimeout bounds best-effort calls to the durable stores.
const collaboratorTimeout = 5 * time.Second

// EventRecorder updates the durable event record's streaming flag. It is the
// external collaborator of the lifecycle coordinator; calls are best-effort.
type EventRecorder interface {
	SetStreaming(ctx context.Context, eventID uuid.UUID, streaming bool) error
}

// SessionHistory records durable broadcast-session history for analytics.
type SessionHistory interface {
	RecordStart(ctx context.Context, eventID uuid.UUID) error
	RecordPeak(ctx context.Context, eventID uuid.UUID, viewers int) error
	RecordEnd(ctx context.Context, eventID uuid.UUID) error
}

// Lifecycle drives each session's created -> live -> ended state machine and
// is the only component that talks to the durable stores. Store calls happen
// after the in-memory transition commits, outside the registry lock, and a
// failure never blocks or reverts the transition.
type Lifecycle struct {
	registry *Registry
	presence *Tracker
	hub      *Hub
	events   EventRecorder
	history  SessionHistory
	logger   *zap.Logger
}

// NewLifecycle creates the session lifecycle coordinator. events and history
// may be nil; liveness then stays in memory only.
func NewLifecycle(registry *Registry, presence *Tracker, hub *Hub, events EventRecorder, history SessionHistory, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		registry: registry,
		presence: presence,
		hub:      hub,
		events:   events,
		history:  history,
		logger:   logger,
	}
}

// WentLive handles a successful broadcaster registration.
func (l *Lifecycle) WentLive(s models.Broadcast) {
	l.logger.Info("broadcast went live",
		zap.String("session_id", s.ID),
		zap.String("event_id", s.EventID.String()))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		if l.events != nil {
			if err := l.events.SetStreaming(ctx, s.EventID, true); err != nil {
				l.logger.Warn("event record update failed", zap.String("event_id", s.EventID.String()), zap.Error(err))
			}
		}
		if l.history != nil {
			if err := l.history.RecordStart(ctx, s.EventID); err != nil {
				l.logger.Warn("session history start failed", zap.String("event_id", s.EventID.String()), zap.Error(err))
			}
		}
	}()
}

// NotePeak records a new viewer count against the session history.
func (l *Lifecycle) NotePeak(eventID uuid.UUID, viewers int) {
	if l.history == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		if err := l.history.RecordPeak(ctx, eventID, viewers); err != nil {
			l.logger.Warn("session history peak failed", zap.String("event_id", eventID.String()), zap.Error(err))
		}
	}()
}

// End terminates a session: mark it ended, notify every remaining connection,
// drop it from the registry, then update the durable stores. Ending an
// already-ended or unknown session is a no-op.
func (l *Lifecycle) End(sessionID string) {
	s, ok := l.registry.MarkEnded(sessionID)
	if !ok {
		return
	}
	l.hub.Broadcast(sessionID, "stream-ended", streamEndedPayload{StreamID: sessionID})
	l.registry.Remove(sessionID)
	l.logger.Info("broadcast ended",
		zap.String("session_id", sessionID),
		zap.String("event_id", s.EventID.String()))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		if l.events != nil {
			if err := l.events.SetStreaming(ctx, s.EventID, false); err != nil {
				l.logger.Warn("event record update failed", zap.String("event_id", s.EventID.String()), zap.Error(err))
			}
		}
		if l.history != nil {
			if err := l.history.RecordEnd(ctx, s.EventID); err != nil {
				l.logger.Warn("session history end failed", zap.String("event_id", s.EventID.String()), zap.Error(err))
			}
		}
	}()
}

// Disconnect handles a closed connection. A broadcaster going away ends the
// session; a viewer going away only adjusts presence.
func (l *Lifecycle) Disconnect(sessionID, role, connID string) {
	switch role {
	case RoleBroadcaster:
		// only the connection currently holding the broadcaster slot ends
		// the session; a replaced registrant's stale connection does not
		if s, ok := l.registry.Get(sessionID); ok && s.BroadcasterConnID != connID {
			return
		}
		l.End(sessionID)
	case RoleViewer:
		count, ok := l.presence.Decrement(sessionID)
		if !ok {
			return
		}
		l.hub.Broadcast(sessionID, "viewer-left", viewerPresencePayload{ViewerID: connID, Viewers: count})
	}
}
