package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Publisher publishes session events to Redis for cross-instance broadcast.
type Publisher interface {
	PublishSessionEvent(sessionID, event string, payload []byte) error
}

// Subscriber subscribes to a session's channel and invokes handler for
// incoming events.
type Subscriber interface {
	SubscribeSession(sessionID string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains session id -> set of connections and addresses messages.
// Session-scoped broadcasts go through Redis when a publisher is configured:
// the message is published once and every instance (including this one)
// delivers it to its local clients via the subscription callback, so each
// client receives it exactly once. Directed sends are always local; a peer's
// negotiation counterpart is on the same instance that assigned it.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per session
	logger   *zap.Logger
	pub      Publisher
	sub      Subscriber
}

// NewHub creates a connection hub. pub and sub may be nil for a standalone
// instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		sessions: make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		pub:      pub,
		sub:      sub,
	}
}

// Add places an assigned client in its session's connection set. The first
// client in a session starts the Redis subscription for it.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	if h.sessions[c.SessionID] == nil {
		h.sessions[c.SessionID] = make(map[string]*Client)
		if h.sub != nil {
			sessionID := c.SessionID
			cancel, err := h.sub.SubscribeSession(sessionID, func(event string, payload []byte) {
				h.broadcastLocal(sessionID, event, payload)
			})
			if err == nil {
				h.subs[sessionID] = cancel
			} else {
				h.logger.Warn("session subscribe failed", zap.String("session_id", sessionID), zap.Error(err))
			}
		}
	}
	h.sessions[c.SessionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("connection assigned",
		zap.String("conn_id", c.ID),
		zap.String("session_id", c.SessionID),
		zap.String("role", c.Role))
}

// Remove takes a client out of its session's connection set. The Redis
// subscription is cancelled when the last client leaves.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	if m, ok := h.sessions[c.SessionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.sessions, c.SessionID)
			if cancel, ok := h.subs[c.SessionID]; ok {
				cancel()
				delete(h.subs, c.SessionID)
			}
		}
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every connection in a session, across
// instances when Redis is configured.
func (h *Hub) Broadcast(sessionID, event string, payload interface{}) {
	data := marshalPayload(payload)
	if h.pub != nil {
		if err := h.pub.PublishSessionEvent(sessionID, event, data); err == nil {
			return
		}
		// fall through to local delivery if the publish failed
	}
	h.broadcastLocal(sessionID, event, data)
}

// SendToConn sends an event to exactly one connection in a session. A
// missing target means the peer already departed; the message is dropped.
func (h *Hub) SendToConn(sessionID, connID, event string, payload interface{}) {
	msg := WSMessage{Event: event, Data: marshalPayload(payload)}
	h.mu.RLock()
	c := h.sessions[sessionID][connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	c.enqueue(msg)
}

func (h *Hub) broadcastLocal(sessionID, event string, data []byte) {
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[sessionID]))
	for _, c := range h.sessions[sessionID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.enqueue(msg)
	}
}

func marshalPayload(payload interface{}) []byte {
	switch v := payload.(type) {
	case []byte:
		return v
	case json.RawMessage:
		return v
	default:
		data, _ := json.Marshal(payload)
		return data
	}
}
