package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Connection roles. A connection picks one on its first message and keeps it
// until it disconnects.
const (
	RoleBroadcaster = "broadcaster"
	RoleViewer      = "viewer"
)

// Client represents one peer's WebSocket connection. SessionID and Role are
// empty until the connection is assigned and are written only by the
// connection's own read loop.
type Client struct {
	ID        string
	UserID    uuid.UUID
	SessionID string
	Role      string
	router    *Router
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger
}

func (c *Client) readPump() {
	defer func() {
		c.teardown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.handleMessage(msg)
	}
}

// handleMessage dispatches one inbound message. Messages that do not fit the
// connection's current state (wrong role, already assigned, unknown kind)
// are ignored rather than closing the channel.
func (c *Client) handleMessage(msg WSMessage) {
	switch msg.Event {
	case "register-broadcaster":
		c.registerBroadcaster(msg.Data)
	case "join-stream":
		c.joinStream(msg.Data)
	case "offer":
		if c.Role != RoleBroadcaster {
			return
		}
		var req offerRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.ViewerID == "" {
			return
		}
		c.router.hub.SendToConn(c.SessionID, req.ViewerID, "offer", offerPayload{
			Offer:         req.Offer,
			BroadcasterID: c.ID,
		})
	case "answer":
		if c.Role != RoleViewer {
			return
		}
		var req answerRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.BroadcasterID == "" {
			return
		}
		c.router.hub.SendToConn(c.SessionID, req.BroadcasterID, "answer", answerPayload{
			Answer:   req.Answer,
			ViewerID: c.ID,
		})
	case "ice-candidate":
		if c.SessionID == "" {
			return
		}
		var req iceCandidateRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.TargetID == "" {
			return
		}
		c.router.hub.SendToConn(c.SessionID, req.TargetID, "ice-candidate", iceCandidatePayload{
			Candidate: req.Candidate,
			SenderID:  c.ID,
		})
	case "send-message":
		if c.SessionID == "" {
			return
		}
		c.router.hub.Broadcast(c.SessionID, "chat-message", chatMessagePayload{
			SenderID: c.ID,
			Role:     c.Role,
			StreamID: c.SessionID,
			Message:  msg.Data,
		})
	case "end-stream":
		if c.Role != RoleBroadcaster {
			return
		}
		c.router.lifecycle.End(c.SessionID)
	default:
		// ignore
	}
}

func (c *Client) registerBroadcaster(data json.RawMessage) {
	if c.SessionID != "" {
		return
	}
	var req registerBroadcasterRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return
	}

	s := c.router.registry.GetOrCreate(eventID, req.Title)
	live, prev, ok := c.router.registry.SetBroadcaster(s.ID, c.ID)
	if !ok {
		return
	}
	c.SessionID = s.ID
	c.Role = RoleBroadcaster
	c.router.hub.Add(c)
	if prev != "" && prev != c.ID {
		// Last registerer wins. The replaced connection is left as-is and
		// still believes it is live.
		c.logger.Warn("broadcaster replaced",
			zap.String("session_id", s.ID),
			zap.String("previous_conn_id", prev),
			zap.String("conn_id", c.ID))
	}
	c.router.lifecycle.WentLive(live)
}

func (c *Client) joinStream(data json.RawMessage) {
	if c.SessionID != "" {
		return
	}
	var req joinStreamRequest
	if err := json.Unmarshal(data, &req); err != nil || req.StreamID == "" {
		return
	}

	s, ok := c.router.registry.Get(req.StreamID)
	if !ok || !s.IsLive {
		c.enqueue(WSMessage{Event: "stream-not-live", Data: marshalPayload(streamNotLivePayload{StreamID: req.StreamID})})
		return
	}

	c.SessionID = s.ID
	c.Role = RoleViewer
	c.router.hub.Add(c)
	count, ok := c.router.presence.Increment(s.ID)
	if !ok {
		// session ended between the lookup and the join
		c.router.hub.Remove(c)
		c.SessionID = ""
		c.Role = ""
		c.enqueue(WSMessage{Event: "stream-not-live", Data: marshalPayload(streamNotLivePayload{StreamID: req.StreamID})})
		return
	}
	c.router.hub.Broadcast(s.ID, "viewer-joined", viewerPresencePayload{ViewerID: c.ID, Viewers: count})
	c.router.lifecycle.NotePeak(s.EventID, count)
}

// teardown runs the disconnect cleanup: leave the hub, then let the
// lifecycle coordinator decide whether the session ends with us.
func (c *Client) teardown() {
	if c.SessionID == "" {
		return
	}
	c.router.hub.Remove(c)
	c.router.lifecycle.Disconnect(c.SessionID, c.Role, c.ID)
}

// enqueue hands a message to the write pump. Relays are fire-and-forget: a
// full buffer drops the message.
func (c *Client) enqueue(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
