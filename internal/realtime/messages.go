package realtime

import "encoding/json"

// WSMessage is the WebSocket message envelope. Event names are
// case-sensitive and match the browser clients.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads. Field names are camelCase to match the browser clients.
// Negotiation bodies (offer, answer, candidate) are opaque: the router relays
// them verbatim and never inspects their contents.

type registerBroadcasterRequest struct {
	EventID string `json:"eventId"`
	Title   string `json:"title"`
}

type joinStreamRequest struct {
	StreamID string `json:"streamId"`
}

type offerRequest struct {
	Offer    json.RawMessage `json:"offer"`
	ViewerID string          `json:"viewerId"`
}

type answerRequest struct {
	Answer        json.RawMessage `json:"answer"`
	BroadcasterID string          `json:"broadcasterId"`
}

type iceCandidateRequest struct {
	Candidate json.RawMessage `json:"candidate"`
	TargetID  string          `json:"targetId"`
}

// Outbound payloads.

type offerPayload struct {
	Offer         json.RawMessage `json:"offer"`
	BroadcasterID string          `json:"broadcasterId"`
}

type answerPayload struct {
	Answer   json.RawMessage `json:"answer"`
	ViewerID string          `json:"viewerId"`
}

type iceCandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
	SenderID  string          `json:"senderId"`
}

type viewerPresencePayload struct {
	ViewerID string `json:"viewerId"`
	Viewers  int    `json:"viewers"`
}

type streamEndedPayload struct {
	StreamID string `json:"streamId"`
}

type streamNotLivePayload struct {
	StreamID string `json:"streamId"`
}

type chatMessagePayload struct {
	SenderID string          `json:"senderId"`
	Role     string          `json:"role"`
	StreamID string          `json:"streamId"`
	Message  json.RawMessage `json:"message"`
}
