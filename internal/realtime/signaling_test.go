package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type streamingCall struct {
	eventID   uuid.UUID
	streaming bool
}

type fakeEventRecorder struct {
	calls chan streamingCall
}

func newFakeEventRecorder() *fakeEventRecorder {
	return &fakeEventRecorder{calls: make(chan streamingCall, 16)}
}

func (f *fakeEventRecorder) SetStreaming(_ context.Context, eventID uuid.UUID, streaming bool) error {
	f.calls <- streamingCall{eventID: eventID, streaming: streaming}
	return nil
}

type testEnv struct {
	registry *Registry
	presence *Tracker
	hub      *Hub
	router   *Router
	recorder *fakeEventRecorder
}

func newTestEnv() *testEnv {
	logger := zap.NewNop()
	registry := NewRegistry(logger)
	presence := NewTracker(registry)
	hub := NewHub(logger, nil, nil)
	recorder := newFakeEventRecorder()
	lifecycle := NewLifecycle(registry, presence, hub, recorder, nil, logger)
	router := NewRouter(registry, presence, lifecycle, hub, logger)
	return &testEnv{registry: registry, presence: presence, hub: hub, router: router, recorder: recorder}
}

func (e *testEnv) newClient() *Client {
	return &Client{
		ID:     uuid.NewString(),
		router: e.router,
		send:   make(chan WSMessage, 256),
		logger: zap.NewNop(),
	}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func recvEvent(t *testing.T, c *Client, want string) WSMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		if msg.Event != want {
			t.Fatalf("got event %q, want %q", msg.Event, want)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event %q", want)
	}
	return WSMessage{}
}

func noMessages(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %q", msg.Event)
	default:
	}
}

func drainClient(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func waitStreamingCall(t *testing.T, rec *fakeEventRecorder) streamingCall {
	t.Helper()
	select {
	case call := <-rec.calls:
		return call
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event record update")
	}
	return streamingCall{}
}

func register(t *testing.T, c *Client, eventID uuid.UUID, title string) {
	t.Helper()
	c.handleMessage(WSMessage{
		Event: "register-broadcaster",
		Data:  mustJSON(t, registerBroadcasterRequest{EventID: eventID.String(), Title: title}),
	})
}

func join(t *testing.T, c *Client, streamID string) {
	t.Helper()
	c.handleMessage(WSMessage{
		Event: "join-stream",
		Data:  mustJSON(t, joinStreamRequest{StreamID: streamID}),
	})
}

func TestRegisterBroadcasterGoesLive(t *testing.T) {
	env := newTestEnv()
	eventID := uuid.New()
	b := env.newClient()

	register(t, b, eventID, "product demo")

	if b.Role != RoleBroadcaster {
		t.Fatalf("role = %q, want broadcaster", b.Role)
	}
	s, ok := env.registry.Get(b.SessionID)
	if !ok {
		t.Fatal("session not in registry")
	}
	if !s.IsLive {
		t.Error("session not live after registration")
	}
	if s.BroadcasterConnID != b.ID {
		t.Errorf("broadcaster conn = %q, want %q", s.BroadcasterConnID, b.ID)
	}

	call := waitStreamingCall(t, env.recorder)
	if call.eventID != eventID || !call.streaming {
		t.Errorf("recorder got (%s, %v), want (%s, true)", call.eventID, call.streaming, eventID)
	}
}

func TestRegisterIgnoredWhenAlreadyAssigned(t *testing.T) {
	env := newTestEnv()
	b := env.newClient()
	register(t, b, uuid.New(), "first")
	first := b.SessionID

	register(t, b, uuid.New(), "second")
	if b.SessionID != first {
		t.Error("assigned connection must not switch sessions")
	}
	if len(env.registry.ListLive()) != 1 {
		t.Errorf("expected 1 live session, got %d", len(env.registry.ListLive()))
	}
}

func TestDuplicateBroadcasterLastRegistererWins(t *testing.T) {
	env := newTestEnv()
	eventID := uuid.New()
	b1 := env.newClient()
	b2 := env.newClient()

	register(t, b1, eventID, "t")
	register(t, b2, eventID, "t")

	if b2.SessionID != b1.SessionID {
		t.Fatal("second broadcaster must land on the same session")
	}
	s, _ := env.registry.Get(b1.SessionID)
	if s.BroadcasterConnID != b2.ID {
		t.Errorf("broadcaster conn = %q, want newest %q", s.BroadcasterConnID, b2.ID)
	}
	// the replaced broadcaster is neither closed nor notified
	noMessages(t, b1)
}

func TestReplacedBroadcasterDisconnectKeepsSessionLive(t *testing.T) {
	env := newTestEnv()
	eventID := uuid.New()
	b1 := env.newClient()
	b2 := env.newClient()
	v := env.newClient()

	register(t, b1, eventID, "t")
	register(t, b2, eventID, "t")
	join(t, v, b1.SessionID)
	drainClient(v)

	// the stale connection departs; the newer registrant keeps the session
	b1.teardown()
	noMessages(t, v)
	s, ok := env.registry.Get(b2.SessionID)
	if !ok || !s.IsLive {
		t.Fatal("session must survive the replaced broadcaster's disconnect")
	}
	if s.BroadcasterConnID != b2.ID {
		t.Errorf("broadcaster conn = %q, want %q", s.BroadcasterConnID, b2.ID)
	}

	// the current broadcaster's disconnect still ends it
	sessionID := b2.SessionID
	b2.teardown()
	recvEvent(t, v, "stream-ended")
	if _, ok := env.registry.Get(sessionID); ok {
		t.Error("session must be removed after the current broadcaster departs")
	}
}

func TestJoinStreamNotLive(t *testing.T) {
	env := newTestEnv()
	v := env.newClient()

	// unknown session
	join(t, v, "no-such-stream")
	msg := recvEvent(t, v, "stream-not-live")
	var p streamNotLivePayload
	if err := json.Unmarshal(msg.Data, &p); err != nil || p.StreamID != "no-such-stream" {
		t.Fatalf("bad stream-not-live payload: %s", msg.Data)
	}
	if v.SessionID != "" || v.Role != "" {
		t.Fatal("failed join must leave the connection unassigned")
	}

	// session exists but no broadcaster registered yet
	s := env.registry.GetOrCreate(uuid.New(), "t")
	join(t, v, s.ID)
	recvEvent(t, v, "stream-not-live")
	noMessages(t, v)

	got, _ := env.registry.Get(s.ID)
	if got.Viewers != 0 {
		t.Errorf("viewers = %d, want 0 after rejected join", got.Viewers)
	}
}

func TestOfferRelayAddressing(t *testing.T) {
	env := newTestEnv()
	b := env.newClient()
	v1 := env.newClient()
	v2 := env.newClient()

	register(t, b, uuid.New(), "t")
	join(t, v1, b.SessionID)
	join(t, v2, b.SessionID)
	drainClient(b)
	drainClient(v1)
	drainClient(v2)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	b.handleMessage(WSMessage{
		Event: "offer",
		Data:  mustJSON(t, offerRequest{Offer: offer, ViewerID: v1.ID}),
	})

	msg := recvEvent(t, v1, "offer")
	var p offerPayload
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		t.Fatalf("unmarshal offer: %v", err)
	}
	if p.BroadcasterID != b.ID {
		t.Errorf("broadcasterId = %q, want %q", p.BroadcasterID, b.ID)
	}
	if string(p.Offer) != string(offer) {
		t.Errorf("offer body not relayed verbatim: %s", p.Offer)
	}
	// only the addressed viewer receives it
	noMessages(t, v2)

	// relay to a departed peer is dropped silently
	b.handleMessage(WSMessage{
		Event: "offer",
		Data:  mustJSON(t, offerRequest{Offer: offer, ViewerID: "gone"}),
	})
	noMessages(t, v1)
	noMessages(t, v2)

	// a viewer cannot send offers
	v1.handleMessage(WSMessage{
		Event: "offer",
		Data:  mustJSON(t, offerRequest{Offer: offer, ViewerID: v2.ID}),
	})
	noMessages(t, v2)
}

func TestAnswerAndICERelay(t *testing.T) {
	env := newTestEnv()
	b := env.newClient()
	v := env.newClient()

	register(t, b, uuid.New(), "t")
	join(t, v, b.SessionID)
	drainClient(b)
	drainClient(v)

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0..."}`)
	v.handleMessage(WSMessage{
		Event: "answer",
		Data:  mustJSON(t, answerRequest{Answer: answer, BroadcasterID: b.ID}),
	})
	msg := recvEvent(t, b, "answer")
	var ap answerPayload
	if err := json.Unmarshal(msg.Data, &ap); err != nil {
		t.Fatalf("unmarshal answer: %v", err)
	}
	if ap.ViewerID != v.ID || string(ap.Answer) != string(answer) {
		t.Errorf("bad answer relay: %s", msg.Data)
	}

	cand := json.RawMessage(`{"candidate":"candidate:1 1 UDP ..."}`)
	v.handleMessage(WSMessage{
		Event: "ice-candidate",
		Data:  mustJSON(t, iceCandidateRequest{Candidate: cand, TargetID: b.ID}),
	})
	msg = recvEvent(t, b, "ice-candidate")
	var ip iceCandidatePayload
	if err := json.Unmarshal(msg.Data, &ip); err != nil {
		t.Fatalf("unmarshal ice-candidate: %v", err)
	}
	if ip.SenderID != v.ID || string(ip.Candidate) != string(cand) {
		t.Errorf("bad ice relay: %s", msg.Data)
	}
}

func TestChatBroadcast(t *testing.T) {
	env := newTestEnv()
	b := env.newClient()
	v := env.newClient()

	register(t, b, uuid.New(), "t")
	join(t, v, b.SessionID)
	drainClient(b)
	drainClient(v)

	body := json.RawMessage(`{"text":"hello"}`)
	v.handleMessage(WSMessage{Event: "send-message", Data: body})

	for _, c := range []*Client{b, v} {
		msg := recvEvent(t, c, "chat-message")
		var p chatMessagePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			t.Fatalf("unmarshal chat-message: %v", err)
		}
		if p.SenderID != v.ID || p.Role != RoleViewer {
			t.Errorf("chat tagged (%q, %q), want (%q, viewer)", p.SenderID, p.Role, v.ID)
		}
		if string(p.Message) != string(body) {
			t.Errorf("chat body = %s, want %s", p.Message, body)
		}
	}
}

func TestViewerCannotEndStream(t *testing.T) {
	env := newTestEnv()
	b := env.newClient()
	v := env.newClient()

	register(t, b, uuid.New(), "t")
	join(t, v, b.SessionID)

	v.handleMessage(WSMessage{Event: "end-stream"})

	s, ok := env.registry.Get(b.SessionID)
	if !ok || !s.IsLive {
		t.Fatal("viewer end-stream must not end the session")
	}
}

func TestBroadcasterDisconnectEndsSession(t *testing.T) {
	env := newTestEnv()
	eventID := uuid.New()
	b := env.newClient()
	v1 := env.newClient()
	v2 := env.newClient()

	register(t, b, eventID, "t")
	waitStreamingCall(t, env.recorder)
	join(t, v1, b.SessionID)
	join(t, v2, b.SessionID)
	sessionID := b.SessionID
	drainClient(v1)
	drainClient(v2)

	b.teardown()

	for _, v := range []*Client{v1, v2} {
		recvEvent(t, v, "stream-ended")
		noMessages(t, v)
	}
	if _, ok := env.registry.Get(sessionID); ok {
		t.Error("session must be removed from the registry")
	}
	call := waitStreamingCall(t, env.recorder)
	if call.eventID != eventID || call.streaming {
		t.Errorf("recorder got (%s, %v), want (%s, false)", call.eventID, call.streaming, eventID)
	}

	// viewer disconnects after the session ended: no broadcast, no underflow
	v1.teardown()
	noMessages(t, v2)
}

func TestEndToEndScenario(t *testing.T) {
	env := newTestEnv()
	eventID := uuid.New()

	// broadcaster registers: registry has one live session
	b := env.newClient()
	register(t, b, eventID, "evt1 live")
	live := env.registry.ListLive()
	if len(live) != 1 {
		t.Fatalf("expected 1 live session, got %d", len(live))
	}
	sessionID := live[0].ID
	waitStreamingCall(t, env.recorder)

	// v1 joins: everyone sees viewer-joined with count 1
	v1 := env.newClient()
	join(t, v1, sessionID)
	for _, c := range []*Client{b, v1} {
		msg := recvEvent(t, c, "viewer-joined")
		var p viewerPresencePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			t.Fatalf("unmarshal viewer-joined: %v", err)
		}
		if p.ViewerID != v1.ID || p.Viewers != 1 {
			t.Fatalf("viewer-joined = (%q, %d), want (%q, 1)", p.ViewerID, p.Viewers, v1.ID)
		}
	}

	// v2 joins: count 2
	v2 := env.newClient()
	join(t, v2, sessionID)
	for _, c := range []*Client{b, v1, v2} {
		msg := recvEvent(t, c, "viewer-joined")
		var p viewerPresencePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			t.Fatalf("unmarshal viewer-joined: %v", err)
		}
		if p.ViewerID != v2.ID || p.Viewers != 2 {
			t.Fatalf("viewer-joined = (%q, %d), want (%q, 2)", p.ViewerID, p.Viewers, v2.ID)
		}
	}
	if s, _ := env.registry.Get(sessionID); s.Viewers != 2 {
		t.Fatalf("viewers = %d, want 2", s.Viewers)
	}

	// v1 disconnects: viewer-left with count 1
	v1.teardown()
	for _, c := range []*Client{b, v2} {
		msg := recvEvent(t, c, "viewer-left")
		var p viewerPresencePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			t.Fatalf("unmarshal viewer-left: %v", err)
		}
		if p.ViewerID != v1.ID || p.Viewers != 1 {
			t.Fatalf("viewer-left = (%q, %d), want (%q, 1)", p.ViewerID, p.Viewers, v1.ID)
		}
	}

	// broadcaster ends the stream: v2 is notified, session is gone
	b.handleMessage(WSMessage{Event: "end-stream"})
	recvEvent(t, v2, "stream-ended")
	if _, ok := env.registry.Get(sessionID); ok {
		t.Fatal("session must be gone after end-stream")
	}
	call := waitStreamingCall(t, env.recorder)
	if call.streaming {
		t.Error("expected streaming=false update on end")
	}

	// ending again is a no-op
	b.handleMessage(WSMessage{Event: "end-stream"})
	noMessages(t, v2)

	// a late joiner is told the stream is not live
	v3 := env.newClient()
	join(t, v3, sessionID)
	recvEvent(t, v3, "stream-not-live")
}

func TestWireUsesBrowserFieldNames(t *testing.T) {
	env := newTestEnv()
	b := env.newClient()
	v := env.newClient()
	register(t, b, uuid.New(), "t")
	join(t, v, b.SessionID)

	// outbound presence payload carries viewerId, not viewer_id
	msg := recvEvent(t, v, "viewer-joined")
	fields := payloadFields(t, msg.Data)
	for _, key := range []string{"viewerId", "viewers"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("viewer-joined payload missing %q: %s", key, msg.Data)
		}
	}
	drainClient(b)

	// inbound offer addressed with camelCase viewerId is understood and
	// relayed with a camelCase broadcasterId
	b.handleMessage(WSMessage{
		Event: "offer",
		Data:  json.RawMessage(`{"offer":{"type":"offer","sdp":"v=0"},"viewerId":"` + v.ID + `"}`),
	})
	msg = recvEvent(t, v, "offer")
	fields = payloadFields(t, msg.Data)
	for _, key := range []string{"offer", "broadcasterId"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("offer payload missing %q: %s", key, msg.Data)
		}
	}

	v.handleMessage(WSMessage{
		Event: "ice-candidate",
		Data:  json.RawMessage(`{"candidate":{"candidate":"candidate:1"},"targetId":"` + b.ID + `"}`),
	})
	msg = recvEvent(t, b, "ice-candidate")
	fields = payloadFields(t, msg.Data)
	for _, key := range []string{"candidate", "senderId"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("ice-candidate payload missing %q: %s", key, msg.Data)
		}
	}
}

func payloadFields(t *testing.T, data json.RawMessage) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return m
}

func TestMalformedMessagesIgnored(t *testing.T) {
	env := newTestEnv()
	c := env.newClient()

	c.handleMessage(WSMessage{Event: "register-broadcaster", Data: json.RawMessage(`{"eventId":"not-a-uuid"}`)})
	c.handleMessage(WSMessage{Event: "join-stream", Data: json.RawMessage(`{`)})
	c.handleMessage(WSMessage{Event: "offer", Data: json.RawMessage(`{}`)})
	c.handleMessage(WSMessage{Event: "ice-candidate", Data: json.RawMessage(`{}`)})
	c.handleMessage(WSMessage{Event: "no-such-kind"})

	if c.SessionID != "" || c.Role != "" {
		t.Fatal("malformed messages must leave the connection unassigned")
	}
	noMessages(t, c)
}
