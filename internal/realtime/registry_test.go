package realtime

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	eventID := uuid.New()

	const n = 50
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.GetOrCreate(eventID, "launch party").ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent GetOrCreate produced different sessions: %s vs %s", ids[0], ids[i])
		}
	}
	if len(r.sessions) != 1 {
		t.Errorf("expected 1 session in registry, got %d", len(r.sessions))
	}

	s := r.GetOrCreate(eventID, "ignored title on existing")
	if s.ID != ids[0] {
		t.Errorf("expected existing session %s, got %s", ids[0], s.ID)
	}
	if s.IsLive {
		t.Error("new session must not be live before a broadcaster registers")
	}
	if s.Viewers != 0 {
		t.Errorf("new session viewers = %d, want 0", s.Viewers)
	}
}

func TestGetOrCreateDistinctEvents(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	a := r.GetOrCreate(uuid.New(), "a")
	b := r.GetOrCreate(uuid.New(), "b")
	if a.ID == b.ID {
		t.Fatal("different events must get different sessions")
	}
}

func TestGetAndRemove(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	s := r.GetOrCreate(uuid.New(), "t")

	if _, ok := r.Get(s.ID); !ok {
		t.Fatal("expected session to be found")
	}

	r.Remove(s.ID)
	if _, ok := r.Get(s.ID); ok {
		t.Fatal("expected session to be gone after Remove")
	}
	// removing again is a no-op
	r.Remove(s.ID)
	r.Remove("no-such-id")
}

func TestRemoveAllowsNewSessionForEvent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	eventID := uuid.New()
	first := r.GetOrCreate(eventID, "t")
	r.Remove(first.ID)

	second := r.GetOrCreate(eventID, "t")
	if second.ID == first.ID {
		t.Fatal("expected a fresh session after the previous one was removed")
	}
}

func TestListLiveReturnsOnlyLive(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.GetOrCreate(uuid.New(), "idle")
	live := r.GetOrCreate(uuid.New(), "live")
	if _, _, ok := r.SetBroadcaster(live.ID, "conn-1"); !ok {
		t.Fatal("SetBroadcaster failed")
	}

	list := r.ListLive()
	if len(list) != 1 {
		t.Fatalf("expected 1 live session, got %d", len(list))
	}
	if list[0].ID != live.ID {
		t.Errorf("expected live session %s, got %s", live.ID, list[0].ID)
	}
	if list[0].BroadcasterConnID != "conn-1" {
		t.Errorf("live session broadcaster = %q, want conn-1", list[0].BroadcasterConnID)
	}
}

func TestSetBroadcasterLastRegistererWins(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	s := r.GetOrCreate(uuid.New(), "t")

	_, prev, ok := r.SetBroadcaster(s.ID, "conn-1")
	if !ok || prev != "" {
		t.Fatalf("first registration: prev = %q, ok = %v", prev, ok)
	}
	updated, prev, ok := r.SetBroadcaster(s.ID, "conn-2")
	if !ok {
		t.Fatal("second registration failed")
	}
	if prev != "conn-1" {
		t.Errorf("expected replaced connection conn-1, got %q", prev)
	}
	if updated.BroadcasterConnID != "conn-2" {
		t.Errorf("broadcaster = %q, want conn-2", updated.BroadcasterConnID)
	}

	if _, _, ok := r.SetBroadcaster("no-such-id", "conn-3"); ok {
		t.Error("SetBroadcaster on unknown session must fail")
	}
}

func TestMarkEndedExactlyOnce(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	s := r.GetOrCreate(uuid.New(), "t")
	r.SetBroadcaster(s.ID, "conn-1")

	ended, ok := r.MarkEnded(s.ID)
	if !ok {
		t.Fatal("first MarkEnded failed")
	}
	if ended.IsLive {
		t.Error("ended session still live")
	}
	if ended.EndedAt == nil {
		t.Error("EndedAt not set")
	}

	if _, ok := r.MarkEnded(s.ID); ok {
		t.Error("second MarkEnded must be a no-op")
	}
	if _, ok := r.MarkEnded("no-such-id"); ok {
		t.Error("MarkEnded on unknown session must fail")
	}
}
