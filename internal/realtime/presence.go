package realtime

// Tracker maintains viewer counts per session. Counts live on the session
// records inside the registry and are mutated under the registry lock, so
// concurrent joins and leaves for the same session are race-free.
type Tracker struct {
	registry *Registry
}

// NewTracker creates a presence tracker backed by the registry.
func NewTracker(registry *Registry) *Tracker {
	return &Tracker{registry: registry}
}

// Increment records a viewer joining and returns the new count.
func (t *Tracker) Increment(sessionID string) (int, bool) {
	r := t.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return 0, false
	}
	s.Viewers++
	return s.Viewers, true
}

// Decrement records a viewer leaving and returns the new count. The count
// clamps at zero instead of underflowing.
func (t *Tracker) Decrement(sessionID string) (int, bool) {
	r := t.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return 0, false
	}
	if s.Viewers > 0 {
		s.Viewers--
	}
	return s.Viewers, true
}
