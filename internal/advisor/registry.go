package advisor

import (
	"sync"
	"time"

	"compasshq.app/compass/internal/advisory"
)

const sessionIdleTTL = 15 * time.Minute

type session struct {
	coordinator *Coordinator
	lastUsed    time.Time
}

// Registry hands out one coordinator per edit session, so debounce windows
// and in-flight cancellation span requests from the same editor.
type Registry struct {
	backend advisory.Backend

	mu       sync.Mutex
	sessions map[string]*session
}

func NewRegistry(backend advisory.Backend) *Registry {
	return &Registry{
		backend:  backend,
		sessions: make(map[string]*session),
	}
}

// Acquire returns the session's coordinator, creating it on first use. The
// config only applies at creation; an existing session keeps its scope.
func (r *Registry) Acquire(key string, cfg Config) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		s.lastUsed = time.Now()
		return s.coordinator
	}
	s := &session{
		coordinator: NewCoordinator(r.backend, cfg),
		lastUsed:    time.Now(),
	}
	r.sessions[key] = s
	return s.coordinator
}

// Release closes and removes a session's coordinator.
func (r *Registry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		s.coordinator.Close()
		delete(r.sessions, key)
	}
}

// PurgeIdle closes sessions untouched for longer than the idle TTL. Returns
// the number of sessions removed.
func (r *Registry) PurgeIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-sessionIdleTTL)
	removed := 0
	for key, s := range r.sessions {
		if s.lastUsed.Before(cutoff) {
			s.coordinator.Close()
			delete(r.sessions, key)
			removed++
		}
	}
	return removed
}

// Shutdown closes every session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, s := range r.sessions {
		s.coordinator.Close()
		delete(r.sessions, key)
	}
}
