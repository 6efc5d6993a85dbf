package sessions

import (
	"sync"

	"scribe/scribe/utils/metrics"

	"github.com/google/uuid"
)

// Registry maps meeting ids to their live session. It is the only place a
// session becomes reachable, so at most one session per meeting can exist.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	metrics  *metrics.Metrics
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		metrics:  m,
	}
}

func (r *Registry) Register(meetingID uuid.UUID, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[meetingID]; ok {
		return ErrSessionAlreadyActive
	}
	r.sessions[meetingID] = s
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return nil
}

func (r *Registry) Lookup(meetingID uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[meetingID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Unregister drops the entry for meetingID. Removing an absent id is a no-op.
func (r *Registry) Unregister(meetingID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, meetingID)
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
}

// UnregisterSession removes meetingID only while it still maps to s, so a
// late cleanup cannot evict a newer session for the same meeting.
func (r *Registry) UnregisterSession(meetingID uuid.UUID, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[meetingID]; !ok || cur != s {
		return false
	}
	delete(r.sessions, meetingID)
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot lists the sessions registered right now.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
