package interview

import "sync"

// Registry maps session ids to active sessions. Lifecycle is tied to
// the client connection: Create on connect, Remove on disconnect,
// completion, or unrecoverable error.
type Registry struct {
	newSession func(id string, observer Observer) *Session

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds a registry whose Create constructs sessions via
// newSession, binding the per-connection observer at creation time.
func NewRegistry(newSession func(id string, observer Observer) *Session) *Registry {
	return &Registry{
		newSession: newSession,
		sessions:   make(map[string]*Session),
	}
}

// Create registers a new session for id. Returns ErrSessionExists if a
// session for id is already active.
func (r *Registry) Create(id string, observer Observer) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		return nil, ErrSessionExists
	}

	s := r.newSession(id, observer)
	r.sessions[id] = s
	return s, nil
}

// Get returns the active session for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove unregisters and tears down the session for id. Idempotent; the
// session's teardown runs at most once.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if s != nil {
		s.Teardown()
	}
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown tears down every active session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Teardown()
	}
}
