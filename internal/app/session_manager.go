package app

import "sync"

// SessionManager tracks the terminal sessions by session id.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// GetSession retrieves a session by id.
func (sm *SessionManager) GetSession(id string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, exists := sm.sessions[id]
	return session, exists
}

// GetOrCreate returns the terminal's session, building it with create on first use.
func (sm *SessionManager) GetOrCreate(id string, create func() *Session) *Session {
	if session, ok := sm.GetSession(id); ok {
		return session
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, ok := sm.sessions[id]; ok {
		return session
	}
	session := create()
	sm.sessions[id] = session
	return session
}

// ClearSession removes a terminal's session and returns it.
func (sm *SessionManager) ClearSession(id string) (*Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	session, ok := sm.sessions[id]
	delete(sm.sessions, id)
	return session, ok
}

// All returns a snapshot of the live sessions.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// Evict removes and returns every session matching expired.
func (sm *SessionManager) Evict(expired func(*Session) bool) []*Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	var evicted []*Session
	for id, s := range sm.sessions {
		if expired(s) {
			evicted = append(evicted, s)
			delete(sm.sessions, id)
		}
	}
	return evicted
}
