package game

import "sync"

// SessionStore holds live sessions and serializes mutation per session.
// Sessions live in memory only; a restart forgets all games.
type SessionStore interface {
	// Put registers a new session.
	Put(s *Session)

	// Get returns a session for read-only use, or ErrSessionNotFound.
	Get(id string) (*Session, error)

	// WithLock runs fn with exclusive access to the session. Two requests
	// for the same session never interleave; requests for different
	// sessions proceed in parallel.
	WithLock(id string, fn func(*Session) error) error
}

type sessionEntry struct {
	mu   sync.Mutex
	sess *Session
}

// MemoryStore is the in-memory SessionStore used in production.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*sessionEntry)}
}

func (m *MemoryStore) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &sessionEntry{sess: s}
}

func (m *MemoryStore) Get(id string) (*Session, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry.sess, nil
}

func (m *MemoryStore) WithLock(id string, fn func(*Session) error) error {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.sess)
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
