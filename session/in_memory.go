package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// ErrSessionNotFound is returned when a commit targets an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// InMemoryStore is a volatile SessionStore implementation storing sessions in
// a process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Read paths return clones so callers cannot
// mutate internal state; commits go through AppendEvent and ApplyDelta.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create makes a new empty session. Creating an id that already exists is an
// error so callers cannot silently wipe history.
func (s *InMemoryStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		return nil, fmt.Errorf("session %s already exists", sessionID)
	}
	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess
	return sess.Clone(), nil
}

// Get returns a clone of the session, or nil when it does not exist.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.Clone(), nil
	}
	return nil, nil
}

// GetOrCreate returns a clone of the existing session or creates an empty one.
func (s *InMemoryStore) GetOrCreate(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = core.NewSession(sessionID)
		s.sessions[sessionID] = sess
	}
	return sess.Clone(), nil
}

// AppendEvent adds a committed event to the session history.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("append event: %w: %s", ErrSessionNotFound, sessionID)
	}
	sess.AddEvent(ev)
	return nil
}

// ApplyDelta folds a key/value delta into the committed session state.
func (s *InMemoryStore) ApplyDelta(sessionID string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("apply delta: %w: %s", ErrSessionNotFound, sessionID)
	}
	sess.ApplyStateDelta(delta)
	return nil
}
