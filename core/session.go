package core

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Session is the conversational container: mutable key/value state plus the
// ordered event history of all invocations that ran against it. All methods
// are safe for concurrent use.
//
// Callers must only AddEvent committed events; partial streaming fragments
// never enter the history. Accessors hand out copies, so a returned slice
// or clone can be read without holding any lock.
type Session struct {
	ID       string            `json:"id"`
	State    map[string]any    `json:"state"`
	Events   []Event           `json:"events"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession creates an empty session with the given ID.
func NewSession(id string) *Session {
	created := time.Now()
	return &Session{
		ID:       id,
		State:    map[string]any{},
		Events:   []Event{},
		Created:  created,
		Updated:  created,
		Metadata: map[string]string{},
	}
}

// GetState returns the value stored under key and whether it exists.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.State[key]
	return value, ok
}

// SetState writes one state key and bumps the Updated timestamp.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now()
}

// ApplyStateDelta merges all delta entries into State in one locked step.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.State, delta)
	s.Updated = time.Now()
}

// AddEvent appends a committed event to the history.
func (s *Session) AddEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, event)
	s.Updated = time.Now()
}

// GetEvents returns a copy of the event history.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.Events)
}

// GetConversationHistory returns the events usable as model context: the
// non-partial ones carrying user, assistant or tool content.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil || ev.IsPartial() {
			continue
		}
		switch ev.Content.Role {
		case "user", "assistant", "tool":
			history = append(history, ev)
		}
	}
	return history
}

// Clone returns a copy with its own state map, event slice and metadata,
// safe to mutate independently of the original.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Session{
		ID:       s.ID,
		State:    maps.Clone(s.State),
		Events:   slices.Clone(s.Events),
		Created:  s.Created,
		Updated:  s.Updated,
		Metadata: maps.Clone(s.Metadata),
	}
}

// SessionStore is the persistence boundary for sessions, their state and
// their event history.
//
// The engine commits events in a fixed order: ApplyDelta with the event's
// state delta first, then AppendEvent, then the producer is resumed. Stores
// must make both writes visible to the next Get.
type SessionStore interface {
	// Create makes a new empty session; creating an existing id is an error.
	Create(id string) (*Session, error)

	// Get returns the session or nil when it does not exist.
	Get(id string) (*Session, error)

	// GetOrCreate returns the existing session or creates an empty one.
	GetOrCreate(id string) (*Session, error)

	// AppendEvent adds a committed event to the session history.
	AppendEvent(sessionID string, event Event) error

	// ApplyDelta merges state changes into the session.
	ApplyDelta(sessionID string, delta map[string]any) error
}
