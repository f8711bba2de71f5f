package memory

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// ErrMemoryNotFound is returned when deleting a memory id that does not exist.
var ErrMemoryNotFound = errors.New("memory not found")

// StoredMemory is one persisted long-term memory entry. It carries the same
// ID, content and metadata that Search surfaces as a core.SearchResult.
type StoredMemory struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// InMemoryStore is a process-local MemoryStore covering two concerns:
// session scoped key/value memory (Get / Put) and append-only stored
// memories queried through Search.
//
// Search is a linear scan in insertion order with case-insensitive substring
// matching; every hit scores 1.0. That is enough for tests and demos, while
// production retrieval belongs in a vector or semantic index behind the same
// interface. An RWMutex guards all maps.
type InMemoryStore struct {
	mu      sync.RWMutex
	memory  map[string]map[string]any // sessionID -> key -> value
	storage map[string][]StoredMemory // sessionID -> stored memories, insertion order
	nextID  map[string]int            // sessionID -> monotonic id counter
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memory:  make(map[string]map[string]any),
		storage: make(map[string][]StoredMemory),
		nextID:  make(map[string]int),
	}
}

// Get returns a copy of the session's key/value memory, empty when the
// session has none.
func (m *InMemoryStore) Get(sessionID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mem := m.memory[sessionID]; mem != nil {
		return maps.Clone(mem), nil
	}
	return map[string]any{}, nil
}

// Put merges delta into the session's key/value memory.
func (m *InMemoryStore) Put(sessionID string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.memory[sessionID] == nil {
		m.memory[sessionID] = make(map[string]any, len(delta))
	}
	maps.Copy(m.memory[sessionID], delta)
	return nil
}

// Search matches stored memories by case-insensitive substring, returning
// hits in insertion order up to limit (limit <= 0 means unbounded). An empty
// query matches everything.
func (m *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(query)
	results := []core.SearchResult{}
	for _, mem := range m.storage[sessionID] {
		if limit > 0 && len(results) >= limit {
			break
		}
		if needle != "" && !strings.Contains(strings.ToLower(mem.Content), needle) {
			continue
		}
		results = append(results, core.SearchResult{
			ID:       mem.ID,
			Content:  mem.Content,
			Score:    1.0,
			Metadata: maps.Clone(mem.Metadata),
		})
	}
	return results, nil
}

// Store appends a new stored memory. Ids count up per session so they stay
// unique across deletes.
func (m *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	memoryID := fmt.Sprintf("mem_%d", m.nextID[sessionID])
	m.nextID[sessionID]++
	m.storage[sessionID] = append(m.storage[sessionID], StoredMemory{ID: memoryID, Content: content, Metadata: metadata})
	return nil
}

// Delete removes a stored memory entry by id.
func (m *InMemoryStore) Delete(sessionID string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.storage[sessionID]
	idx := slices.IndexFunc(stored, func(sm StoredMemory) bool { return sm.ID == memoryID })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrMemoryNotFound, memoryID)
	}
	m.storage[sessionID] = slices.Delete(stored, idx, idx+1)
	return nil
}
