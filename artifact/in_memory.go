package artifact

import (
	"bytes"
	"maps"
	"slices"
	"sync"
)

// InMemoryStore keeps every artifact version in process memory, which is all
// tests, examples and single-process prototypes need. Payloads are cloned on
// save and on read so callers can never alias internal buffers.
//
// Layout: sessionID -> artifactID -> version slices, where index+1 is the
// 1-based version number.
//
// There are no retention limits, size quotas or eviction here. Production
// deployments want a durable ArtifactStore (object storage or a database)
// that survives restarts.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string][][]byte
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[string][][]byte)}
}

// Save appends a new version of the artifact and returns its 1-based version
// number. The input slice is cloned before storage.
func (a *InMemoryStore) Save(sessionID, artifactID string, data []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.artifacts[sessionID] == nil {
		a.artifacts[sessionID] = make(map[string][][]byte)
	}
	versions := append(a.artifacts[sessionID][artifactID], bytes.Clone(data))
	a.artifacts[sessionID][artifactID] = versions
	return len(versions), nil
}

// Get returns a copy of the latest version of the artifact or ErrNotFound.
func (a *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	versions := a.artifacts[sessionID][artifactID]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	return bytes.Clone(versions[len(versions)-1]), nil
}

// GetVersion returns a copy of a specific 1-based version of the artifact.
func (a *InMemoryStore) GetVersion(sessionID, artifactID string, version int) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	versions := a.artifacts[sessionID][artifactID]
	if version < 1 || version > len(versions) {
		return nil, ErrNotFound
	}
	return bytes.Clone(versions[version-1]), nil
}

// List returns the session's artifact ids in sorted order. The slice is a
// snapshot and safe for caller mutation.
func (a *InMemoryStore) List(sessionID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(a.artifacts[sessionID]))
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Versions returns the available version numbers for the artifact in
// ascending order, or ErrNotFound when the artifact does not exist.
func (a *InMemoryStore) Versions(sessionID, artifactID string) ([]int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	stored := a.artifacts[sessionID][artifactID]
	if len(stored) == 0 {
		return nil, ErrNotFound
	}
	nums := make([]int, 0, len(stored))
	for i := range stored {
		nums = append(nums, i+1)
	}
	return nums, nil
}

// Delete removes all versions of the artifact if present or returns ErrNotFound.
func (a *InMemoryStore) Delete(sessionID, artifactID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.artifacts[sessionID][artifactID]; !ok {
		return ErrNotFound
	}
	delete(a.artifacts[sessionID], artifactID)
	return nil
}
