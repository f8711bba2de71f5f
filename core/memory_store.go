package core

// MemoryStore persists and retrieves conversational memory. Search ranking
// is implementation-defined; the in-memory reference scores by substring
// match, durable backends may use embeddings or keywords.
type MemoryStore interface {
	Get(sessionID string) (map[string]any, error)
	Put(sessionID string, delta map[string]any) error
	Search(sessionID string, query string, limit int) ([]SearchResult, error)
	Store(sessionID string, content string, metadata map[string]any) error
	Delete(sessionID string, memoryID string) error
}
