package core

// SearchResult is one memory item returned by a MemoryStore search,
// scored for relevance.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}
