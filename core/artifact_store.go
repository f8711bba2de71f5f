package core

// ArtifactStore defines the interface for versioned artifact persistence.
// Implementations should be thread-safe and scope artifacts by session
// identifier. Save returns the version assigned to the stored bytes; Get
// retrieves the latest version, GetVersion a specific one. Versions are
// 1-based and monotonically increasing per artifact.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) (int, error)
	Get(sessionID, artifactID string) ([]byte, error)
	GetVersion(sessionID, artifactID string, version int) ([]byte, error)
	List(sessionID string) ([]string, error)
	Versions(sessionID, artifactID string) ([]int, error)
	Delete(sessionID, artifactID string) error
}
