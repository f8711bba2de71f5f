package core

// StreamingMode selects how model output reaches consumers.
type StreamingMode string

const (
	// StreamingModeNone suppresses partial events; only complete responses
	// are emitted.
	StreamingModeNone StreamingMode = "none"

	// StreamingModeSSE streams partial content chunks as partial events
	// followed by the complete response.
	StreamingModeSSE StreamingMode = "sse"
)

// RunConfig carries per-invocation execution settings.
type RunConfig struct {
	// StreamingMode controls partial event emission. Streaming additionally
	// requires the agent to have streaming enabled.
	StreamingMode StreamingMode

	// MaxModelCalls bounds model calls per invocation; 0 means unlimited.
	MaxModelCalls int

	// SaveInputBlobsAsArtifacts persists inline file parts of the user
	// content as session artifacts, replacing them with text references.
	SaveInputBlobsAsArtifacts bool
}

// DefaultRunConfig returns the standard execution settings: streaming on,
// 100 model calls.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		StreamingMode: StreamingModeSSE,
		MaxModelCalls: 100,
	}
}
