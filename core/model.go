package core

import "context"

// Model is the provider-agnostic contract for language / reasoning model
// backends. The canonical interface lives in the core package so flows,
// plugins and callback signatures can reference model requests and responses
// without importing provider packages. Concrete adapters (OpenAI, Anthropic,
// mocks) live under the model package.
type Model interface {
	// Generate produces a stream of responses for the request. The response
	// channel delivers zero or more partial chunks followed by a terminal
	// response and is closed when generation ends. The error channel carries
	// at most one transport or provider failure.
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info describes the underlying model for logging and capability checks.
	Info() ModelInfo
}

// ModelInfo describes a model implementation.
type ModelInfo struct {
	Name          string // Provider-specific model identifier
	Provider      string // Provider family (openai, anthropic, mock, ...)
	SupportsTools bool   // Whether native function calling is available
}

// Request is the normalized model invocation payload assembled by flow
// request processors.
//
// ResponseSchema and Tools are mutually exclusive: structured output forces
// the model into schema-constrained generation, which cannot be combined
// with function calling. Request assembly fails when both are set.
type Request struct {
	Instructions   []string         `json:"instructions,omitempty"`    // System prompt segments in order
	Contents       []Content        `json:"contents"`                  // Conversation history + current turn
	Tools          []ToolDefinition `json:"tools,omitempty"`           // Callable tool definitions
	ResponseSchema map[string]any   `json:"response_schema,omitempty"` // JSON schema constraining the final response
	Stream         bool             `json:"stream"`                    // Request streaming partial chunks
}

// Response is one model output chunk. Partial chunks carry incremental
// content; the terminal chunk carries the complete content plus finish
// metadata. ErrorCode/ErrorMessage report in-band provider errors,
// Interrupted marks generation cut short.
type Response struct {
	ID           string      `json:"id,omitempty"`
	Partial      bool        `json:"partial"`
	Content      Content     `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Interrupted  bool        `json:"interrupted,omitempty"`
}

// IsEmpty reports whether the response carries nothing an event could
// represent: no content parts, no error and no interruption marker. Empty
// responses produce no event.
func (r Response) IsEmpty() bool {
	return len(r.Content.Parts) == 0 && r.ErrorCode == "" && !r.Interrupted
}

// TokenUsage captures token accounting reported by the provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolDefinition is the wire-level description of a callable tool.
type ToolDefinition struct {
	Type     string             `json:"type"` // Always "function" for now
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function exposed to the model.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON schema for arguments
}
