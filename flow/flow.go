// Package flow implements the model-call execution pipeline that powers
// model-backed agents.
//
// A flow drives repeated steps of request assembly, model invocation and
// tool fan-out until the agent produces a final response. Request and
// response processors keep the pipeline modular; before/after hooks (global
// plugins first, then the owning agent's callbacks) intercept every model
// and tool boundary.
package flow

import (
	"time"

	"github.com/hupe1980/agentflow/core"
)

// Content inclusion policies for request assembly.
const (
	// IncludeContentsDefault sends the session conversation history,
	// truncated to the agent's history limit.
	IncludeContentsDefault = "default"

	// IncludeContentsNone sends only the current turn's user content.
	IncludeContentsNone = "none"
)

// Flow defines the interface for agent execution flows.
//
// Execute launches the pipeline asynchronously and returns the event stream,
// an error channel carrying at most one infrastructure failure (cancelled
// context, model-call limit, hook error) and an immediate startup error.
// Both channels close when the flow terminates.
type Flow interface {
	Execute(ictx *core.InvocationContext) (<-chan core.Event, <-chan error, error)
}

// FlowAgent is the view of an agent a flow operates on. It exposes the
// agent's model binding, tool registry and request-shaping options without
// exposing the full agent implementation.
type FlowAgent interface {
	// GetName returns the agent's display name, used as event author.
	GetName() string

	// GetModel returns the bound language model.
	GetModel() core.Model

	// ResolveInstructions produces the system instruction for this step.
	ResolveInstructions(ictx *core.InvocationContext) (string, error)

	// GetTools returns the registered tools keyed by function name.
	GetTools() map[string]core.Tool

	// GetSubAgents returns the delegation targets advertised for transfer.
	GetSubAgents() []FlowAgent

	// OutputSchema returns the raw JSON-schema document constraining the
	// final response, or nil when unconstrained.
	OutputSchema() map[string]any

	// IncludeContents selects the history policy ("default" or "none").
	IncludeContents() string

	// MaxHistoryMessages bounds the conversation history sent to the model.
	MaxHistoryMessages() int

	// ToolTimeout bounds a single tool execution; zero means unbounded.
	ToolTimeout() time.Duration

	// IsFunctionCallingEnabled reports whether tools are advertised.
	IsFunctionCallingEnabled() bool

	// IsStreamingEnabled reports whether partial responses may be emitted.
	IsStreamingEnabled() bool

	// IsTransferEnabled reports whether delegation to sub-agents is allowed.
	IsTransferEnabled() bool

	// ModelCallbacks returns the agent's model interception hooks.
	ModelCallbacks() core.ModelCallbacks

	// ToolCallbacks returns the agent's tool interception hooks.
	ToolCallbacks() core.ToolCallbacks

	// TransferToAgent hands the invocation to the named agent. The target
	// runs with the same invocation context; unknown targets are an error.
	TransferToAgent(ictx *core.InvocationContext, agentName string) error
}

// RequestProcessor mutates the model request before execution. Processors
// run in registration order.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before the model call.
	ProcessRequest(ictx *core.InvocationContext, req *core.Request, agent FlowAgent) error
}

// ResponseProcessor inspects or mutates each model response before it is
// finalized into an event.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse handles one model response chunk.
	ProcessResponse(ictx *core.InvocationContext, resp *core.Response, agent FlowAgent) error
}
