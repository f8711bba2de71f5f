package core

// Tool defines the interface for extending agent capabilities with external
// functions. The canonical interface lives in the core package so flows and
// plugin hooks can reference tools without importing implementation
// packages; concrete tools live under the tool package.
//
// Tools registered with an agent become available for function calling.
// Every call receives a ToolContext granting scoped access to session state,
// flow-control actions, artifacts and memory.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe; the executor may run sibling calls concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the model to help it decide when and how
	// to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// The schema is used for argument validation and function-call definitions.
	Parameters() map[string]any

	// Call executes the tool with structured arguments and a ToolContext.
	// Arguments are parsed from the model's JSON payload before invocation.
	Call(toolCtx *ToolContext, args map[string]any) (any, error)
}

// LongRunningTool marks tools whose work outlives the invocation that
// started it. Function calls addressed to long-running tools are recorded in
// the emitting event's LongRunningToolIDs, which makes that event a final
// response even though results arrive later.
type LongRunningTool interface {
	Tool
	IsLongRunning() bool
}

// IsLongRunningTool reports whether t declares itself long-running.
func IsLongRunningTool(t Tool) bool {
	lr, ok := t.(LongRunningTool)
	return ok && lr.IsLongRunning()
}
