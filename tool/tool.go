// Package tool provides the function calling subsystem: structured
// capabilities (APIs, computations, side effects) that agents can invoke with
// schema-validated arguments, uniform error handling and metadata rich enough
// to guide a model's tool selection.
//
// The Tool interface itself lives in the core package so flows, plugins and
// agents can reference it without importing implementations. This package
// provides the concrete building blocks: FunctionTool for wrapping plain Go
// functions, the transfer_to_agent control tool and a state manager tool that
// exposes the full ToolContext surface to models.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/util"
)

// Tool is the canonical tool contract re-exported for convenience. Tools can
// be registered with agents to enable function calling: API calls,
// calculations, database queries, or any other programmatic operation.
//
// All tools receive a *core.ToolContext giving access to session state, agent
// flow control, memory and artifact management.
//
// Implementations are expected to use snake_case names, describe themselves
// clearly enough for a model to pick the right tool, declare a JSON schema
// for their parameters, and stay safe under concurrent calls.
type Tool = core.Tool

// ValidationError is the schema validation failure type, re-exported so
// callers can match it with errors.As without importing internal/util.
type ValidationError = util.ValidationError

// ToolError carries a failed tool call's name, message and machine-readable
// code, plus optional details for the model to react to.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError builds a coded ToolError.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
