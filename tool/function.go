package tool

import (
	"errors"
	"time"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/util"
)

// Func is the signature wrapped by FunctionTool. The ToolContext gives access
// to session state, artifacts, logging and the function call ID; args holds
// the model supplied arguments after schema validation.
type Func func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// FunctionTool exposes a plain Go function as an AgentFlow tool. Arguments
// are validated against the declared JSON schema before the function runs,
// and failures surface as *ToolError with stable codes: VALIDATION_ERROR for
// schema mismatches, EXECUTION_ERROR for plain errors from the function, and
// custom codes preserved when the function returns a *ToolError itself.
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use. Results may be any JSON-serializable Go value; tools that
// need streaming or richer lifecycles should implement core.Tool directly.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
	longRunning bool
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
//
// Example:
//
//	echoTool := NewFunctionTool(
//	  "echo_upper",
//	  "Echo the given text in upper case",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "text": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"text"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return strings.ToUpper(args["text"].(string)), nil
//	  },
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn Func) *FunctionTool {
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewLongRunningFunctionTool constructs a FunctionTool whose calls are marked
// long-running. The flow registers the function call ID on the consolidated
// response event so the caller can correlate the eventual out-of-band result,
// and treats the event as final instead of requesting a summarization turn.
func NewLongRunningFunctionTool(name, description string, parameters map[string]any, fn Func) *FunctionTool {
	t := NewFunctionTool(name, description, parameters, fn)
	t.longRunning = true
	return t
}

// NewFunctionToolFromStruct derives the parameter schema from a struct via
// reflection, using the json and description field tags.
//
// Example:
//
//	type LookupArgs struct {
//	  City  string `json:"city" description:"City to search for"`
//	  Limit *int   `json:"limit,omitempty" description:"Maximum matches"`
//	}
//
//	lookupTool := NewFunctionToolFromStruct(
//	  "city_lookup",
//	  "Find cities by name",
//	  LookupArgs{},
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return findCities(args["city"].(string)), nil
//	  },
//	)
func NewFunctionToolFromStruct(name, description string, structType any, fn Func) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name, Description and Parameters implement core.Tool.
func (t *FunctionTool) Name() string               { return t.name }
func (t *FunctionTool) Description() string        { return t.description }
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// IsLongRunning reports whether calls to this tool outlive the turn that
// issued them.
func (t *FunctionTool) IsLongRunning() bool { return t.longRunning }

// Call validates args against the declared schema, then invokes the wrapped
// function. A *ToolError from the function is forwarded unchanged; any other
// error is wrapped with code EXECUTION_ERROR, and validation failures with
// code VALIDATION_ERROR.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, &ToolError{Tool: t.name, Message: "parameter validation failed: " + err.Error(), Code: "VALIDATION_ERROR", Details: err}
	}

	started := time.Now()
	out, err := t.fn(toolCtx, args)
	if err != nil {
		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, NewToolError(t.name, err.Error(), "EXECUTION_ERROR")
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(started).Milliseconds())
	return out, nil
}
