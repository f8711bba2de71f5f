package tool

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hupe1980/agentflow/core"
)

// stateOp is one dispatchable state_manager operation.
type stateOp func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// stateOps maps the operation argument to its handler. The schema enum and
// the tool description are derived from this map, so adding an entry here is
// all it takes to expose a new operation to the model.
var stateOps = map[string]stateOp{
	"get_state":           opGetState,
	"set_state":           opSetState,
	"transfer_agent":      opTransferAgent,
	"escalate":            opEscalate,
	"skip_summarization":  opSkipSummarization,
	"save_artifact":       opSaveArtifact,
	"load_artifact":       opLoadArtifact,
	"list_artifacts":      opListArtifacts,
	"search_memory":       opSearchMemory,
	"store_memory":        opStoreMemory,
	"get_session_history": opSessionHistory,
}

func operationNames() []string {
	return slices.Sorted(maps.Keys(stateOps))
}

// StateManagerTool exposes the ToolContext surface to models as a single
// tool: session state reads and writes, flow control (transfer, escalate,
// skip summarization), artifact handling and memory access, dispatched on
// an operation argument.
type StateManagerTool struct{}

// NewStateManagerTool creates the state management tool.
func NewStateManagerTool() *StateManagerTool { return &StateManagerTool{} }

// Name implements core.Tool.
func (t *StateManagerTool) Name() string { return "state_manager" }

// Description lists the available operations for the model.
func (t *StateManagerTool) Description() string {
	return "Manages session state, agent flow control, artifacts and memory. Operations: " +
		strings.Join(operationNames(), ", ") + "."
}

// Parameters returns the JSON schema for tool parameters.
func (t *StateManagerTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        operationNames(),
				"description": "Which operation to perform",
			},
			"key":         strProp("State key to read with get_state or write with set_state"),
			"value":       map[string]any{"description": "Value to store with set_state (any JSON type)"},
			"agent_name":  strProp("Target agent for transfer_agent"),
			"artifact_id": strProp("Artifact identifier for save_artifact and load_artifact"),
			"data":        strProp("Artifact payload for save_artifact"),
			"query":       strProp("Query text for search_memory"),
			"content":     strProp("Text to persist with store_memory"),
			"metadata":    map[string]any{"type": "object", "description": "Optional metadata for store_memory"},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum results for search_memory",
				"default":     10,
			},
		},
		"required": []string{"operation"},
	}
}

func strProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// Call looks up and runs the handler for the requested operation.
func (t *StateManagerTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}
	handler, ok := stateOps[operation]
	if !ok {
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
	return handler(toolCtx, args)
}

// requireString pulls a mandatory string argument, naming the operation in
// the error so the model can correct the call.
func requireString(args map[string]any, name, op string) (string, error) {
	v, ok := args[name].(string)
	if !ok {
		return "", fmt.Errorf("%s parameter is required for %s operation", name, op)
	}
	return v, nil
}

// withSuccess marks a result map successful, attaching a human-readable
// message when one is given.
func withSuccess(result map[string]any, message string) map[string]any {
	result["success"] = true
	if message != "" {
		result["message"] = message
	}
	return result
}

func opGetState(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	key, err := requireString(args, "key", "get_state")
	if err != nil {
		return nil, err
	}
	value, exists := toolCtx.GetState(key)
	return map[string]any{"key": key, "exists": exists, "value": value}, nil
}

func opSetState(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	key, err := requireString(args, "key", "set_state")
	if err != nil {
		return nil, err
	}
	value := args["value"] // any JSON type
	toolCtx.SetState(key, value)
	return withSuccess(map[string]any{"key": key, "value": value},
		fmt.Sprintf("State key '%s' set successfully", key)), nil
}

func opTransferAgent(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	agentName, err := requireString(args, "agent_name", "transfer_agent")
	if err != nil {
		return nil, err
	}
	toolCtx.TransferToAgent(agentName)
	return withSuccess(map[string]any{"agent_name": agentName},
		fmt.Sprintf("Transfer to agent '%s' initiated", agentName)), nil
}

func opEscalate(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
	toolCtx.Escalate()
	return withSuccess(map[string]any{}, "Escalation initiated"), nil
}

func opSkipSummarization(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
	toolCtx.SkipSummarization()
	return withSuccess(map[string]any{}, "Summarization will be skipped for this interaction"), nil
}

func opSaveArtifact(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	artifactID, err := requireString(args, "artifact_id", "save_artifact")
	if err != nil {
		return nil, err
	}
	data, err := requireString(args, "data", "save_artifact")
	if err != nil {
		return nil, err
	}
	version, err := toolCtx.SaveArtifact(artifactID, []byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}
	return withSuccess(map[string]any{"artifact_id": artifactID, "version": version, "size": len(data)},
		fmt.Sprintf("Artifact '%s' saved as version %d", artifactID, version)), nil
}

func opLoadArtifact(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	artifactID, err := requireString(args, "artifact_id", "load_artifact")
	if err != nil {
		return nil, err
	}
	data, err := toolCtx.LoadArtifact(artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	return withSuccess(map[string]any{"artifact_id": artifactID, "data": string(data), "size": len(data)}, ""), nil
}

func opSearchMemory(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	query, err := requireString(args, "query", "search_memory")
	if err != nil {
		return nil, err
	}
	limit := 10
	if l, ok := args["limit"].(float64); ok { // JSON numbers decode as float64
		limit = int(l)
	}
	results, err := toolCtx.SearchMemory(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory: %w", err)
	}
	return withSuccess(map[string]any{
		"query":   query,
		"limit":   limit,
		"count":   len(results),
		"results": results,
	}, ""), nil
}

func opStoreMemory(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	content, err := requireString(args, "content", "store_memory")
	if err != nil {
		return nil, err
	}
	metadata, _ := args["metadata"].(map[string]any)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if err := toolCtx.StoreMemory(content, metadata); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}
	return withSuccess(map[string]any{"content": content, "metadata": metadata},
		"Memory stored successfully"), nil
}

func opListArtifacts(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
	artifacts, err := toolCtx.ListArtifacts()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	return withSuccess(map[string]any{"artifacts": artifacts, "count": len(artifacts)}, ""), nil
}

// opSessionHistory condenses the committed event history to per-event
// metadata plus a short content summary, keeping the payload small enough
// to feed back to a model.
func opSessionHistory(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
	history, err := toolCtx.Events()
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}
	events := make([]map[string]any, 0, len(history))
	for _, ev := range history {
		entry := map[string]any{
			"id":          ev.ID,
			"author":      ev.Author,
			"timestamp":   ev.Timestamp,
			"partial":     ev.Partial,
			"has_content": ev.Content != nil,
		}
		if summary := summarizeContent(ev.Content); summary != "" {
			entry["content_summary"] = summary
		}
		events = append(events, entry)
	}
	return withSuccess(map[string]any{"events": events, "count": len(events)}, ""), nil
}

func summarizeContent(c *core.Content) string {
	if c == nil || len(c.Parts) == 0 {
		return ""
	}
	summaries := make([]string, 0, len(c.Parts))
	for _, part := range c.Parts {
		summaries = append(summaries, summarizePart(part))
	}
	return strings.Join(summaries, ", ")
}

func summarizePart(part core.Part) string {
	switch p := part.(type) {
	case core.TextPart:
		return "text: " + clip(p.Text, 100)
	case core.FunctionCallPart:
		return "function_call: " + p.FunctionCall.Name
	case core.FunctionResponsePart:
		return "function_response: " + p.FunctionResponse.Name
	default:
		return "other"
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
