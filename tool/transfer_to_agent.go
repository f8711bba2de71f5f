package tool

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// transferToAgentTool requests orchestration transfer to a named agent.
type transferToAgentTool struct{}

// NewTransferToAgentTool constructs the transfer tool instance. Agents that
// allow transfer get this tool injected automatically; register it manually
// only for custom flows.
func NewTransferToAgentTool() Tool { return &transferToAgentTool{} }

func (t *transferToAgentTool) Name() string { return "transfer_to_agent" }

func (t *transferToAgentTool) Description() string {
	return "Request transfer of control to another agent by name. Use when another agent is better suited to handle the request."
}

func (t *transferToAgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent": map[string]any{"type": "string", "description": "Target agent name"},
		},
		"required": []string{"agent"},
	}
}

// Call records the transfer on the tool context actions; the multi-agent
// flow picks it up after the consolidated response event.
func (t *transferToAgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	target, _ := args["agent"].(string)
	if target == "" {
		return nil, fmt.Errorf("transfer_to_agent requires a non-empty 'agent' argument")
	}
	tc.TransferToAgent(target)
	return map[string]any{"transferred": true, "agent": target}, nil
}
