package flow

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentflow/core"
)

// TransferToolName is the reserved function name through which a model
// requests delegation to another agent.
const TransferToolName = "transfer_to_agent"

// TransferToolInjector advertises the transfer function to the model when
// the agent may delegate to sub-agents. Injection is idempotent so a
// registered transfer tool is never duplicated.
type TransferToolInjector struct{}

// NewTransferToolInjector creates a new transfer tool injector.
func NewTransferToolInjector() *TransferToolInjector { return &TransferToolInjector{} }

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_tool" }

// ProcessRequest appends the transfer function definition listing the
// agent's delegation targets.
func (p *TransferToolInjector) ProcessRequest(ictx *core.InvocationContext, req *core.Request, agent FlowAgent) error {
	if !agent.IsTransferEnabled() {
		return nil
	}
	subAgents := agent.GetSubAgents()
	if len(subAgents) == 0 {
		return nil
	}
	for _, td := range req.Tools {
		if td.Function.Name == TransferToolName {
			return nil
		}
	}

	names := make([]string, 0, len(subAgents))
	for _, sub := range subAgents {
		names = append(names, sub.GetName())
	}

	req.Tools = append(req.Tools, core.ToolDefinition{
		Type: "function",
		Function: core.FunctionDefinition{
			Name:        TransferToolName,
			Description: fmt.Sprintf("Transfer the conversation to another agent. Available agents: %s", strings.Join(names, ", ")),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent": map[string]any{
						"type":        "string",
						"description": "Name of the agent to hand the conversation to",
						"enum":        names,
					},
				},
				"required": []string{"agent"},
			},
		},
	})
	return nil
}
