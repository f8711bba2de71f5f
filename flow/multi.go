package flow

// MultiAgentFlow orchestrates an agent that may perform tool calls and
// transfer control to sub-agents, enabling hierarchical / branching
// execution. It extends SingleAgentFlow's pipeline with transfer-tool
// injection and transfer handling after each step.
type MultiAgentFlow struct{ *BaseFlow }

// NewMultiAgentFlow creates a transfer-capable flow with default processors.
func NewMultiAgentFlow(agent FlowAgent) *MultiAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewOutputSchemaProcessor())
	baseFlow.AddRequestProcessor(NewToolDefinitionsProcessor())
	baseFlow.AddRequestProcessor(NewTransferToolInjector())
	baseFlow.handleTransfer = true

	return &MultiAgentFlow{BaseFlow: baseFlow}
}
