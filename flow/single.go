package flow

// SingleAgentFlow executes a standalone agent (no transfers, no sub-agent
// delegation). It wires the default processors for instruction resolution,
// content assembly, structured output and tool advertisement, then relays
// model events directly.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a basic single-agent flow.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewOutputSchemaProcessor())
	baseFlow.AddRequestProcessor(NewToolDefinitionsProcessor())

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
