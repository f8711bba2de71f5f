package flow

// Selector maps an agent's capabilities to the flow that can serve them.
type Selector struct{}

// NewSelector creates a flow selector.
func NewSelector() *Selector { return &Selector{} }

// SelectFlow returns the multi-agent flow as soon as the agent can hand
// work to another agent, via transfer or sub-agents. Isolated agents get
// the leaner single-agent flow.
func (s *Selector) SelectFlow(agent FlowAgent) Flow {
	if agent.IsTransferEnabled() || len(agent.GetSubAgents()) > 0 {
		return NewMultiAgentFlow(agent)
	}
	return NewSingleAgentFlow(agent)
}
