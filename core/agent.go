package core

// Agent defines the core interface that every agent in agentflow implements.
//
// Agents are the primary processing units of the framework. They receive
// inputs through an InvocationContext, process them asynchronously, and emit
// events to communicate results and state changes back to the engine.
//
// The interface supports both simple single-agent scenarios and hierarchical
// multi-agent workflows through the sub-agent management methods.
//
// Implementations must:
//   - Respect context cancellation and the invocation end flag
//   - Emit events through the provided InvocationContext
//   - Honor the emit/resume acknowledgment protocol for non-partial events
//   - Manage their lifecycle through Start/Stop
type Agent interface {
	Name() string
	Start(ictx *InvocationContext) error
	Stop(ictx *InvocationContext) error
	Run(ictx *InvocationContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
	Description() string
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "orchestrator", "worker").
type AgentInfo struct{ Name, Type string }

// RootAgent walks the parent chain to the top of the agent tree. Transfer
// targets are resolved from the root so any agent in the tree can be named.
func RootAgent(a Agent) Agent {
	if a == nil {
		return nil
	}
	for a.Parent() != nil {
		a = a.Parent()
	}
	return a
}
