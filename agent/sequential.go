package agent

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// SequentialAgent coordinates the execution of multiple child agents in
// order. All children share the invocation context, so each agent's state
// writes and events are visible to the agents that follow it.
//
// SequentialAgent is ideal for:
//   - Multi-step data processing pipelines
//   - Workflows requiring specific execution order
//   - Complex tasks broken into specialized subtasks
//   - Scenarios where agent outputs build upon each other
type SequentialAgent struct {
	BaseAgent
}

// NewSequentialAgent creates a sequential execution coordinator over the
// given children, registering them as sub-agents of the coordinator.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	s := &SequentialAgent{BaseAgent: NewBaseAgent(name)}
	s.bindSelf(s)
	_ = s.SetSubAgents(children...)
	return s
}

// Run implements core.Agent. It executes each child agent in order with the
// shared context; the first error stops further processing. A halted
// invocation (cancellation or an end-invocation signal) stops between
// children without error.
func (s *SequentialAgent) Run(ictx *core.InvocationContext) error {
	return s.runWithHooks(ictx, func() error {
		for _, child := range s.SubAgents() {
			if ictx.Halted() {
				return nil
			}
			if err := child.Run(ictx); err != nil {
				return fmt.Errorf("sequential execution failed at agent %s: %w", child.Name(), err)
			}
		}
		return nil
	})
}
