package agent

import (
	"errors"
	"slices"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

var (
	errAlreadyRunning = errors.New("agent is already running")
	errNotRunning     = errors.New("agent is not running")
)

// BaseAgent bundles shared lifecycle (Start/Stop), hierarchy management,
// identity helpers and the before/after agent hook pipeline. Embed it in
// concrete agent implementations and supply a Run method to satisfy the
// core.Agent interface. All exported methods are goroutine-safe unless
// otherwise documented.
type BaseAgent struct {
	name        string
	description string
	callbacks   core.AgentCallbacks
	mu          sync.Mutex
	running     bool
	parent      core.Agent
	subAgents   []core.Agent
	self        core.Agent // Outer agent, bound by concrete constructors
}

// NewBaseAgent constructs a BaseAgent with a generated description
// (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: "Agent " + name,
	}
}

// Name reports the agent's identity within the tree.
func (b *BaseAgent) Name() string { return b.name }

// Description reports what the agent is for.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description. Transfer-capable parents
// surface it to the model when listing delegation targets.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// SetAgentCallbacks installs the before/after agent hooks run around this
// agent's body on every invocation.
func (b *BaseAgent) SetAgentCallbacks(callbacks core.AgentCallbacks) {
	b.callbacks = callbacks
}

// AgentCallbacks returns the installed lifecycle hooks.
func (b *BaseAgent) AgentCallbacks() core.AgentCallbacks { return b.callbacks }

// Start transitions the agent to running state. It is safe for concurrent
// calls but only the first successful invocation changes state; subsequent
// calls while running return an error.
func (b *BaseAgent) Start(_ *core.InvocationContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return errAlreadyRunning
	}

	b.running = true

	return nil
}

// Stop leaves the running state. Cancellation of in-flight work belongs to
// the invocation context, which Stop never touches. Stopping an agent that is
// not running is an error.
func (b *BaseAgent) Stop(_ *core.InvocationContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return errNotRunning
	}

	b.running = false

	return nil
}

// bindSelf records the concrete agent embedding this base so hierarchy
// references (parent links, self lookups) resolve to the full implementation
// instead of a wrapper.
func (b *BaseAgent) bindSelf(a core.Agent) { b.self = a }

// asAgent returns the bound concrete agent, falling back to a non-runnable
// wrapper when the base was never bound.
func (b *BaseAgent) asAgent() core.Agent {
	if b.self != nil {
		return b.self
	}
	return &agentWrapper{b}
}

// relink points every re-parentable child at the given parent.
func relink(children []core.Agent, parent core.Agent) {
	for _, child := range children {
		if s, ok := child.(interface{ setParent(core.Agent) }); ok {
			s.setParent(parent)
		}
	}
}

// SetSubAgents replaces the child set in one step: previous children are
// detached from this agent, new ones adopt it as their single parent.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	relink(b.subAgents, nil)
	b.subAgents = slices.Clone(children)
	relink(b.subAgents, b.asAgent())

	return nil
}

func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = p
}

// Parent reports the owning agent, nil at the root.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

// SubAgents returns a copy of the child list so callers can iterate while
// the set is concurrently replaced.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.subAgents)
}

// FindAgent searches the subtree rooted here, depth first, for an agent
// with the given name. Matching children are returned exactly as stored;
// only a match on this agent itself goes through the self binding.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		return b.asAgent()
	}

	for _, child := range b.SubAgents() {
		if child.Name() == name {
			return child
		}
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}
	return nil
}

// runWithHooks wraps the agent body with the before/after agent hook
// pipeline. Plugins run first at each point, then the agent's own callbacks.
//
// A non-nil content from a before hook becomes the agent's entire output:
// it is emitted as one event and the body is skipped. After hooks run once
// the body (or its replacement) finished; the last non-nil content across
// the chain is appended as one extra event.
func (b *BaseAgent) runWithHooks(ictx *core.InvocationContext, body func() error) error {
	actions := &core.EventActions{}
	cctx := core.NewCallbackContext(ictx, b.name, actions)

	override, err := ictx.Plugins.RunBeforeAgent(cctx)
	if err != nil {
		return err
	}
	if override == nil {
		if override, err = b.callbacks.RunBefore(cctx); err != nil {
			return err
		}
	}

	if override != nil {
		ictx.LogDebug("agent.body_skipped", "agent", b.name)
		if err := b.emitHookContent(ictx, override, actions); err != nil {
			return err
		}
	} else if !ictx.Halted() {
		if err := body(); err != nil {
			return err
		}
	}

	afterActions := &core.EventActions{}
	afterCctx := core.NewCallbackContext(ictx, b.name, afterActions)

	extra, err := ictx.Plugins.RunAfterAgent(afterCctx)
	if err != nil {
		return err
	}
	callbackExtra, err := b.callbacks.RunAfter(afterCctx)
	if err != nil {
		return err
	}
	if callbackExtra != nil {
		extra = callbackExtra
	}
	if extra != nil {
		if err := b.emitHookContent(ictx, extra, afterActions); err != nil {
			return err
		}
	}

	return nil
}

// emitHookContent publishes hook-produced content as an event authored by
// this agent and honors the emit/resume acknowledgment protocol.
func (b *BaseAgent) emitHookContent(ictx *core.InvocationContext, content *core.Content, actions *core.EventActions) error {
	ev := core.NewEvent(ictx.InvocationID, b.name)
	ev.Content = content
	ev.Actions = *actions
	if err := ictx.EmitEvent(ev); err != nil {
		return err
	}
	return ictx.WaitForResume()
}

// agentWrapper makes an unbound BaseAgent addressable as a core.Agent for
// hierarchy references.
type agentWrapper struct{ *BaseAgent }

// Run reports that a bare BaseAgent has no behavior of its own.
func (w *agentWrapper) Run(_ *core.InvocationContext) error {
	return errors.New("cannot execute BaseAgent directly; embed BaseAgent and implement Run")
}
