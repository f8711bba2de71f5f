package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/hupe1980/agentflow/logging"
)

// InvocationContextOptions configures optional invocation context wiring.
type InvocationContextOptions struct {
	Logger    logging.Logger
	Plugins   *PluginManager
	Limiter   *ModelLimiter
	RunConfig RunConfig
	Branch    *string
}

// InvocationContext carries everything an agent needs while processing one
// invocation: correlation identifiers, the triggering user content, the
// emission channel back to the engine, store handles and pending state
// buffered for the next emitted event.
//
// Event protocol: producers send events through Emit (via EmitEvent) and,
// for non-partial events, block on WaitForResume until the engine has
// applied the event's actions and persisted it. A producer that waited for
// the resume signal therefore always observes its own state delta on the
// next session read.
//
// One context is active per agent goroutine; composite agents hand children
// either the shared context (sequential, loop) or an isolated clone with its
// own branch (parallel). The context is not safe for use from multiple
// goroutines at once.
type InvocationContext struct {
	Context      context.Context
	InvocationID string
	SessionID    string
	Agent        AgentInfo
	UserContent  Content
	Branch       *string

	// Emit delivers events to the engine; Resume signals that the engine
	// finished processing the previously emitted non-partial event.
	Emit   chan<- Event
	Resume <-chan struct{}

	SessionService  SessionStore
	ArtifactService ArtifactStore
	MemoryService   MemoryStore

	Plugins   *PluginManager
	Limiter   *ModelLimiter
	RunConfig RunConfig

	// EndInvocation requests a stop of the whole invocation. It is checked
	// at every suspension point (step boundaries, between children, before
	// model and tool calls).
	EndInvocation bool

	// Session is the last fetched snapshot; refresh via RefreshSession.
	Session *Session

	// StateDelta buffers state writes made outside tool or callback scopes.
	// The buffer is merged into the next emitted event's actions and cleared.
	StateDelta map[string]any

	*loggerAdapter
}

// NewInvocationContext wires a context for one invocation. The positional
// arguments cover the mandatory plumbing; use the options func for logger,
// plugins, limiter, run config and branch.
func NewInvocationContext(
	ctx context.Context,
	invocationID, sessionID string,
	agent AgentInfo,
	userContent Content,
	emit chan<- Event,
	resume <-chan struct{},
	session *Session,
	sessionService SessionStore,
	artifactService ArtifactStore,
	memoryService MemoryStore,
	optFns ...func(o *InvocationContextOptions),
) *InvocationContext {
	opts := InvocationContextOptions{
		RunConfig: DefaultRunConfig(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewModelLimiter(opts.RunConfig.MaxModelCalls)
	}

	return &InvocationContext{
		Context:         ctx,
		InvocationID:    invocationID,
		SessionID:       sessionID,
		Agent:           agent,
		UserContent:     userContent,
		Branch:          opts.Branch,
		Emit:            emit,
		Resume:          resume,
		SessionService:  sessionService,
		ArtifactService: artifactService,
		MemoryService:   memoryService,
		Plugins:         opts.Plugins,
		Limiter:         limiter,
		RunConfig:       opts.RunConfig,
		Session:         session,
		StateDelta:      map[string]any{},
		loggerAdapter:   newLoggerAdapter(opts.Logger),
	}
}

// Halted reports whether the invocation should stop: an explicit end signal
// or a cancelled context.
func (ic *InvocationContext) Halted() bool {
	if ic.EndInvocation {
		return true
	}
	if ic.Context == nil {
		return false
	}
	select {
	case <-ic.Context.Done():
		return true
	default:
		return false
	}
}

// GetState looks up a state key, consulting the pending delta before the
// session snapshot so writers observe their own uncommitted writes.
func (ic *InvocationContext) GetState(key string) (any, bool) {
	if v, ok := ic.StateDelta[key]; ok {
		return v, true
	}
	if ic.Session != nil {
		return ic.Session.GetState(key)
	}
	return nil, false
}

// SetState buffers a state write for the next emitted event.
func (ic *InvocationContext) SetState(key string, value any) {
	if ic.StateDelta == nil {
		ic.StateDelta = map[string]any{}
	}
	ic.StateDelta[key] = value
}

// ApplyStateDelta buffers a batch of state writes.
func (ic *InvocationContext) ApplyStateDelta(delta map[string]any) {
	if len(delta) == 0 {
		return
	}
	if ic.StateDelta == nil {
		ic.StateDelta = map[string]any{}
	}
	maps.Copy(ic.StateDelta, delta)
}

// RefreshSession replaces the cached session snapshot with the latest stored
// version so subsequent reads see deltas applied by the engine.
func (ic *InvocationContext) RefreshSession() error {
	if ic.SessionService == nil {
		return nil
	}
	latest, err := ic.SessionService.Get(ic.SessionID)
	if err != nil {
		return fmt.Errorf("refresh session %s: %w", ic.SessionID, err)
	}
	if latest != nil {
		ic.Session = latest
	}
	return nil
}

// EmitEvent stamps the event with the context branch (when unset), folds the
// pending state buffer into its actions and sends it to the engine. The
// pending buffer is cleared on successful send. Event-local delta entries win
// over buffered ones.
func (ic *InvocationContext) EmitEvent(ev Event) error {
	if ev.Branch == nil && ic.Branch != nil {
		ev.Branch = ic.Branch
	}

	if len(ic.StateDelta) > 0 {
		merged := make(map[string]any, len(ic.StateDelta)+len(ev.Actions.StateDelta))
		maps.Copy(merged, ic.StateDelta)
		maps.Copy(merged, ev.Actions.StateDelta)
		ev.Actions.StateDelta = merged
	}

	if ic.Context != nil {
		select {
		case <-ic.Context.Done():
			return ic.Context.Err()
		case ic.Emit <- ev:
		}
	} else {
		ic.Emit <- ev
	}

	ic.StateDelta = map[string]any{}
	return nil
}

// WaitForResume blocks until the engine acknowledges the previously emitted
// event or the context is cancelled. A nil Resume channel disables
// acknowledgment and returns immediately.
func (ic *InvocationContext) WaitForResume() error {
	if ic.Resume == nil {
		return nil
	}
	if ic.Context != nil {
		select {
		case <-ic.Context.Done():
			return ic.Context.Err()
		case <-ic.Resume:
			return nil
		}
	}
	<-ic.Resume
	return nil
}

// Clone returns a copy sharing channels, stores and limiter but with fresh
// pending buffers so divergent writers do not interleave deltas.
func (ic *InvocationContext) Clone() *InvocationContext {
	clone := *ic
	clone.StateDelta = map[string]any{}
	return &clone
}

// WithBranch returns a clone whose events are attributed to the given branch.
func (ic *InvocationContext) WithBranch(branch string) *InvocationContext {
	clone := ic.Clone()
	clone.Branch = &branch
	return clone
}

// NewChildContext returns a clone with replaced emission channels. Used by
// coordinators that intercept a child's event stream (e.g. loop escalation
// monitoring) before forwarding to the engine.
func (ic *InvocationContext) NewChildContext(emit chan<- Event, resume <-chan struct{}) *InvocationContext {
	clone := ic.Clone()
	clone.Emit = emit
	clone.Resume = resume
	return clone
}
