package runner

import (
	"context"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/engine"
	"github.com/hupe1980/agentflow/logging"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// SessionStore manages session persistence and state.
	SessionStore core.SessionStore
	// ArtifactStore handles binary/blob artifact storage.
	ArtifactStore core.ArtifactStore
	// MemoryStore provides searchable memory and recall.
	MemoryStore core.MemoryStore
	// Logger provides structured logging.
	Logger logging.Logger
	// Plugins holds global interception hooks applied to every run.
	Plugins *core.PluginManager
	// RunConfig is the default execution configuration per run.
	RunConfig core.RunConfig
	// EventBufferSize sets channel buffering for event delivery.
	EventBufferSize int
}

// Runner executes a single root agent against sessions. It is a convenience
// wrapper around an Engine pre-registered with exactly one agent, for
// programs that do not need a multi-agent registry.
//
// Public methods are safe for concurrent use.
type Runner struct {
	agent  core.Agent
	engine *engine.Engine
}

// New constructs a Runner for the given root agent with optional overrides.
// Omitted services default to in-memory implementations.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		RunConfig:       core.DefaultRunConfig(),
		EventBufferSize: engine.DefaultConfig.EventBufferSize,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(func(o *engine.Options) {
		// A single-agent runner has no admission concern of its own.
		o.Config.MaxConcurrentInvocations = 0
		o.Config.EventBufferSize = opts.EventBufferSize

		if opts.SessionStore != nil {
			o.SessionStore = opts.SessionStore
		}
		if opts.ArtifactStore != nil {
			o.ArtifactStore = opts.ArtifactStore
		}
		if opts.MemoryStore != nil {
			o.MemoryStore = opts.MemoryStore
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}

		o.Plugins = opts.Plugins
		o.RunConfig = opts.RunConfig
	})
	eng.Register(agent)

	return &Runner{agent: agent, engine: eng}
}

// Run starts an asynchronous invocation of the root agent and returns the
// run ID plus channels streaming events and terminal errors. The events
// channel closes when the run completes.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return r.engine.Invoke(ctx, sessionID, r.agent.Name(), userContent)
}

// RunSync executes the root agent and blocks until completion, returning
// all generated events in emission order.
func (r *Runner) RunSync(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, []core.Event, error) {
	return r.engine.InvokeSync(ctx, sessionID, r.agent.Name(), userContent)
}

// Cancel terminates a running invocation by its run ID.
func (r *Runner) Cancel(runID string) error {
	return r.engine.StopInvocation(runID)
}

// GetSession retrieves the current session snapshot by ID.
func (r *Runner) GetSession(sessionID string) (*core.Session, error) {
	return r.engine.GetSession(sessionID)
}
