// Package agentflow provides a high-level façade over the core Engine and
// service abstractions (sessions, artifacts, memory & logging) enabling rapid
// construction of multi-agent reasoning systems. Most applications interact
// with this package by:
//  1. Creating an AgentFlow via New() (optionally overriding default in-memory services)
//  2. Registering one or more agents (model, sequential, parallel, loop, custom)
//  3. Invoking agents asynchronously (Invoke) or synchronously (InvokeSync)
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply durable store implementations
// and a structured logger.
package agentflow

import (
	"context"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/engine"
	"github.com/hupe1980/agentflow/logging"
)

// Options configures the AgentFlow instance.
type Options struct {
	// EngineConfig tunes concurrency limits and event buffering.
	EngineConfig engine.Config

	// Stores (default to in-memory implementations if not provided).
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore

	// Logger defaults to a NoOp logger if nil.
	Logger logging.Logger

	// Plugins holds global interception hooks applied to every invocation.
	Plugins *core.PluginManager

	// RunConfig is the default per-invocation execution configuration.
	RunConfig core.RunConfig

	// Observers inspect every processed event before it is committed.
	Observers []engine.EventObserver
}

// AgentFlow is the high-level façade aggregating the underlying engine and services.
type AgentFlow struct {
	engine *engine.Engine
}

// New creates a new AgentFlow instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *AgentFlow {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		RunConfig:    core.DefaultRunConfig(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig

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
		o.Observers = opts.Observers
	})

	return &AgentFlow{engine: eng}
}

// RegisterAgent adds an agent to the underlying engine registry.
func (m *AgentFlow) RegisterAgent(a core.Agent) { m.engine.Register(a) }

// Invoke starts an asynchronous invocation returning event & error channels.
func (m *AgentFlow) Invoke(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
	optFns ...func(o *engine.InvokeOptions),
) (string, <-chan core.Event, <-chan error, error) {
	return m.engine.Invoke(ctx, sessionID, agentName, userContent, optFns...)
}

// InvokeSync executes an agent to completion and returns all emitted events
// together with the invocation ID that produced them.
func (m *AgentFlow) InvokeSync(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
	optFns ...func(o *engine.InvokeOptions),
) (string, []core.Event, error) {
	return m.engine.InvokeSync(ctx, sessionID, agentName, userContent, optFns...)
}

// StopInvocation cancels a running invocation by ID.
func (m *AgentFlow) StopInvocation(invocationID string) error {
	return m.engine.StopInvocation(invocationID)
}

// GetSession retrieves the current session snapshot by ID.
func (m *AgentFlow) GetSession(sessionID string) (*core.Session, error) {
	return m.engine.GetSession(sessionID)
}
