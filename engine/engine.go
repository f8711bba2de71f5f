package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/hupe1980/agentflow/artifact"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/memory"
	"github.com/hupe1980/agentflow/session"
)

// Config holds the engine-wide resource knobs. Per-invocation execution
// settings (streaming mode, model call limits, input blob handling) live in
// core.RunConfig instead.
type Config struct {
	// MaxConcurrentInvocations caps how many invocations may run at once.
	// Invoke fails fast at the cap so callers get immediate backpressure;
	// 0 removes the cap.
	MaxConcurrentInvocations int

	// EventBufferSize is the buffer of the internal and client-facing event
	// channels. Bigger buffers let producers run further ahead at the cost
	// of memory.
	EventBufferSize int
}

// DefaultConfig allows 10 concurrent invocations with a 100 event buffer.
var DefaultConfig = Config{
	MaxConcurrentInvocations: 10,
	EventBufferSize:          100,
}

// Options configure an Engine. Every service has an in-memory default, so a
// zero-configuration engine works out of the box for development and tests;
// production deployments swap in persistent stores.
type Options struct {
	// Config replaces DefaultConfig when set.
	Config Config

	// SessionStore persists sessions, their state and event history.
	// In-memory when not provided.
	SessionStore core.SessionStore

	// ArtifactStore keeps binary artifact versions. In-memory when not
	// provided.
	ArtifactStore core.ArtifactStore

	// MemoryStore backs long-term memory search and recall. In-memory when
	// not provided.
	MemoryStore core.MemoryStore

	// Logger receives the engine's structured logs. No-op when nil.
	Logger logging.Logger

	// Plugins holds globally registered interception hooks. They run before
	// per-agent callbacks at every agent, model and tool boundary of each
	// invocation.
	Plugins *core.PluginManager

	// RunConfig is the default per-invocation execution configuration.
	// Individual Invoke calls may override it.
	RunConfig core.RunConfig

	// Observers inspect every processed event before its actions are
	// committed. An observer error terminates the invocation.
	Observers []EventObserver
}

// Engine orchestrates agent execution and manages the complete lifecycle of
// multi-agent conversations.
//
// Core responsibilities:
//   - Agent registry: thread-safe registration and lookup of named agents
//   - Invocation management: async/sync execution with cancellation
//   - Event processing: applying event actions, persistence, streaming and
//     the emit/resume acknowledgment protocol
//   - Resource management: bounded concurrency and cleanup
//
// Event flow per invocation:
//  1. The user content is persisted as the invocation's first event
//  2. Agent execution produces a stream of events on an internal channel
//  3. For each event: observers run, state deltas are applied, non-partial
//     events are appended to session history, the event is forwarded to the
//     client and the producer's resume is acknowledged
//
// The resume acknowledgment gives producers read-your-writes consistency: an
// agent that waited for the resume signal observes its own committed state
// delta on the next session read. Composite coordinators that multiplex
// producers (parallel fan-out, loop interception) run each child on its own
// emit/resume pair and forward one event at a time, releasing the child's
// resume only after the engine acknowledged that event, so the guarantee
// holds per branch as well.
type Engine struct {
	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	logger        logging.Logger

	config    Config
	plugins   *core.PluginManager
	runConfig core.RunConfig
	observers []EventObserver

	// sem bounds concurrently running invocations; nil means unlimited.
	sem chan struct{}

	agents map[string]core.Agent
	mu     sync.RWMutex

	activeInvocations map[string]context.CancelFunc
	invocationsMu     sync.RWMutex
}

// New creates an Engine with sensible defaults and optional configuration.
//
// Defaults: in-memory session, artifact and memory stores, a no-op logger,
// no plugins and core.DefaultRunConfig. The returned engine is immediately
// ready and safe for concurrent use.
//
// Example:
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.SessionStore = myStore
//	    o.Plugins = pluginManager
//	    o.Config.MaxConcurrentInvocations = 50
//	})
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:        DefaultConfig,
		SessionStore:  session.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		MemoryStore:   memory.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
		RunConfig:     core.DefaultRunConfig(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Engine{
		sessionStore:      opts.SessionStore,
		artifactStore:     opts.ArtifactStore,
		memoryStore:       opts.MemoryStore,
		logger:            opts.Logger,
		config:            opts.Config,
		plugins:           opts.Plugins,
		runConfig:         opts.RunConfig,
		observers:         opts.Observers,
		agents:            make(map[string]core.Agent),
		activeInvocations: make(map[string]context.CancelFunc),
	}

	if opts.Config.MaxConcurrentInvocations > 0 {
		e.sem = make(chan struct{}, opts.Config.MaxConcurrentInvocations)
	}

	return e
}

// Register adds an agent to the engine's registry, making it available for
// invocation under agent.Name(). An existing agent with the same name is
// replaced. The engine does not take ownership of the agent's lifecycle.
func (e *Engine) Register(agent core.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agents[agent.Name()] = agent
}

// GetAgent retrieves a registered agent by name. The boolean reports whether
// the agent exists.
func (e *Engine) GetAgent(name string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	agent, ok := e.agents[name]
	return agent, ok
}

// InvokeOptions carries per-call overrides for Invoke.
type InvokeOptions struct {
	// RunConfig replaces the engine's default execution configuration for
	// this invocation.
	RunConfig core.RunConfig
}

// Invoke executes an agent asynchronously and returns channels for real-time
// event streaming.
//
// The session is created on first use. The user content is appended to the
// session before the agent starts so the first model request already sees
// it. Events are streamed on the returned events channel as they are
// generated; the channel closes when the agent completes. Terminal errors
// (agent failures, persistence failures) arrive on the errors channel.
//
// Immediate errors are returned directly: unknown agent, session store
// failures and the concurrency limit. When MaxConcurrentInvocations is
// reached, Invoke fails fast instead of queueing.
//
// The returned invocation ID can be passed to StopInvocation for explicit
// cancellation.
//
// Example:
//
//	id, events, errs, err := eng.Invoke(ctx, "support-1", "Assistant", content)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range events {
//	    fmt.Println(ev.StringifyContent())
//	}
//	if err := <-errs; err != nil {
//	    log.Fatal(err)
//	}
//	_ = id
func (e *Engine) Invoke(ctx context.Context, sessionID, agentName string, userContent core.Content, optFns ...func(o *InvokeOptions)) (string, <-chan core.Event, <-chan error, error) {
	agent, ok := e.GetAgent(agentName)
	if !ok {
		return "", nil, nil, fmt.Errorf("agent %s not found", agentName)
	}

	opts := InvokeOptions{RunConfig: e.runConfig}
	for _, fn := range optFns {
		fn(&opts)
	}

	if e.sem != nil {
		select {
		case e.sem <- struct{}{}:
		default:
			return "", nil, nil, fmt.Errorf("max concurrent invocations reached (%d)", e.config.MaxConcurrentInvocations)
		}
	}
	release := func() {
		if e.sem != nil {
			<-e.sem
		}
	}

	sess, err := e.sessionStore.GetOrCreate(sessionID)
	if err != nil {
		release()
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	invocationID := core.NewID()

	if opts.RunConfig.SaveInputBlobsAsArtifacts {
		userContent, err = e.saveInputBlobs(sessionID, invocationID, userContent)
		if err != nil {
			release()
			return "", nil, nil, err
		}
	}

	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 2)
	agentEmit := make(chan core.Event, e.config.EventBufferSize)
	resumeCh := make(chan struct{}, 1)

	invocationCtx, cancel := context.WithCancel(ctx)

	e.invocationsMu.Lock()
	e.activeInvocations[invocationID] = cancel
	e.invocationsMu.Unlock()

	invCtx := core.NewInvocationContext(
		invocationCtx,
		invocationID,
		sessionID,
		core.AgentInfo{Name: agent.Name(), Type: "agent"},
		userContent,
		agentEmit,
		resumeCh,
		sess,
		e.sessionStore,
		e.artifactStore,
		e.memoryStore,
		func(o *core.InvocationContextOptions) {
			o.Logger = e.logger
			o.Plugins = e.plugins
			o.RunConfig = opts.RunConfig
		},
	)

	// Persist user input as the starting event so the agent's first session
	// read includes it.
	userEvent := core.NewUserContentEvent(invocationID, &userContent)
	if err := e.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		e.untrack(invocationID)
		cancel()
		release()
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	// Agent execution goroutine. Closing agentEmit is the completion signal
	// for the event pump; tracking and the concurrency slot are released
	// first so observers of the closed client channels see a fully retired
	// invocation.
	go func() {
		defer func() {
			e.untrack(invocationID)
			release()
			close(agentEmit)
		}()

		if err := e.runAgent(invCtx, agent); err != nil {
			select {
			case <-invocationCtx.Done():
			case errorsCh <- fmt.Errorf("agent execution failed: %w", err):
			}
		}
	}()

	// Event pump goroutine. Owns the client-facing channels; processEvents
	// guarantees the producer side is unwound before they close.
	pipe := eventPipe{agentEmit: agentEmit, resume: resumeCh, events: eventsCh, errors: errorsCh}

	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
		}()

		e.processEvents(invCtx, cancel, sessionID, pipe)
	}()

	return invocationID, eventsCh, errorsCh, nil
}

// InvokeSync executes an agent synchronously and returns all generated
// events in emission order, including partials.
//
// It blocks until the agent completes, a terminal error occurs or the
// context is cancelled. For high-volume streaming scenarios prefer Invoke.
func (e *Engine) InvokeSync(ctx context.Context, sessionID, agentName string, userContent core.Content, optFns ...func(o *InvokeOptions)) (string, []core.Event, error) {
	invocationID, eventsCh, errorsCh, err := e.Invoke(ctx, sessionID, agentName, userContent, optFns...)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return invocationID, events, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				// Events channel closed; surface any terminal error.
				if err := <-errorsCh; err != nil {
					return invocationID, events, err
				}
				return invocationID, events, nil
			}
			events = append(events, event)

		case err := <-errorsCh:
			if err != nil {
				return invocationID, events, err
			}
		}
	}
}

// StopInvocation forcibly terminates a running invocation by ID. The
// invocation's context is cancelled, unwinding agent execution at the next
// suspension point. Returns an error when the ID is unknown or already
// finished.
func (e *Engine) StopInvocation(invocationID string) error {
	e.invocationsMu.RLock()
	cancel, ok := e.activeInvocations[invocationID]
	e.invocationsMu.RUnlock()

	if !ok {
		return fmt.Errorf("invocation %s not found", invocationID)
	}

	cancel()
	return nil
}

func (e *Engine) untrack(invocationID string) {
	e.invocationsMu.Lock()
	delete(e.activeInvocations, invocationID)
	e.invocationsMu.Unlock()
}

func (e *Engine) runAgent(invCtx *core.InvocationContext, agent core.Agent) error {
	if err := agent.Start(invCtx); err != nil {
		return err
	}
	defer func() {
		if err := agent.Stop(invCtx); err != nil {
			e.logger.Warn("agent stop failed", "agent", agent.Name(), "error", err)
		}
	}()

	return agent.Run(invCtx)
}

// saveInputBlobs persists inline file parts of the user content as session
// artifacts and replaces them with text references, so large payloads never
// enter the prompt or the event log verbatim.
func (e *Engine) saveInputBlobs(sessionID, invocationID string, content core.Content) (core.Content, error) {
	parts := make([]core.Part, len(content.Parts))
	copy(parts, content.Parts)

	for i, p := range parts {
		fp, ok := p.(core.FilePart)
		if !ok || fp.File.Bytes == "" {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(fp.File.Bytes)
		if err != nil {
			return core.Content{}, fmt.Errorf("failed to decode input blob %d: %w", i, err)
		}

		artifactID := fmt.Sprintf("artifact_%s_%d", invocationID, i)
		if _, err := e.artifactStore.Save(sessionID, artifactID, data); err != nil {
			return core.Content{}, fmt.Errorf("failed to save input blob %d: %w", i, err)
		}

		parts[i] = core.TextPart{Text: fmt.Sprintf("Uploaded file: %s. It has been saved to the artifacts", artifactID)}
	}

	content.Parts = parts
	return content, nil
}

// eventPipe bundles the channels that connect one invocation's agent
// goroutine, the engine's event pump and the client.
type eventPipe struct {
	agentEmit <-chan core.Event
	resume    chan<- struct{}
	events    chan<- core.Event
	errors    chan<- error
}

// processEvents runs the event pipeline for one invocation: receive from
// the agent, run observers, apply actions, persist, forward to the client
// and acknowledge the producer.
//
// A failure at any stage is terminal: the error is reported, the invocation
// context is cancelled so blocked producers unwind, and remaining events are
// drained without processing. Partial events skip persistence and the
// resume acknowledgment; the producer does not wait on them.
func (e *Engine) processEvents(invCtx *core.InvocationContext, cancel context.CancelFunc, sessionID string, pipe eventPipe) {
	ctx := invCtx.Context

	// Every exit must leave the producer side fully unwound before the
	// caller closes the error channel, otherwise a failing agent could
	// race its error send against the close. Cancelling first unblocks
	// producers stuck in emit or resume waits; draining then waits for
	// the agent goroutine to close its channel.
	defer func() {
		cancel()
		for range pipe.agentEmit {
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-pipe.agentEmit:
			if !ok {
				return
			}

			if err := e.handleEvent(ctx, sessionID, ev, pipe); err != nil {
				if ctx.Err() == nil {
					select {
					case pipe.errors <- err:
					default:
					}
				}
				return
			}
		}
	}
}

// handleEvent pushes one event through the pipeline stages. It returns the
// context error when the invocation is cancelled mid-delivery.
func (e *Engine) handleEvent(ctx context.Context, sessionID string, ev core.Event, pipe eventPipe) error {
	if err := e.observeEvent(ctx, sessionID, &ev); err != nil {
		return fmt.Errorf("event observer rejected event: %w", err)
	}

	if err := e.applyEventActions(sessionID, ev); err != nil {
		return fmt.Errorf("failed to process event actions: %w", err)
	}

	if !ev.IsPartial() {
		if err := e.sessionStore.AppendEvent(sessionID, ev); err != nil {
			return fmt.Errorf("failed to append event to session: %w", err)
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case pipe.events <- ev:
		e.logger.Debug("engine delivered event", "event_id", ev.ID, "session_id", sessionID)
	}

	// Acknowledge the producer. Every non-partial emission expects exactly
	// one resume token, so this send must never be skipped.
	if !ev.IsPartial() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pipe.resume <- struct{}{}:
		}
	}

	return nil
}

// applyEventActions commits the side-effects encoded in an event's actions.
// State deltas are applied to the session store before the event is
// persisted or forwarded, so consumers that react to the event already see
// the new state. Transfer and escalate markers are handled inside the agent
// tree; the engine only records them.
func (e *Engine) applyEventActions(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := e.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		e.logger.Debug("engine observed transfer", "target", *ev.Actions.TransferToAgent, "session_id", sessionID)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		e.logger.Debug("engine observed escalation", "session_id", sessionID)
	}

	return nil
}

// observeEvent runs all registered observers against the event in order.
func (e *Engine) observeEvent(ctx context.Context, sessionID string, ev *core.Event) error {
	for _, o := range e.observers {
		if err := o.OnEvent(ctx, sessionID, ev); err != nil {
			return err
		}
	}
	return nil
}

// GetSession retrieves the current session snapshot by ID. Primarily useful
// for debugging and introspection; agents read session state through their
// invocation context instead.
func (e *Engine) GetSession(sessionID string) (*core.Session, error) {
	return e.sessionStore.Get(sessionID)
}
