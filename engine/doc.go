// Package engine implements the orchestration layer for AgentFlow.
//
// The Engine coordinates the complete lifecycle of an agent invocation. It
// owns the agent registry, launches agent execution, and runs the event
// pipeline that turns an agent's raw emissions into committed session
// history and a client-facing stream.
//
// # Responsibilities
//
//   - Thread-safe agent registry with name-based lookup and replacement
//   - Asynchronous (Invoke) and synchronous (InvokeSync) execution
//   - Bounded concurrency with fail-fast admission control
//   - Cancellation via StopInvocation or the caller's context
//   - Observer hooks on every event before its actions are committed
//   - State delta application and session persistence for non-partial events
//   - Real-time forwarding to the client with configurable buffering
//   - Resume acknowledgment back to the producing agent
//   - Session, artifact and memory store integration, including capture of
//     inline input blobs as artifacts
//
// # Event Pipeline
//
// Each invocation runs two goroutines: one executes the agent, the other
// pumps its emitted events through a fixed processing order.
//
//	agent goroutine                event pump
//	───────────────                ──────────
//	EmitEvent(ev) ───────────────▶ observe(ev)
//	                               apply state deltas
//	                               append to history
//	                               forward to client
//	WaitForResume() ◀───────────── acknowledge
//
// The final acknowledgment gives agents read-your-writes consistency: an
// agent that waits for resume after emitting always observes its own
// committed state on the next session read. Partial (streaming) events skip
// persistence and the acknowledgment entirely.
//
// Interception hooks that run inside the agent boundary, such as replacing
// a model response or rewriting tool arguments, are registered as
// core.Plugin values on the engine's Options and travel with the invocation
// context. Observers complement plugins by auditing events after the agent
// has produced them.
//
// # Usage
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.SessionStore = store
//	    o.Logger = logger
//	})
//
//	assistant, err := agent.NewModelAgent("Assistant", model)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng.Register(assistant)
//
//	id, events, errs, err := eng.Invoke(ctx, "session-1", "Assistant", content)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range events {
//	    fmt.Println(ev.StringifyContent())
//	}
//	if err := <-errs; err != nil {
//	    log.Fatal(err)
//	}
//	_ = id // usable with StopInvocation
//
// # Error Handling
//
// Startup failures (unknown agent, session store errors, admission limit)
// are returned directly from Invoke. Failures during execution arrive on
// the error channel and terminate the invocation; the invocation context is
// cancelled so in-flight agent work unwinds at its next suspension point.
// Client cancellation through the surrounding context behaves the same way.
//
// A zero-configuration engine backed by in-memory stores works out of the
// box, which keeps tests and local development free of external services.
package engine
