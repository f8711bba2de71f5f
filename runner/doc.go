// Package runner provides a single-agent execution convenience for
// AgentFlow.
//
// A Runner binds one root agent to an engine instance, so programs that
// run exactly one agent (or one composite tree) skip the registry and
// name-based lookup of the engine package. Event semantics are identical:
// runs stream events through the engine's pipeline with state application,
// persistence and resume acknowledgment.
//
// Usage:
//
//	r := runner.New(rootAgent, func(o *runner.Options) {
//	    o.SessionStore = store
//	})
//
//	runID, events, errs, err := r.Run(ctx, "session-1", content)
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    handleEvent(ev)
//	}
//	if err := <-errs; err != nil {
//	    return err
//	}
//	_ = runID // usable with Cancel
//
// For multi-agent registries, per-call run configuration or observers, use
// the engine package directly.
package runner
