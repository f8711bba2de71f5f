package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
)

// EventObserver inspects every event the engine processes, before the
// event's actions are committed to the session. Observers run in
// registration order; an observer error terminates the invocation.
//
// Observers watch the invocation from the outside and may mutate the event
// in place. For hooks that intercept or replace agent, model and tool
// behavior, use core.Plugin instead.
type EventObserver interface {
	OnEvent(ctx context.Context, sessionID string, ev *core.Event) error
}

// EventObserverFunc adapts a plain function to the EventObserver interface.
type EventObserverFunc func(ctx context.Context, sessionID string, ev *core.Event) error

// OnEvent calls f.
func (f EventObserverFunc) OnEvent(ctx context.Context, sessionID string, ev *core.Event) error {
	return f(ctx, sessionID, ev)
}

// NewLoggingObserver returns an observer that logs every processed event at
// debug level. Useful during development to watch the event flow without
// instrumenting individual agents.
func NewLoggingObserver(logger logging.Logger) EventObserver {
	return EventObserverFunc(func(_ context.Context, sessionID string, ev *core.Event) error {
		logger.Debug("event processed",
			"session_id", sessionID,
			"event_id", ev.ID,
			"invocation_id", ev.InvocationID,
			"author", ev.Author,
			"partial", ev.IsPartial(),
			"final", ev.IsFinalResponse(),
		)
		return nil
	})
}

// NewStateValidationObserver returns an observer that validates state deltas
// before they reach the session store. The validate function receives the
// delta of every event that carries one; returning an error rejects the
// event and fails the invocation.
func NewStateValidationObserver(validate func(delta map[string]any) error) EventObserver {
	return EventObserverFunc(func(_ context.Context, _ string, ev *core.Event) error {
		if len(ev.Actions.StateDelta) == 0 {
			return nil
		}

		if err := validate(ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("state validation failed: %w", err)
		}

		return nil
	})
}
