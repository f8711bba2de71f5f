package agent

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentflow/core"
)

// loopInterceptBuffer sizes the channel through which child events are
// observed before forwarding.
const loopInterceptBuffer = 10

// LoopAgent repeatedly executes its children in order until an iteration
// limit is reached or a child escalates.
//
// Escalation is the loop's termination signal: when any forwarded event
// carries Escalate, the loop stops after the current child finishes and
// returns nil. The escalation event itself is still forwarded so consumers
// observe the reason for stopping.
//
// Typical uses are draft/critique refinement cycles, polling and retry
// workflows with an agent-controlled exit, and convergence loops bounded by
// a maximum iteration count.
type LoopAgent struct {
	BaseAgent
	maxIterations int
	interval      time.Duration
}

// NewLoopAgent creates a looping coordinator over the given children.
// maxIterations bounds the number of full passes; 0 means unbounded, in
// which case a child escalation (or cancellation) is the only way out.
func NewLoopAgent(name string, maxIterations int, children ...core.Agent) *LoopAgent {
	l := &LoopAgent{
		BaseAgent:     NewBaseAgent(name),
		maxIterations: maxIterations,
	}
	l.bindSelf(l)
	_ = l.SetSubAgents(children...)
	return l
}

// SetInterval configures a delay between iterations. Useful for polling
// loops that should not spin.
func (l *LoopAgent) SetInterval(d time.Duration) { l.interval = d }

// Run implements core.Agent. Each iteration executes every child in order
// while observing the emitted events for escalation; the loop consumes the
// escalation signal and returns nil. Child errors abort the loop
// immediately.
func (l *LoopAgent) Run(ictx *core.InvocationContext) error {
	return l.runWithHooks(ictx, func() error {
		children := l.SubAgents()
		if len(children) == 0 {
			return nil
		}

		for iteration := 1; l.maxIterations == 0 || iteration <= l.maxIterations; iteration++ {
			if ictx.Halted() {
				return nil
			}

			ictx.LogDebug("agent.loop.iteration", "agent", l.Name(), "iteration", iteration)

			for _, child := range children {
				if ictx.Halted() {
					return nil
				}

				escalated, err := l.runChildObserved(ictx, child)
				if err != nil {
					return fmt.Errorf("loop iteration %d failed for agent %s: %w", iteration, child.Name(), err)
				}
				if escalated {
					ictx.LogInfo("agent.loop.escalated", "agent", l.Name(), "child", child.Name(), "iteration", iteration)
					return nil
				}
			}

			if l.interval > 0 {
				select {
				case <-ictx.Context.Done():
					return ictx.Context.Err()
				case <-time.After(l.interval):
				}
			}
		}

		ictx.LogDebug("agent.loop.complete", "agent", l.Name(), "iterations", l.maxIterations)
		return nil
	})
}

// runChildObserved executes one child behind an intercepting event channel.
// Every child event is forwarded upstream unchanged; events carrying the
// escalate action additionally flip the returned flag. The intermediary
// preserves the emit/resume acknowledgment protocol: the child's resume is
// released only after the upstream acknowledged the forwarded event.
func (l *LoopAgent) runChildObserved(ictx *core.InvocationContext, child core.Agent) (bool, error) {
	interceptCh := make(chan core.Event, loopInterceptBuffer)
	resumeCh := make(chan struct{}, 1)
	childCtx := ictx.NewChildContext(interceptCh, resumeCh)

	done := make(chan error, 1)
	go func() {
		done <- child.Run(childCtx)
	}()

	escalated := false
	forward := func(ev core.Event) error {
		if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
			escalated = true
		}
		if err := ictx.EmitEvent(ev); err != nil {
			return err
		}
		if ev.IsPartial() {
			return nil
		}
		return ictx.WaitForResume()
	}

	for {
		select {
		case ev := <-interceptCh:
			if err := forward(ev); err != nil {
				<-done
				return escalated, err
			}
			if !ev.IsPartial() {
				select {
				case resumeCh <- struct{}{}:
				case <-ictx.Context.Done():
					<-done
					return escalated, ictx.Context.Err()
				}
			}
		case err := <-done:
			// Drain events the child buffered before finishing.
			for {
				select {
				case ev := <-interceptCh:
					if fwdErr := forward(ev); fwdErr != nil {
						return escalated, fwdErr
					}
				default:
					return escalated, err
				}
			}
		case <-ictx.Context.Done():
			<-done
			return escalated, ictx.Context.Err()
		}
	}
}

// CreateEscalationEvent constructs an event signalling that the emitting
// agent cannot make further progress and the enclosing loop should stop.
func CreateEscalationEvent(invocationID, author string, content *core.Content) core.Event {
	escalated := true
	ev := core.NewEvent(invocationID, author)
	ev.Content = content
	ev.Actions = core.EventActions{Escalate: &escalated}
	return ev
}
