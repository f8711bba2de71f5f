package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentflow/core"
)

// branchInterceptBuffer sizes the per-branch channel between a child and its
// forwarder.
const branchInterceptBuffer = 10

// ParallelAgent coordinates the concurrent execution of multiple child
// agents. Each child runs on a clone of the invocation context stamped with
// an isolated branch path, so concurrently produced events remain
// attributable while the children share session access.
//
// Events from different children interleave in completion order; ordering
// guarantees hold only within a single child's stream.
//
// ParallelAgent is ideal for:
//   - Independent task processing
//   - I/O bound operations that can run concurrently
//   - Data gathering from multiple sources
//   - Scenarios where relative event order between children doesn't matter
type ParallelAgent struct {
	BaseAgent
	timeout time.Duration
}

// NewParallelAgent creates a concurrent execution coordinator. A timeout of
// 0 disables the deadline; otherwise all children must finish within it.
func NewParallelAgent(name string, timeout time.Duration, children ...core.Agent) *ParallelAgent {
	p := &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		timeout:   timeout,
	}
	p.bindSelf(p)
	_ = p.SetSubAgents(children...)
	return p
}

// branchContext clones the parent context for one child and assigns its
// hierarchical branch path ("Parent.Child", prefixed by any existing
// branch).
func (p *ParallelAgent) branchContext(ictx *core.InvocationContext, child core.Agent) *core.InvocationContext {
	parentBranch := ""
	if ictx.Branch != nil {
		parentBranch = *ictx.Branch
	}
	return ictx.WithBranch(buildBranchPath(parentBranch, fmt.Sprintf("%s.%s", p.Name(), child.Name())))
}

// Run implements core.Agent. All children launch concurrently on isolated
// branch contexts, each behind its own emit/resume pair; Run waits for every
// child before returning. The first child error (in completion order) is
// returned after all children finished, so successful siblings always run to
// completion.
func (p *ParallelAgent) Run(ictx *core.InvocationContext) error {
	return p.runWithHooks(ictx, func() error {
		children := p.SubAgents()
		if len(children) == 0 {
			return nil
		}

		base := ictx
		if p.timeout > 0 {
			timeoutCtx, cancel := context.WithTimeout(ictx.Context, p.timeout)
			defer cancel()
			base = ictx.Clone()
			base.Context = timeoutCtx
		}

		ictx.LogDebug("agent.parallel.start", "agent", p.Name(), "children", len(children))

		// forwardMu serializes upstream emission across branches: while a
		// forwarder holds it, the engine's next resume token belongs to the
		// event that forwarder just committed, so an acknowledgment can never
		// reach the wrong branch.
		var forwardMu sync.Mutex
		var wg sync.WaitGroup
		errCh := make(chan error, len(children))

		for _, child := range children {
			wg.Add(1)
			go func(c core.Agent) {
				defer wg.Done()

				if err := p.runBranch(base, c, &forwardMu); err != nil {
					errCh <- fmt.Errorf("parallel execution failed for agent %s: %w", c.Name(), err)
				}
			}(child)
		}

		wg.Wait()
		close(errCh)

		if err := <-errCh; err != nil {
			return err
		}
		return nil
	})
}

// runBranch executes one child behind an intercepting event channel, the
// same protocol the loop agent uses for escalation monitoring. The child's
// resume is released only after the upstream acknowledged the forwarded
// event, so each branch keeps the read-your-writes guarantee of a serial
// emitter: a child that waited for its resume observes its own committed
// state delta.
func (p *ParallelAgent) runBranch(base *core.InvocationContext, child core.Agent, forwardMu *sync.Mutex) error {
	branchCtx := p.branchContext(base, child)
	interceptCh := make(chan core.Event, branchInterceptBuffer)
	resumeCh := make(chan struct{}, 1)
	childCtx := branchCtx.NewChildContext(interceptCh, resumeCh)

	done := make(chan error, 1)
	go func() {
		done <- child.Run(childCtx)
	}()

	forward := func(ev core.Event) error {
		forwardMu.Lock()
		defer forwardMu.Unlock()
		if err := branchCtx.EmitEvent(ev); err != nil {
			return err
		}
		if ev.IsPartial() {
			return nil
		}
		return branchCtx.WaitForResume()
	}

	for {
		select {
		case ev := <-interceptCh:
			if err := forward(ev); err != nil {
				<-done
				return err
			}
			if !ev.IsPartial() {
				select {
				case resumeCh <- struct{}{}:
				case <-branchCtx.Context.Done():
					<-done
					return branchCtx.Context.Err()
				}
			}
		case err := <-done:
			// Drain events the child buffered before finishing.
			for {
				select {
				case ev := <-interceptCh:
					if fwdErr := forward(ev); fwdErr != nil {
						return fwdErr
					}
				default:
					return err
				}
			}
		case <-branchCtx.Context.Done():
			<-done
			return branchCtx.Context.Err()
		}
	}
}
