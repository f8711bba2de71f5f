package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentflow/core"
)

// FunctionExecutor runs a batch of function calls and reassembles the
// results into ONE consolidated function-response event. Implementations
// must:
//   - Respect context cancellation
//   - Never panic (recover internally, surfacing panics as tool errors)
//   - Order function responses by call order regardless of completion order
//   - Merge per-call ToolContext actions into the consolidated event, later
//     calls winning on conflicting keys
//
// A nil event with a nil error means no call produced a reportable result
// (e.g. long-running tools acknowledged without output).
type FunctionExecutor interface {
	Execute(ictx *core.InvocationContext, agent FlowAgent, fnCalls []core.FunctionCall) (*core.Event, error)
}

// FunctionExecutorConfig configures the default parallel executor. By
// default every call in the turn runs in its own goroutine: concurrency is
// bounded only by the number of function calls the model issued.
type FunctionExecutorConfig struct {
	MaxParallel int // optional cap on concurrent calls; 0 or negative means no pool
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs an executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

// callOutcome is one call's contribution to the consolidated event. A zero
// outcome (empty response ID) marks a call skipped by cancellation.
type callOutcome struct {
	response core.FunctionResponse
	actions  core.EventActions
	omit     bool
	hookErr  error
}

func (e *parallelFunctionExecutor) Execute(ictx *core.InvocationContext, agent FlowAgent, fnCalls []core.FunctionCall) (*core.Event, error) {
	n := len(fnCalls)
	if n == 0 {
		return nil, nil
	}

	registry := agent.GetTools()
	toolCallbacks := agent.ToolCallbacks()

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	outcomes := make([]callOutcome, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	batchStart := time.Now()
	for i := range fnCalls {
		if ictx.Context != nil && ictx.Context.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[idx] = e.runCall(ictx, agent, registry, toolCallbacks, fc)
		}(i, fnCalls[i])
	}
	wg.Wait()

	var parts []core.Part
	actionSets := make([]core.EventActions, 0, n)
	for i := range outcomes {
		if outcomes[i].hookErr != nil {
			return nil, outcomes[i].hookErr
		}
		if outcomes[i].omit || outcomes[i].response.ID == "" {
			continue
		}
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: outcomes[i].response})
		actionSets = append(actionSets, outcomes[i].actions)
	}

	ictx.LogDebug("flow.functions.batch_complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	if len(parts) == 0 {
		return nil, nil
	}

	ev := core.NewEvent(ictx.InvocationID, agent.GetName())
	ev.Content = &core.Content{Role: "tool", Parts: parts}
	ev.Actions = core.MergeEventActions(actionSets...)
	return &ev, nil
}

// runCall executes one function call through the full hook pipeline:
// before-tool hooks (override skips the body), the tool itself with panic
// recovery, error-recovery hooks and the after-tool chain.
func (e *parallelFunctionExecutor) runCall(
	ictx *core.InvocationContext,
	agent FlowAgent,
	registry map[string]core.Tool,
	toolCallbacks core.ToolCallbacks,
	fc core.FunctionCall,
) callOutcome {
	callIctx := ictx
	if timeout := agent.ToolTimeout(); timeout > 0 && ictx.Context != nil {
		timeoutCtx, cancel := context.WithTimeout(ictx.Context, timeout)
		defer cancel()
		callIctx = ictx.Clone()
		callIctx.Context = timeoutCtx
	}

	toolCtx := core.NewToolContext(callIctx, agent.GetName(), fc.ID)
	outcome := callOutcome{response: core.FunctionResponse{ID: fc.ID, Name: fc.Name}}

	ictx.LogDebug("flow.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)

	impl, ok := registry[fc.Name]
	if !ok {
		outcome.response.Error = fmt.Sprintf("tool %s not found", fc.Name)
		outcome.actions = *toolCtx.Actions()
		return outcome
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			outcome.response.Error = fmt.Sprintf("failed to unmarshal args: %s", err)
			outcome.actions = *toolCtx.Actions()
			return outcome
		}
	}

	var result any
	var callErr error

	// Before-tool hooks: plugins first, then agent callbacks. A non-nil map
	// becomes the result without running the tool body.
	override, hookErr := ictx.Plugins.RunBeforeTool(toolCtx, impl, args)
	if hookErr == nil && override == nil {
		override, hookErr = toolCallbacks.RunBefore(toolCtx, impl, args)
	}
	if hookErr != nil {
		outcome.hookErr = hookErr
		return outcome
	}

	if override != nil {
		result = override
	} else {
		start := time.Now()
		func() {
			defer func() {
				if r := recover(); r != nil {
					callErr = fmt.Errorf("tool panic: %v\n%s", r, debug.Stack())
					ictx.LogError("flow.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", fmt.Sprintf("%v", r))
				}
			}()
			result, callErr = impl.Call(toolCtx, args)
		}()
		ictx.LogInfo("flow.function.executed",
			"agent", agent.GetName(),
			"function", fc.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", callErr != nil,
		)
	}

	if callErr != nil {
		recovered, hookErr := ictx.Plugins.RunOnToolError(toolCtx, impl, args, callErr)
		if hookErr == nil && recovered == nil {
			recovered, hookErr = toolCallbacks.RunOnError(toolCtx, impl, args, callErr)
		}
		if hookErr != nil {
			outcome.hookErr = hookErr
			return outcome
		}
		if recovered != nil {
			result = recovered
			callErr = nil
		}
	}

	// After-tool hooks chain over map-shaped results; scalar results pass
	// through unhooked.
	if callErr == nil {
		if resultMap, isMap := result.(map[string]any); isMap {
			altered, hookErr := ictx.Plugins.RunAfterTool(toolCtx, impl, args, resultMap)
			if hookErr == nil {
				altered, hookErr = toolCallbacks.RunAfter(toolCtx, impl, args, altered)
			}
			if hookErr != nil {
				outcome.hookErr = hookErr
				return outcome
			}
			if altered != nil {
				result = altered
			}
		}
	}

	switch {
	case callErr != nil:
		outcome.response.Error = callErr.Error()
	case result == nil && core.IsLongRunningTool(impl):
		// Long-running tools without an immediate result contribute no
		// function response; completion arrives in a later invocation.
		outcome.omit = true
	default:
		outcome.response.Response = result
	}

	outcome.actions = *toolCtx.Actions()
	return outcome
}
