package flow

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
)

// eventBufferSize is the emission buffer between the flow goroutine and the
// consuming agent.
const eventBufferSize = 100

// BaseFlow is the shared step engine behind the single- and multi-agent
// flows: request processors -> before-model hooks -> model call -> response
// finalization -> tool fan-out, repeated until a final response.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
	handleTransfer     bool
}

// NewBaseFlow creates a flow without processors. Callers compose the
// pipeline via AddRequestProcessor / AddResponseProcessor.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
		executor:           NewParallelFunctionExecutor(FunctionExecutorConfig{}),
	}
}

// AddRequestProcessor appends a request processor; registration order defines
// execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed on each model
// response chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the tool fan-out implementation.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	f.executor = executor
}

// Execute launches the step loop asynchronously. The event channel carries
// the execution stream; the error channel carries at most one infrastructure
// or hook failure. Both close when the flow terminates.
func (f *BaseFlow) Execute(ictx *core.InvocationContext) (<-chan core.Event, <-chan error, error) {
	eventCh := make(chan core.Event, eventBufferSize)
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)

		for {
			if ictx.Halted() {
				return
			}

			last, err := f.runStep(ictx, eventCh)
			if err != nil {
				errCh <- err
				return
			}
			if last == nil {
				// Model produced nothing reportable.
				return
			}

			// Tool-requested invocation ends arrive through the merged
			// actions; apply them here so every later Halted check sees the
			// stop request.
			if last.Actions.EndInvocation != nil && *last.Actions.EndInvocation {
				ictx.EndInvocation = true
			}

			// Escalation unwinds to the enclosing loop; a simultaneous
			// transfer request is not performed.
			if last.Actions.Escalate != nil && *last.Actions.Escalate {
				return
			}

			if target := last.Actions.TransferToAgent; f.handleTransfer && target != nil {
				if err := f.agent.TransferToAgent(ictx, *target); err != nil {
					errCh <- fmt.Errorf("transfer to agent %s: %w", *target, err)
				}
				return
			}

			if last.IsFinalResponse() {
				return
			}
			if last.IsPartial() {
				ictx.LogWarn("flow.step.trailing_partial", "agent", f.agent.GetName())
				return
			}

			// Function responses need another model turn for summarization.
		}
	}()

	return eventCh, errCh, nil
}

// runStep performs one model turn including any tool executions. It returns
// the last emitted event; nil signals the model produced nothing.
func (f *BaseFlow) runStep(ictx *core.InvocationContext, eventCh chan<- core.Event) (*core.Event, error) {
	// Refresh the session snapshot so request processors see prior deltas
	// (including tool responses committed in earlier steps).
	if err := ictx.RefreshSession(); err != nil {
		return nil, err
	}

	if ictx.Limiter != nil {
		if err := ictx.Limiter.Increment(); err != nil {
			return nil, err
		}
	}

	req := &core.Request{Stream: f.streamingEnabled(ictx)}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(ictx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s: %w", processor.Name(), err)
		}
	}

	// One action set accumulates writes from every hook in this step; the
	// framework attaches it to the step's non-partial events.
	actions := &core.EventActions{}
	cctx := core.NewCallbackContext(ictx, f.agent.GetName(), actions)
	modelCallbacks := f.agent.ModelCallbacks()

	// Before-model hooks: plugins first, then agent callbacks. The first
	// non-nil response replaces the model call entirely.
	override, err := ictx.Plugins.RunBeforeModel(cctx, req)
	if err != nil {
		return nil, err
	}
	if override == nil {
		if override, err = modelCallbacks.RunBefore(cctx, req); err != nil {
			return nil, err
		}
	}
	if override != nil {
		ictx.LogDebug("flow.step.model_call_skipped", "agent", f.agent.GetName())
		return f.emitResponse(ictx, eventCh, *override, actions)
	}

	if ictx.Halted() {
		return nil, nil
	}

	m := f.agent.GetModel()
	if m == nil {
		return nil, fmt.Errorf("agent %s has no model configured", f.agent.GetName())
	}

	ictx.LogDebug("flow.step.model_call",
		"agent", f.agent.GetName(),
		"model", m.Info().Name,
		"stream", req.Stream,
		"tools", len(req.Tools),
	)

	respCh, modelErrCh := m.Generate(ictx.Context, *req)

	var last *core.Event
	for respCh != nil || modelErrCh != nil {
		select {
		case <-ictx.Context.Done():
			return last, ictx.Context.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			stepLast, err := f.processResponse(ictx, eventCh, cctx, modelCallbacks, resp, actions)
			if err != nil {
				return last, err
			}
			if stepLast != nil {
				last = stepLast
			}
		case modelErr, ok := <-modelErrCh:
			if !ok {
				modelErrCh = nil
				continue
			}
			if modelErr == nil {
				continue
			}
			stepLast, err := f.handleModelError(ictx, eventCh, cctx, modelCallbacks, req, modelErr, actions)
			if err != nil {
				return last, err
			}
			if stepLast != nil {
				last = stepLast
			}
		}
	}

	return last, nil
}

// processResponse runs the after-model hooks (plugin chain first, then agent
// callbacks, each replacement feeding the next) and finalizes the result.
func (f *BaseFlow) processResponse(
	ictx *core.InvocationContext,
	eventCh chan<- core.Event,
	cctx *core.CallbackContext,
	modelCallbacks core.ModelCallbacks,
	resp core.Response,
	actions *core.EventActions,
) (*core.Event, error) {
	processed, err := ictx.Plugins.RunAfterModel(cctx, &resp)
	if err != nil {
		return nil, err
	}
	if processed, err = modelCallbacks.RunAfter(cctx, processed); err != nil {
		return nil, err
	}
	return f.emitResponse(ictx, eventCh, *processed, actions)
}

// emitResponse runs response processors, finalizes the response into an
// event, emits it and triggers the tool fan-out for function calls. Empty
// responses produce no event.
func (f *BaseFlow) emitResponse(
	ictx *core.InvocationContext,
	eventCh chan<- core.Event,
	resp core.Response,
	actions *core.EventActions,
) (*core.Event, error) {
	for _, processor := range f.responseProcessors {
		if err := processor.ProcessResponse(ictx, &resp, f.agent); err != nil {
			return nil, fmt.Errorf("response processor %s: %w", processor.Name(), err)
		}
	}

	if resp.IsEmpty() {
		return nil, nil
	}

	ev := f.finalizeResponse(ictx, resp, actions)
	if err := f.deliver(ictx, eventCh, ev); err != nil {
		return nil, err
	}
	last := &ev

	if ev.IsPartial() {
		return last, nil
	}

	if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
		merged, err := f.executor.Execute(ictx, f.agent, fnCalls)
		if err != nil {
			return last, err
		}
		if merged != nil {
			if err := f.deliver(ictx, eventCh, *merged); err != nil {
				return last, err
			}
			last = merged
		}
	}

	return last, nil
}

// finalizeResponse converts a model response into an emission-ready event:
// fresh ID, this invocation's correlation data, content, partial flag, usage
// metadata and long-running hints. Non-partial events additionally carry the
// step's accumulated hook actions.
func (f *BaseFlow) finalizeResponse(ictx *core.InvocationContext, resp core.Response, actions *core.EventActions) core.Event {
	ev := core.NewEvent(ictx.InvocationID, f.agent.GetName())

	if len(resp.Content.Parts) > 0 {
		content := resp.Content
		ev.Content = &content
	}
	partial := resp.Partial
	ev.Partial = &partial
	if resp.Usage != nil {
		usage := *resp.Usage
		ev.Usage = &usage
	}
	if resp.ErrorCode != "" {
		code := resp.ErrorCode
		ev.ErrorCode = &code
	}
	if resp.ErrorMessage != "" {
		msg := resp.ErrorMessage
		ev.ErrorMessage = &msg
	}
	if resp.Interrupted {
		interrupted := true
		ev.Interrupted = &interrupted
	}

	if resp.Partial {
		return ev
	}

	ev.Actions = *actions

	registry := f.agent.GetTools()
	fnCalls := ev.GetFunctionCalls()
	for _, fc := range fnCalls {
		if impl, ok := registry[fc.Name]; ok && core.IsLongRunningTool(impl) {
			ev.LongRunningToolIDs = append(ev.LongRunningToolIDs, fc.ID)
		}
	}

	// Closing assistant response with no pending function work.
	if len(fnCalls) == 0 && ev.ErrorCode == nil {
		complete := true
		ev.TurnComplete = &complete
	}

	return ev
}

// handleModelError consults the model error hooks. A fallback response
// re-enters finalization; otherwise an error event ends the step.
func (f *BaseFlow) handleModelError(
	ictx *core.InvocationContext,
	eventCh chan<- core.Event,
	cctx *core.CallbackContext,
	modelCallbacks core.ModelCallbacks,
	req *core.Request,
	modelErr error,
	actions *core.EventActions,
) (*core.Event, error) {
	ictx.LogError("flow.step.model_error", "agent", f.agent.GetName(), "error", modelErr.Error())

	fallback, err := ictx.Plugins.RunOnModelError(cctx, req, modelErr)
	if err != nil {
		return nil, err
	}
	if fallback == nil {
		if fallback, err = modelCallbacks.RunOnError(cctx, req, modelErr); err != nil {
			return nil, err
		}
	}
	if fallback != nil {
		return f.emitResponse(ictx, eventCh, *fallback, actions)
	}

	ev := core.NewErrorEvent(ictx.InvocationID, f.agent.GetName(), "MODEL_ERROR", modelErr.Error())
	ev.Actions = *actions
	if err := f.deliver(ictx, eventCh, ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// deliver sends the event downstream and, for non-partial events, waits for
// the engine's resume signal so session persistence is observed before the
// flow continues.
func (f *BaseFlow) deliver(ictx *core.InvocationContext, eventCh chan<- core.Event, ev core.Event) error {
	if ictx.Context != nil {
		select {
		case <-ictx.Context.Done():
			return ictx.Context.Err()
		case eventCh <- ev:
		}
	} else {
		eventCh <- ev
	}

	if ev.IsPartial() {
		return nil
	}
	return ictx.WaitForResume()
}

// streamingEnabled reports whether this step requests partial chunks: both
// the run config and the agent must enable streaming.
func (f *BaseFlow) streamingEnabled(ictx *core.InvocationContext) bool {
	return ictx.RunConfig.StreamingMode == core.StreamingModeSSE && f.agent.IsStreamingEnabled()
}
