package flow

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/session"
)

// flowTestAgent is a configurable FlowAgent stub shared by the package tests.
type flowTestAgent struct {
	name            string
	model           core.Model
	instruction     string
	tools           map[string]core.Tool
	subAgents       []FlowAgent
	outputSchema    map[string]any
	includeContents string
	maxHistory      int
	toolTimeout     time.Duration
	streaming       bool
	transfer        bool
	modelCallbacks  core.ModelCallbacks
	toolCallbacks   core.ToolCallbacks

	transferred []string
	transferErr error
}

func (a *flowTestAgent) GetName() string      { return a.name }
func (a *flowTestAgent) GetModel() core.Model { return a.model }
func (a *flowTestAgent) ResolveInstructions(*core.InvocationContext) (string, error) {
	return a.instruction, nil
}
func (a *flowTestAgent) GetTools() map[string]core.Tool {
	if a.tools == nil {
		return map[string]core.Tool{}
	}
	return a.tools
}
func (a *flowTestAgent) GetSubAgents() []FlowAgent    { return a.subAgents }
func (a *flowTestAgent) OutputSchema() map[string]any { return a.outputSchema }
func (a *flowTestAgent) IncludeContents() string      { return a.includeContents }
func (a *flowTestAgent) MaxHistoryMessages() int {
	if a.maxHistory == 0 {
		return 50
	}
	return a.maxHistory
}
func (a *flowTestAgent) ToolTimeout() time.Duration          { return a.toolTimeout }
func (a *flowTestAgent) IsFunctionCallingEnabled() bool      { return true }
func (a *flowTestAgent) IsStreamingEnabled() bool            { return a.streaming }
func (a *flowTestAgent) IsTransferEnabled() bool             { return a.transfer }
func (a *flowTestAgent) ModelCallbacks() core.ModelCallbacks { return a.modelCallbacks }
func (a *flowTestAgent) ToolCallbacks() core.ToolCallbacks   { return a.toolCallbacks }
func (a *flowTestAgent) TransferToAgent(_ *core.InvocationContext, agentName string) error {
	a.transferred = append(a.transferred, agentName)
	return a.transferErr
}

// countingModel wraps a model and counts Generate calls.
type countingModel struct {
	inner core.Model
	calls int32
}

func (m *countingModel) Generate(ctx context.Context, req core.Request) (<-chan core.Response, <-chan error) {
	atomic.AddInt32(&m.calls, 1)
	return m.inner.Generate(ctx, req)
}

func (m *countingModel) Info() core.ModelInfo { return m.inner.Info() }

// erroringModel fails every generation with a fixed error.
type erroringModel struct{ err error }

func (m *erroringModel) Generate(context.Context, core.Request) (<-chan core.Response, <-chan error) {
	respCh := make(chan core.Response)
	errCh := make(chan error, 1)
	errCh <- m.err
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *erroringModel) Info() core.ModelInfo {
	return core.ModelInfo{Name: "erroring", Provider: "mock"}
}

func newFlowContext(t *testing.T, optFns ...func(o *core.InvocationContextOptions)) *core.InvocationContext {
	t.Helper()
	sessStore := session.NewInMemoryStore()
	sess, err := sessStore.Create("sess")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	emit := make(chan core.Event, 100)
	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "test message"}}}
	return core.NewInvocationContext(context.Background(), "inv", "sess",
		core.AgentInfo{Name: "TestAgent", Type: "model"}, userContent,
		emit, nil, sess, sessStore, nil, nil, optFns...)
}

func drainFlow(t *testing.T, evCh <-chan core.Event, errCh <-chan error) ([]core.Event, error) {
	t.Helper()
	var events []core.Event
	var flowErr error
	timeout := time.After(5 * time.Second)
	for evCh != nil || errCh != nil {
		select {
		case ev, ok := <-evCh:
			if !ok {
				evCh = nil
				continue
			}
			events = append(events, ev)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				flowErr = err
			}
		case <-timeout:
			t.Fatalf("timeout draining flow")
		}
	}
	return events, flowErr
}

func responseText(resp *core.Response) string {
	var sb strings.Builder
	for _, p := range resp.Content.Parts {
		if tp, ok := p.(core.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

func textResponse(text string) *core.Response {
	return &core.Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	}
}

func TestSingleAgentFlow_FinalResponse(t *testing.T) {
	mm := model.NewMockModel("test-model", "mock")
	mm.AddResponse("test message", "Hello! This is a test response.")
	agent := &flowTestAgent{name: "test-agent", model: mm, instruction: "You are a test assistant."}

	f := NewSingleAgentFlow(agent)
	evCh, errCh, err := f.Execute(newFlowContext(t))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	events, flowErr := drainFlow(t, evCh, errCh)
	if flowErr != nil {
		t.Fatalf("flow error: %v", flowErr)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Author != "test-agent" {
		t.Errorf("author = %q, want test-agent", ev.Author)
	}
	if ev.InvocationID != "inv" {
		t.Errorf("invocation id = %q, want inv", ev.InvocationID)
	}
	if got := ev.StringifyContent(); got != "Hello! This is a test response." {
		t.Errorf("content = %q", got)
	}
	if !ev.IsFinalResponse() {
		t.Error("expected final response")
	}
	if ev.TurnComplete == nil || !*ev.TurnComplete {
		t.Error("expected turn complete")
	}
}

func TestSingleAgentFlow_StreamingPartials(t *testing.T) {
	mm := model.NewMockModel("test-model", "mock")
	mm.AddResponse("test message", "Hi!")
	agent := &flowTestAgent{name: "streamer", model: mm, streaming: true}

	f := NewSingleAgentFlow(agent)
	evCh, errCh, err := f.Execute(newFlowContext(t))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	events, flowErr := drainFlow(t, evCh, errCh)
	if flowErr != nil {
		t.Fatalf("flow error: %v", flowErr)
	}

	var partials, finals int
	for _, ev := range events {
		if ev.IsPartial() {
			partials++
		} else {
			finals++
		}
	}
	if partials != 3 {
		t.Errorf("expected 3 partial events, got %d", partials)
	}
	if finals != 1 {
		t.Errorf("expected 1 final event, got %d", finals)
	}
	last := events[len(events)-1]
	if last.IsPartial() || last.StringifyContent() != "Hi!" {
		t.Errorf("unexpected last event: partial=%v content=%q", last.IsPartial(), last.StringifyContent())
	}
}

// hookRecorder is a plugin whose before-model hook records its run and
// optionally overrides the call.
type hookRecorder struct {
	core.BasePlugin
	name     string
	order    *[]string
	override *core.Response
}

func (p *hookRecorder) Name() string { return p.name }

func (p *hookRecorder) BeforeModel(*core.CallbackContext, *core.Request) (*core.Response, error) {
	*p.order = append(*p.order, p.name)
	return p.override, nil
}

func TestFlow_BeforeModelPluginOverride(t *testing.T) {
	var order []string
	pm, err := core.NewPluginManager(&hookRecorder{name: "guard", order: &order, override: textResponse("plugin override")})
	if err != nil {
		t.Fatalf("plugin manager: %v", err)
	}

	cm := &countingModel{inner: model.NewMockModel("test-model", "mock")}
	callbackRan := false
	agent := &flowTestAgent{
		name:  "hooked",
		model: cm,
		modelCallbacks: core.ModelCallbacks{
			BeforeModel: []core.BeforeModelCallback{func(*core.CallbackContext, *core.Request) (*core.Response, error) {
				callbackRan = true
				return nil, nil
			}},
		},
	}

	f := NewSingleAgentFlow(agent)
	ictx := newFlowContext(t, func(o *core.InvocationContextOptions) { o.Plugins = pm })
	evCh, errCh, err := f.Execute(ictx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	events, flowErr := drainFlow(t, evCh, errCh)
	if flowErr != nil {
		t.Fatalf("flow error: %v", flowErr)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if got := events[0].StringifyContent(); got != "plugin override" {
		t.Errorf("content = %q, want plugin override", got)
	}
	if atomic.LoadInt32(&cm.calls) != 0 {
		t.Error("model should not have been called")
	}
	if callbackRan {
		t.Error("agent callback should have been skipped after plugin override")
	}
}

func TestFlow_BeforeModelCallbackOverrideAfterPlugins(t *testing.T) {
	var order []string
	pm, err := core.NewPluginManager(&hookRecorder{name: "observer", order: &order})
	if err != nil {
		t.Fatalf("plugin manager: %v", err)
	}

	cm := &countingModel{inner: model.NewMockModel("test-model", "mock")}
	agent := &flowTestAgent{
		name:  "hooked",
		model: cm,
		modelCallbacks: core.ModelCallbacks{
			BeforeModel: []core.BeforeModelCallback{func(*core.CallbackContext, *core.Request) (*core.Response, error) {
				order = append(order, "callback")
				return textResponse("callback override"), nil
			}},
		},
	}

	f := NewSingleAgentFlow(agent)
	ictx := newFlowContext(t, func(o *core.InvocationContextOptions) { o.Plugins = pm })
	evCh, errCh, err := f.Execute(ictx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	events, flowErr := drainFlow(t, evCh, errCh)
	if flowErr != nil {
		t.Fatalf("flow error: %v", flowErr)
	}
	if len(events) != 1 || events[0].StringifyContent() != "callback override" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if len(order) != 2 || order[0] != "observer" || order[1] != "callback" {
		t.Errorf("hook order = %v, want [observer callback]", order)
	}
	if atomic.LoadInt32(&cm.calls) != 0 {
		t.Error("model should not have been called")
	}
}

// suffixPlugin appends a marker to every non-partial model response.
type suffixPlugin struct {
	core.BasePlugin
	suffix string
}

func (p *suffixPlugin) Name() string { return "suffix-" + p.suffix }

func (p *suffixPlugin) AfterModel(_ *core.CallbackContext, resp *core.Response) (*core.Response, error) {
	if resp.Partial {
		return nil, nil
	}
	return textResponse(responseText(resp) + p.suffix), nil
}

func TestFlow_AfterModelChainsPluginsThenCallbacks(t *testing.T) {
	pm, err := core.NewPluginManager(&suffixPlugin{suffix: "+plugin"})
	if err != nil {
		t.Fatalf("plugin manager: %v", err)
	}

	mm := model.NewMockModel("test-model", "mock")
	mm.AddResponse("test message", "base")
	agent := &flowTestAgent{
		name:  "chained",
		model: mm,
		modelCallbacks: core.ModelCallbacks{
			AfterModel: []core.AfterModelCallback{func(_ *core.CallbackContext, resp *core.Response) (*core.Response, error) {
				return textResponse(responseText(resp) + "+callback"), nil
			}},
		},
	}

	f := NewSingleAgentFlow(agent)
	ictx := newFlowContext(t, func(o *core.InvocationContextOptions) { o.Plugins = pm })
	evCh, errCh, err := f.Execute(ictx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	events, flowErr := drainFlow(t, evCh, errCh)
	if flowErr != nil {
		t.Fatalf("flow error: %v", flowErr)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if got := events[0].StringifyContent(); got != "base+plugin+callback" {
		t.Errorf("content = %q, want base+plugin+callback", got)
	}
}

func TestFlow_EmptyResponseProducesNoEvent(t *testing.T) {
	mm := model.NewMockModel("test-model", "mock")
	mm.EnqueueTurn(core.Response{FinishReason: "stop"})
	agent := &flowTestAgent{name: "silent", model: mm}

	f := NewSingleAgentFlow(agent)
	evCh, errCh, err := f.Execute(newFlowContext(t))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	events, flowErr := drainFlow(t, evCh, errCh)
	if flowErr != nil {
		t.Fatalf("flow error: %v", flowErr)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestFlow_ModelErrorEmitsErrorEvent(t *testing.T) {
	agent := &flowTestAgent{name: "failing", model: &erroringModel{err: errors.New("boom")}}

	f := NewSingleAgentFlow(agent)
	evCh, errCh, err := f.Execute(newFlowContext(t))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	events, flowErr := drainFlow(t, evCh, errCh)
	if flowErr != nil {
		t.Fatalf("flow error: %v", flowErr)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.ErrorCode == nil || *ev.ErrorCode != "MODEL_ERROR" {
		t.Errorf("error code = %v, want MODEL_ERROR", ev.ErrorCode)
	}
	if ev.ErrorMessage == nil || !strings.Contains(*ev.ErrorMessage, "boom") {
		t.Errorf("error message = %v", ev.ErrorMessage)
	}
	if !ev.IsFinalResponse() {
		t.Error("error event should be final")
	}
}

func TestFlow_OnModelErrorCallbackRecovers(t *testing.T) {
	agent := &flowTestAgent{
		name:  "recovering",
		model: &erroringModel{err: errors.New("boom")},
		modelCallbacks: core.ModelCallbacks{
			OnModelError: []core.OnModelErrorCallback{func(_ *core.CallbackContext, _ *core.Request, modelErr error) (*core.Response, error) {
				return textResponse("recovered from " + modelErr.Error()), nil
			}},
		},
	}

	f := NewSingleAgentFlow(agent)
	evCh, errCh, err := f.Execute(newFlowContext(t))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	events, flowErr := drainFlow(t, evCh, errCh)
	if flowErr != nil {
		t.Fatalf("flow error: %v", flowErr)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.ErrorCode != nil {
		t.Errorf("unexpected error code %v", *ev.ErrorCode)
	}
	if got := ev.StringifyContent(); got != "recovered from boom" {
		t.Errorf("content = %q", got)
	}
}

func TestFlow_ModelCallLimit(t *testing.T) {
	mm := model.NewMockModel("test-model", "mock")
	mm.EnqueueTurn(core.Response{
		Content: core.Content{Role: "assistant", Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "fc1", Name: "echo", Arguments: "{}"}},
		}},
		FinishReason: "tool_calls",
	})
	agent := &flowTestAgent{
		name:  "limited",
		model: mm,
		tools: map[string]core.Tool{"echo": &stubTool{name: "echo", result: "ok"}},
	}

	f := NewSingleAgentFlow(agent)
	ictx := newFlowContext(t, func(o *core.InvocationContextOptions) {
		o.RunConfig = core.RunConfig{StreamingMode: core.StreamingModeNone, MaxModelCalls: 1}
	})
	evCh, errCh, err := f.Execute(ictx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	events, flowErr := drainFlow(t, evCh, errCh)
	if flowErr == nil || !strings.Contains(flowErr.Error(), "exceeded max model calls") {
		t.Fatalf("expected limiter error, got %v", flowErr)
	}
	// First turn still produced the call event and the consolidated response.
	if len(events) != 2 {
		t.Fatalf("expected 2 events before the limit, got %d", len(events))
	}
}
