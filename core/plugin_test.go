package core

import (
	"errors"
	"testing"
)

type recordingPlugin struct {
	BasePlugin
	name          string
	calls         *[]string
	beforeModel   *Response
	afterModelFn  func(resp *Response) *Response
	beforeToolMap map[string]any
	hookErr       error
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) BeforeModel(cctx *CallbackContext, req *Request) (*Response, error) {
	*p.calls = append(*p.calls, p.name+".before_model")
	if p.hookErr != nil {
		return nil, p.hookErr
	}
	return p.beforeModel, nil
}

func (p *recordingPlugin) AfterModel(cctx *CallbackContext, resp *Response) (*Response, error) {
	*p.calls = append(*p.calls, p.name+".after_model")
	if p.afterModelFn != nil {
		return p.afterModelFn(resp), nil
	}
	return nil, nil
}

func (p *recordingPlugin) BeforeTool(toolCtx *ToolContext, tool Tool, args map[string]any) (map[string]any, error) {
	*p.calls = append(*p.calls, p.name+".before_tool")
	return p.beforeToolMap, nil
}

func textResponse(text string) *Response {
	return &Response{Content: Content{Role: "assistant", Parts: []Part{TextPart{Text: text}}}}
}

func TestPluginManager_RegisterRejectsDuplicates(t *testing.T) {
	calls := []string{}
	m, err := NewPluginManager(&recordingPlugin{name: "a", calls: &calls})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := m.Register(&recordingPlugin{name: "a", calls: &calls}); err == nil {
		t.Fatal("duplicate plugin name should be rejected")
	}
	if err := m.Register(&recordingPlugin{name: "", calls: &calls}); err == nil {
		t.Fatal("empty plugin name should be rejected")
	}
	if len(m.Plugins()) != 1 {
		t.Fatalf("expected 1 registered plugin, got %d", len(m.Plugins()))
	}
}

func TestPluginManager_BeforeModelFirstNonNilWins(t *testing.T) {
	calls := []string{}
	override := textResponse("override")
	m, _ := NewPluginManager(
		&recordingPlugin{name: "first", calls: &calls},
		&recordingPlugin{name: "second", calls: &calls, beforeModel: override},
		&recordingPlugin{name: "third", calls: &calls},
	)

	resp, err := m.RunBeforeModel(nil, &Request{})
	if err != nil {
		t.Fatalf("before model: %v", err)
	}
	if resp != override {
		t.Fatalf("expected second plugin's override, got %+v", resp)
	}
	// third must not run: first non-nil short-circuits
	if len(calls) != 2 || calls[0] != "first.before_model" || calls[1] != "second.before_model" {
		t.Fatalf("unexpected call order: %v", calls)
	}
}

func TestPluginManager_AfterModelChains(t *testing.T) {
	calls := []string{}
	m, _ := NewPluginManager(
		&recordingPlugin{name: "a", calls: &calls, afterModelFn: func(resp *Response) *Response {
			return textResponse(resp.Content.Parts[0].(TextPart).Text + "+a")
		}},
		&recordingPlugin{name: "b", calls: &calls}, // passes through
		&recordingPlugin{name: "c", calls: &calls, afterModelFn: func(resp *Response) *Response {
			return textResponse(resp.Content.Parts[0].(TextPart).Text + "+c")
		}},
	)

	out, err := m.RunAfterModel(nil, textResponse("base"))
	if err != nil {
		t.Fatalf("after model: %v", err)
	}
	if got := out.Content.Parts[0].(TextPart).Text; got != "base+a+c" {
		t.Fatalf("after-model chain result = %q", got)
	}
	if len(calls) != 3 {
		t.Fatalf("all after hooks must run, got %v", calls)
	}
}

func TestPluginManager_HookErrorPropagates(t *testing.T) {
	calls := []string{}
	boom := errors.New("boom")
	m, _ := NewPluginManager(
		&recordingPlugin{name: "bad", calls: &calls, hookErr: boom},
		&recordingPlugin{name: "never", calls: &calls},
	)

	_, err := m.RunBeforeModel(nil, &Request{})
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("hook error should propagate wrapped, got %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("subsequent hooks must not run after an error: %v", calls)
	}
}

func TestPluginManager_NilManagerIsNoOp(t *testing.T) {
	var m *PluginManager
	if resp, err := m.RunBeforeModel(nil, &Request{}); resp != nil || err != nil {
		t.Fatalf("nil manager before hook should no-op, got %v %v", resp, err)
	}
	in := textResponse("unchanged")
	out, err := m.RunAfterModel(nil, in)
	if err != nil || out != in {
		t.Fatalf("nil manager after hook should pass through, got %v %v", out, err)
	}
}

func TestModelCallbacks_BeforeAndAfterSemantics(t *testing.T) {
	order := []string{}
	override := textResponse("cb override")
	cbs := ModelCallbacks{
		BeforeModel: []BeforeModelCallback{
			func(cctx *CallbackContext, req *Request) (*Response, error) {
				order = append(order, "b1")
				return nil, nil
			},
			func(cctx *CallbackContext, req *Request) (*Response, error) {
				order = append(order, "b2")
				return override, nil
			},
			func(cctx *CallbackContext, req *Request) (*Response, error) {
				order = append(order, "b3")
				return nil, nil
			},
		},
		AfterModel: []AfterModelCallback{
			func(cctx *CallbackContext, resp *Response) (*Response, error) {
				order = append(order, "a1")
				return textResponse(resp.Content.Parts[0].(TextPart).Text + "!"), nil
			},
			func(cctx *CallbackContext, resp *Response) (*Response, error) {
				order = append(order, "a2")
				return nil, nil
			},
		},
	}

	resp, err := cbs.RunBefore(nil, &Request{})
	if err != nil || resp != override {
		t.Fatalf("before chain: resp=%v err=%v", resp, err)
	}

	out, err := cbs.RunAfter(nil, textResponse("x"))
	if err != nil {
		t.Fatalf("after chain: %v", err)
	}
	if got := out.Content.Parts[0].(TextPart).Text; got != "x!" {
		t.Fatalf("after chain result = %q", got)
	}
	want := []string{"b1", "b2", "a1", "a2"}
	if len(order) != len(want) {
		t.Fatalf("call order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("call order = %v, want %v", order, want)
		}
	}
}

func TestToolCallbacks_ErrorRecovery(t *testing.T) {
	recovered := map[string]any{"fallback": true}
	cbs := ToolCallbacks{
		OnToolError: []OnToolErrorCallback{
			func(toolCtx *ToolContext, tool Tool, args map[string]any, toolErr error) (map[string]any, error) {
				return nil, nil
			},
			func(toolCtx *ToolContext, tool Tool, args map[string]any, toolErr error) (map[string]any, error) {
				return recovered, nil
			},
		},
	}

	out, err := cbs.RunOnError(nil, nil, nil, errors.New("tool broke"))
	if err != nil {
		t.Fatalf("on error chain: %v", err)
	}
	if out["fallback"] != true {
		t.Fatalf("expected recovery map, got %v", out)
	}
}
