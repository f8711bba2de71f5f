package flow

import (
	"strings"
	"testing"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/testutil"
)

func TestInstructionsProcessor_RendersTemplate(t *testing.T) {
	agent := &flowTestAgent{name: "helper", instruction: "You help {{.name}} with {{.topic}}."}
	ictx := newFlowContext(t)
	ictx.Session.SetState("name", "Ada")
	ictx.Session.SetState("topic", "math")

	req := &core.Request{}
	if err := NewInstructionsProcessor().ProcessRequest(ictx, req, agent); err != nil {
		t.Fatalf("process request: %v", err)
	}

	if len(req.Instructions) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(req.Instructions))
	}
	if req.Instructions[0] != "You help Ada with math." {
		t.Errorf("instruction = %q", req.Instructions[0])
	}
}

func TestInstructionsProcessor_EmptyInstructionSkipped(t *testing.T) {
	agent := &flowTestAgent{name: "helper"}
	req := &core.Request{}
	if err := NewInstructionsProcessor().ProcessRequest(newFlowContext(t), req, agent); err != nil {
		t.Fatalf("process request: %v", err)
	}
	if len(req.Instructions) != 0 {
		t.Errorf("expected no instructions, got %v", req.Instructions)
	}
}

func TestContentsProcessor_DefaultIncludesHistory(t *testing.T) {
	agent := &flowTestAgent{name: "helper"}
	ictx := newFlowContext(t)

	ictx.Session.AddEvent(testutil.NewEventBuilder().Invocation("prior").Author("user").UserText("earlier question").Build())
	ictx.Session.AddEvent(testutil.NewEventBuilder().Invocation("prior").Author("helper").AssistantText("earlier answer").Build())
	ictx.Session.AddEvent(testutil.NewEventBuilder().Invocation("prior").Author("helper").AssistantText("strea").Partial(true).Build())

	system := core.NewEvent("prior", "system")
	system.Content = &core.Content{Role: "system", Parts: []core.Part{core.TextPart{Text: "internal note"}}}
	ictx.Session.AddEvent(system)

	req := &core.Request{}
	if err := NewContentsProcessor().ProcessRequest(ictx, req, agent); err != nil {
		t.Fatalf("process request: %v", err)
	}

	if len(req.Contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(req.Contents))
	}
	if req.Contents[0].Role != "user" || req.Contents[1].Role != "assistant" {
		t.Errorf("roles = [%s %s]", req.Contents[0].Role, req.Contents[1].Role)
	}
}

func TestContentsProcessor_MaxHistoryTruncates(t *testing.T) {
	agent := &flowTestAgent{name: "helper", maxHistory: 2}
	ictx := newFlowContext(t)
	for _, msg := range []string{"m1", "m2", "m3", "m4", "m5"} {
		ictx.Session.AddEvent(core.NewUserMessageEvent("prior", msg))
	}

	req := &core.Request{}
	if err := NewContentsProcessor().ProcessRequest(ictx, req, agent); err != nil {
		t.Fatalf("process request: %v", err)
	}

	if len(req.Contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(req.Contents))
	}
	texts := []string{}
	for _, c := range req.Contents {
		if tp, ok := c.Parts[0].(core.TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	if texts[0] != "m4" || texts[1] != "m5" {
		t.Errorf("kept messages = %v, want most recent [m4 m5]", texts)
	}
}

func TestContentsProcessor_NoneSendsOnlyUserContent(t *testing.T) {
	agent := &flowTestAgent{name: "helper", includeContents: IncludeContentsNone}
	ictx := newFlowContext(t)
	ictx.Session.AddEvent(core.NewUserMessageEvent("prior", "history entry"))

	req := &core.Request{}
	if err := NewContentsProcessor().ProcessRequest(ictx, req, agent); err != nil {
		t.Fatalf("process request: %v", err)
	}

	if len(req.Contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(req.Contents))
	}
	if tp, ok := req.Contents[0].Parts[0].(core.TextPart); !ok || tp.Text != "test message" {
		t.Errorf("content = %+v, want the triggering user content", req.Contents[0])
	}
}

func TestContentsProcessor_FallsBackToUserContent(t *testing.T) {
	agent := &flowTestAgent{name: "helper"}
	req := &core.Request{}
	if err := NewContentsProcessor().ProcessRequest(newFlowContext(t), req, agent); err != nil {
		t.Fatalf("process request: %v", err)
	}
	if len(req.Contents) != 1 || req.Contents[0].Role != "user" {
		t.Fatalf("expected the user content fallback, got %+v", req.Contents)
	}
}

func TestToolDefinitionsProcessor_SortedByName(t *testing.T) {
	agent := &flowTestAgent{name: "helper", tools: map[string]core.Tool{
		"charlie": &stubTool{name: "charlie"},
		"alpha":   &stubTool{name: "alpha"},
		"bravo":   &stubTool{name: "bravo"},
	}}

	req := &core.Request{}
	if err := NewToolDefinitionsProcessor().ProcessRequest(newFlowContext(t), req, agent); err != nil {
		t.Fatalf("process request: %v", err)
	}

	if len(req.Tools) != 3 {
		t.Fatalf("expected 3 tool definitions, got %d", len(req.Tools))
	}
	var names []string
	for _, def := range req.Tools {
		if def.Type != "function" {
			t.Errorf("definition type = %q", def.Type)
		}
		names = append(names, def.Function.Name)
	}
	if names[0] != "alpha" || names[1] != "bravo" || names[2] != "charlie" {
		t.Errorf("names = %v, want sorted order", names)
	}
}

func TestOutputSchemaProcessor_SetsSchema(t *testing.T) {
	schema := map[string]any{"type": "object"}
	agent := &flowTestAgent{name: "structured", outputSchema: schema}

	req := &core.Request{}
	if err := NewOutputSchemaProcessor().ProcessRequest(newFlowContext(t), req, agent); err != nil {
		t.Fatalf("process request: %v", err)
	}
	if req.ResponseSchema == nil {
		t.Fatal("response schema not set")
	}
}

func TestOutputSchemaProcessor_RejectsSchemaWithTools(t *testing.T) {
	agent := &flowTestAgent{
		name:         "structured",
		outputSchema: map[string]any{"type": "object"},
		tools:        map[string]core.Tool{"lookup": &stubTool{name: "lookup"}},
	}

	err := NewOutputSchemaProcessor().ProcessRequest(newFlowContext(t), &core.Request{}, agent)
	if err == nil || !strings.Contains(err.Error(), "output schema cannot be combined with tools") {
		t.Fatalf("expected exclusivity error, got %v", err)
	}
}

func TestOutputValidator(t *testing.T) {
	validator, err := NewOutputValidator(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"rating": map[string]any{"type": "integer"},
		},
		"required": []any{"rating"},
	})
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	value, err := validator.Validate(`{"rating": 5}`)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if value == nil {
		t.Fatal("expected parsed value")
	}

	if _, err := validator.Validate(`{"rating": "five"}`); err == nil {
		t.Fatal("expected schema violation")
	} else if !strings.Contains(err.Error(), "does not match output schema") {
		t.Errorf("error = %v", err)
	}

	if _, err := validator.Validate("not json"); err == nil {
		t.Fatal("expected JSON parse failure")
	} else if !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("error = %v", err)
	}
}

func TestOutputValidator_BadSchemaFailsFast(t *testing.T) {
	_, err := NewOutputValidator(map[string]any{"type": 12345})
	if err == nil {
		t.Fatal("expected compile error for malformed schema")
	}
}
