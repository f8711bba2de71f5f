package flow

import (
	"fmt"
	"sort"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/util"
)

// InstructionsProcessor resolves the agent's system instruction and renders
// it against session state before adding it to the request.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest appends the resolved instruction to the request. Template
// placeholders are substituted from the session state snapshot.
func (p *InstructionsProcessor) ProcessRequest(ictx *core.InvocationContext, req *core.Request, agent FlowAgent) error {
	instruction, err := agent.ResolveInstructions(ictx)
	if err != nil {
		return fmt.Errorf("resolve instruction: %w", err)
	}
	if instruction == "" {
		return nil
	}

	if ictx.Session != nil && ictx.Session.State != nil {
		rendered, err := util.RenderTemplate(instruction, ictx.Session.State)
		if err != nil {
			return fmt.Errorf("render instruction template: %w", err)
		}
		instruction = rendered
	}

	ictx.LogDebug("flow.instruction.resolved", "agent", agent.GetName(), "length", len(instruction))

	req.Instructions = append(req.Instructions, instruction)
	return nil
}

// ContentsProcessor assembles the conversational contents of the request
// according to the agent's inclusion policy.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest adds conversation history (or, under the "none" policy,
// only the current turn's user content) to the request.
func (p *ContentsProcessor) ProcessRequest(ictx *core.InvocationContext, req *core.Request, agent FlowAgent) error {
	if agent.IncludeContents() == IncludeContentsNone || ictx.Session == nil {
		if len(ictx.UserContent.Parts) > 0 {
			req.Contents = append(req.Contents, ictx.UserContent)
		}
		return nil
	}

	start := len(req.Contents)

	events := ictx.Session.GetConversationHistory()
	if maxMessages := agent.MaxHistoryMessages(); maxMessages > 0 && len(events) > maxMessages {
		events = events[len(events)-maxMessages:]
	}
	for _, ev := range events {
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			req.Contents = append(req.Contents, *ev.Content)
		}
	}

	// No committed history yet (flow driven outside the engine): fall back
	// to the triggering user content so the model has a turn to answer.
	if len(req.Contents) == start && len(ictx.UserContent.Parts) > 0 {
		req.Contents = append(req.Contents, ictx.UserContent)
	}
	return nil
}

// ToolDefinitionsProcessor advertises the agent's registered tools to the
// model in deterministic (name-sorted) order.
type ToolDefinitionsProcessor struct{}

// NewToolDefinitionsProcessor creates a new tool definitions processor.
func NewToolDefinitionsProcessor() *ToolDefinitionsProcessor { return &ToolDefinitionsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolDefinitionsProcessor) Name() string { return "tools" }

// ProcessRequest appends function definitions for every registered tool.
func (p *ToolDefinitionsProcessor) ProcessRequest(ictx *core.InvocationContext, req *core.Request, agent FlowAgent) error {
	if !agent.IsFunctionCallingEnabled() {
		return nil
	}
	registry := agent.GetTools()
	if len(registry) == 0 {
		return nil
	}

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := registry[name]
		req.Tools = append(req.Tools, core.ToolDefinition{
			Type: "function",
			Function: core.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return nil
}
