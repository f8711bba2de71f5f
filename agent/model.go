package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/tool"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	// Description surfaces the agent's purpose to transfer-capable parents.
	Description string

	// Instruction is the system prompt source; static or provider-backed.
	// Resolved text may contain {{.key}} placeholders substituted from
	// session state.
	Instruction Instruction

	// EnableStreaming requests partial response chunks when the run config
	// also enables streaming.
	EnableStreaming bool

	// EnableFunctionCalling advertises registered tools to the model.
	EnableFunctionCalling bool

	// ToolTimeout bounds each individual tool call; 0 disables the deadline.
	ToolTimeout time.Duration

	// OutputKey saves the agent's final response text (or, with an output
	// schema, the parsed object) into session state under this key.
	OutputKey string

	// OutputSchema is a JSON schema constraining the final response.
	// Structured output is mutually exclusive with tools and sub-agents and
	// disables transfer.
	OutputSchema map[string]any

	// IncludeContents selects the history policy: "default" sends the
	// filtered conversation history, "none" sends only the current turn.
	IncludeContents string

	// MaxHistoryMessages caps the history sent to the model; 0 keeps all.
	MaxHistoryMessages int

	// AllowTransfer permits delegation to sub-agents; the transfer tool is
	// registered automatically.
	AllowTransfer bool

	// Tools pre-registers callable tools by name.
	Tools map[string]core.Tool

	// AgentCallbacks, ModelCallbacks and ToolCallbacks install the per-agent
	// interception hooks run after any global plugins.
	AgentCallbacks core.AgentCallbacks
	ModelCallbacks core.ModelCallbacks
	ToolCallbacks  core.ToolCallbacks
}

// ModelAgent integrates a language model into the agent tree: it assembles
// requests from instructions, history and tool definitions, streams model
// output as events, executes requested tools and optionally delegates to
// sub-agents via transfer.
//
// ModelAgent embeds BaseAgent for lifecycle and hierarchy management and
// implements flow.FlowAgent so the flow package can drive its model steps.
type ModelAgent struct {
	BaseAgent
	model                 core.Model
	instruction           Instruction
	tools                 map[string]core.Tool
	enableFunctionCalling bool
	enableStreaming       bool
	toolTimeout           time.Duration
	outputKey             string
	outputSchema          map[string]any
	outputValidator       *flow.OutputValidator
	includeContents       string
	maxHistoryMessages    int
	allowTransfer         bool
	modelCallbacks        core.ModelCallbacks
	toolCallbacks         core.ToolCallbacks
}

// NewModelAgent creates a model-backed agent.
//
// Defaults: streaming and function calling enabled, 15 second tool timeout,
// 20 history messages, transfer allowed, a generic assistant instruction.
//
// Construction fails when an output schema does not compile or is combined
// with tools; a schema also forces transfer off since schema-constrained
// generation cannot call functions.
func NewModelAgent(name string, m core.Model, optFns ...func(o *ModelAgentOptions)) (*ModelAgent, error) {
	opts := ModelAgentOptions{
		Instruction:           NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:       true,
		EnableFunctionCalling: true,
		ToolTimeout:           15 * time.Second,
		IncludeContents:       flow.IncludeContentsDefault,
		MaxHistoryMessages:    20,
		AllowTransfer:         true,
		Tools:                 make(map[string]core.Tool),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:             NewBaseAgent(name),
		model:                 m,
		instruction:           opts.Instruction,
		tools:                 opts.Tools,
		enableStreaming:       opts.EnableStreaming,
		enableFunctionCalling: opts.EnableFunctionCalling,
		toolTimeout:           opts.ToolTimeout,
		outputKey:             opts.OutputKey,
		outputSchema:          opts.OutputSchema,
		includeContents:       opts.IncludeContents,
		maxHistoryMessages:    opts.MaxHistoryMessages,
		allowTransfer:         opts.AllowTransfer,
		modelCallbacks:        opts.ModelCallbacks,
		toolCallbacks:         opts.ToolCallbacks,
	}
	a.bindSelf(a)
	a.SetAgentCallbacks(opts.AgentCallbacks)
	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}
	if a.tools == nil {
		a.tools = make(map[string]core.Tool)
	}

	if opts.OutputSchema != nil {
		if len(a.tools) > 0 {
			return nil, fmt.Errorf("agent %s: output schema cannot be combined with tools", name)
		}
		validator, err := flow.NewOutputValidator(opts.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", name, err)
		}
		a.outputValidator = validator
		a.allowTransfer = false
	}

	if a.allowTransfer {
		a.tools[flow.TransferToolName] = tool.NewTransferToAgentTool()
	}

	return a, nil
}

// SetSubAgents registers delegation targets. Agents constrained to
// structured output cannot have sub-agents.
func (a *ModelAgent) SetSubAgents(children ...core.Agent) error {
	if a.outputValidator != nil && len(children) > 0 {
		return fmt.Errorf("agent %s: structured output cannot be combined with sub-agents", a.Name())
	}
	return a.BaseAgent.SetSubAgents(children...)
}

// RegisterTool adds a function tool to the agent's capability set.
//
// Registered tools become available for the language model to call during
// conversations when function calling is enabled.
func (a *ModelAgent) RegisterTool(t core.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools to the agent's capability set.
func (a *ModelAgent) RegisterTools(tools ...core.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool from the agent's capability set.
//
// Returns true if the tool was found and removed, false if it wasn't registered.
func (a *ModelAgent) UnregisterTool(name string) bool {
	if _, exists := a.tools[name]; exists {
		delete(a.tools, name)
		return true
	}
	return false
}

// HasTool checks if a tool is registered with the agent.
func (a *ModelAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the names of all registered tools.
func (a *ModelAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// GetTool retrieves a specific tool by name.
func (a *ModelAgent) GetTool(name string) (core.Tool, bool) {
	t, exists := a.tools[name]
	return t, exists
}

// ClearTools removes all registered tools. The transfer tool is re-added
// when transfer is allowed since delegation depends on it.
func (a *ModelAgent) ClearTools() {
	a.tools = make(map[string]core.Tool)
	if a.allowTransfer {
		a.tools[flow.TransferToolName] = tool.NewTransferToAgentTool()
	}
}

// GetName implements flow.FlowAgent.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetModel implements flow.FlowAgent.
func (a *ModelAgent) GetModel() core.Model { return a.model }

// GetTools implements flow.FlowAgent, returning a copy of the registry.
func (a *ModelAgent) GetTools() map[string]core.Tool {
	tools := make(map[string]core.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}
	return tools
}

// GetSubAgents implements flow.FlowAgent, returning the children that can be
// driven by a flow.
func (a *ModelAgent) GetSubAgents() []flow.FlowAgent {
	subAgents := a.SubAgents()
	flowAgents := make([]flow.FlowAgent, 0, len(subAgents))
	for _, subAgent := range subAgents {
		if flowAgent, ok := subAgent.(flow.FlowAgent); ok {
			flowAgents = append(flowAgents, flowAgent)
		}
	}
	return flowAgents
}

// ResolveInstructions implements flow.FlowAgent.
func (a *ModelAgent) ResolveInstructions(ictx *core.InvocationContext) (string, error) {
	return a.instruction.Resolve(ictx)
}

// OutputSchema implements flow.FlowAgent.
func (a *ModelAgent) OutputSchema() map[string]any { return a.outputSchema }

// IncludeContents implements flow.FlowAgent.
func (a *ModelAgent) IncludeContents() string { return a.includeContents }

// MaxHistoryMessages implements flow.FlowAgent.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ToolTimeout implements flow.FlowAgent.
func (a *ModelAgent) ToolTimeout() time.Duration { return a.toolTimeout }

// IsFunctionCallingEnabled implements flow.FlowAgent.
func (a *ModelAgent) IsFunctionCallingEnabled() bool { return a.enableFunctionCalling }

// IsStreamingEnabled implements flow.FlowAgent.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// IsTransferEnabled implements flow.FlowAgent.
func (a *ModelAgent) IsTransferEnabled() bool { return a.allowTransfer }

// ModelCallbacks implements flow.FlowAgent.
func (a *ModelAgent) ModelCallbacks() core.ModelCallbacks { return a.modelCallbacks }

// ToolCallbacks implements flow.FlowAgent.
func (a *ModelAgent) ToolCallbacks() core.ToolCallbacks { return a.toolCallbacks }

// TransferToAgent implements flow.FlowAgent. The target is resolved from the
// root of the agent tree so any registered agent can be named, then run with
// the same invocation context (shared session, emit channel).
func (a *ModelAgent) TransferToAgent(ictx *core.InvocationContext, agentName string) error {
	target := core.RootAgent(a).FindAgent(agentName)
	if target == nil {
		return fmt.Errorf("agent %s not found in hierarchy", agentName)
	}

	ictx.LogInfo("agent.transfer", "from", a.Name(), "to", agentName)

	return target.Run(ictx)
}

// Run implements core.Agent. The flow selector picks the execution strategy
// matching the agent's capabilities, then the flow's event stream is
// forwarded to the engine. The flow itself honors the emit/resume protocol
// for non-partial events, so forwarding never waits a second time.
func (a *ModelAgent) Run(ictx *core.InvocationContext) error {
	return a.runWithHooks(ictx, func() error {
		return a.runFlow(ictx)
	})
}

func (a *ModelAgent) runFlow(ictx *core.InvocationContext) error {
	fl := flow.NewSelector().SelectFlow(a)

	ictx.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl))

	eventCh, errCh, err := fl.Execute(ictx)
	if err != nil {
		return fmt.Errorf("flow execution failed: %w", err)
	}

	var flowErr error
	for eventCh != nil || errCh != nil {
		select {
		case ev, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			if err := a.captureOutput(&ev); err != nil {
				return err
			}
			if err := ictx.EmitEvent(ev); err != nil {
				return err
			}
		case ferr, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if ferr != nil && flowErr == nil {
				flowErr = ferr
			}
		}
	}
	return flowErr
}

// captureOutput applies the agent's output contract to its own final
// response events: schema validation when configured, and state capture
// under the output key. The captured value rides the event's state delta so
// it commits with the event.
func (a *ModelAgent) captureOutput(ev *core.Event) error {
	if a.outputKey == "" && a.outputValidator == nil {
		return nil
	}
	if ev.Author != a.Name() || ev.IsPartial() || !ev.IsFinalResponse() {
		return nil
	}

	text := ev.StringifyContent()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var value any = text
	if a.outputValidator != nil {
		parsed, err := a.outputValidator.Validate(text)
		if err != nil {
			return fmt.Errorf("agent %s output: %w", a.Name(), err)
		}
		value = parsed
	}

	if a.outputKey != "" {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		ev.Actions.StateDelta[a.outputKey] = value
	}
	return nil
}
