package config

import (
	"fmt"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
)

// Resources holds the runtime instances a declarative configuration can
// reference by name: models for LlmAgent nodes and tools for their tool
// lists. Custom agent factories receive the same resources.
type Resources struct {
	Models map[string]core.Model
	Tools  map[string]core.Tool
}

// AgentFactory constructs a custom agent class from its configuration node.
// Children are already built; extra YAML fields arrive in cfg.Extra.
type AgentFactory func(cfg *AgentConfig, res Resources, children []core.Agent) (core.Agent, error)

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// Models maps config model names to instances.
	Models map[string]core.Model
	// Tools maps config tool names to instances.
	Tools map[string]core.Tool
}

// Builder turns validated AgentConfig trees into runnable agent trees. The
// four built-in classes are always available; additional classes register
// through RegisterAgentClass.
type Builder struct {
	res       Resources
	factories map[string]AgentFactory
}

// NewBuilder creates a Builder with the given resources.
func NewBuilder(optFns ...func(o *BuilderOptions)) *Builder {
	opts := BuilderOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Builder{
		res:       Resources{Models: opts.Models, Tools: opts.Tools},
		factories: make(map[string]AgentFactory),
	}
}

// RegisterAgentClass makes a custom agent class available under the given
// agent_class value. Built-in class names and duplicates are rejected.
func (b *Builder) RegisterAgentClass(name string, factory AgentFactory) error {
	if name == "" {
		return fmt.Errorf("agent class name must not be empty")
	}

	switch name {
	case ClassLlmAgent, ClassSequentialAgent, ClassLoopAgent, ClassParallelAgent:
		return fmt.Errorf("agent class %q is built in", name)
	}

	if factory == nil {
		return fmt.Errorf("agent class %q: factory must not be nil", name)
	}
	if _, exists := b.factories[name]; exists {
		return fmt.Errorf("agent class %q already registered", name)
	}

	b.factories[name] = factory

	return nil
}

// Build constructs the agent tree described by cfg. The configuration is
// defaulted and validated first, so hand-assembled configs get the same
// fail-fast treatment as loaded ones.
func (b *Builder) Build(cfg *AgentConfig) (core.Agent, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return b.build(cfg, "")
}

// build recurses bottom-up. inheritedModel carries the nearest ancestor's
// model name; composites forward it unchanged, LlmAgent nodes replace it
// with their own for their children.
func (b *Builder) build(cfg *AgentConfig, inheritedModel string) (core.Agent, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = inheritedModel
	}

	children := make([]core.Agent, 0, len(cfg.SubAgents))
	for _, sub := range cfg.SubAgents {
		child, err := b.build(sub, modelName)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	switch cfg.AgentClass {
	case ClassLlmAgent:
		return b.buildModelAgent(cfg, modelName, children)

	case ClassSequentialAgent:
		a := agent.NewSequentialAgent(cfg.Name, children...)
		a.SetDescription(cfg.Description)
		return a, nil

	case ClassLoopAgent:
		a := agent.NewLoopAgent(cfg.Name, cfg.MaxIterations, children...)
		a.SetDescription(cfg.Description)
		return a, nil

	case ClassParallelAgent:
		a := agent.NewParallelAgent(cfg.Name, cfg.Timeout, children...)
		a.SetDescription(cfg.Description)
		return a, nil

	default:
		factory, ok := b.factories[cfg.AgentClass]
		if !ok {
			return nil, fmt.Errorf("agent %s: unknown agent_class %q", cfg.Name, cfg.AgentClass)
		}
		return factory(cfg, b.res, children)
	}
}

func (b *Builder) buildModelAgent(cfg *AgentConfig, modelName string, children []core.Agent) (core.Agent, error) {
	if modelName == "" {
		return nil, fmt.Errorf("agent %s: no model configured and none inherited", cfg.Name)
	}

	m, ok := b.res.Models[modelName]
	if !ok {
		return nil, fmt.Errorf("agent %s: model %q not registered", cfg.Name, modelName)
	}

	tools := make(map[string]core.Tool, len(cfg.Tools))
	for _, ref := range cfg.Tools {
		tl, ok := b.res.Tools[ref.Name]
		if !ok {
			return nil, fmt.Errorf("agent %s: tool %q not registered", cfg.Name, ref.Name)
		}
		tools[ref.Name] = tl
	}

	a, err := agent.NewModelAgent(cfg.Name, m, func(o *agent.ModelAgentOptions) {
		o.Description = cfg.Description
		if cfg.Instruction != "" {
			o.Instruction = agent.NewInstructionFromText(cfg.Instruction)
		}
		o.OutputKey = cfg.OutputKey
		o.OutputSchema = cfg.OutputSchema
		o.IncludeContents = cfg.IncludeContents
		o.AllowTransfer = !cfg.DisallowTransfer
		if cfg.MaxHistoryMessages > 0 {
			o.MaxHistoryMessages = cfg.MaxHistoryMessages
		}
		if len(tools) > 0 {
			o.Tools = tools
		}
	})
	if err != nil {
		return nil, err
	}

	if len(children) > 0 {
		if err := a.SetSubAgents(children...); err != nil {
			return nil, err
		}
	}

	return a, nil
}
