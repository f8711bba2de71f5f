package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/agentflow/flow"
)

// Built-in agent classes selectable via the agent_class discriminator.
// Any other value names a custom class registered on the Builder.
const (
	ClassLlmAgent        = "LlmAgent"
	ClassSequentialAgent = "SequentialAgent"
	ClassLoopAgent       = "LoopAgent"
	ClassParallelAgent   = "ParallelAgent"
)

// ToolRef names a tool from the builder's tool registry.
type ToolRef struct {
	Name string `yaml:"name"`
}

// AgentConfig is the declarative description of one agent, possibly with
// nested sub-agents. The agent_class field selects the concrete type; when
// omitted it defaults to LlmAgent.
//
// A sub-agent entry may carry config_path instead of inline fields, in
// which case the referenced file (relative to the referencing file) is
// loaded in its place.
type AgentConfig struct {
	AgentClass  string `yaml:"agent_class"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// ConfigPath marks this node as a file reference. It is resolved and
	// replaced during loading; a resolved tree never contains one.
	ConfigPath string `yaml:"config_path"`

	// LlmAgent fields. Model names a registered model; when empty it is
	// inherited from the nearest ancestor that sets one.
	Model              string         `yaml:"model"`
	Instruction        string         `yaml:"instruction"`
	OutputKey          string         `yaml:"output_key"`
	OutputSchema       map[string]any `yaml:"output_schema"`
	IncludeContents    string         `yaml:"include_contents"`
	MaxHistoryMessages int            `yaml:"max_history_messages"`
	DisallowTransfer   bool           `yaml:"disallow_transfer"`
	Tools              []ToolRef      `yaml:"tools"`

	// LoopAgent: zero means no iteration cap.
	MaxIterations int `yaml:"max_iterations"`

	// ParallelAgent: zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`

	SubAgents []*AgentConfig `yaml:"sub_agents"`

	// Extra collects keys not matched by the fields above. Built-in
	// classes reject extras; custom classes receive them in their factory.
	Extra map[string]any `yaml:",remain"`
}

// SetDefaults fills omitted fields with their defaults, recursing into
// sub-agents. File references are left untouched.
func (c *AgentConfig) SetDefaults() {
	if c.ConfigPath != "" {
		return
	}

	if c.AgentClass == "" {
		c.AgentClass = ClassLlmAgent
	}
	if c.AgentClass == ClassLlmAgent && c.IncludeContents == "" {
		c.IncludeContents = flow.IncludeContentsDefault
	}

	for _, sub := range c.SubAgents {
		sub.SetDefaults()
	}
}

// Validate checks the resolved tree for structural errors: missing names,
// fields that do not belong to the declared class, invalid enum values and
// duplicate agent names. It assumes SetDefaults has run.
func (c *AgentConfig) Validate() error {
	if err := c.validateNode(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	return c.checkUniqueNames(seen)
}

func (c *AgentConfig) validateNode() error {
	if c.ConfigPath != "" {
		return fmt.Errorf("unresolved config_path reference %q", c.ConfigPath)
	}
	if c.Name == "" {
		return fmt.Errorf("agent name is required")
	}

	switch c.AgentClass {
	case ClassLlmAgent:
		if err := c.validateLlmFields(); err != nil {
			return err
		}
		if err := c.rejectExtras(); err != nil {
			return err
		}

	case ClassSequentialAgent, ClassParallelAgent, ClassLoopAgent:
		if err := c.rejectLlmFields(); err != nil {
			return err
		}
		if c.AgentClass == ClassLoopAgent && c.MaxIterations < 0 {
			return fmt.Errorf("agent %s: max_iterations must not be negative", c.Name)
		}
		if c.AgentClass == ClassParallelAgent && c.Timeout < 0 {
			return fmt.Errorf("agent %s: timeout must not be negative", c.Name)
		}
		if err := c.rejectExtras(); err != nil {
			return err
		}

	default:
		// Custom class: extras are its configuration surface, structural
		// checks only.
	}

	for _, sub := range c.SubAgents {
		if err := sub.validateNode(); err != nil {
			return err
		}
	}

	return nil
}

func (c *AgentConfig) validateLlmFields() error {
	if c.Instruction == "" {
		return fmt.Errorf("agent %s: instruction is required", c.Name)
	}

	switch c.IncludeContents {
	case flow.IncludeContentsDefault, flow.IncludeContentsNone:
	default:
		return fmt.Errorf("agent %s: include_contents must be %q or %q, got %q",
			c.Name, flow.IncludeContentsDefault, flow.IncludeContentsNone, c.IncludeContents)
	}

	if c.MaxHistoryMessages < 0 {
		return fmt.Errorf("agent %s: max_history_messages must not be negative", c.Name)
	}

	if len(c.OutputSchema) > 0 {
		if len(c.Tools) > 0 {
			return fmt.Errorf("agent %s: output_schema cannot be combined with tools", c.Name)
		}
		if len(c.SubAgents) > 0 {
			return fmt.Errorf("agent %s: output_schema cannot be combined with sub_agents", c.Name)
		}
	}

	return nil
}

// rejectLlmFields refuses model-call fields on composite classes, where
// they would be silently ignored.
func (c *AgentConfig) rejectLlmFields() error {
	switch {
	case c.Model != "":
		return fmt.Errorf("agent %s: model is only valid for %s", c.Name, ClassLlmAgent)
	case c.Instruction != "":
		return fmt.Errorf("agent %s: instruction is only valid for %s", c.Name, ClassLlmAgent)
	case c.OutputKey != "" || len(c.OutputSchema) > 0:
		return fmt.Errorf("agent %s: output capture is only valid for %s", c.Name, ClassLlmAgent)
	case c.IncludeContents != "":
		return fmt.Errorf("agent %s: include_contents is only valid for %s", c.Name, ClassLlmAgent)
	case len(c.Tools) > 0:
		return fmt.Errorf("agent %s: tools are only valid for %s", c.Name, ClassLlmAgent)
	}
	return nil
}

func (c *AgentConfig) rejectExtras() error {
	if len(c.Extra) == 0 {
		return nil
	}

	keys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return fmt.Errorf("agent %s: unknown fields %v for agent_class %s", c.Name, keys, c.AgentClass)
}

func (c *AgentConfig) checkUniqueNames(seen map[string]bool) error {
	if seen[c.Name] {
		return fmt.Errorf("duplicate agent name %q in tree", c.Name)
	}
	seen[c.Name] = true

	for _, sub := range c.SubAgents {
		if err := sub.checkUniqueNames(seen); err != nil {
			return err
		}
	}

	return nil
}

// isRef reports whether this node is a bare file reference.
func (c *AgentConfig) isRef() bool {
	return c.ConfigPath != ""
}

// refOnlyFields verifies a file reference carries no inline configuration,
// which would be silently discarded by resolution.
func (c *AgentConfig) refOnlyFields() error {
	inline := c.AgentClass != "" || c.Name != "" || c.Description != "" ||
		c.Model != "" || c.Instruction != "" || c.OutputKey != "" ||
		len(c.OutputSchema) > 0 || c.IncludeContents != "" ||
		c.MaxHistoryMessages != 0 || c.DisallowTransfer ||
		len(c.Tools) > 0 || c.MaxIterations != 0 || c.Timeout != 0 ||
		len(c.SubAgents) > 0 || len(c.Extra) > 0

	if inline {
		return fmt.Errorf("sub-agent reference %q must not carry inline fields", c.ConfigPath)
	}
	return nil
}
