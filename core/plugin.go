package core

import "fmt"

// Plugin is a globally registered extension that observes and intercepts
// every agent, model and tool boundary of an invocation. Plugins run before
// the owning agent's callbacks at each hook point and share the same
// override semantics: before-hooks short-circuit on the first non-nil
// result, after-hooks chain, errors abort the wrapped operation.
//
// Embed BasePlugin and override only the hooks you need:
//
//	type auditPlugin struct{ core.BasePlugin }
//
//	func (p auditPlugin) Name() string { return "audit" }
//
//	func (p auditPlugin) BeforeTool(toolCtx *core.ToolContext, tool core.Tool, args map[string]any) (map[string]any, error) {
//	    log.Printf("tool %s called", tool.Name())
//	    return nil, nil
//	}
type Plugin interface {
	// Name identifies the plugin; registration rejects duplicates.
	Name() string

	BeforeAgent(cctx *CallbackContext) (*Content, error)
	AfterAgent(cctx *CallbackContext) (*Content, error)
	BeforeModel(cctx *CallbackContext, req *Request) (*Response, error)
	AfterModel(cctx *CallbackContext, resp *Response) (*Response, error)
	OnModelError(cctx *CallbackContext, req *Request, modelErr error) (*Response, error)
	BeforeTool(toolCtx *ToolContext, tool Tool, args map[string]any) (map[string]any, error)
	AfterTool(toolCtx *ToolContext, tool Tool, args map[string]any, result map[string]any) (map[string]any, error)
	OnToolError(toolCtx *ToolContext, tool Tool, args map[string]any, toolErr error) (map[string]any, error)
}

// BasePlugin is a no-op implementation of every Plugin hook except Name.
// Embed it so plugins only implement the hooks they care about.
type BasePlugin struct{}

func (BasePlugin) BeforeAgent(*CallbackContext) (*Content, error) { return nil, nil }

func (BasePlugin) AfterAgent(*CallbackContext) (*Content, error) { return nil, nil }

func (BasePlugin) BeforeModel(*CallbackContext, *Request) (*Response, error) { return nil, nil }

func (BasePlugin) AfterModel(*CallbackContext, *Response) (*Response, error) { return nil, nil }

func (BasePlugin) OnModelError(*CallbackContext, *Request, error) (*Response, error) {
	return nil, nil
}

func (BasePlugin) BeforeTool(*ToolContext, Tool, map[string]any) (map[string]any, error) {
	return nil, nil
}

func (BasePlugin) AfterTool(*ToolContext, Tool, map[string]any, map[string]any) (map[string]any, error) {
	return nil, nil
}

func (BasePlugin) OnToolError(*ToolContext, Tool, map[string]any, error) (map[string]any, error) {
	return nil, nil
}

// PluginManager holds the global plugin registry for an engine or runner
// and dispatches hook runs in registration order. A nil manager is valid
// and runs nothing, so callers never need to nil-check before dispatching.
type PluginManager struct {
	plugins []Plugin
	names   map[string]struct{}
}

// NewPluginManager creates a manager, registering the given plugins in
// order. Registration failures (duplicate names) are returned immediately.
func NewPluginManager(plugins ...Plugin) (*PluginManager, error) {
	m := &PluginManager{names: make(map[string]struct{})}
	for _, p := range plugins {
		if err := m.Register(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register adds a plugin. Duplicate names are rejected so hook ordering
// stays unambiguous.
func (m *PluginManager) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin must not be nil")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin name must not be empty")
	}
	if _, exists := m.names[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}
	m.names[name] = struct{}{}
	m.plugins = append(m.plugins, p)
	return nil
}

// Plugins returns the registered plugins in registration order.
func (m *PluginManager) Plugins() []Plugin {
	if m == nil {
		return nil
	}
	return m.plugins
}

// RunBeforeAgent dispatches the before-agent hook; first non-nil content wins.
func (m *PluginManager) RunBeforeAgent(cctx *CallbackContext) (*Content, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		content, err := p.BeforeAgent(cctx)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: before agent: %w", p.Name(), err)
		}
		if content != nil {
			return content, nil
		}
	}
	return nil, nil
}

// RunAfterAgent dispatches the after-agent hook across all plugins; the last
// non-nil content is returned.
func (m *PluginManager) RunAfterAgent(cctx *CallbackContext) (*Content, error) {
	if m == nil {
		return nil, nil
	}
	var out *Content
	for _, p := range m.plugins {
		content, err := p.AfterAgent(cctx)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: after agent: %w", p.Name(), err)
		}
		if content != nil {
			out = content
		}
	}
	return out, nil
}

// RunBeforeModel dispatches the before-model hook; first non-nil response wins.
func (m *PluginManager) RunBeforeModel(cctx *CallbackContext, req *Request) (*Response, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		resp, err := p.BeforeModel(cctx, req)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: before model: %w", p.Name(), err)
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}

// RunAfterModel dispatches the after-model hook across all plugins, chaining
// replacements.
func (m *PluginManager) RunAfterModel(cctx *CallbackContext, resp *Response) (*Response, error) {
	if m == nil {
		return resp, nil
	}
	current := resp
	for _, p := range m.plugins {
		replaced, err := p.AfterModel(cctx, current)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: after model: %w", p.Name(), err)
		}
		if replaced != nil {
			current = replaced
		}
	}
	return current, nil
}

// RunOnModelError dispatches the model error hook; first non-nil fallback wins.
func (m *PluginManager) RunOnModelError(cctx *CallbackContext, req *Request, modelErr error) (*Response, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		resp, err := p.OnModelError(cctx, req, modelErr)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: on model error: %w", p.Name(), err)
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}

// RunBeforeTool dispatches the before-tool hook; first non-nil result wins.
func (m *PluginManager) RunBeforeTool(toolCtx *ToolContext, tool Tool, args map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		result, err := p.BeforeTool(toolCtx, tool, args)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: before tool: %w", p.Name(), err)
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// RunAfterTool dispatches the after-tool hook across all plugins, chaining
// replacements.
func (m *PluginManager) RunAfterTool(toolCtx *ToolContext, tool Tool, args map[string]any, result map[string]any) (map[string]any, error) {
	if m == nil {
		return result, nil
	}
	current := result
	for _, p := range m.plugins {
		replaced, err := p.AfterTool(toolCtx, tool, args, current)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: after tool: %w", p.Name(), err)
		}
		if replaced != nil {
			current = replaced
		}
	}
	return current, nil
}

// RunOnToolError dispatches the tool error hook; first non-nil fallback wins.
func (m *PluginManager) RunOnToolError(toolCtx *ToolContext, tool Tool, args map[string]any, toolErr error) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	for _, p := range m.plugins {
		result, err := p.OnToolError(toolCtx, tool, args, toolErr)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: on tool error: %w", p.Name(), err)
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}
