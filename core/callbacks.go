package core

// Callback signatures for the six interception points plus the two error
// recovery hooks. The same signatures are used by global plugins and by
// per-agent callbacks; at every hook point plugins run first, then the
// owning agent's callbacks in registration order.
//
// Before-hooks short-circuit: the first non-nil result replaces the wrapped
// operation (agent body, model call or tool body) and skips the remaining
// hooks. After-hooks chain: every hook runs, each receives the latest value,
// and a non-nil return replaces it. An error from any hook aborts the
// operation and propagates unchanged.

// BeforeAgentCallback runs before an agent's body. A non-nil Content becomes
// the agent's entire output.
type BeforeAgentCallback func(cctx *CallbackContext) (*Content, error)

// AfterAgentCallback runs after an agent finished. A non-nil Content is
// appended as one extra final event.
type AfterAgentCallback func(cctx *CallbackContext) (*Content, error)

// BeforeModelCallback runs before a model call. A non-nil Response is used
// instead of calling the model.
type BeforeModelCallback func(cctx *CallbackContext, req *Request) (*Response, error)

// AfterModelCallback runs on each model response. A non-nil Response
// replaces it.
type AfterModelCallback func(cctx *CallbackContext, resp *Response) (*Response, error)

// OnModelErrorCallback runs when the model fails. A non-nil Response
// recovers the step; otherwise the failure surfaces as an error event.
type OnModelErrorCallback func(cctx *CallbackContext, req *Request, modelErr error) (*Response, error)

// BeforeToolCallback runs before a tool call. A non-nil map becomes the tool
// result without running the tool body.
type BeforeToolCallback func(toolCtx *ToolContext, tool Tool, args map[string]any) (map[string]any, error)

// AfterToolCallback runs on each tool result. A non-nil map replaces it.
type AfterToolCallback func(toolCtx *ToolContext, tool Tool, args map[string]any, result map[string]any) (map[string]any, error)

// OnToolErrorCallback runs when a tool call fails. A non-nil map recovers
// the call; otherwise an error function response is merged while sibling
// calls proceed.
type OnToolErrorCallback func(toolCtx *ToolContext, tool Tool, args map[string]any, toolErr error) (map[string]any, error)

// AgentCallbacks holds the per-agent lifecycle hooks available on every
// agent kind.
type AgentCallbacks struct {
	BeforeAgent []BeforeAgentCallback
	AfterAgent  []AfterAgentCallback
}

// RunBefore executes the before-agent chain; first non-nil content wins.
func (c AgentCallbacks) RunBefore(cctx *CallbackContext) (*Content, error) {
	for _, cb := range c.BeforeAgent {
		content, err := cb(cctx)
		if err != nil {
			return nil, err
		}
		if content != nil {
			return content, nil
		}
	}
	return nil, nil
}

// RunAfter executes the after-agent chain; every callback runs, the last
// non-nil content is returned.
func (c AgentCallbacks) RunAfter(cctx *CallbackContext) (*Content, error) {
	var out *Content
	for _, cb := range c.AfterAgent {
		content, err := cb(cctx)
		if err != nil {
			return nil, err
		}
		if content != nil {
			out = content
		}
	}
	return out, nil
}

// ModelCallbacks holds the per-agent model interception hooks.
type ModelCallbacks struct {
	BeforeModel  []BeforeModelCallback
	AfterModel   []AfterModelCallback
	OnModelError []OnModelErrorCallback
}

// RunBefore executes the before-model chain; first non-nil response wins.
func (c ModelCallbacks) RunBefore(cctx *CallbackContext, req *Request) (*Response, error) {
	for _, cb := range c.BeforeModel {
		resp, err := cb(cctx, req)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}

// RunAfter executes the after-model chain. Every callback runs against the
// latest response value; non-nil returns replace it.
func (c ModelCallbacks) RunAfter(cctx *CallbackContext, resp *Response) (*Response, error) {
	current := resp
	for _, cb := range c.AfterModel {
		replaced, err := cb(cctx, current)
		if err != nil {
			return nil, err
		}
		if replaced != nil {
			current = replaced
		}
	}
	return current, nil
}

// RunOnError executes the model error chain; first non-nil fallback wins.
func (c ModelCallbacks) RunOnError(cctx *CallbackContext, req *Request, modelErr error) (*Response, error) {
	for _, cb := range c.OnModelError {
		resp, err := cb(cctx, req, modelErr)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}

// ToolCallbacks holds the per-agent tool interception hooks.
type ToolCallbacks struct {
	BeforeTool  []BeforeToolCallback
	AfterTool   []AfterToolCallback
	OnToolError []OnToolErrorCallback
}

// RunBefore executes the before-tool chain; first non-nil result wins.
func (c ToolCallbacks) RunBefore(toolCtx *ToolContext, tool Tool, args map[string]any) (map[string]any, error) {
	for _, cb := range c.BeforeTool {
		result, err := cb(toolCtx, tool, args)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// RunAfter executes the after-tool chain. Every callback runs against the
// latest result value; non-nil returns replace it.
func (c ToolCallbacks) RunAfter(toolCtx *ToolContext, tool Tool, args map[string]any, result map[string]any) (map[string]any, error) {
	current := result
	for _, cb := range c.AfterTool {
		replaced, err := cb(toolCtx, tool, args, current)
		if err != nil {
			return nil, err
		}
		if replaced != nil {
			current = replaced
		}
	}
	return current, nil
}

// RunOnError executes the tool error chain; first non-nil fallback wins.
func (c ToolCallbacks) RunOnError(toolCtx *ToolContext, tool Tool, args map[string]any, toolErr error) (map[string]any, error) {
	for _, cb := range c.OnToolError {
		result, err := cb(toolCtx, tool, args, toolErr)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}
