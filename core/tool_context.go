package core

import "errors"

// Store access errors shared by the scoped contexts.
var (
	ErrNoArtifactService = errors.New("no artifact service configured")
	ErrNoMemoryService   = errors.New("no memory service configured")
	ErrNoSessionService  = errors.New("no session service configured")
)

// ToolContext is the execution context passed to every tool call. It extends
// CallbackContext with the identity of the triggering function call, flow
// control signals and memory access.
//
// Each concurrent tool call receives its own ToolContext with a fresh action
// set; the fan-out merges the per-call actions into the consolidated
// function-response event, later calls winning on conflicting keys.
type ToolContext struct {
	*CallbackContext
	functionCallID string
}

// NewToolContext creates a tool context for one function call.
func NewToolContext(ictx *InvocationContext, agentName, functionCallID string) *ToolContext {
	return &ToolContext{
		CallbackContext: NewCallbackContext(ictx, agentName, nil),
		functionCallID:  functionCallID,
	}
}

// FunctionCallID returns the id of the function call being executed.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// TransferToAgent requests that the remainder of the invocation be routed to
// the named agent after the current event is processed.
func (tc *ToolContext) TransferToAgent(agentName string) {
	tc.actions.TransferToAgent = &agentName
}

// Escalate signals the enclosing loop (if any) to stop iterating. When both
// escalate and a transfer are requested on the same merged event, escalation
// wins and the transfer is not performed.
func (tc *ToolContext) Escalate() {
	escalate := true
	tc.actions.Escalate = &escalate
}

// SkipSummarization suppresses the follow-up model call that would otherwise
// summarize the tool results; the consolidated function-response event
// becomes the final response.
func (tc *ToolContext) SkipSummarization() {
	skip := true
	tc.actions.SkipSummarization = &skip
}

// EndInvocation requests a stop of the whole invocation. Tool calls run
// concurrently, so the request is recorded in this call's action set only;
// the flow applies it to the invocation once the fan-out has merged all
// call actions. Sibling calls in the same batch run to completion.
func (tc *ToolContext) EndInvocation() {
	end := true
	tc.actions.EndInvocation = &end
}

// ListArtifacts returns the artifact ids stored for the current session.
func (tc *ToolContext) ListArtifacts() ([]string, error) {
	if tc.ictx.ArtifactService == nil {
		return nil, ErrNoArtifactService
	}
	return tc.ictx.ArtifactService.List(tc.ictx.SessionID)
}

// SearchMemory queries the memory service for relevant recalled snippets.
func (tc *ToolContext) SearchMemory(query string, limit int) ([]SearchResult, error) {
	if tc.ictx.MemoryService == nil {
		return nil, ErrNoMemoryService
	}
	return tc.ictx.MemoryService.Search(tc.ictx.SessionID, query, limit)
}

// StoreMemory persists a memory snippet for later recall.
func (tc *ToolContext) StoreMemory(content string, metadata map[string]any) error {
	if tc.ictx.MemoryService == nil {
		return ErrNoMemoryService
	}
	return tc.ictx.MemoryService.Store(tc.ictx.SessionID, content, metadata)
}

// Events returns a copy of the session's committed event history.
func (tc *ToolContext) Events() ([]Event, error) {
	if tc.ictx.SessionService == nil {
		return nil, ErrNoSessionService
	}
	sess, err := tc.ictx.SessionService.Get(tc.ictx.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	return sess.GetEvents(), nil
}
