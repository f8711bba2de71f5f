package core

import (
	"context"

	"github.com/hupe1980/agentflow/logging"
)

// CallbackContext is the view of an invocation handed to agent and model
// hooks. It scopes state access and artifact management so everything a
// hook mutates is recorded in an EventActions value that the framework
// attaches to the event produced by the hooked operation.
type CallbackContext struct {
	ictx      *InvocationContext
	agentName string
	actions   *EventActions
}

// NewCallbackContext creates a hook context for the named agent. When
// actions is nil a fresh action set is allocated; passing a shared pointer
// lets the caller collect writes from several hooks into one event.
func NewCallbackContext(ictx *InvocationContext, agentName string, actions *EventActions) *CallbackContext {
	if actions == nil {
		actions = &EventActions{}
	}
	return &CallbackContext{ictx: ictx, agentName: agentName, actions: actions}
}

// Context returns the invocation's context for cancellation awareness.
func (c *CallbackContext) Context() context.Context { return c.ictx.Context }

// InvocationID returns the current invocation identifier.
func (c *CallbackContext) InvocationID() string { return c.ictx.InvocationID }

// SessionID returns the session this invocation runs in.
func (c *CallbackContext) SessionID() string { return c.ictx.SessionID }

// AgentName returns the name of the agent whose operation is hooked.
func (c *CallbackContext) AgentName() string { return c.agentName }

// UserContent returns the content that triggered the invocation.
func (c *CallbackContext) UserContent() Content { return c.ictx.UserContent }

// Logger returns the invocation's logger.
func (c *CallbackContext) Logger() logging.Logger { return c.ictx.Logger() }

// Actions exposes the action set accumulated by this context. The framework
// merges it into the event emitted for the hooked operation.
func (c *CallbackContext) Actions() *EventActions { return c.actions }

// GetState looks up a state key. Writes made through this context are
// visible before the committed session state.
func (c *CallbackContext) GetState(key string) (any, bool) {
	if c.actions.StateDelta != nil {
		if v, ok := c.actions.StateDelta[key]; ok {
			return v, true
		}
	}
	return c.ictx.GetState(key)
}

// SetState records a state write in the pending action set. The write is
// applied to the session when the carrying event is committed.
func (c *CallbackContext) SetState(key string, value any) {
	if c.actions.StateDelta == nil {
		c.actions.StateDelta = map[string]any{}
	}
	c.actions.StateDelta[key] = value
}

// SaveArtifact stores a binary artifact in the current session and records
// the new version in the pending artifact delta.
func (c *CallbackContext) SaveArtifact(artifactID string, data []byte) (int, error) {
	if c.ictx.ArtifactService == nil {
		return 0, ErrNoArtifactService
	}
	version, err := c.ictx.ArtifactService.Save(c.ictx.SessionID, artifactID, data)
	if err != nil {
		return 0, err
	}
	if c.actions.ArtifactDelta == nil {
		c.actions.ArtifactDelta = map[string]int{}
	}
	c.actions.ArtifactDelta[artifactID] = version
	return version, nil
}

// LoadArtifact retrieves the latest version of a session artifact.
func (c *CallbackContext) LoadArtifact(artifactID string) ([]byte, error) {
	if c.ictx.ArtifactService == nil {
		return nil, ErrNoArtifactService
	}
	return c.ictx.ArtifactService.Get(c.ictx.SessionID, artifactID)
}

// EndInvocation requests a stop of the whole invocation once the current
// event is processed.
func (c *CallbackContext) EndInvocation() {
	c.ictx.EndInvocation = true
	end := true
	c.actions.EndInvocation = &end
}
