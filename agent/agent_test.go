package agent

import (
	"context"
	"testing"

	"github.com/hupe1980/agentflow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAgent for testing composite agents
type MockAgent struct {
	mock.Mock
	name string
}

func NewMockAgent(name string) *MockAgent {
	return &MockAgent{name: name}
}

func (m *MockAgent) Name() string { return m.name }

func (m *MockAgent) Description() string { return "mock agent " + m.name }

func (m *MockAgent) Run(invocationCtx *core.InvocationContext) error {
	args := m.Called(invocationCtx)
	return args.Error(0)
}

func (m *MockAgent) Start(invocationCtx *core.InvocationContext) error {
	args := m.Called(invocationCtx)
	return args.Error(0)
}

func (m *MockAgent) Stop(invocationCtx *core.InvocationContext) error {
	args := m.Called(invocationCtx)
	return args.Error(0)
}

func (m *MockAgent) SetSubAgents(children ...core.Agent) error {
	args := m.Called(children)
	return args.Error(0)
}

// Hierarchy accessors are plain so composite internals can traverse mocks
// without expectations.
func (m *MockAgent) SubAgents() []core.Agent { return nil }

func (m *MockAgent) Parent() core.Agent { return nil }

func (m *MockAgent) FindAgent(name string) core.Agent {
	if name == m.name {
		return m
	}
	return nil
}

func textContent(text string) *core.Content {
	return &core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}}
}

// newCapturingContext builds a minimal invocation context and returns the
// receive side of its emit channel for event assertions. Resume is nil so
// emits never block on acknowledgment.
func newCapturingContext(optFns ...func(o *core.InvocationContextOptions)) (*core.InvocationContext, chan core.Event) {
	sess := core.NewSession("test-session")
	emit := make(chan core.Event, 16)
	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "test input"}}}
	ictx := core.NewInvocationContext(context.Background(), "test-invocation", "test-session",
		core.AgentInfo{Name: "TestAgent", Type: "test"}, userContent,
		emit, nil, sess, nil, nil, nil, optFns...)
	return ictx, emit
}

// newTestInvocationContext is newCapturingContext for tests that never
// inspect emitted events.
func newTestInvocationContext(optFns ...func(o *core.InvocationContextOptions)) *core.InvocationContext {
	ictx, _ := newCapturingContext(optFns...)
	return ictx
}

func requireOneEvent(t *testing.T, events chan core.Event) core.Event {
	t.Helper()
	var ev core.Event
	select {
	case ev = <-events:
	default:
		t.Fatal("expected one event, got none")
	}
	select {
	case extra := <-events:
		t.Fatalf("expected exactly one event, got extra from %s", extra.Author)
	default:
	}
	return ev
}

func TestBaseAgent_StartStop(t *testing.T) {
	agent := NewSequentialAgent("Lifecycle Agent")
	ictx := newTestInvocationContext()

	require.NoError(t, agent.Start(ictx))
	assert.Error(t, agent.Start(ictx), "second start must fail while running")

	require.NoError(t, agent.Stop(ictx))
	assert.Error(t, agent.Stop(ictx), "second stop must fail when not running")
}

func TestBaseAgent_StopLeavesInvocationContextLive(t *testing.T) {
	agent := NewSequentialAgent("Lifecycle Agent")
	ictx := newTestInvocationContext()

	require.NoError(t, agent.Start(ictx))
	require.NoError(t, agent.Stop(ictx))

	// Stop only flips the running state; the invocation the agent ran on is
	// untouched and the agent can be started again.
	assert.NoError(t, ictx.Context.Err())
	assert.False(t, ictx.Halted())
	assert.NoError(t, agent.Start(ictx))
	assert.NoError(t, agent.Stop(ictx))
}

func TestBaseAgent_Hierarchy(t *testing.T) {
	grandchild := NewSequentialAgent("Grandchild")
	child := NewSequentialAgent("Child", grandchild)
	root := NewSequentialAgent("Root", child)

	assert.Nil(t, root.Parent())
	assert.Same(t, core.Agent(root), child.Parent())
	assert.Same(t, core.Agent(child), grandchild.Parent())

	assert.Same(t, core.Agent(root), root.FindAgent("Root"))
	assert.Same(t, core.Agent(grandchild), root.FindAgent("Grandchild"))
	assert.Nil(t, root.FindAgent("missing"))

	assert.Same(t, core.Agent(root), core.RootAgent(grandchild))
}

func TestBaseAgent_SetSubAgentsRelinksParents(t *testing.T) {
	child := NewSequentialAgent("Child")
	first := NewSequentialAgent("First", child)

	assert.Same(t, core.Agent(first), child.Parent())

	second := NewSequentialAgent("Second")
	require.NoError(t, second.SetSubAgents(child))
	assert.Same(t, core.Agent(second), child.Parent())

	require.NoError(t, second.SetSubAgents())
	assert.Nil(t, child.Parent())
}

func TestBaseAgent_BeforeAgentCallbackShortCircuits(t *testing.T) {
	child := NewMockAgent("Child")
	agent := NewSequentialAgent("Guarded Agent", child)
	agent.SetAgentCallbacks(core.AgentCallbacks{
		BeforeAgent: []core.BeforeAgentCallback{func(cctx *core.CallbackContext) (*core.Content, error) {
			return textContent("canned reply"), nil
		}},
	})

	ictx, events := newCapturingContext()

	require.NoError(t, agent.Run(ictx))

	child.AssertNotCalled(t, "Run", mock.Anything)

	ev := requireOneEvent(t, events)
	assert.Equal(t, "Guarded Agent", ev.Author)
	assert.Equal(t, "canned reply", ev.StringifyContent())
}

func TestBaseAgent_AfterAgentCallbackAppendsEvent(t *testing.T) {
	child := NewMockAgent("Child")
	agent := NewSequentialAgent("Closing Agent", child)
	agent.SetAgentCallbacks(core.AgentCallbacks{
		AfterAgent: []core.AfterAgentCallback{func(cctx *core.CallbackContext) (*core.Content, error) {
			cctx.SetState("closed", true)
			return textContent("wrapping up"), nil
		}},
	})

	ictx, events := newCapturingContext()
	child.On("Run", ictx).Return(nil)

	require.NoError(t, agent.Run(ictx))

	child.AssertExpectations(t)

	ev := requireOneEvent(t, events)
	assert.Equal(t, "wrapping up", ev.StringifyContent())
	assert.Equal(t, true, ev.Actions.StateDelta["closed"])
}

type beforeAgentPlugin struct {
	core.BasePlugin
	content *core.Content
}

func (p beforeAgentPlugin) Name() string { return "before-agent" }

func (p beforeAgentPlugin) BeforeAgent(*core.CallbackContext) (*core.Content, error) {
	return p.content, nil
}

func TestBaseAgent_PluginBeforeAgentWinsOverCallback(t *testing.T) {
	manager, err := core.NewPluginManager(beforeAgentPlugin{content: textContent("plugin reply")})
	require.NoError(t, err)

	callbackRan := false

	child := NewMockAgent("Child")
	agent := NewSequentialAgent("Guarded Agent", child)
	agent.SetAgentCallbacks(core.AgentCallbacks{
		BeforeAgent: []core.BeforeAgentCallback{func(cctx *core.CallbackContext) (*core.Content, error) {
			callbackRan = true
			return textContent("callback reply"), nil
		}},
	})

	ictx, events := newCapturingContext(func(o *core.InvocationContextOptions) {
		o.Plugins = manager
	})

	require.NoError(t, agent.Run(ictx))

	assert.False(t, callbackRan, "callback must not run once a plugin overrides")
	child.AssertNotCalled(t, "Run", mock.Anything)

	ev := requireOneEvent(t, events)
	assert.Equal(t, "plugin reply", ev.StringifyContent())
}

func TestBaseAgent_DirectExecutionFails(t *testing.T) {
	base := NewBaseAgent("Bare")
	err := base.asAgent().Run(newTestInvocationContext())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot execute BaseAgent directly")
}
