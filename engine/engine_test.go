package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/artifact"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/testutil"
)

// scriptedAgent is a minimal core.Agent whose behavior is supplied per test.
type scriptedAgent struct {
	name string
	run  func(ictx *core.InvocationContext) error
}

func (a *scriptedAgent) Name() string        { return a.name }
func (a *scriptedAgent) Description() string { return "scripted test agent" }

func (a *scriptedAgent) Start(*core.InvocationContext) error { return nil }
func (a *scriptedAgent) Stop(*core.InvocationContext) error  { return nil }

func (a *scriptedAgent) Run(ictx *core.InvocationContext) error {
	if a.run == nil {
		return nil
	}
	return a.run(ictx)
}

func (a *scriptedAgent) SetSubAgents(...core.Agent) error { return nil }
func (a *scriptedAgent) SubAgents() []core.Agent          { return nil }
func (a *scriptedAgent) Parent() core.Agent               { return nil }

func (a *scriptedAgent) FindAgent(name string) core.Agent {
	if name == a.name {
		return a
	}
	return nil
}

func userText(text string) core.Content {
	return core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: text}}}
}

// say emits a committed message event and waits for the engine's
// acknowledgment, mirroring how real agents deliver output.
func say(ictx *core.InvocationContext, text string) error {
	if err := ictx.EmitEvent(core.NewMessageEvent(ictx.InvocationID, ictx.Agent.Name, text)); err != nil {
		return err
	}
	return ictx.WaitForResume()
}

func TestEngine_InvokeStreamsEvents(t *testing.T) {
	eng := New()
	eng.Register(&scriptedAgent{name: "Echo", run: func(ictx *core.InvocationContext) error {
		if err := say(ictx, "first"); err != nil {
			return err
		}
		return say(ictx, "second")
	}})

	invocationID, events, errs, err := eng.Invoke(context.Background(), "s1", "Echo", userText("hi"))
	require.NoError(t, err)
	require.NotEmpty(t, invocationID)

	var got []core.Event
	for ev := range events {
		got = append(got, ev)
	}
	require.NoError(t, <-errs)

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].StringifyContent())
	assert.Equal(t, "second", got[1].StringifyContent())
	assert.Equal(t, "Echo", got[0].Author)

	sess, err := eng.GetSession("s1")
	require.NoError(t, err)
	history := sess.GetEvents()
	require.Len(t, history, 3, "user event plus two agent events")
	assert.Equal(t, "user", history[0].Author)
	assert.Equal(t, invocationID, history[0].InvocationID)
	assert.Equal(t, "hi", history[0].StringifyContent())
}

func TestEngine_PartialEventsNotPersisted(t *testing.T) {
	eng := New()
	eng.Register(&scriptedAgent{name: "Streamer", run: func(ictx *core.InvocationContext) error {
		chunk := testutil.NewEventBuilder().Invocation(ictx.InvocationID).
			Author("Streamer").AssistantText("hel").Partial(true).Build()
		// Partial emissions are fire-and-forget; only committed events wait.
		if err := ictx.EmitEvent(chunk); err != nil {
			return err
		}
		return say(ictx, "hello world")
	}})

	_, events, errs, err := eng.Invoke(context.Background(), "s1", "Streamer", userText("hi"))
	require.NoError(t, err)

	var got []core.Event
	for ev := range events {
		got = append(got, ev)
	}
	require.NoError(t, <-errs)

	require.Len(t, got, 2, "stream carries the partial and the final")
	assert.True(t, got[0].IsPartial())
	assert.Equal(t, "hel", got[0].StringifyContent())
	assert.False(t, got[1].IsPartial())

	sess, err := eng.GetSession("s1")
	require.NoError(t, err)
	history := sess.GetEvents()
	require.Len(t, history, 2, "user event plus the committed final only")
	assert.Equal(t, "user", history[0].Author)
	assert.Equal(t, "hello world", history[1].StringifyContent())
}

func TestEngine_InvokeUnknownAgent(t *testing.T) {
	eng := New()

	_, _, _, err := eng.Invoke(context.Background(), "s1", "Ghost", userText("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent Ghost not found")
}

func TestEngine_InvokeSync(t *testing.T) {
	eng := New()
	eng.Register(&scriptedAgent{name: "Echo", run: func(ictx *core.InvocationContext) error {
		return say(ictx, "done")
	}})

	invocationID, events, err := eng.InvokeSync(context.Background(), "s1", "Echo", userText("hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, invocationID)
	require.Len(t, events, 1)
	assert.Equal(t, "done", events[0].StringifyContent())
}

func TestEngine_InvokeSyncAgentError(t *testing.T) {
	eng := New()
	eng.Register(&scriptedAgent{name: "Broken", run: func(*core.InvocationContext) error {
		return fmt.Errorf("model unavailable")
	}})

	_, _, err := eng.InvokeSync(context.Background(), "s1", "Broken", userText("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent execution failed")
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestEngine_ConcurrencyLimit(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)

	eng := New(func(o *Options) {
		o.Config.MaxConcurrentInvocations = 1
	})
	eng.Register(&scriptedAgent{name: "Slow", run: func(ictx *core.InvocationContext) error {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-gate:
			return nil
		case <-ictx.Context.Done():
			return ictx.Context.Err()
		}
	}})

	_, events, errs, err := eng.Invoke(context.Background(), "s1", "Slow", userText("go"))
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first invocation did not start")
	}

	_, _, _, err = eng.Invoke(context.Background(), "s2", "Slow", userText("go"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max concurrent invocations reached (1)")

	close(gate)
	for range events {
	}
	require.NoError(t, <-errs)

	// The slot is released once the first invocation retires.
	_, events2, errs2, err := eng.Invoke(context.Background(), "s3", "Slow", userText("go"))
	require.NoError(t, err)
	for range events2 {
	}
	require.NoError(t, <-errs2)
}

func TestEngine_ObserverRejectsEvent(t *testing.T) {
	eng := New(func(o *Options) {
		o.Observers = []EventObserver{
			NewStateValidationObserver(func(delta map[string]any) error {
				if _, ok := delta["forbidden"]; ok {
					return fmt.Errorf("key forbidden is reserved")
				}
				return nil
			}),
		}
	})
	eng.Register(&scriptedAgent{name: "Writer", run: func(ictx *core.InvocationContext) error {
		ev := testutil.NewEventBuilder().Invocation(ictx.InvocationID).
			Author("Writer").AssistantText("attempting write").
			StateDelta("forbidden", true).Build()
		if err := ictx.EmitEvent(ev); err != nil {
			return err
		}
		return ictx.WaitForResume()
	}})

	_, events, err := eng.InvokeSync(context.Background(), "s1", "Writer", userText("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event observer rejected event")
	assert.Contains(t, err.Error(), "key forbidden is reserved")
	assert.Empty(t, events)

	sess, err := eng.GetSession("s1")
	require.NoError(t, err)
	_, exists := sess.GetState("forbidden")
	assert.False(t, exists, "rejected delta must not reach the session")
}

func TestEngine_StateDeltaVisibleAfterResume(t *testing.T) {
	eng := New()

	var observed any
	eng.Register(&scriptedAgent{name: "Counter", run: func(ictx *core.InvocationContext) error {
		ev := testutil.NewEventBuilder().Invocation(ictx.InvocationID).
			Author("Counter").AssistantText("count updated").
			StateDelta("count", 1).Build()
		if err := ictx.EmitEvent(ev); err != nil {
			return err
		}
		if err := ictx.WaitForResume(); err != nil {
			return err
		}
		if err := ictx.RefreshSession(); err != nil {
			return err
		}
		observed, _ = ictx.GetState("count")
		return nil
	}})

	_, _, err := eng.InvokeSync(context.Background(), "s1", "Counter", userText("hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, observed, "committed delta must be visible to the producer after resume")

	sess, err := eng.GetSession("s1")
	require.NoError(t, err)
	v, ok := sess.GetState("count")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestEngine_StopInvocation(t *testing.T) {
	eng := New()
	started := make(chan struct{}, 1)
	eng.Register(&scriptedAgent{name: "Hang", run: func(ictx *core.InvocationContext) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ictx.Context.Done()
		return ictx.Context.Err()
	}})

	invocationID, events, errs, err := eng.Invoke(context.Background(), "s1", "Hang", userText("hi"))
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("invocation did not start")
	}

	require.NoError(t, eng.StopInvocation(invocationID))

	for range events {
	}
	if err := <-errs; err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	assert.Error(t, eng.StopInvocation(invocationID), "retired invocation is no longer tracked")
}

func TestEngine_StopInvocationUnknownID(t *testing.T) {
	eng := New()

	err := eng.StopInvocation("no-such-invocation")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEngine_SaveInputBlobsAsArtifacts(t *testing.T) {
	store := artifact.NewInMemoryStore()
	eng := New(func(o *Options) {
		o.ArtifactStore = store
	})
	eng.Register(&scriptedAgent{name: "Filer"})

	payload := base64.StdEncoding.EncodeToString([]byte("report contents"))
	mime := "text/plain"
	content := core.Content{Role: "user", Parts: []core.Part{
		core.TextPart{Text: "analyze this"},
		core.FilePart{File: core.FilePartFile{Bytes: payload, MimeType: &mime}},
	}}

	invocationID, _, err := eng.InvokeSync(context.Background(), "s1", "Filer", content,
		func(o *InvokeOptions) {
			o.RunConfig.SaveInputBlobsAsArtifacts = true
		})
	require.NoError(t, err)

	artifactID := fmt.Sprintf("artifact_%s_1", invocationID)
	data, err := store.Get("s1", artifactID)
	require.NoError(t, err)
	assert.Equal(t, []byte("report contents"), data)

	sess, err := eng.GetSession("s1")
	require.NoError(t, err)
	history := sess.GetEvents()
	require.NotEmpty(t, history)
	parts := history[0].Content.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "analyze this", parts[0].(core.TextPart).Text)
	ref, ok := parts[1].(core.TextPart)
	require.True(t, ok, "blob part must be replaced with a text reference")
	assert.Contains(t, ref.Text, artifactID)
}

func TestEngine_RegisterReplacesAgent(t *testing.T) {
	eng := New()
	first := &scriptedAgent{name: "Dup"}
	second := &scriptedAgent{name: "Dup"}

	eng.Register(first)
	eng.Register(second)

	got, ok := eng.GetAgent("Dup")
	require.True(t, ok)
	assert.Same(t, second, got)
}
