package testutil

import (
	"github.com/hupe1980/agentflow/core"
)

// EventBuilder assembles core.Event values for tests with a chainable API.
//
//	ev := NewEventBuilder().Author("agent").Invocation("inv-1").AssistantText("hello").Build()
//
// Parts appear in the event content in the order the builder methods were
// called. Unset fields keep the defaults of core.NewEvent.
type EventBuilder struct {
	ev    core.Event
	role  string
	parts []core.Part
}

// NewEventBuilder returns a builder seeded with author "agent" and
// invocation "inv".
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{ev: core.NewEvent("inv", "agent")}
}

func ptr[T any](v T) *T { return &v }

// Author sets the event author.
func (b *EventBuilder) Author(a string) *EventBuilder { b.ev.Author = a; return b }

// Invocation sets the owning invocation ID.
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.ev.InvocationID = id; return b }

// ID pins the event ID instead of the generated one, for deterministic asserts.
func (b *EventBuilder) ID(id string) *EventBuilder { b.ev.ID = id; return b }

// Branch sets the branch path used by parallel fan-out.
func (b *EventBuilder) Branch(br string) *EventBuilder { b.ev.Branch = ptr(br); return b }

// Partial marks the event as a streaming chunk.
func (b *EventBuilder) Partial(p bool) *EventBuilder { b.ev.Partial = ptr(p); return b }

// TurnComplete sets the turn completion flag.
func (b *EventBuilder) TurnComplete(c bool) *EventBuilder { b.ev.TurnComplete = ptr(c); return b }

func (b *EventBuilder) text(role, t string) *EventBuilder {
	b.role = role
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// UserText, AssistantText and ToolText append a text part and pick the
// matching content role.
func (b *EventBuilder) UserText(t string) *EventBuilder      { return b.text("user", t) }
func (b *EventBuilder) AssistantText(t string) *EventBuilder { return b.text("assistant", t) }
func (b *EventBuilder) ToolText(t string) *EventBuilder      { return b.text("tool", t) }

// AddPart appends an arbitrary content part.
func (b *EventBuilder) AddPart(p core.Part) *EventBuilder { b.parts = append(b.parts, p); return b }

// FunctionCall appends a function call part with raw JSON arguments.
func (b *EventBuilder) FunctionCall(id, name, args string) *EventBuilder {
	return b.AddPart(core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}})
}

// FunctionResponse appends a function response part carrying a tool result.
func (b *EventBuilder) FunctionResponse(id, name string, result any, err error) *EventBuilder {
	fr := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	return b.AddPart(core.FunctionResponsePart{FunctionResponse: fr})
}

// SkipSummarization flags the event so tool results pass through without a
// follow-up model call.
func (b *EventBuilder) SkipSummarization() *EventBuilder {
	b.ev.Actions.SkipSummarization = ptr(true)
	return b
}

// Escalate flags the event to stop the enclosing loop.
func (b *EventBuilder) Escalate() *EventBuilder { b.ev.Actions.Escalate = ptr(true); return b }

// Transfer routes control to the named agent.
func (b *EventBuilder) Transfer(to string) *EventBuilder {
	b.ev.Actions.TransferToAgent = ptr(to)
	return b
}

// StateDelta adds a pending state write to the event actions.
func (b *EventBuilder) StateDelta(key string, val any) *EventBuilder {
	if b.ev.Actions.StateDelta == nil {
		b.ev.Actions.StateDelta = map[string]any{}
	}
	b.ev.Actions.StateDelta[key] = val
	return b
}

// LongRunning registers IDs of calls that keep running after the event.
func (b *EventBuilder) LongRunning(ids ...string) *EventBuilder {
	b.ev.LongRunningToolIDs = append(b.ev.LongRunningToolIDs, ids...)
	return b
}

// Build finalizes and returns the event.
func (b *EventBuilder) Build() core.Event {
	if len(b.parts) > 0 {
		role := b.role
		if role == "" {
			role = "assistant"
		}
		b.ev.Content = &core.Content{Role: role, Parts: b.parts}
	}
	return b.ev
}
