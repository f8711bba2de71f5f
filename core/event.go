package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is the unit of communication between agents, the engine and external
// clients: one committed step of a conversation. Correlation lives in ID,
// InvocationID, Author and Branch; Content carries the role-tagged parts and
// may be nil for control or error-only events; Actions carries orchestration
// directives applied when the engine commits the event. Treat events as
// immutable once emitted.
//
// Timestamp is UTC. Use UnixSeconds when a numeric form is needed for
// metrics or legacy clients.
type Event struct {
	ID                 string         `json:"id"`
	InvocationID       string         `json:"invocation_id"`
	Author             string         `json:"author"`
	Actions            EventActions   `json:"actions"`
	LongRunningToolIDs []string       `json:"long_running_tool_ids,omitempty"`
	Branch             *string        `json:"branch,omitempty"`
	Timestamp          time.Time      `json:"timestamp"`
	Content            *Content       `json:"content,omitempty"`
	Partial            *bool          `json:"partial,omitempty"`
	TurnComplete       *bool          `json:"turn_complete,omitempty"`
	ErrorCode          *string        `json:"error_code,omitempty"`
	ErrorMessage       *string        `json:"error_message,omitempty"`
	Interrupted        *bool          `json:"interrupted,omitempty"`
	Usage              *TokenUsage    `json:"usage,omitempty"`
	CustomMetadata     map[string]any `json:"custom_metadata,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
// The semantic constructors below cover the common shapes.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
		Actions:      EventActions{},
	}
}

func textContent(role, text string) *Content {
	return &Content{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// NewMessageEvent creates an assistant text message authored by an agent or
// system identifier.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	e.Content = textContent("assistant", message)
	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	e.Content = textContent("user", message)
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content,
// for messages that are more than plain text.
func NewUserContentEvent(invocationID string, content *Content) Event {
	e := NewEvent(invocationID, "user")
	e.Content = content
	return e
}

// NewFunctionCallEvent represents an agent requesting execution of a named
// function or tool. The call gets a fresh ID for response correlation.
func NewFunctionCallEvent(invocationID, author, functionName, args string) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{
		Role: "assistant",
		Parts: []Part{FunctionCallPart{FunctionCall: FunctionCall{
			ID:        NewID(),
			Name:      functionName,
			Arguments: args,
		}}},
	}
	return e
}

// NewFunctionResponseEvent records the completion result (or error) of a
// tool/function invocation. If err is non-nil its message is copied into the
// response Error field.
func NewFunctionResponseEvent(invocationID, author, id, functionName string, result any, err error) Event {
	e := NewEvent(invocationID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewErrorEvent creates a content-free event carrying an error code and
// message. Error events with no pending function work count as final
// responses so they terminate the producing agent's turn.
func NewErrorEvent(invocationID, author, code, message string) Event {
	e := NewEvent(invocationID, author)
	e.ErrorCode = &code
	e.ErrorMessage = &message
	return e
}

// NewID generates a unique identifier for events, calls and invocations.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event is a streaming fragment that later
// events will complete. Partial events reach consumers but are never
// persisted to session history.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// collectParts returns the parts of type T in content order. A nil content
// yields nil.
func collectParts[T Part](c *Content) []T {
	if c == nil {
		return nil
	}
	var out []T
	for _, p := range c.Parts {
		if v, ok := p.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// GetFunctionCalls returns the FunctionCall parts of the event content in
// their original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range collectParts[FunctionCallPart](e.Content) {
		calls = append(calls, p.FunctionCall)
	}
	return calls
}

// GetFunctionResponses returns the FunctionResponse parts of the event
// content in their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range collectParts[FunctionResponsePart](e.Content) {
		responses = append(responses, p.FunctionResponse)
	}
	return responses
}

// StringifyContent concatenates all text parts of the event content.
func (e Event) StringifyContent() string {
	var sb strings.Builder
	for _, tp := range collectParts[TextPart](e.Content) {
		sb.WriteString(tp.Text)
	}
	return sb.String()
}

// IsFinalResponse reports whether this event closes its agent's turn. An
// event is final when summarization is explicitly skipped, when it delegates
// to long-running tools, or when it carries no pending function work and is
// not a streaming fragment.
func (e Event) IsFinalResponse() bool {
	if e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization {
		return true
	}
	if len(e.LongRunningToolIDs) > 0 {
		return true
	}
	return !e.IsPartial() &&
		len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0
}

// UnixSeconds returns the timestamp as fractional seconds since the Unix
// epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
