package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// MockModel is a lightweight in-memory core.Model useful for tests and
// examples. Three behaviors, checked in order per Generate call:
//
//  1. Scripted turns enqueued via EnqueueTurn are drained first, one turn per
//     call. This is how tests script function calls followed by a final
//     answer.
//  2. Canned completions registered with AddResponse match the latest input
//     text exactly.
//  3. Anything else echoes "Mock response to: <input>".
//
// With Request.Stream set, text responses are additionally emitted as
// per-rune partial chunks before the final response.
type MockModel struct {
	info      core.ModelInfo
	mu        sync.Mutex
	responses map[string]string
	turns     [][]core.Response
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	info := core.ModelInfo{Name: name, Provider: provider, SupportsTools: true}
	return &MockModel{info: info, responses: map[string]string{}}
}

// AddResponse maps an exact input prompt to a fixed completion.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// EnqueueTurn appends a scripted turn. The next Generate call emits exactly
// these responses in order, letting tests drive function calling rounds.
func (m *MockModel) EnqueueTurn(responses ...core.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, responses)
}

// Generate implements core.Model; emits optional streaming rune chunks then
// the final response.
func (m *MockModel) Generate(ctx context.Context, req core.Request) (<-chan core.Response, <-chan error) {
	out := make(chan core.Response, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		if turn, ok := m.nextTurn(); ok {
			for _, resp := range turn {
				if !send(ctx, out, errs, resp) {
					return
				}
			}
			return
		}

		if len(req.Contents) == 0 {
			errs <- fmt.Errorf("no contents provided")
			return
		}

		reply := m.cannedResponse(lastInputText(req.Contents))
		if req.Stream {
			for _, r := range reply {
				if !send(ctx, out, errs, textResponse(string(r), true)) {
					return
				}
			}
		}
		send(ctx, out, errs, textResponse(reply, false))
	}()

	return out, errs
}

// Info implements core.Model.
func (m *MockModel) Info() core.ModelInfo { return m.info }

func (m *MockModel) nextTurn() ([]core.Response, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.turns) == 0 {
		return nil, false
	}
	turn := m.turns[0]
	m.turns = m.turns[1:]
	return turn, true
}

func (m *MockModel) cannedResponse(inputText string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reply, ok := m.responses[inputText]; ok && reply != "" {
		return reply
	}
	return fmt.Sprintf("Mock response to: %s", inputText)
}

// send delivers one response unless the context is cancelled first, in which
// case the context error is reported and false returned.
func send(ctx context.Context, out chan<- core.Response, errs chan<- error, resp core.Response) bool {
	select {
	case <-ctx.Done():
		errs <- ctx.Err()
		return false
	case out <- resp:
		return true
	}
}

func textResponse(text string, partial bool) core.Response {
	resp := core.Response{
		Partial: partial,
		Content: core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
	}
	if !partial {
		resp.FinishReason = "stop"
	}
	return resp
}

// lastInputText concatenates the text parts of the newest content entry.
func lastInputText(contents []core.Content) string {
	var b strings.Builder
	for _, p := range contents[len(contents)-1].Parts {
		if tp, ok := p.(core.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}
