// Package openai adapts the OpenAI Chat Completions API to core.Model,
// covering streaming, function calling and structured output. Normalized
// requests are translated into SDK message unions and completions back into
// core.Response values.
package openai

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hupe1980/agentflow/core"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// Options configure the OpenAI adapter. Only the commonly tuned Chat
// Completion parameters are exposed; further knobs can become functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic core.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates an adapter on the default client, which reads
// OPENAI_API_KEY from the environment.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates an adapter on a caller-configured client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements core.Model for both streaming and non-streaming
// requests. The returned channels close when generation ends.
func (m *Model) Generate(ctx context.Context, req core.Request) (<-chan core.Response, <-chan error) {
	out := make(chan core.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		toolResponses, order := collectToolResponses(req)
		params := m.buildParams(req, buildMessages(req, toolResponses, order))
		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
		} else {
			m.handleNonStreaming(ctx, params, out, errCh)
		}
	}()
	return out, errCh
}

// collectToolResponses indexes the request's function responses by call id,
// keeping first-seen order so unmatched responses can still be appended.
func collectToolResponses(req core.Request) (map[string]string, []string) {
	responses := make(map[string]string)
	var order []string
	for _, c := range req.Contents {
		if c.Role != "tool" {
			continue
		}
		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}
			id := fr.FunctionResponse.ID
			if _, seen := responses[id]; seen {
				continue
			}
			responses[id] = responseText(fr.FunctionResponse)
			order = append(order, id)
		}
	}
	return responses, order
}

// responseText renders a function response as the tool-message payload.
func responseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return fmt.Sprintf("error: %s", fr.Error)
	}
	if s, ok := fr.Response.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", fr.Response)
}

func concatText(c core.Content) string {
	var sb strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// buildMessages converts normalized contents into OpenAI chat messages.
// Instructions lead as system messages, then each turn in request order.
func buildMessages(req core.Request, toolResponses map[string]string, order []string) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, instruction := range req.Instructions {
		if instruction != "" {
			messages = append(messages, openai.SystemMessage(instruction))
		}
	}
	for _, c := range req.Contents {
		if c.Role == "tool" {
			continue
		}
		text := concatText(c)
		switch c.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(text))
		case "user":
			messages = append(messages, openai.UserMessage(text))
		case "assistant":
			messages = append(messages, assistantMessages(c, text, toolResponses)...)
		default:
			if text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}
	// Responses whose call never appeared in an assistant turn still reach
	// the model, appended in first-seen order.
	for _, id := range order {
		if resp, ok := toolResponses[id]; ok {
			messages = append(messages, openai.ToolMessage(resp, id))
		}
	}
	return messages
}

// assistantMessages renders one assistant turn. A turn with tool calls
// becomes the tool-call message followed directly by its matching tool
// responses, which are consumed from the map so the trailer loop skips them.
func assistantMessages(c core.Content, text string, toolResponses map[string]string) []openai.ChatCompletionMessageParamUnion {
	toolCalls, callIDs := extractToolCalls(c)
	if len(toolCalls) == 0 {
		return []openai.ChatCompletionMessageParamUnion{openai.AssistantMessage(text)}
	}
	msgs := []openai.ChatCompletionMessageParamUnion{{
		OfAssistant: &openai.ChatCompletionAssistantMessageParam{
			Role:      "assistant",
			ToolCalls: toolCalls,
		},
	}}
	for _, id := range callIDs {
		if id == "" {
			continue
		}
		if resp, ok := toolResponses[id]; ok {
			msgs = append(msgs, openai.ToolMessage(resp, id))
			delete(toolResponses, id)
		}
	}
	return msgs
}

// extractToolCalls pulls function-call parts out of an assistant turn,
// returning the SDK tool calls plus the call ids in part order.
func extractToolCalls(c core.Content) ([]openai.ChatCompletionMessageToolCallParam, []string) {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	var callIDs []string
	for _, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   fc.FunctionCall.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      fc.FunctionCall.Name,
					Arguments: fc.FunctionCall.Arguments,
				},
			})
			callIDs = append(callIDs, fc.FunctionCall.ID)
		}
	}
	return toolCalls, callIDs
}

// buildParams assembles the completion parameters, wiring tool definitions
// and the structured-output schema when the request carries them.
func (m *Model) buildParams(req core.Request, messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if req.Stream {
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		}
	}
	if req.ResponseSchema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "structured_output",
					Schema: req.ResponseSchema,
					Strict: openai.Bool(true),
				},
			},
		}
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tdef := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Function.Name,
					Description: openai.String(tdef.Function.Description),
					Parameters:  tdef.Function.Parameters,
				},
			})
		}
		params.Tools = tools
	}
	return params
}

// toolCallDraft merges the fragments one streamed tool call arrives in,
// keyed by the chunk's tool-call index.
type toolCallDraft struct {
	id   string
	name string
	args strings.Builder
}

func (d *toolCallDraft) call() core.FunctionCall {
	return core.FunctionCall{ID: d.id, Name: d.name, Arguments: d.args.String()}
}

func tokenUsage(prompt, completion, total int64) *core.TokenUsage {
	if total == 0 {
		return nil
	}
	return &core.TokenUsage{
		PromptTokens:     int(prompt),
		CompletionTokens: int(completion),
		TotalTokens:      int(total),
	}
}

// handleStreaming drains the SDK stream, forwarding text and tool-call
// deltas as partials and a consolidated final response per finish reason.
func (m *Model) handleStreaming(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- core.Response, errCh chan<- error) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	var text strings.Builder
	var usage *core.TokenUsage
	drafts := map[int64]*toolCallDraft{}
	for stream.Next() {
		ck := stream.Current()
		if u := tokenUsage(ck.Usage.PromptTokens, ck.Usage.CompletionTokens, ck.Usage.TotalTokens); u != nil {
			usage = u
		}
		for _, choice := range ck.Choices {
			emitTextDelta(choice, &text, out)
			emitToolCallDeltas(choice, drafts, out)
			if choice.FinishReason != "" {
				emitFinalChunk(choice, &text, drafts, usage, out)
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

func emitTextDelta(choice openai.ChatCompletionChunkChoice, text *strings.Builder, out chan<- core.Response) {
	if choice.Delta.Content == "" {
		return
	}
	text.WriteString(choice.Delta.Content)
	out <- core.Response{
		Partial: true,
		Content: core.Content{
			Role:  "assistant",
			Parts: []core.Part{core.TextPart{Text: choice.Delta.Content}},
		},
	}
}

func emitToolCallDeltas(choice openai.ChatCompletionChunkChoice, drafts map[int64]*toolCallDraft, out chan<- core.Response) {
	for _, tc := range choice.Delta.ToolCalls {
		d := drafts[tc.Index]
		if d == nil {
			d = &toolCallDraft{}
			drafts[tc.Index] = d
		}
		if tc.ID != "" {
			d.id = tc.ID
		}
		if tc.Function.Name != "" {
			d.name = tc.Function.Name
		}
		d.args.WriteString(tc.Function.Arguments)
		out <- core.Response{
			Partial: true,
			Content: core.Content{
				Role:  "assistant",
				Parts: []core.Part{core.FunctionCallPart{FunctionCall: d.call()}},
			},
		}
	}
}

// emitFinalChunk assembles the non-partial closing response. Tool calls are
// ordered by stream index, which is the order the model issued them in.
func emitFinalChunk(choice openai.ChatCompletionChunkChoice, text *strings.Builder, drafts map[int64]*toolCallDraft, usage *core.TokenUsage, out chan<- core.Response) {
	parts := make([]core.Part, 0, len(drafts)+1)
	if text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: text.String()})
	}
	for _, idx := range slices.Sorted(maps.Keys(drafts)) {
		parts = append(parts, core.FunctionCallPart{FunctionCall: drafts[idx].call()})
	}
	out <- core.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: choice.FinishReason,
		Usage:        usage,
	}
}

// handleNonStreaming performs one blocking completion call.
func (m *Model) handleNonStreaming(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- core.Response, errCh chan<- error) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}
	msg := resp.Choices[0].Message
	parts := make([]core.Part, 0, len(msg.ToolCalls)+1)
	if msg.Content != "" {
		parts = append(parts, core.TextPart{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}
	out <- core.Response{
		ID:           resp.ID,
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: resp.Choices[0].FinishReason,
		Usage:        tokenUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens),
	}
}

// Info reports the configured model name and provider capabilities.
func (m *Model) Info() core.ModelInfo {
	return core.ModelInfo{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
