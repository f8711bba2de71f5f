// Package anthropic adapts the Anthropic Messages API to core.Model. It
// streams text deltas as partial responses, maps tool_use blocks to function
// calls, and folds instructions plus system turns into system blocks.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/agentflow/core"
)

// Options configure the Anthropic adapter. APIKey overrides the environment
// credential; the rest map directly onto Messages API parameters.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic core.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel creates an adapter with its own client. Without an APIKey option
// the client reads ANTHROPIC_API_KEY from the environment.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates an adapter on a caller-configured client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
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
		params := m.buildParams(req)
		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}
		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}
		out <- finalResponse(resp)
	}()
	return out, errCh
}

func (m *Model) buildParams(req core.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(req.Contents),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if system := systemBlocks(req); len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}
	return params
}

// handleStreaming drains the SSE stream, emitting each text delta as a
// partial response while accumulating the full message for the final one.
func (m *Model) handleStreaming(ctx context.Context, params anthropic.MessageNewParams, out chan<- core.Response, errCh chan<- error) {
	stream := m.client.Messages.NewStreaming(ctx, params)
	var message anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			errCh <- fmt.Errorf("anthropic stream accumulate: %w", err)
			return
		}
		blockDelta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		textDelta, ok := blockDelta.Delta.AsAny().(anthropic.TextDelta)
		if !ok || textDelta.Text == "" {
			continue
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		case out <- partialText(textDelta.Text):
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		return
	}
	out <- finalResponse(&message)
}

func partialText(text string) core.Response {
	return core.Response{
		Partial: true,
		Content: core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
	}
}

// finalResponse converts a complete (or accumulated) message into the
// normalized non-partial response.
func finalResponse(resp *anthropic.Message) core.Response {
	var parts []core.Part
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if text := block.AsText().Text; text != "" {
				parts = append(parts, core.TextPart{Text: text})
			}
		case "tool_use":
			tu := block.AsToolUse()
			args := ""
			if tu.Input != nil {
				if b, err := json.Marshal(tu.Input); err == nil {
					args = string(b)
				}
			}
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: args,
			}})
		}
	}

	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}

	return core.Response{
		ID:           resp.ID,
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: finishReason,
		Usage: &core.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

// buildMessages converts normalized contents into Messages API turns.
func buildMessages(contents []core.Content) []anthropic.MessageParam {
	toolResults := toolResultsByID(contents)
	var messages []anthropic.MessageParam
	for _, c := range contents {
		switch c.Role {
		case "system", "tool":
			// System text goes into the system blocks; tool results are
			// attached right after the assistant turn that called for them.
		case "assistant":
			blocks, results := assistantBlocks(c.Parts, toolResults)
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}
			if len(results) > 0 {
				messages = append(messages, anthropic.NewUserMessage(results...))
			}
		default: // user and unknown roles
			if blocks := textBlocks(c.Parts); len(blocks) > 0 {
				messages = append(messages, anthropic.NewUserMessage(blocks...))
			}
		}
	}
	return messages
}

// toolResultsByID indexes function responses by call id. The Messages API
// wants each result in a user turn following the assistant turn that issued
// the call, so buildMessages consumes this map as it walks the turns.
func toolResultsByID(contents []core.Content) map[string]string {
	results := make(map[string]string)
	for _, c := range contents {
		if c.Role != "tool" {
			continue
		}
		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}
			results[fr.FunctionResponse.ID] = resultText(fr.FunctionResponse)
		}
	}
	return results
}

func resultText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return "error: " + fr.Error
	}
	if s, ok := fr.Response.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", fr.Response)
}

// systemBlocks merges request instructions and system role contents into
// system blocks. A response schema becomes an extra JSON-only directive since
// the Messages API has no native structured output parameter.
func systemBlocks(req core.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	add := func(text string) {
		if text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}
	for _, instruction := range req.Instructions {
		add(instruction)
	}
	for _, c := range req.Contents {
		if c.Role != "system" {
			continue
		}
		for _, p := range c.Parts {
			if tp, ok := p.(core.TextPart); ok {
				add(tp.Text)
			}
		}
	}
	if req.ResponseSchema != nil {
		if schemaJSON, err := json.Marshal(req.ResponseSchema); err == nil {
			add("Reply with a single JSON object that validates against this JSON schema. No markdown fences, no commentary:\n" + string(schemaJSON))
		}
	}
	return blocks
}

func textBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(tp.Text))
		}
	}
	return blocks
}

// assistantBlocks renders one assistant turn's parts. The second return
// value carries the tool_result blocks answering this turn's tool calls,
// consumed out of toolResults; the caller emits them as the next user turn.
func assistantBlocks(parts []core.Part, toolResults map[string]string) (blocks, results []anthropic.ContentBlockParamUnion) {
	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			fc := part.FunctionCall
			blocks = append(blocks, anthropic.NewToolUseBlock(fc.ID, toolInput(fc.Arguments), fc.Name))
			if result, ok := toolResults[fc.ID]; ok {
				results = append(results, anthropic.NewToolResultBlock(fc.ID, result, false))
				delete(toolResults, fc.ID)
			}
		}
	}
	return blocks, results
}

// toolInput decodes a tool call's argument JSON, falling back to the raw
// string when it does not parse.
func toolInput(arguments string) any {
	if arguments == "" {
		return nil
	}
	var input any
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return arguments
	}
	return input
}

func buildTools(tools []core.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		out = append(out, anthropic.ToolUnionParamOfTool(inputSchema(tool.Function.Parameters), tool.Function.Name))
	}
	return out
}

// inputSchema lifts a JSON schema's properties and required list into the
// typed schema param the Messages API expects.
func inputSchema(params map[string]any) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
	if params == nil {
		return schema
	}
	if properties, ok := params["properties"]; ok {
		schema.Properties = properties
	}
	switch required := params["required"].(type) {
	case []string:
		schema.Required = required
	case []any:
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

// Info reports the configured model name and provider capabilities.
func (m *Model) Info() core.ModelInfo {
	return core.ModelInfo{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
