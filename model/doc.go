// Package model provides concrete implementations of the core.Model seam.
//
// The provider-agnostic contracts (Model, Request, Response, ToolDefinition)
// live in the core package so flows, plugins and agents can reference them
// without importing vendor SDKs. This package contributes:
//
//   - MockModel: a deterministic in-memory model for tests and examples, with
//     canned completions, scripted multi-turn responses and per-rune streaming
//   - openai subpackage: OpenAI Chat Completions adapter (streaming + tools +
//     structured output)
//   - anthropic subpackage: Anthropic Messages adapter (streaming + tools)
//
// Providers normalize vendor message formats into core.Content parts and back
// so higher layers remain decoupled from any single SDK.
package model
