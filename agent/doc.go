// Package agent contains first-class agent implementations and supporting
// utilities for building composable reasoning / orchestration graphs in
// AgentFlow. The package focuses on three concerns:
//
//  1. Base lifecycle, hierarchy and hook plumbing (BaseAgent)
//  2. Concrete coordination patterns (SequentialAgent, ParallelAgent, LoopAgent)
//  3. Model-centric conversational / tool-calling agent (ModelAgent)
//
// Design principles:
//   - Minimal hidden global state – explicit wiring via Engine/InvocationContext
//   - Composability – agents can nest arbitrarily using SetSubAgents / FindAgent
//   - Interception – plugins then per-agent callbacks surround every agent body
//   - Extensibility – embed BaseAgent; only implement Run plus any custom API
//
// Execution Model:
//   - An agent's Run receives a *core.InvocationContext (shared or branched)
//   - Before-agent hooks may replace the body with canned content; after-agent
//     hooks may append a closing event
//   - Composite agents coordinate child Runs: sequential in order, parallel on
//     isolated branches, loop until escalation or an iteration cap
//   - ModelAgent integrates with the model, tool and flow packages to stream
//     model output, fan out tool calls and delegate via transfer
//
// The package intentionally keeps persistence, model specifics and flow
// strategy in their respective packages to avoid cyclic deps.
package agent
