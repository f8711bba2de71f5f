// Package core provides the foundational domain types, interfaces and execution
// contexts used by agentflow. It defines the core abstractions for:
//
//   - Agents (units of autonomous / orchestrated work)
//   - Sessions (stateful conversational containers with event history)
//   - Events (immutable communication + orchestration records with an
//     EventActions side-channel for state deltas and control signals)
//   - Models and Tools (provider/implementation seams referenced by flows
//     and plugin hooks)
//   - Plugins and callbacks (global + per-agent interception pipeline)
//   - InvocationContext / CallbackContext / ToolContext (scoped execution
//     and sandboxing)
//   - Pluggable stores for session state, artifacts and memory recall/search
//
// The package intentionally keeps implementation concerns (persistence, engine
// orchestration, concrete agents, provider SDKs) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
