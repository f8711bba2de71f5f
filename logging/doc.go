// Package logging provides a minimal logging interface and adapters for AgentFlow.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn,
// Error) that the engine, flows and agents use for observability. This package
// includes:
//
//   - Logger interface for dependency injection (satisfied by *slog.Logger)
//   - AgentFlowLogger with contextual helpers for sessions and invocations
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	engine := engine.New(sessionStore, artifactStore, memoryStore, engine.WithLogger(logger))
//
// Trailing arguments on the Logger methods are structured key/value pairs, the
// same convention slog uses. The design intentionally keeps the interface
// minimal to avoid vendor lock-in while supporting structured logging where
// available.
package logging
