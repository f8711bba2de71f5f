package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"runtime"
	"time"
)

// LogLevel selects verbosity without exposing slog levels in the public API.
type LogLevel int

// Levels in increasing severity.
const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var levelNames = map[LogLevel]string{
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
}

var slogLevels = map[LogLevel]slog.Level{
	LogLevelDebug: slog.LevelDebug,
	LogLevelInfo:  slog.LevelInfo,
	LogLevelWarn:  slog.LevelWarn,
	LogLevelError: slog.LevelError,
}

// String returns the level name, or UNKNOWN for out-of-range values.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

func slogLevel(l LogLevel) slog.Level {
	if mapped, ok := slogLevels[l]; ok {
		return mapped
	}
	return slog.LevelInfo
}

// Logger is the minimal logging contract used throughout AgentFlow. Trailing
// args are structured key/value pairs, the convention slog established.
// *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewSlogAdapter exposes a *slog.Logger as a Logger. Since *slog.Logger
// already satisfies the interface this is the identity, kept for call sites
// that want the conversion spelled out.
func NewSlogAdapter(logger *slog.Logger) Logger { return logger }

// NewDefaultSlogLogger returns a Logger backed by slog.Default().
func NewDefaultSlogLogger() Logger { return slog.Default() }

// AgentFlowLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods for model calls, tool calls and invocations.
// It is cheap to copy via the With* methods and satisfies Logger.
type AgentFlowLogger struct {
	logger       *slog.Logger
	level        LogLevel
	context      map[string]any
	component    string
	sessionID    string
	invocationID string
}

// LoggerConfig configures construction of an AgentFlowLogger.
type LoggerConfig struct {
	Level        LogLevel
	Format       string // "json" (default) or "text"
	Output       io.Writer
	AddSource    bool
	Component    string
	SessionID    string
	InvocationID string
}

// DefaultLoggerConfig is JSON output on stdout at info level with source
// annotation enabled.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:     LogLevelInfo,
		Format:    "json",
		Output:    os.Stdout,
		AddSource: true,
	}
}

// NewLogger builds an AgentFlowLogger from a config (or defaults if nil).
func NewLogger(config *LoggerConfig) *AgentFlowLogger {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	handlerOpts := &slog.HandlerOptions{Level: slogLevel(config.Level), AddSource: config.AddSource}
	var handler slog.Handler
	switch config.Format {
	case "text":
		handler = slog.NewTextHandler(config.Output, handlerOpts)
	default:
		handler = slog.NewJSONHandler(config.Output, handlerOpts)
	}
	return &AgentFlowLogger{
		logger:       slog.New(handler),
		level:        config.Level,
		context:      map[string]any{},
		component:    config.Component,
		sessionID:    config.SessionID,
		invocationID: config.InvocationID,
	}
}

// NewSlogLogger creates an AgentFlowLogger with the given level, format
// ("json" or "text") and source annotation flag, writing to stdout.
func NewSlogLogger(level LogLevel, format string, addSource bool) *AgentFlowLogger {
	config := DefaultLoggerConfig()
	config.Level = level
	if format != "" {
		config.Format = format
	}
	config.AddSource = addSource
	return NewLogger(config)
}

func (l *AgentFlowLogger) clone() *AgentFlowLogger {
	child := *l
	child.context = maps.Clone(l.context)
	return &child
}

// WithContext adds a key/value attribute attached to every log entry.
func (l *AgentFlowLogger) WithContext(key string, value any) *AgentFlowLogger {
	child := l.clone()
	child.context[key] = value
	return child
}

// WithComponent labels entries with the emitting subsystem.
func (l *AgentFlowLogger) WithComponent(c string) *AgentFlowLogger {
	child := l.clone()
	child.component = c
	return child
}

// WithInvocation attaches session and invocation identifiers.
func (l *AgentFlowLogger) WithInvocation(sessionID, invocationID string) *AgentFlowLogger {
	child := l.clone()
	child.sessionID = sessionID
	child.invocationID = invocationID
	return child
}

func (l *AgentFlowLogger) buildAttrs(args ...any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+len(args)/2+3)
	scope := [][2]string{
		{"component", l.component},
		{"session_id", l.sessionID},
		{"invocation_id", l.invocationID},
	}
	for _, kv := range scope {
		if kv[1] != "" {
			attrs = append(attrs, slog.String(kv[0], kv[1]))
		}
	}
	for key, value := range l.context {
		attrs = append(attrs, slog.Any(key, value))
	}
	for len(args) >= 2 {
		key, ok := args[0].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[0])
		}
		attrs = append(attrs, slog.Any(key, args[1]))
		args = args[2:]
	}
	return attrs
}

func (l *AgentFlowLogger) log(level slog.Level, min LogLevel, msg string, args ...any) {
	if l.level > min {
		return
	}
	l.logger.LogAttrs(context.Background(), level, msg, l.buildAttrs(args...)...)
}

// Debug, Info, Warn and Error implement Logger at their respective levels.
func (l *AgentFlowLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, LogLevelDebug, msg, args...)
}

func (l *AgentFlowLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, LogLevelInfo, msg, args...)
}

func (l *AgentFlowLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, LogLevelWarn, msg, args...)
}

func (l *AgentFlowLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, LogLevelError, msg, args...)
}

// ErrorWithStack logs err with a captured stack trace appended.
func (l *AgentFlowLogger) ErrorWithStack(err error, msg string, args ...any) {
	if l.level > LogLevelError {
		return
	}
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	attrs := append(l.buildAttrs(args...),
		slog.String("error", err.Error()),
		slog.String("error_type", fmt.Sprintf("%T", err)),
		slog.String("stack_trace", string(buf[:n])))
	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

// completion emits a success/failure record for a finished operation.
func (l *AgentFlowLogger) completion(attrs []slog.Attr, success bool, err error, okMsg, failMsg string) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level, msg := slog.LevelInfo, okMsg
	if !success {
		level, msg = slog.LevelError, failMsg
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogToolCall records outcome and latency for a tool invocation.
func (l *AgentFlowLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	l.completion(l.buildAttrs("tool_name", tool, "duration", dur, "success", success),
		success, err, "Tool execution completed", "Tool execution failed")
}

// LogModelCall records model call latency, token usage and success.
func (l *AgentFlowLogger) LogModelCall(model string, totalTokens int, dur time.Duration, success bool, err error) {
	l.completion(l.buildAttrs("model", model, "total_tokens", totalTokens, "duration", dur, "success", success),
		success, err, "Model call completed", "Model call failed")
}

// LogInvocation records aggregate metrics for one completed invocation.
func (l *AgentFlowLogger) LogInvocation(agent string, events int, dur time.Duration, success bool, err error) {
	l.completion(l.buildAttrs("agent", agent, "event_count", events, "duration", dur, "success", success),
		success, err, "Invocation completed", "Invocation failed")
}

// NoOpLogger discards everything. Useful in tests and as the fallback when
// no logger was configured.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}
