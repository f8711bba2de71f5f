package agent

import "github.com/hupe1980/agentflow/core"

// Provider supplies instruction text at runtime, typically derived from
// session state or the environment.
type Provider interface {
	Instruction(*core.InvocationContext) (string, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(*core.InvocationContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ictx *core.InvocationContext) (string, error) { return f(ictx) }

// staticText is a Provider that always yields the same string.
type staticText string

func (s staticText) Instruction(*core.InvocationContext) (string, error) { return string(s), nil }

// Instruction is the system prompt attached to an agent, either a fixed
// string or a Provider evaluated per invocation. Resolved text may contain
// {{.key}} placeholders substituted from session state during request
// assembly.
type Instruction struct {
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction {
	return Instruction{provider: staticText(text)}
}

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.InvocationContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether the text is fixed rather than computed per call.
func (i Instruction) IsStatic() bool {
	if i.provider == nil {
		return true
	}
	_, ok := i.provider.(staticText)
	return ok
}

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ictx *core.InvocationContext) (string, error) {
	if i.provider == nil {
		return "", nil
	}
	return i.provider.Instruction(ictx)
}
