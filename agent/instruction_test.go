package agent

import (
	"errors"
	"testing"

	"github.com/hupe1980/agentflow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(*core.InvocationContext) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(newTestInvocationContext())
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(_ *core.InvocationContext) (string, error) {
		return "dynamic via func", nil
	})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(newTestInvocationContext())
	require.NoError(t, err)
	assert.Equal(t, "dynamic via func", got)
}

func TestInstruction_NewInstructionFromProvider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "provider text"})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(newTestInvocationContext())
	require.NoError(t, err)
	assert.Equal(t, "provider text", got)
}

func TestInstruction_ErrorPropagation(t *testing.T) {
	boom := errors.New("boom")
	inst := NewInstructionFromProvider(mockProvider{err: boom})

	_, err := inst.Resolve(newTestInvocationContext())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestInstruction_ZeroValueResolvesEmpty(t *testing.T) {
	var inst Instruction
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(newTestInvocationContext())
	require.NoError(t, err)
	assert.Empty(t, got)
}
