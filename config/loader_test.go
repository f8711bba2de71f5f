package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBytes_DefaultsToLlmAgent(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
name: Assistant
model: gpt-4o-mini
instruction: Be helpful.
`))
	require.NoError(t, err)

	assert.Equal(t, ClassLlmAgent, cfg.AgentClass)
	assert.Equal(t, "Assistant", cfg.Name)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "default", cfg.IncludeContents)
}

func TestLoadBytes_CompositeTree(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
agent_class: SequentialAgent
name: Pipeline
sub_agents:
  - name: Writer
    model: m1
    instruction: Write a draft.
  - agent_class: LoopAgent
    name: Critic
    max_iterations: 3
    sub_agents:
      - name: Reviewer
        model: m1
        instruction: Review the draft.
`))
	require.NoError(t, err)

	require.Len(t, cfg.SubAgents, 2)
	assert.Equal(t, ClassLlmAgent, cfg.SubAgents[0].AgentClass)
	assert.Equal(t, ClassLoopAgent, cfg.SubAgents[1].AgentClass)
	assert.Equal(t, 3, cfg.SubAgents[1].MaxIterations)
	require.Len(t, cfg.SubAgents[1].SubAgents, 1)
	assert.Equal(t, "Reviewer", cfg.SubAgents[1].SubAgents[0].Name)
}

func TestLoadBytes_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_MODEL_NAME", "gpt-4o")

	cfg, err := LoadBytes([]byte(`
name: Assistant
model: ${TEST_MODEL_NAME}
instruction: Prefer ${UNSET_FALLBACK_VAR:-concise} answers.
`))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "Prefer concise answers.", cfg.Instruction)
}

func TestLoadBytes_ParallelTimeout(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
agent_class: ParallelAgent
name: FanOut
timeout: 30s
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoadBytes_CustomClassKeepsExtras(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
agent_class: mylib.EchoAgent
name: Echo
prefix: "echo: "
`))
	require.NoError(t, err)

	assert.Equal(t, "mylib.EchoAgent", cfg.AgentClass)
	assert.Equal(t, "echo: ", cfg.Extra["prefix"])
}

func TestLoadBytes_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "model: m\ninstruction: hi\n",
			wantErr: "agent name is required",
		},
		{
			name:    "missing instruction",
			yaml:    "name: A\nmodel: m\n",
			wantErr: "instruction is required",
		},
		{
			name:    "invalid include_contents",
			yaml:    "name: A\nmodel: m\ninstruction: hi\ninclude_contents: all\n",
			wantErr: "include_contents must be",
		},
		{
			name:    "unknown field on built-in class",
			yaml:    "name: A\nmodel: m\ninstruction: hi\ntemperature: 0.5\n",
			wantErr: "unknown fields",
		},
		{
			name:    "model on composite",
			yaml:    "agent_class: SequentialAgent\nname: A\nmodel: m\n",
			wantErr: "only valid for LlmAgent",
		},
		{
			name:    "schema combined with tools",
			yaml:    "name: A\nmodel: m\ninstruction: hi\noutput_schema:\n  type: object\ntools:\n  - name: search\n",
			wantErr: "output_schema cannot be combined with tools",
		},
		{
			name:    "schema combined with sub-agents",
			yaml:    "name: A\nmodel: m\ninstruction: hi\noutput_schema:\n  type: object\nsub_agents:\n  - name: B\n    model: m\n    instruction: hi\n",
			wantErr: "output_schema cannot be combined with sub_agents",
		},
		{
			name:    "negative iterations",
			yaml:    "agent_class: LoopAgent\nname: A\nmax_iterations: -1\n",
			wantErr: "max_iterations must not be negative",
		},
		{
			name:    "duplicate names",
			yaml:    "agent_class: SequentialAgent\nname: P\nsub_agents:\n  - name: X\n    model: m\n    instruction: hi\n  - name: X\n    model: m\n    instruction: hi\n",
			wantErr: "duplicate agent name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadBytes_RefsRequireFile(t *testing.T) {
	_, err := LoadBytes([]byte(`
agent_class: SequentialAgent
name: P
sub_agents:
  - config_path: sub.yaml
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires file-based loading")
}

func TestLoadFile_ResolvesRefs(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "reviewer.yaml", "name: Reviewer\nmodel: m1\ninstruction: Review the draft.\n")
	root := writeConfig(t, dir, "pipeline.yaml", `
agent_class: SequentialAgent
name: Pipeline
sub_agents:
  - name: Writer
    model: m1
    instruction: Write a draft.
  - config_path: reviewer.yaml
`)

	cfg, err := LoadFile(root)
	require.NoError(t, err)

	require.Len(t, cfg.SubAgents, 2)
	assert.Equal(t, "Reviewer", cfg.SubAgents[1].Name)
	assert.Empty(t, cfg.SubAgents[1].ConfigPath, "references are replaced by their file contents")
}

func TestLoadFile_CycleDetection(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "agent_class: SequentialAgent\nname: A\nsub_agents:\n  - config_path: b.yaml\n")
	path := writeConfig(t, dir, "b.yaml", "agent_class: SequentialAgent\nname: B\nsub_agents:\n  - config_path: a.yaml\n")

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected")
}

func TestLoadFile_RefWithInlineFields(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "sub.yaml", "name: S\nmodel: m\ninstruction: hi\n")
	path := writeConfig(t, dir, "root.yaml", `
agent_class: SequentialAgent
name: R
sub_agents:
  - config_path: sub.yaml
    name: Override
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not carry inline fields")
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoadBytes_EmptyInput(t *testing.T) {
	_, err := LoadBytes([]byte(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty configuration")
}
