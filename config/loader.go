package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadFile reads an agent configuration from a YAML file, resolves
// config_path references relative to it, applies defaults and validates the
// resulting tree. Loading is fail-fast: the first structural problem aborts
// with an error naming the offending file or agent.
func LoadFile(path string) (*AgentConfig, error) {
	return loadFile(path, make(map[string]bool))
}

// LoadBytes parses an agent configuration from raw YAML. File references
// cannot be resolved without a referencing file and cause an error.
func LoadBytes(data []byte) (*AgentConfig, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}

	if err := resolveRefs(cfg, "", make(map[string]bool)); err != nil {
		return nil, err
	}

	return finalize(cfg)
}

func loadFile(path string, visiting map[string]bool) (*AgentConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %s: %w", path, err)
	}

	if visiting[abs] {
		return nil, fmt.Errorf("config_path cycle detected at %s", path)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if err := resolveRefs(cfg, filepath.Dir(abs), visiting); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return finalize(cfg)
}

func parse(data []byte) (*AgentConfig, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("empty configuration")
	}

	expanded := expandEnvMap(raw)

	cfg := &AgentConfig{}
	if err := decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

func decode(input map[string]any, output *AgentConfig) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	return dec.Decode(input)
}

// resolveRefs replaces config_path sub-agent references with the loaded
// file contents. Relative paths resolve against the referencing file's
// directory; the visiting set rejects reference cycles.
func resolveRefs(cfg *AgentConfig, baseDir string, visiting map[string]bool) error {
	for i, sub := range cfg.SubAgents {
		if sub.isRef() {
			if err := sub.refOnlyFields(); err != nil {
				return err
			}
			if baseDir == "" {
				return fmt.Errorf("config_path %q requires file-based loading", sub.ConfigPath)
			}

			ref := sub.ConfigPath
			if !filepath.IsAbs(ref) {
				ref = filepath.Join(baseDir, ref)
			}

			loaded, err := loadFile(ref, visiting)
			if err != nil {
				return err
			}
			cfg.SubAgents[i] = loaded

			continue
		}

		if err := resolveRefs(sub, baseDir, visiting); err != nil {
			return err
		}
	}

	return nil
}

func finalize(cfg *AgentConfig) (*AgentConfig, error) {
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR}, ${VAR:-default} and $VAR.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvMap(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = expandEnvValue(v)
	}
	return out
}

func expandEnvValue(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnvString(val)
	case map[string]any:
		return expandEnvMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandEnvValue(item)
		}
		return out
	default:
		return v
	}
}

func expandEnvString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]

			// ${VAR:-default} falls back when VAR is unset or empty.
			if name, def, found := strings.Cut(inner, ":-"); found {
				if v := os.Getenv(name); v != "" {
					return v
				}
				return def
			}

			return os.Getenv(inner)
		}

		return os.Getenv(match[1:])
	})
}
