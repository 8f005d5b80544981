// Package config handles per-home configuration loading and vault home
// resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// HomeEnv names the environment variable that overrides the vault home.
const HomeEnv = "LAZYVAULT_HOME"

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// AssistantConfig describes the external AI collaborator the prompts are
// written for. lazyvault never calls it; the settings are surfaced to the
// tools that do.
type AssistantConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"` // #nosec G117 -- APIKey is an intentional field name for the assistant's authentication token
}

// ContextConfig controls context aggregation.
type ContextConfig struct {
	RollingMemory int    `yaml:"rolling_memory"` // completed-session summaries to include
	DefaultMode   string `yaml:"default_mode"`   // "prep" | "session"
}

// IndexConfig controls the SQLite search index.
type IndexConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the root per-home configuration.
type Config struct {
	Assistant AssistantConfig `yaml:"assistant"`
	Context   ContextConfig   `yaml:"context"`
	Index     IndexConfig     `yaml:"index"`
}

// envOverrides is filled from the environment after config.yaml is applied.
// Pointer fields distinguish "unset" from a zero value.
type envOverrides struct {
	APIKey        *string `env:"LAZYVAULT_ASSISTANT_API_KEY"`
	RollingMemory *int    `env:"LAZYVAULT_ROLLING_MEMORY"`
	IndexEnabled  *bool   `env:"LAZYVAULT_INDEX_ENABLED"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Assistant: AssistantConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
		},
		Context: ContextConfig{
			RollingMemory: 3,
			DefaultMode:   "prep",
		},
		Index: IndexConfig{
			Enabled: true,
		},
	}
}

// Load reads a per-home config.yaml from path and applies environment
// overrides on top.
// If the file does not exist the defaults are used.
// Missing keys retain their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := apply(cfg, data); err != nil {
			return nil, fmt.Errorf("config.Load %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func apply(cfg *Config, data []byte) error {
	// Unmarshal into a plain map so we can apply only the keys that are present.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	if a, ok := raw["assistant"].(map[string]any); ok {
		if v, ok := a["provider"].(string); ok && v != "" {
			cfg.Assistant.Provider = v
		}
		if v, ok := a["model"].(string); ok && v != "" {
			cfg.Assistant.Model = v
		}
		if v, ok := a["api_key"].(string); ok {
			cfg.Assistant.APIKey = v
		}
	}

	if ctx, ok := raw["context"].(map[string]any); ok {
		if v, ok := ctx["rolling_memory"].(int); ok && v > 0 {
			cfg.Context.RollingMemory = v
		}
		if v, ok := ctx["default_mode"].(string); ok && v != "" {
			cfg.Context.DefaultMode = v
		}
	}

	if ix, ok := raw["index"].(map[string]any); ok {
		if v, ok := ix["enabled"].(bool); ok {
			cfg.Index.Enabled = v
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.APIKey != nil {
		cfg.Assistant.APIKey = *o.APIKey
	}
	if o.RollingMemory != nil && *o.RollingMemory > 0 {
		cfg.Context.RollingMemory = *o.RollingMemory
	}
	if o.IndexEnabled != nil {
		cfg.Index.Enabled = *o.IndexEnabled
	}
	return nil
}

// Redacted returns a copy of cfg safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Assistant.APIKey != "" {
		out.Assistant.APIKey = "<redacted>"
	}
	return &out
}

// Template is the commented config.yaml written by `config init`.
const Template = `# lazyvault configuration

assistant:
  # The AI collaborator prompts are written for. lazyvault does not call it.
  provider: gemini
  model: gemini-2.0-flash
  # api_key: ""            # or set LAZYVAULT_ASSISTANT_API_KEY

context:
  rolling_memory: 3        # completed-session summaries in the context
  default_mode: prep       # prep | session

index:
  enabled: true            # maintain the SQLite search index on writes
`

// WriteTemplate writes Template to path unless a file already exists there.
// Returns false when the file was left untouched.
func WriteTemplate(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(Template), 0o600); err != nil {
		return false, err
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Home resolution
// ---------------------------------------------------------------------------

// globalConfigPath returns the path to the global lazyvault config file.
// This file stores only home (and future global settings).
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lazyvault", "config.yaml"), nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveHome returns the vault home path and the source of the resolution.
// Priority: flag → LAZYVAULT_HOME env → persisted global config → ~/.lazyvault
// source is one of "flag", "env", "config", or "default".
func ResolveHome(flag string) (path, source string) {
	if flag != "" {
		if p, err := normalizePath(flag); err == nil {
			return p, "flag"
		}
	}

	if v := os.Getenv(HomeEnv); v != "" {
		if p, err := normalizePath(v); err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedHome(); ok {
		return persisted, "config"
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lazyvault"), "default"
}

// GetPersistedHome reads home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedHome() (string, bool, error) {
	raw, _, err := readGlobal()
	if err != nil || raw == nil {
		return "", false, err
	}

	val, _ := raw["home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := normalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedHome(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	raw, cfgPath, err := readGlobal()
	if err != nil {
		return "", err
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["home"] = normalized

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", err
	}
	out, err := yaml.Marshal(raw)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedHome removes home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedHome() (bool, error) {
	raw, cfgPath, err := readGlobal()
	if err != nil || raw == nil {
		return false, err
	}
	if _, ok := raw["home"]; !ok {
		return false, nil
	}
	delete(raw, "home")

	if len(raw) == 0 {
		_ = os.Remove(cfgPath)
		return true, nil
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(cfgPath, out, 0o600)
}

// readGlobal loads the global config as a raw map. A missing or unparsable
// file yields a nil map and no error, so callers can overwrite it.
func readGlobal() (map[string]any, string, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return nil, cfgPath, nil
	}
	if err != nil {
		return nil, cfgPath, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, cfgPath, nil
	}
	return raw, cfgPath, nil
}
