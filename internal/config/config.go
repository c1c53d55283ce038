// Package config loads layered configuration for ollama-code.
//
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.ollama-code/config.yaml) - optional
//  3. Project config (.ollama-code/config.yaml) - optional
//  4. Environment variables (OLLAMA_CODE_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// MetaDir is the per-project metadata directory.
const MetaDir = ".ollama-code"

// ConfigFileName is the config file looked up in each layer.
const ConfigFileName = "config.yaml"

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "10m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard-library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all settings.
type Config struct {
	// Model is the Ollama model used for planning and execution.
	Model string `yaml:"model"`
	// Host is the Ollama server base URL.
	Host string `yaml:"host"`

	LogLevel string `yaml:"log_level"`
	// LogFile defaults to <MetaDir>/ollama-code.log when empty.
	LogFile string `yaml:"log_file"`

	// TaskTimeout bounds one model+execution round for a task attempt.
	// Zero disables the bound.
	TaskTimeout Duration `yaml:"task_timeout"`
	// ExecTimeout bounds a single sandboxed code snippet.
	ExecTimeout Duration `yaml:"exec_timeout"`

	// AutoApprove skips the file-write and shell-command prompts.
	AutoApprove bool `yaml:"auto_approve"`
	// PlainOutput disables the TUI even on a terminal.
	PlainOutput bool `yaml:"plain_output"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:       "qwen2.5-coder",
		Host:        "http://localhost:11434",
		LogLevel:    "info",
		TaskTimeout: Duration(10 * time.Minute),
		ExecTimeout: Duration(30 * time.Second),
	}
}

// Load builds the effective configuration for a project rooted at dir.
func Load(dir string) (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, MetaDir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(cfg, userPath); err != nil {
				return nil, err
			}
		}
	}

	projectPath := filepath.Join(dir, MetaDir, ConfigFileName)
	if _, err := os.Stat(projectPath); err == nil {
		if err := mergeFromFile(cfg, projectPath); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// mergeFromFile overlays settings from one YAML file. Only keys present
// in the file override; absent keys keep the earlier layer's value.
func mergeFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if _, ok := raw["model"]; ok {
		cfg.Model = fileCfg.Model
	}
	if _, ok := raw["host"]; ok {
		cfg.Host = fileCfg.Host
	}
	if _, ok := raw["log_level"]; ok {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if _, ok := raw["log_file"]; ok {
		cfg.LogFile = fileCfg.LogFile
	}
	if _, ok := raw["task_timeout"]; ok {
		cfg.TaskTimeout = fileCfg.TaskTimeout
	}
	if _, ok := raw["exec_timeout"]; ok {
		cfg.ExecTimeout = fileCfg.ExecTimeout
	}
	if _, ok := raw["auto_approve"]; ok {
		cfg.AutoApprove = fileCfg.AutoApprove
	}
	if _, ok := raw["plain_output"]; ok {
		cfg.PlainOutput = fileCfg.PlainOutput
	}
	return nil
}

// applyEnv overlays OLLAMA_CODE_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OLLAMA_CODE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("OLLAMA_CODE_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("OLLAMA_CODE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OLLAMA_CODE_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("OLLAMA_CODE_TASK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TaskTimeout = Duration(d)
		}
	}
	if v := os.Getenv("OLLAMA_CODE_EXEC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ExecTimeout = Duration(d)
		}
	}
	if v := os.Getenv("OLLAMA_CODE_AUTO_APPROVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoApprove = b
		}
	}
	if v := os.Getenv("OLLAMA_CODE_PLAIN_OUTPUT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PlainOutput = b
		}
	}
}

// EffectiveLogFile resolves the log file path for a project dir.
func (c *Config) EffectiveLogFile(dir string) string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(dir, MetaDir, "ollama-code.log")
}
