package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeProjectConfig(t *testing.T, dir, content string) {
	t.Helper()
	metaDir := filepath.Join(dir, MetaDir)
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(metaDir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Model != "qwen2.5-coder" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Host != "http://localhost:11434" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.TaskTimeout.Std() != 10*time.Minute {
		t.Errorf("TaskTimeout = %v", cfg.TaskTimeout.Std())
	}
	if cfg.ExecTimeout.Std() != 30*time.Second {
		t.Errorf("ExecTimeout = %v", cfg.ExecTimeout.Std())
	}
	if cfg.AutoApprove {
		t.Error("AutoApprove should default to false")
	}
}

func TestLoadWithoutFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != Default().Model {
		t.Errorf("Model = %q, want default", cfg.Model)
	}
}

func TestProjectConfigOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	writeProjectConfig(t, dir, "model: llama3.1\nexec_timeout: 5s\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "llama3.1" {
		t.Errorf("Model = %q, want llama3.1", cfg.Model)
	}
	if cfg.ExecTimeout.Std() != 5*time.Second {
		t.Errorf("ExecTimeout = %v, want 5s", cfg.ExecTimeout.Std())
	}
	// Untouched keys keep the defaults.
	if cfg.Host != "http://localhost:11434" {
		t.Errorf("Host = %q, want default", cfg.Host)
	}
	if cfg.TaskTimeout.Std() != 10*time.Minute {
		t.Errorf("TaskTimeout = %v, want default", cfg.TaskTimeout.Std())
	}
}

func TestProjectOverridesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	userDir := filepath.Join(home, MetaDir)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		t.Fatal(err)
	}
	userCfg := "model: user-model\nlog_level: debug\n"
	if err := os.WriteFile(filepath.Join(userDir, ConfigFileName), []byte(userCfg), 0o644); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	writeProjectConfig(t, dir, "model: project-model\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "project-model" {
		t.Errorf("Model = %q, want project-model", cfg.Model)
	}
	// User layer survives where the project file is silent.
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestEnvOverridesEverything(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	writeProjectConfig(t, dir, "model: project-model\nauto_approve: false\n")

	t.Setenv("OLLAMA_CODE_MODEL", "env-model")
	t.Setenv("OLLAMA_CODE_AUTO_APPROVE", "true")
	t.Setenv("OLLAMA_CODE_TASK_TIMEOUT", "2m")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "env-model" {
		t.Errorf("Model = %q, want env-model", cfg.Model)
	}
	if !cfg.AutoApprove {
		t.Error("AutoApprove should be overridden to true")
	}
	if cfg.TaskTimeout.Std() != 2*time.Minute {
		t.Errorf("TaskTimeout = %v, want 2m", cfg.TaskTimeout.Std())
	}
}

func TestInvalidYAMLFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	writeProjectConfig(t, dir, "model: [unterminated\n")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestInvalidDurationFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	writeProjectConfig(t, dir, "task_timeout: banana\n")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestEffectiveLogFile(t *testing.T) {
	cfg := Default()
	got := cfg.EffectiveLogFile("/work")
	want := filepath.Join("/work", MetaDir, "ollama-code.log")
	if got != want {
		t.Errorf("EffectiveLogFile = %q, want %q", got, want)
	}

	cfg.LogFile = "/var/log/oc.log"
	if got := cfg.EffectiveLogFile("/work"); got != "/var/log/oc.log" {
		t.Errorf("EffectiveLogFile = %q, want explicit path", got)
	}
}
