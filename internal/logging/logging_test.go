package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	logger := Component("validator")
	logger.Info().Msg("check passed")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}

	if cmp := logEntry["cmp"]; cmp != "validator" {
		t.Errorf("Component() cmp = %q, want %q", cmp, "validator")
	}
	if msg := logEntry["message"]; msg != "check passed" {
		t.Errorf("Component() message = %q, want %q", msg, "check passed")
	}
}

func TestSetupWritesToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "ollama-code.log")

	closer, err := Setup("debug", file)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer closer()

	log.Info().Str("k", "v").Msg("hello")
	closer()

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Errorf("expected log entry in file, got %q", data)
	}
}

func TestSetupInvalidLevel(t *testing.T) {
	if _, err := Setup("loud", ""); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestSetupLevelFiltering(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	closer, err := Setup("warn", file)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	log.Info().Msg("quiet")
	log.Warn().Msg("loud")
	closer()

	data, _ := os.ReadFile(file)
	if strings.Contains(string(data), "quiet") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(string(data), "loud") {
		t.Error("warn entry should be written")
	}
}
