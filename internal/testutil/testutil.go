// Package testutil provides shared test helpers: canned model replies,
// scripted confirmations and workspace fixtures.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/seanpoyner/ollama-code/internal/confirm"
	"github.com/seanpoyner/ollama-code/internal/ollama"
)

// MockCommandFunc creates a replacement for sandbox.CommandContext that
// ignores the real command and echoes the given output instead.
func MockCommandFunc(output string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "echo", "-n", output)
	}
}

// WriteFile creates a file under dir, making parent directories as needed.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// CannedChatter returns fixed replies in order, repeating the last one
// once the script runs out. It satisfies the Chatter interfaces in the
// agent and planner packages.
type CannedChatter struct {
	Replies []string
	Err     error
	Calls   int
}

// Chat returns the next scripted reply.
func (c *CannedChatter) Chat(_ context.Context, _ []ollama.Message) (string, error) {
	c.Calls++
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.Replies) == 0 {
		return "", nil
	}
	i := c.Calls - 1
	if i >= len(c.Replies) {
		i = len(c.Replies) - 1
	}
	return c.Replies[i], nil
}

// ScriptedConfirmer answers confirmation prompts from a fixed script,
// repeating the last decision once the script runs out. It records every
// request it saw.
type ScriptedConfirmer struct {
	Decisions []confirm.Decision
	Seen      []confirm.Request
}

func (s *ScriptedConfirmer) Confirm(_ context.Context, req confirm.Request) confirm.Decision {
	s.Seen = append(s.Seen, req)
	if len(s.Decisions) == 0 {
		return confirm.Approve
	}
	i := len(s.Seen) - 1
	if i >= len(s.Decisions) {
		i = len(s.Decisions) - 1
	}
	return s.Decisions[i]
}
