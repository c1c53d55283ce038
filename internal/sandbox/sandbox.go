// Package sandbox executes model-generated code in a subprocess with a
// bounded timeout and a fixed working directory.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
)

// CommandContext is the function used to create exec.Cmd instances.
// It can be replaced in tests to mock command execution.
var CommandContext = exec.CommandContext

// DefaultTimeout bounds a single code execution.
const DefaultTimeout = 30 * time.Second

// Result holds the outcome of one execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Combined merges stdout and stderr the way results are fed back to the
// model: stdout first, stderr under a marker.
func (r Result) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + "\n[stderr]\n" + r.Stderr
}

// Success reports a clean exit.
func (r Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Sandbox runs snippets in a subprocess rooted at a working directory.
type Sandbox struct {
	dir     string
	timeout time.Duration
	python  string
}

// New creates a sandbox rooted at dir. A zero timeout means DefaultTimeout.
func New(dir string, timeout time.Duration) *Sandbox {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sandbox{dir: dir, timeout: timeout, python: "python3"}
}

// Dir returns the sandbox working directory.
func (s *Sandbox) Dir() string { return s.dir }

// RunPython writes the code to a temp file and executes it with the
// python interpreter.
func (s *Sandbox) RunPython(ctx context.Context, code string) (Result, error) {
	tmp, err := os.CreateTemp("", "ollama-code-*.py")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temp script: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("failed to write temp script: %w", err)
	}
	tmp.Close()

	return s.run(ctx, s.python, tmpPath)
}

// RunShell executes a shell command line.
func (s *Sandbox) RunShell(ctx context.Context, command string) (Result, error) {
	return s.run(ctx, "sh", "-c", command)
}

func (s *Sandbox) run(ctx context.Context, name string, args ...string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := CommandContext(runCtx, name, args...)
	cmd.Dir = s.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		res.Stderr = res.Stderr + fmt.Sprintf("\ncommand timed out after %s", s.timeout)
		return res, nil
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to execute %s: %w", name, err)
	}
	return res, nil
}

// Snapshot records the set of regular files under dir, used to detect
// files created by an execution. Hidden directories (.git, .ollama-code)
// are skipped.
func Snapshot(dir string) (map[string]struct{}, error) {
	files := make(map[string]struct{})
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are simply not tracked
		}
		if d.IsDir() {
			if name := d.Name(); path != dir && len(name) > 1 && name[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		files[rel] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// NewFiles returns paths present in after but not in before, relative to
// the snapshot root, in sorted order.
func NewFiles(before, after map[string]struct{}) []string {
	var created []string
	for path := range after {
		if _, ok := before[path]; !ok {
			created = append(created, path)
		}
	}
	sort.Strings(created)
	return created
}
