// Package agent turns a model reply into executed code. It extracts
// fenced code blocks from the response, runs them in the sandbox with a
// file-operations prelude, and reports what was created.
package agent

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seanpoyner/ollama-code/internal/confirm"
	"github.com/seanpoyner/ollama-code/internal/logging"
	"github.com/seanpoyner/ollama-code/internal/ollama"
	"github.com/seanpoyner/ollama-code/internal/sandbox"
)

const systemPrompt = `You are a helpful coding assistant with the ability to write and execute code.

When a task requires action, respond with runnable code in fenced blocks:
- Python code goes in a ` + "```python" + ` block. It will be executed.
- Shell commands go in a ` + "```bash" + ` block.

Inside Python blocks these helpers are available:
- write_file(filename, content): create or overwrite a file
- read_file(filename): return a file's contents
- list_files(directory="."): list directory entries

Use write_file() to create files. Do not describe code you would write; write it.`

var (
	pythonBlockRe = regexp.MustCompile("(?s)```python\n(.*?)\n```")
	shellBlockRe  = regexp.MustCompile("(?s)```(?:bash|sh)\n(.*?)\n```")
	writeCallRe   = regexp.MustCompile(`write_file\(\s*['"]([^'"]+)['"]`)
	createdFileRe = regexp.MustCompile(`(?m)^Created file: (.+)$`)
)

// prelude is prepended to every Python block. write_file prints a
// "Created file:" marker so created files can be recovered from output
// even when they land outside the workspace snapshot.
const prelude = `import os
import sys
from pathlib import Path

def write_file(filename, content):
    try:
        file_path = Path(filename)
        if file_path.parent != Path('.'):
            file_path.parent.mkdir(parents=True, exist_ok=True)
        with open(filename, 'w', encoding='utf-8') as f:
            f.write(content)
        print(f"Created file: {filename}")
        return f"File {filename} created successfully"
    except Exception as e:
        print(f"Failed to create file: {e}")
        return f"Failed to create file: {e}"

def read_file(filename):
    try:
        with open(filename, 'r', encoding='utf-8') as f:
            return f.read()
    except Exception as e:
        print(f"Failed to read file: {e}")
        return f"Failed to read file: {e}"

def list_files(directory="."):
    try:
        return [f.name for f in Path(directory).iterdir()]
    except Exception as e:
        print(f"Failed to list files: {e}")
        return f"Failed to list files: {e}"

# User code starts here
`

// Chatter is the model call the agent depends on. *ollama.Client
// satisfies it.
type Chatter interface {
	Chat(ctx context.Context, messages []ollama.Message) (string, error)
}

// Runner executes Python and shell snippets. *sandbox.Sandbox satisfies it.
type Runner interface {
	Dir() string
	RunPython(ctx context.Context, code string) (sandbox.Result, error)
	RunShell(ctx context.Context, command string) (sandbox.Result, error)
}

// Agent is the execution service for a single task.
type Agent struct {
	client    Chatter
	runner    Runner
	confirmer confirm.Confirmer
	out       io.Writer
	log       zerolog.Logger
}

// New creates an agent. out receives human-readable progress lines and
// may be nil.
func New(client Chatter, runner Runner, confirmer confirm.Confirmer, out io.Writer) *Agent {
	if out == nil {
		out = io.Discard
	}
	if confirmer == nil {
		confirmer = confirm.Auto{Decision: confirm.Approve}
	}
	return &Agent{
		client:    client,
		runner:    runner,
		confirmer: confirmer,
		out:       out,
		log:       logging.Component("agent"),
	}
}

// Result is the outcome of running one task context through the model.
type Result struct {
	// Text is the model reply plus appended execution results. This is
	// what the validator inspects.
	Text string
	// FilesCreated are workspace-relative paths of files the execution
	// produced.
	FilesCreated []string
}

// Run sends the task context to the model, executes any code blocks in
// the reply, and returns the combined outcome.
func (a *Agent) Run(ctx context.Context, taskContext string) (Result, error) {
	before, err := sandbox.Snapshot(a.runner.Dir())
	if err != nil {
		return Result{}, fmt.Errorf("failed to snapshot workspace: %w", err)
	}

	reply, err := a.client.Chat(ctx, []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: taskContext},
	})
	if err != nil {
		return Result{}, err
	}

	var execResults []string
	execResults = append(execResults, a.runPythonBlocks(ctx, reply)...)
	execResults = append(execResults, a.runShellBlocks(ctx, reply)...)

	text := reply
	if len(execResults) > 0 {
		text += "\n\nExecution Results:\n" + strings.Join(execResults, "\n")
	}

	after, err := sandbox.Snapshot(a.runner.Dir())
	if err != nil {
		return Result{}, fmt.Errorf("failed to snapshot workspace: %w", err)
	}

	created := sandbox.NewFiles(before, after)
	created = mergeCreated(created, createdFileRe.FindAllStringSubmatch(text, -1))

	return Result{Text: text, FilesCreated: created}, nil
}

func (a *Agent) runPythonBlocks(ctx context.Context, reply string) []string {
	blocks := pythonBlockRe.FindAllStringSubmatch(reply, -1)
	if len(blocks) == 0 {
		return nil
	}
	fmt.Fprintf(a.out, "Found %d code block(s) to execute\n", len(blocks))

	var results []string
	for i, m := range blocks {
		code := m[1]
		fmt.Fprintf(a.out, "Executing code block %d/%d\n", i+1, len(blocks))

		if cancelled, msg := a.confirmWrites(ctx, code); cancelled {
			results = append(results, msg)
			continue
		}

		res, err := a.runner.RunPython(ctx, prelude+code)
		if err != nil {
			a.log.Error().Err(err).Msg("code execution error")
			results = append(results, fmt.Sprintf("Error executing code: %v", err))
			continue
		}
		results = append(results, formatPythonResult(res))
	}
	return results
}

func (a *Agent) runShellBlocks(ctx context.Context, reply string) []string {
	blocks := shellBlockRe.FindAllStringSubmatch(reply, -1)

	var results []string
	for _, m := range blocks {
		command := strings.TrimSpace(m[1])
		if command == "" {
			continue
		}

		d := a.confirmer.Confirm(ctx, confirm.Request{Kind: confirm.KindShellCommand, Payload: command})
		if !d.Allowed() {
			a.log.Info().Str("command", command).Str("decision", d.String()).Msg("command not approved")
			results = append(results, "Command cancelled by user")
			continue
		}

		res, err := a.runner.RunShell(ctx, command)
		if err != nil {
			results = append(results, fmt.Sprintf("Error executing command: %v", err))
			continue
		}
		results = append(results, formatShellResult(res))
	}
	return results
}

// confirmWrites asks approval for every write_file target in a Python
// block before running it. A denial or timeout skips the whole block.
func (a *Agent) confirmWrites(ctx context.Context, code string) (bool, string) {
	for _, m := range writeCallRe.FindAllStringSubmatch(code, -1) {
		filename := m[1]
		d := a.confirmer.Confirm(ctx, confirm.Request{Kind: confirm.KindFileWrite, Payload: filename})
		if !d.Allowed() {
			a.log.Info().Str("file", filename).Str("decision", d.String()).Msg("file write not approved")
			return true, fmt.Sprintf("File write cancelled: %s", filename)
		}
	}
	return false, ""
}

func formatPythonResult(res sandbox.Result) string {
	if res.TimedOut {
		return "Code execution failed: command timed out after 30 seconds"
	}
	if !res.Success() {
		errText := strings.TrimSpace(res.Stderr)
		if errText == "" {
			errText = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		return "Code execution failed: " + errText
	}
	if out := strings.TrimSpace(res.Stdout); out != "" {
		return "Code executed successfully. Output:\n" + out
	}
	return "Code executed successfully (no output)"
}

func formatShellResult(res sandbox.Result) string {
	if res.TimedOut {
		return "Command timed out after 30 seconds"
	}
	output := res.Combined()
	if res.ExitCode != 0 {
		return fmt.Sprintf("Command failed with exit code %d:\n%s", res.ExitCode, output)
	}
	if strings.TrimSpace(output) == "" {
		return "Command executed successfully (no output)"
	}
	return output
}

// mergeCreated unions snapshot-detected files with filenames announced
// via "Created file:" markers.
func mergeCreated(created []string, markerMatches [][]string) []string {
	seen := make(map[string]struct{}, len(created))
	for _, f := range created {
		seen[f] = struct{}{}
	}
	for _, m := range markerMatches {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			created = append(created, name)
		}
	}
	sort.Strings(created)
	return created
}
