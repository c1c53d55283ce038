// Package confirm gates side-effecting actions behind user approval.
package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Kind identifies the class of action awaiting approval.
type Kind string

const (
	KindFileWrite    Kind = "file_write"
	KindShellCommand Kind = "shell_command"
	KindCancelTasks  Kind = "cancel_tasks"
)

// Decision is the outcome of a confirmation request.
type Decision int

const (
	Deny Decision = iota
	Approve
	ApproveAll
	TimedOut
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case ApproveAll:
		return "approve_all"
	case TimedOut:
		return "timeout"
	default:
		return "deny"
	}
}

// Allowed reports whether the action may proceed. A timed-out request is
// treated as denied.
func (d Decision) Allowed() bool {
	return d == Approve || d == ApproveAll
}

// Request describes the action to confirm. Payload is the filename or
// command line shown to the user.
type Request struct {
	Kind    Kind
	Payload string
}

// Confirmer asks the user to approve an action.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) Decision
}

// Auto always returns a fixed decision. Used for --yes mode and tests.
type Auto struct {
	Decision Decision
}

func (a Auto) Confirm(context.Context, Request) Decision { return a.Decision }

// DefaultPromptTimeout bounds how long a terminal prompt waits for input.
const DefaultPromptTimeout = 2 * time.Minute

// Terminal prompts on an io.Reader/Writer pair, normally stdin/stdout.
// An unanswered prompt times out and counts as a denial.
type Terminal struct {
	In      io.Reader
	Out     io.Writer
	Timeout time.Duration

	reader *bufio.Reader
	lines  chan string
}

// NewTerminal creates a prompt-based confirmer.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{In: in, Out: out, Timeout: DefaultPromptTimeout}
}

// Confirm prints the action and waits for y/a/n input.
func (t *Terminal) Confirm(ctx context.Context, req Request) Decision {
	switch req.Kind {
	case KindFileWrite:
		fmt.Fprintf(t.Out, "\nModel wants to write file: %s\n", req.Payload)
	case KindShellCommand:
		fmt.Fprintf(t.Out, "\nModel wants to run command: %s\n", req.Payload)
	case KindCancelTasks:
		fmt.Fprintf(t.Out, "\n%s\n", req.Payload)
	}
	fmt.Fprint(t.Out, "Approve? [y]es / [a]ll / [n]o: ")

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line, ok := <-t.readLines():
		if !ok {
			return Deny
		}
		return parseAnswer(line)
	case <-timer.C:
		fmt.Fprintln(t.Out, "\nNo response, treating as denied.")
		return TimedOut
	case <-ctx.Done():
		return Deny
	}
}

// readLines starts (once) a goroutine that feeds input lines to a channel
// so a prompt can race against the timeout.
func (t *Terminal) readLines() <-chan string {
	if t.lines == nil {
		t.reader = bufio.NewReader(t.In)
		t.lines = make(chan string)
		go func() {
			for {
				line, err := t.reader.ReadString('\n')
				if line != "" {
					t.lines <- line
				}
				if err != nil {
					close(t.lines)
					return
				}
			}
		}()
	}
	return t.lines
}

func parseAnswer(line string) Decision {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return Approve
	case "a", "all", "approve all":
		return ApproveAll
	default:
		return Deny
	}
}

// Sticky wraps a Confirmer and remembers an ApproveAll answer, approving
// every subsequent request of any kind without prompting.
type Sticky struct {
	Inner Confirmer

	all bool
}

// NewSticky wraps inner with approve-all memory.
func NewSticky(inner Confirmer) *Sticky {
	return &Sticky{Inner: inner}
}

func (s *Sticky) Confirm(ctx context.Context, req Request) Decision {
	if s.all {
		return Approve
	}
	d := s.Inner.Confirm(ctx, req)
	if d == ApproveAll {
		s.all = true
	}
	return d
}
