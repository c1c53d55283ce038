package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/seanpoyner/ollama-code/internal/confirm"
	"github.com/seanpoyner/ollama-code/internal/loop"
	"github.com/seanpoyner/ollama-code/internal/task"
	"github.com/seanpoyner/ollama-code/internal/validate"
)

// sender is the subset of *tea.Program the relay needs.
type sender interface {
	Send(tea.Msg)
}

// relay forwards loop events into the Bubble Tea program as messages.
type relay struct {
	p sender
}

func (r *relay) OnPlanReady(explanation string, tasks []task.Task) {
	r.p.Send(planReadyMsg{Explanation: explanation, Tasks: tasks})
}

func (r *relay) OnStateChange(state loop.State) {
	r.p.Send(phaseMsg{Phase: state})
}

func (r *relay) OnTaskStart(taskNum, total int, t task.Task, attempt int) {
	r.p.Send(taskStartedMsg{
		TaskNum: taskNum,
		Total:   total,
		Title:   clipTitle(t.Content),
		Attempt: attempt,
		Max:     task.MaxRetries + 1,
	})
}

func (r *relay) OnTaskComplete(t task.Task) {
	r.p.Send(taskCompletedMsg{Title: clipTitle(t.Content)})
}

func (r *relay) OnTaskRetry(t task.Task, result validate.Result, attempt int) {
	r.p.Send(taskRetriedMsg{Title: clipTitle(t.Content), Reason: result.Reason, Attempt: attempt})
}

func (r *relay) OnTaskAbandoned(t task.Task, reason string) {
	r.p.Send(taskAbandonedMsg{Title: clipTitle(t.Content), Reason: reason})
}

func (r *relay) OnOutput(line string) {
	r.p.Send(outputLineMsg{Line: line})
}

func (r *relay) OnBatchComplete(loop.Summary) {
	// The final summary is printed by the caller after the program exits.
}

// Asker satisfies confirm.Confirmer by routing prompts through the
// program: the question renders in the view and the answer arrives as a
// key press. Safe to call from the loop goroutine.
type Asker struct {
	p    sender
	quit <-chan struct{}
}

func (a *Asker) Confirm(ctx context.Context, req confirm.Request) confirm.Decision {
	reply := make(chan confirm.Decision, 1)
	a.p.Send(askMsg{prompt: &promptState{req: req, reply: reply}})

	select {
	case d := <-reply:
		return d
	case <-ctx.Done():
		return confirm.Deny
	case <-a.quit:
		// Program exited with the prompt unanswered.
		return confirm.Deny
	case <-time.After(confirm.DefaultPromptTimeout):
		return confirm.TimedOut
	}
}
