package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/seanpoyner/ollama-code/internal/confirm"
	"github.com/seanpoyner/ollama-code/internal/loop"
)

// RunFunc executes a batch while reporting through the given events and
// confirmer. The monitor cancels ctx when the user presses ctrl+c.
type RunFunc func(ctx context.Context, ev loop.Events, c confirm.Confirmer) (loop.Summary, error)

type runResult struct {
	summary loop.Summary
	err     error
}

// Run drives fn under the execution monitor and returns its result once
// the batch finishes or the user quits.
func Run(ctx context.Context, request string, fn RunFunc) (loop.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	quit := make(chan struct{})
	p := tea.NewProgram(newModel(request, cancel))

	results := make(chan runResult, 1)
	go func() {
		summary, err := fn(ctx, &relay{p: p}, &Asker{p: p, quit: quit})
		results <- runResult{summary: summary, err: err}
		p.Send(doneMsg{})
	}()

	_, uiErr := p.Run()
	close(quit)
	if uiErr != nil {
		// The UI died; stop the loop and wait for it to unwind.
		cancel()
	}

	r := <-results
	if r.err == nil && uiErr != nil {
		return r.summary, uiErr
	}
	return r.summary, r.err
}
