package loop

import (
	"time"

	"github.com/seanpoyner/ollama-code/internal/task"
	"github.com/seanpoyner/ollama-code/internal/validate"
)

// Events receives callbacks as the loop advances. Implement this in the
// display or TUI layer to receive updates.
type Events interface {
	// OnPlanReady is called once the task batch exists, before execution.
	OnPlanReady(explanation string, tasks []task.Task)

	// OnStateChange is called on every orchestrator state transition.
	OnStateChange(state State)

	// OnTaskStart is called when a task attempt begins.
	OnTaskStart(taskNum, total int, t task.Task, attempt int)

	// OnTaskComplete is called when a task passes validation.
	OnTaskComplete(t task.Task)

	// OnTaskRetry is called when a failed attempt is requeued.
	OnTaskRetry(t task.Task, result validate.Result, attempt int)

	// OnTaskAbandoned is called when a task exhausts its retries or is
	// cancelled mid-flight.
	OnTaskAbandoned(t task.Task, reason string)

	// OnOutput is called for each progress line from execution.
	OnOutput(line string)

	// OnBatchComplete is called with the final summary, right before the
	// batch is cleared.
	OnBatchComplete(summary Summary)
}

// NopEvents discards all callbacks.
type NopEvents struct{}

func (NopEvents) OnPlanReady(string, []task.Task)             {}
func (NopEvents) OnStateChange(State)                         {}
func (NopEvents) OnTaskStart(int, int, task.Task, int)        {}
func (NopEvents) OnTaskComplete(task.Task)                    {}
func (NopEvents) OnTaskRetry(task.Task, validate.Result, int) {}
func (NopEvents) OnTaskAbandoned(task.Task, string)           {}
func (NopEvents) OnOutput(string)                             {}
func (NopEvents) OnBatchComplete(Summary)                     {}

// Summary describes the outcome of one batch run.
type Summary struct {
	Total     int
	Completed int
	Abandoned int
	Cancelled int
	// Lines holds one human-readable outcome line per task, in batch order.
	Lines []string
	// Resumable is set when the user interrupted the run but chose to
	// keep the remaining tasks pending.
	Resumable bool
	Duration  time.Duration
}
