// Package display renders run progress as a single terminal status line
// with important events printed above it. It implements loop.Events for
// non-TTY and plain-mode runs.
package display

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/seanpoyner/ollama-code/internal/loop"
	"github.com/seanpoyner/ollama-code/internal/task"
	"github.com/seanpoyner/ollama-code/internal/validate"
)

// State holds what the status line shows.
type State struct {
	TaskNum    int
	TotalTasks int
	TaskTitle  string
	Attempt    int
	MaxAttempt int
	Phase      loop.State
	StartTime  time.Time
}

// Display manages the terminal status line and receives loop events.
type Display struct {
	mu       sync.Mutex
	writer   io.Writer
	state    State
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup // goroutine exits before Stop() returns
	active   bool
	lastLine string
}

// New creates a display writing to the given writer.
func New(w io.Writer) *Display {
	return &Display{
		writer: w,
		done:   make(chan struct{}),
	}
}

// Start begins the status line update loop.
func (d *Display) Start() {
	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		return
	}
	d.active = true
	d.state.StartTime = time.Now()
	d.ticker = time.NewTicker(time.Second)
	d.wg.Add(1)
	d.mu.Unlock()

	go d.updateLoop()
}

// Stop halts the update loop and clears the status line. Blocks until
// the update goroutine has exited.
func (d *Display) Stop() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.mu.Unlock()

	d.ticker.Stop()
	close(d.done)
	d.wg.Wait()
	d.clearLine()
}

// OnPlanReady prints the task breakdown before execution starts.
func (d *Display) OnPlanReady(explanation string, tasks []task.Task) {
	if explanation != "" {
		d.PrintAbove("%s", explanation)
	}
	d.PrintAbove("Task breakdown:")
	for i, t := range tasks {
		d.PrintAbove("  %d. [%s] %s", i+1, t.Priority, t.Content)
	}
}

// OnStateChange updates the phase shown on the status line.
func (d *Display) OnStateChange(s loop.State) {
	d.mu.Lock()
	d.state.Phase = s
	d.mu.Unlock()
}

// OnTaskStart updates the task counters on the status line.
func (d *Display) OnTaskStart(taskNum, total int, t task.Task, attempt int) {
	d.mu.Lock()
	d.state.TaskNum = taskNum
	d.state.TotalTasks = total
	d.state.TaskTitle = t.Content
	d.state.Attempt = attempt
	d.state.MaxAttempt = task.MaxRetries + 1
	d.mu.Unlock()

	if attempt > 1 {
		d.PrintAbove("Retrying task %d/%d (attempt %d/%d): %s",
			taskNum, total, attempt, task.MaxRetries+1, t.Content)
	} else {
		d.PrintAbove("Starting task %d/%d: %s", taskNum, total, t.Content)
	}
}

// OnTaskComplete prints a completion line.
func (d *Display) OnTaskComplete(t task.Task) {
	d.PrintAbove("Task completed: %s", t.Content)
}

// OnTaskRetry reports why an attempt failed.
func (d *Display) OnTaskRetry(t task.Task, result validate.Result, attempt int) {
	d.PrintAbove("Task failed validation (%s), retrying: %s", result.Reason, t.Content)
}

// OnTaskAbandoned reports a task given up on.
func (d *Display) OnTaskAbandoned(t task.Task, reason string) {
	d.PrintAbove("Task abandoned (%s): %s", reason, t.Content)
}

// OnOutput prints a line of execution output above the status line.
func (d *Display) OnOutput(line string) {
	d.PrintAbove("%s", line)
}

// OnBatchComplete prints the final summary.
func (d *Display) OnBatchComplete(s loop.Summary) {
	d.PrintAbove("")
	d.PrintAbove("Batch finished in %s: %d completed, %d abandoned, %d cancelled (of %d)",
		formatDuration(s.Duration), s.Completed, s.Abandoned, s.Cancelled, s.Total)
	for _, line := range s.Lines {
		d.PrintAbove("  %s", line)
	}
	if s.Resumable {
		d.PrintAbove("Remaining tasks were kept; run again to resume them.")
	}
}

// updateLoop periodically renders the status line.
func (d *Display) updateLoop() {
	defer d.wg.Done()
	d.render()
	for {
		select {
		case <-d.ticker.C:
			d.render()
		case <-d.done:
			return
		}
	}
}

// render draws the current status line.
func (d *Display) render() {
	d.mu.Lock()
	state := d.state
	lastLine := d.lastLine
	d.mu.Unlock()

	elapsed := time.Since(state.StartTime)
	line := formatLine(state, elapsed)

	// Only update if changed (reduces flicker)
	if line == lastLine {
		return
	}

	d.mu.Lock()
	d.lastLine = line
	d.mu.Unlock()

	fmt.Fprintf(d.writer, "\r\033[K%s", line)
}

// formatLine creates the status line string.
func formatLine(state State, elapsed time.Duration) string {
	if state.TotalTasks == 0 {
		return ""
	}

	title := state.TaskTitle
	if len(title) > 40 {
		title = title[:37] + "..."
	}

	return fmt.Sprintf("Task %d/%d: %s │ Attempt %d/%d │ ⏱ %s │ %s",
		state.TaskNum,
		state.TotalTasks,
		title,
		state.Attempt,
		state.MaxAttempt,
		formatDuration(elapsed),
		state.Phase)
}

// clearLine clears the status line.
func (d *Display) clearLine() {
	fmt.Fprintf(d.writer, "\r\033[K")
}

// PrintAbove prints a message above the status line.
func (d *Display) PrintAbove(format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.writer, "\r\033[K")
	fmt.Fprintf(d.writer, format+"\n", args...)
	d.lastLine = ""
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
