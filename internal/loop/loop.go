// Package loop drives the planning, execution, validation and retry
// cycle for one user request: a single-writer state machine over the
// task store, with the model and sandbox calls as its only suspension
// points.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/seanpoyner/ollama-code/internal/agent"
	"github.com/seanpoyner/ollama-code/internal/confirm"
	"github.com/seanpoyner/ollama-code/internal/logging"
	"github.com/seanpoyner/ollama-code/internal/planner"
	"github.com/seanpoyner/ollama-code/internal/subtask"
	"github.com/seanpoyner/ollama-code/internal/task"
	"github.com/seanpoyner/ollama-code/internal/validate"
)

// State names one phase of the orchestration cycle.
type State string

const (
	StatePlanning       State = "planning"
	StateDispatching    State = "dispatching"
	StateAwaitingResult State = "awaiting_result"
	StateValidating     State = "validating"
	StateCompleting     State = "completing"
	StateRetrying       State = "retrying"
	StateAbandoning     State = "abandoning"
	StateDone           State = "done"
	StateCleared        State = "cleared"
)

// TaskPlanner proposes a task batch for a request. *planner.Planner
// satisfies it.
type TaskPlanner interface {
	Plan(ctx context.Context, request string) (planner.Plan, error)
}

// Executor runs one task context through the model and sandbox.
// *agent.Agent satisfies it.
type Executor interface {
	Run(ctx context.Context, taskContext string) (agent.Result, error)
}

// Checker validates one task attempt. *validate.Validator satisfies it.
type Checker interface {
	Validate(taskContent, resultText string, filesCreated []string) validate.Result
}

// Loop owns the task store for the duration of a request and is its
// only writer.
type Loop struct {
	store     *task.Store
	planner   TaskPlanner
	executor  Executor
	validator Checker
	progress  *task.ProgressLogger
	confirmer confirm.Confirmer
	events    Events
	timeout   time.Duration
	log       zerolog.Logger
}

// New creates a loop over the given collaborators.
func New(store *task.Store, p TaskPlanner, e Executor, v Checker) *Loop {
	return &Loop{
		store:     store,
		planner:   p,
		executor:  e,
		validator: v,
		confirmer: confirm.Auto{Decision: confirm.Approve},
		events:    NopEvents{},
		log:       logging.Component("loop"),
	}
}

// WithEvents sets the event sink.
func (l *Loop) WithEvents(ev Events) *Loop {
	if ev != nil {
		l.events = ev
	}
	return l
}

// WithConfirmer sets the confirmation channel used for the
// cancel-remaining prompt.
func (l *Loop) WithConfirmer(c confirm.Confirmer) *Loop {
	if c != nil {
		l.confirmer = c
	}
	return l
}

// WithProgress sets the JSONL progress logger.
func (l *Loop) WithProgress(p *task.ProgressLogger) *Loop {
	l.progress = p
	return l
}

// WithTimeout bounds each model/sandbox call. Zero means no bound.
func (l *Loop) WithTimeout(d time.Duration) *Loop {
	l.timeout = d
	return l
}

// Run plans a task batch for the request and executes it to a terminal
// state. A previous non-terminal batch must be resumed or cancelled
// first; Run surfaces task.ErrBatchActive in that case.
func (l *Loop) Run(ctx context.Context, request string) (Summary, error) {
	l.setState(StatePlanning)

	plan, err := l.planner.Plan(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return Summary{}, ctx.Err()
		}
		// Planning never blocks progress: fall back to the generic
		// analyze, implement, verify batch.
		l.log.Warn().Err(err).Msg("model planning failed, using fallback plan")
		plan = planner.Fallback(request)
	}

	if _, err := l.store.CreateBatch(request, plan.Tasks); err != nil {
		return Summary{}, err
	}
	if l.progress != nil {
		l.progress.BatchCreated(request, len(plan.Tasks))
	}
	l.events.OnPlanReady(plan.Explanation, l.store.Tasks())

	return l.execute(ctx, request)
}

// Resume continues a previously persisted batch, for example after an
// interrupted run. The original request is read from the store.
func (l *Loop) Resume(ctx context.Context) (Summary, error) {
	if l.store.Len() == 0 {
		return Summary{}, errors.New("no task batch to resume")
	}
	if l.store.AllTerminal() {
		return Summary{}, errors.New("task batch already finished; clear it first")
	}
	return l.execute(ctx, l.store.Request())
}

// execute drives the per-task cycle until every task is terminal or the
// user interrupts.
func (l *Loop) execute(ctx context.Context, request string) (Summary, error) {
	start := time.Now()
	total := l.store.Len()

	for {
		if ctx.Err() != nil {
			return l.interrupted(start, "")
		}

		l.setState(StateDispatching)
		t, err := l.store.NextPending()
		if err != nil {
			return Summary{}, err
		}
		if t == nil {
			break
		}

		attempt := t.RetryCount + 1
		l.events.OnTaskStart(l.taskNumber(t.ID), total, *t, attempt)
		if l.progress != nil {
			l.progress.TaskStarted(t.ID, attempt)
		}

		// Sub-tasks are regenerated on every attempt; the decomposition
		// is a pure function of the latest content.
		subs := subtask.Decompose(t.Content)
		taskCtx := buildTaskContext(request, *t, l.store.Completed(), subs)

		l.setState(StateAwaitingResult)
		res, runErr := l.runBounded(ctx, taskCtx)

		if runErr != nil && ctx.Err() != nil {
			// User cancelled mid-call: abandon this task, then ask
			// about the rest of the batch.
			return l.interrupted(start, t.ID)
		}

		l.setState(StateValidating)
		var vres validate.Result
		if runErr != nil {
			// Model/sandbox failure or timeout consumes a retry instead
			// of crashing the loop.
			l.log.Error().Err(runErr).Str("task", t.ID).Msg("execution call failed")
			vres = validate.ExecutionFailure(runErr.Error())
		} else {
			vres = l.validator.Validate(t.Content, res.Text, res.FilesCreated)
		}

		if vres.Passed {
			l.setState(StateCompleting)
			if err := l.store.Complete(t.ID, summarizeResult(res)); err != nil {
				return Summary{}, err
			}
			if l.progress != nil {
				l.progress.TaskCompleted(t.ID)
			}
			done, _ := l.taskByID(t.ID)
			l.events.OnTaskComplete(done)
			continue
		}

		abandoned, err := l.store.Requeue(t.ID, vres.Feedback)
		if err != nil {
			return Summary{}, err
		}
		if abandoned {
			l.setState(StateAbandoning)
			if l.progress != nil {
				l.progress.TaskAbandoned(t.ID, string(vres.Reason), attempt)
			}
			gone, _ := l.taskByID(t.ID)
			l.events.OnTaskAbandoned(gone, string(vres.Reason))
			l.log.Warn().Str("task", t.ID).Str("reason", string(vres.Reason)).Msg("task abandoned after exhausted retries")
		} else {
			l.setState(StateRetrying)
			if l.progress != nil {
				l.progress.TaskRequeued(t.ID, string(vres.Reason), t.RetryCount+1)
			}
			queued, _ := l.taskByID(t.ID)
			l.events.OnTaskRetry(queued, vres, attempt)
		}
	}

	return l.finish(start)
}

// runBounded applies the per-call timeout around one executor call.
func (l *Loop) runBounded(ctx context.Context, taskCtx string) (agent.Result, error) {
	if l.timeout <= 0 {
		return l.executor.Run(ctx, taskCtx)
	}
	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	res, err := l.executor.Run(callCtx, taskCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return res, fmt.Errorf("execution timed out after %s", l.timeout)
	}
	return res, err
}

// finish emits the DONE summary and clears the batch.
func (l *Loop) finish(start time.Time) (Summary, error) {
	l.setState(StateDone)
	summary := l.summarize(start)

	if l.progress != nil {
		l.progress.BatchCompleted(summary.Total, summary.Completed, summary.Abandoned, summary.Duration)
	}
	l.events.OnBatchComplete(summary)

	l.setState(StateCleared)
	if err := l.store.Clear(); err != nil {
		return summary, fmt.Errorf("failed to clear finished batch: %w", err)
	}
	return summary, nil
}

// interrupted handles a user cancellation: the in-flight task is
// cancelled, and the user chooses whether the remaining pending tasks
// are cancelled too or left for a later resume.
func (l *Loop) interrupted(start time.Time, currentID string) (Summary, error) {
	l.setState(StateAbandoning)

	if currentID != "" {
		if err := l.store.Cancel(currentID); err != nil {
			l.log.Warn().Err(err).Str("task", currentID).Msg("failed to cancel in-flight task")
		}
		gone, _ := l.taskByID(currentID)
		l.events.OnTaskAbandoned(gone, "cancelled by user")
	}

	remaining := 0
	for _, t := range l.store.Tasks() {
		if !t.Terminal() {
			remaining++
		}
	}

	if remaining > 0 {
		d := l.confirmer.Confirm(context.Background(), confirm.Request{
			Kind:    confirm.KindCancelTasks,
			Payload: fmt.Sprintf("Run interrupted. Cancel the %d remaining task(s)?", remaining),
		})
		if !d.Allowed() {
			// Leave the batch pending; a later run can resume it.
			summary := l.summarize(start)
			summary.Resumable = true
			l.events.OnBatchComplete(summary)
			return summary, nil
		}
	}

	if err := l.store.CancelAll(); err != nil {
		return Summary{}, err
	}
	if l.progress != nil {
		l.progress.BatchCancelled(currentID)
	}
	return l.finish(start)
}

// summarize builds the per-task outcome lines and counts.
func (l *Loop) summarize(start time.Time) Summary {
	s := Summary{Duration: time.Since(start)}
	for _, t := range l.store.Tasks() {
		s.Total++
		switch {
		case t.Status == task.StatusCompleted && t.Abandoned:
			s.Abandoned++
			s.Lines = append(s.Lines, fmt.Sprintf("✗ not completed (retries exhausted): %s", clipLine(t.Content, 80)))
		case t.Status == task.StatusCompleted:
			s.Completed++
			s.Lines = append(s.Lines, fmt.Sprintf("✓ completed: %s", clipLine(t.Content, 80)))
		case t.Status == task.StatusCancelled:
			s.Cancelled++
			s.Lines = append(s.Lines, fmt.Sprintf("– cancelled: %s", clipLine(t.Content, 80)))
		default:
			s.Lines = append(s.Lines, fmt.Sprintf("… pending: %s", clipLine(t.Content, 80)))
		}
	}
	return s
}

func (l *Loop) setState(s State) {
	l.events.OnStateChange(s)
}

func (l *Loop) taskNumber(id string) int {
	for i, t := range l.store.Tasks() {
		if t.ID == id {
			return i + 1
		}
	}
	return 0
}

func (l *Loop) taskByID(id string) (task.Task, bool) {
	for _, t := range l.store.Tasks() {
		if t.ID == id {
			return t, true
		}
	}
	return task.Task{}, false
}
