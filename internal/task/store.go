package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const batchFileName = "tasks.json"

// Store errors.
var (
	// ErrBatchActive is returned by CreateBatch when a previous batch still
	// has non-terminal tasks. Callers must cancel or clear explicitly;
	// in-flight work is never silently replaced.
	ErrBatchActive = errors.New("a task batch is already in progress")

	// ErrBatchActiveTasks is returned by Clear while any task is non-terminal.
	ErrBatchActiveTasks = errors.New("batch has non-terminal tasks")

	// ErrNotInProgress is returned when a transition requires an
	// in-progress task and the task is in some other state.
	ErrNotInProgress = errors.New("task is not in progress")

	// ErrNotFound is returned when no task has the given id.
	ErrNotFound = errors.New("task not found")
)

// Store holds the ordered task batch for the current request and enforces
// its lifecycle invariants: at most one task in progress, replace-only
// batches, bounded retries. It is written only by the orchestrator
// goroutine; observers receive copies.
type Store struct {
	dir     string // metadata directory; empty means in-memory only
	request string // user request this batch was planned for
	tasks   []Task
}

// NewStore creates a store persisting to dir. Pass an empty dir for an
// in-memory store (used in tests and for simple one-shot requests).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads a previously persisted batch from the metadata directory.
// A missing batch file is not an error; the store just starts empty.
func (s *Store) Load() error {
	if s.dir == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, batchFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read task batch: %w", err)
	}
	var batch struct {
		Request string `json:"request"`
		Tasks   []Task `json:"tasks"`
	}
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("failed to parse task batch: %w", err)
	}
	s.request = batch.Request
	s.tasks = batch.Tasks
	return nil
}

// Request returns the user request the current batch was planned for.
func (s *Store) Request() string { return s.request }

// CreateBatch replaces the task list with a new ordered batch for the
// given request and assigns IDs. It fails with ErrBatchActive if any
// existing task is non-terminal.
func (s *Store) CreateBatch(request string, drafts []Draft) ([]string, error) {
	if len(drafts) == 0 {
		return nil, errors.New("empty task batch")
	}
	for i := range s.tasks {
		if !s.tasks[i].Terminal() {
			return nil, ErrBatchActive
		}
	}

	now := time.Now()
	tasks := make([]Task, 0, len(drafts))
	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		id := uuid.NewString()
		tasks = append(tasks, Task{
			ID:        id,
			Content:   d.Content,
			Priority:  d.Priority,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
		ids = append(ids, id)
	}
	s.request = request
	s.tasks = tasks
	if err := s.save(); err != nil {
		return nil, err
	}
	return ids, nil
}

// NextPending returns the next task to execute and promotes it to
// in-progress in the same call. If a task is already in progress (a
// resumed run) it is returned as-is; otherwise the highest-priority
// pending task wins, ties broken by insertion order. Returns nil when
// nothing remains.
func (s *Store) NextPending() (*Task, error) {
	for i := range s.tasks {
		if s.tasks[i].Status == StatusInProgress {
			t := s.tasks[i]
			return &t, nil
		}
	}

	best := -1
	for i := range s.tasks {
		if s.tasks[i].Status != StatusPending {
			continue
		}
		if best == -1 || s.tasks[i].Priority.rank() < s.tasks[best].Priority.rank() {
			best = i
		}
	}
	if best == -1 {
		return nil, nil
	}

	s.tasks[best].Status = StatusInProgress
	s.tasks[best].UpdatedAt = time.Now()
	if err := s.save(); err != nil {
		return nil, err
	}
	t := s.tasks[best]
	return &t, nil
}

// Complete transitions an in-progress task to completed and records its
// result summary for later tasks to build on.
func (s *Store) Complete(id, resultSummary string) error {
	t, err := s.inProgress(id)
	if err != nil {
		return err
	}
	t.Status = StatusCompleted
	t.ResultSummary = resultSummary
	t.Feedback = ""
	t.UpdatedAt = time.Now()
	return s.save()
}

// Requeue records a failed validation. While retries remain the task
// returns to pending carrying the validator feedback for the next
// context build. Once MaxRetries failed attempts have been consumed the
// task is abandoned instead: terminal, completed-with-failure, so the
// batch can keep moving. The returned bool reports abandonment.
func (s *Store) Requeue(id, feedback string) (bool, error) {
	t, err := s.inProgress(id)
	if err != nil {
		return false, err
	}
	if t.RetryCount >= MaxRetries {
		t.Status = StatusCompleted
		t.Abandoned = true
		t.Feedback = feedback
		t.UpdatedAt = time.Now()
		return true, s.save()
	}
	t.RetryCount++
	t.Status = StatusPending
	t.Feedback = feedback
	t.UpdatedAt = time.Now()
	return false, s.save()
}

// Cancel transitions a single in-progress task to cancelled. Used when
// the user interrupts the attempt currently in flight.
func (s *Store) Cancel(id string) error {
	t, err := s.inProgress(id)
	if err != nil {
		return err
	}
	t.Status = StatusCancelled
	t.UpdatedAt = time.Now()
	return s.save()
}

// CancelAll transitions every non-terminal task to cancelled. Used when
// the user interrupts execution and chooses to stop the whole batch.
func (s *Store) CancelAll() error {
	now := time.Now()
	for i := range s.tasks {
		if !s.tasks[i].Terminal() {
			s.tasks[i].Status = StatusCancelled
			s.tasks[i].UpdatedAt = now
		}
	}
	return s.save()
}

// Clear drops the batch once every task is terminal.
func (s *Store) Clear() error {
	for i := range s.tasks {
		if !s.tasks[i].Terminal() {
			return ErrBatchActiveTasks
		}
	}
	s.tasks = nil
	s.request = ""
	if s.dir == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, batchFileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove task batch: %w", err)
	}
	return nil
}

// Tasks returns a copy of the batch in insertion order.
func (s *Store) Tasks() []Task {
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Completed returns copies of all successfully completed (not abandoned)
// tasks in insertion order.
func (s *Store) Completed() []Task {
	var out []Task
	for i := range s.tasks {
		if s.tasks[i].Status == StatusCompleted && !s.tasks[i].Abandoned {
			out = append(out, s.tasks[i])
		}
	}
	return out
}

// AllTerminal reports whether every task in the batch is terminal.
func (s *Store) AllTerminal() bool {
	for i := range s.tasks {
		if !s.tasks[i].Terminal() {
			return false
		}
	}
	return true
}

// Len returns the number of tasks in the batch.
func (s *Store) Len() int { return len(s.tasks) }

func (s *Store) inProgress(id string) (*Task, error) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			if s.tasks[i].Status != StatusInProgress {
				return nil, fmt.Errorf("%w: %s is %s", ErrNotInProgress, id, s.tasks[i].Status)
			}
			return &s.tasks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// save atomically writes the batch file using a temp file + rename.
func (s *Store) save() error {
	if s.dir == "" {
		return nil
	}
	batch := struct {
		Request   string    `json:"request"`
		Tasks     []Task    `json:"tasks"`
		UpdatedAt time.Time `json:"updatedAt"`
	}{Request: s.request, Tasks: s.tasks, UpdatedAt: time.Now()}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task batch: %w", err)
	}

	path := filepath.Join(s.dir, batchFileName)
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
