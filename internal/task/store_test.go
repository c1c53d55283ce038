package task

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func mustCreateBatch(t *testing.T, s *Store, drafts []Draft) []string {
	t.Helper()
	ids, err := s.CreateBatch("test request", drafts)
	if err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	return ids
}

func TestCreateBatchAssignsIDsInOrder(t *testing.T) {
	s := newTestStore(t)
	ids := mustCreateBatch(t, s, []Draft{
		{Content: "analyze the codebase", Priority: PriorityHigh},
		{Content: "implement the feature", Priority: PriorityHigh},
		{Content: "document the solution", Priority: PriorityLow},
	})

	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	tasks := s.Tasks()
	for i, task := range tasks {
		if task.ID != ids[i] {
			t.Errorf("task %d: id %q does not match returned id %q", i, task.ID, ids[i])
		}
		if task.Status != StatusPending {
			t.Errorf("task %d: status = %q, want %q", i, task.Status, StatusPending)
		}
		if task.RetryCount != 0 {
			t.Errorf("task %d: retry count = %d, want 0", i, task.RetryCount)
		}
	}
}

func TestCreateBatchRejectsEmpty(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateBatch("anything", nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestCreateBatchRejectsActiveBatch(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{{Content: "first batch", Priority: PriorityMedium}})

	_, err := s.CreateBatch("another request", []Draft{{Content: "second batch", Priority: PriorityMedium}})
	if !errors.Is(err, ErrBatchActive) {
		t.Fatalf("expected ErrBatchActive, got %v", err)
	}
}

func TestCreateBatchReplacesTerminalBatch(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{{Content: "old work", Priority: PriorityMedium}})
	if err := s.CancelAll(); err != nil {
		t.Fatalf("CancelAll failed: %v", err)
	}

	ids := mustCreateBatch(t, s, []Draft{{Content: "new work", Priority: PriorityMedium}})
	if len(ids) != 1 || s.Len() != 1 {
		t.Fatalf("expected fresh batch of 1 task, got %d", s.Len())
	}
	if s.Tasks()[0].Content != "new work" {
		t.Errorf("batch was not replaced: %q", s.Tasks()[0].Content)
	}
}

func TestNextPendingPriorityOrder(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{
		{Content: "low first in insertion order", Priority: PriorityLow},
		{Content: "medium task", Priority: PriorityMedium},
		{Content: "high task", Priority: PriorityHigh},
	})

	next, err := s.NextPending()
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next.Content != "high task" {
		t.Errorf("expected high-priority task first, got %q", next.Content)
	}
	if next.Status != StatusInProgress {
		t.Errorf("status = %q, want %q", next.Status, StatusInProgress)
	}
}

func TestNextPendingTieBreakByInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{
		{Content: "first high", Priority: PriorityHigh},
		{Content: "second high", Priority: PriorityHigh},
	})

	next, err := s.NextPending()
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next.Content != "first high" {
		t.Errorf("expected insertion-order tie break, got %q", next.Content)
	}
}

func TestNextPendingReturnsInProgressTask(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{
		{Content: "task a", Priority: PriorityHigh},
		{Content: "task b", Priority: PriorityHigh},
	})

	first, _ := s.NextPending()
	again, err := s.NextPending()
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected the in-progress task again, got a different task")
	}
	assertSingleInProgress(t, s)
}

func TestNextPendingExhausted(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{{Content: "only task", Priority: PriorityMedium}})

	next, _ := s.NextPending()
	if err := s.Complete(next.ID, "done"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	next, err := s.NextPending()
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next != nil {
		t.Errorf("expected nil when no pending tasks remain, got %+v", next)
	}
}

func TestCompleteStoresSummary(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{{Content: "create a script", Priority: PriorityHigh}})

	next, _ := s.NextPending()
	if err := s.Complete(next.ID, "created hello.py"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	got := s.Tasks()[0]
	if got.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.ResultSummary != "created hello.py" {
		t.Errorf("result summary = %q", got.ResultSummary)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	s := newTestStore(t)
	ids := mustCreateBatch(t, s, []Draft{{Content: "pending task", Priority: PriorityMedium}})

	err := s.Complete(ids[0], "done")
	if !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("expected ErrNotInProgress, got %v", err)
	}
}

func TestRequeueRetriesThenAbandons(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{
		{Content: "stubborn task", Priority: PriorityHigh},
		{Content: "sibling task", Priority: PriorityLow},
	})

	var stubborn *Task
	for attempt := 0; attempt < MaxRetries; attempt++ {
		stubborn, _ = s.NextPending()
		abandoned, err := s.Requeue(stubborn.ID, "no files were created")
		if err != nil {
			t.Fatalf("Requeue failed on attempt %d: %v", attempt, err)
		}
		if abandoned {
			t.Fatalf("abandoned too early on attempt %d", attempt)
		}
	}

	got := s.Tasks()[0]
	if got.RetryCount != MaxRetries {
		t.Errorf("retry count = %d, want %d", got.RetryCount, MaxRetries)
	}
	if got.Feedback != "no files were created" {
		t.Errorf("feedback = %q", got.Feedback)
	}

	// Retries are exhausted: the next failure abandons the task.
	stubborn, _ = s.NextPending()
	if stubborn.ID != got.ID {
		t.Fatalf("expected stubborn task first (high priority), got %q", stubborn.Content)
	}
	abandoned, err := s.Requeue(stubborn.ID, "still failing")
	if err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}
	if !abandoned {
		t.Fatal("expected abandonment after MaxRetries failures")
	}

	got = s.Tasks()[0]
	if !got.Terminal() || !got.Abandoned {
		t.Errorf("abandoned task should be terminal with annotation, got status=%q abandoned=%v", got.Status, got.Abandoned)
	}
	if got.RetryCount > MaxRetries {
		t.Errorf("retry count %d exceeds MaxRetries", got.RetryCount)
	}

	// The batch keeps moving: the sibling is dispatched next.
	next, _ := s.NextPending()
	if next == nil || next.Content != "sibling task" {
		t.Fatalf("expected sibling task to run after abandonment, got %+v", next)
	}
}

func TestCancelSingleTask(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{
		{Content: "interrupted task", Priority: PriorityHigh},
		{Content: "later task", Priority: PriorityLow},
	})

	next, _ := s.NextPending()
	if err := s.Cancel(next.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	tasks := s.Tasks()
	if tasks[0].Status != StatusCancelled {
		t.Errorf("status = %q, want %q", tasks[0].Status, StatusCancelled)
	}
	if tasks[1].Status != StatusPending {
		t.Errorf("sibling should stay pending, got %q", tasks[1].Status)
	}

	// Cancel requires an in-progress task.
	if err := s.Cancel(tasks[1].ID); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("expected ErrNotInProgress, got %v", err)
	}
}

func TestCancelAll(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{
		{Content: "task a", Priority: PriorityHigh},
		{Content: "task b", Priority: PriorityMedium},
		{Content: "task c", Priority: PriorityLow},
	})

	next, _ := s.NextPending()
	if err := s.Complete(next.ID, "done"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := s.NextPending(); err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}

	if err := s.CancelAll(); err != nil {
		t.Fatalf("CancelAll failed: %v", err)
	}

	var cancelled, completed int
	for _, task := range s.Tasks() {
		switch task.Status {
		case StatusCancelled:
			cancelled++
		case StatusCompleted:
			completed++
		default:
			t.Errorf("task %q left in non-terminal status %q", task.Content, task.Status)
		}
	}
	if completed != 1 || cancelled != 2 {
		t.Errorf("completed=%d cancelled=%d, want 1 and 2", completed, cancelled)
	}
	if !s.AllTerminal() {
		t.Error("expected all tasks terminal after CancelAll")
	}
}

func TestClearRequiresTerminalBatch(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{{Content: "in-flight work", Priority: PriorityMedium}})

	if err := s.Clear(); !errors.Is(err, ErrBatchActiveTasks) {
		t.Fatalf("expected ErrBatchActiveTasks, got %v", err)
	}

	if err := s.CancelAll(); err != nil {
		t.Fatalf("CancelAll failed: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store after Clear, got %d tasks", s.Len())
	}
}

func TestSingleInProgressInvariant(t *testing.T) {
	s := newTestStore(t)
	mustCreateBatch(t, s, []Draft{
		{Content: "task a", Priority: PriorityHigh},
		{Content: "task b", Priority: PriorityHigh},
		{Content: "task c", Priority: PriorityHigh},
	})

	// Observe the invariant at every step of a full batch run.
	for {
		next, err := s.NextPending()
		if err != nil {
			t.Fatalf("NextPending failed: %v", err)
		}
		if next == nil {
			break
		}
		assertSingleInProgress(t, s)
		if err := s.Complete(next.ID, "ok"); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		assertSingleInProgress(t, s)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	ids := mustCreateBatch(t, s, []Draft{
		{Content: "persisted task", Priority: PriorityHigh},
	})
	next, _ := s.NextPending()
	if _, err := s.Requeue(next.ID, "placeholder content detected"); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	restored := NewStore(dir)
	if err := restored.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := restored.Tasks()
	if len(got) != 1 {
		t.Fatalf("expected 1 restored task, got %d", len(got))
	}
	if got[0].ID != ids[0] {
		t.Errorf("restored id = %q, want %q", got[0].ID, ids[0])
	}
	if got[0].RetryCount != 1 {
		t.Errorf("restored retry count = %d, want 1", got[0].RetryCount)
	}
	if got[0].Feedback != "placeholder content detected" {
		t.Errorf("restored feedback = %q", got[0].Feedback)
	}
	if restored.Request() != "test request" {
		t.Errorf("restored request = %q, want %q", restored.Request(), "test request")
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Load(); err != nil {
		t.Fatalf("Load of missing batch file failed: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d tasks", s.Len())
	}
}

func TestInMemoryStoreWritesNoFiles(t *testing.T) {
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })

	s := NewStore("")
	mustCreateBatch(t, s, []Draft{{Content: "ephemeral", Priority: PriorityLow}})

	if _, err := os.Stat(filepath.Join(dir, batchFileName)); !os.IsNotExist(err) {
		t.Errorf("in-memory store should not write %s", batchFileName)
	}
}

func assertSingleInProgress(t *testing.T, s *Store) {
	t.Helper()
	count := 0
	for _, task := range s.Tasks() {
		if task.Status == StatusInProgress {
			count++
		}
	}
	if count > 1 {
		t.Fatalf("%d tasks in progress, invariant allows at most one", count)
	}
}
