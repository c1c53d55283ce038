package task

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const progressLogFileName = "progress.log"

// Event type constants for progress logging.
const (
	EventBatchCreated   = "batch_created"
	EventBatchCompleted = "batch_completed"
	EventBatchCancelled = "batch_cancelled"
	EventTaskStarted    = "task_started"
	EventTaskCompleted  = "task_completed"
	EventTaskRequeued   = "task_requeued"
	EventTaskAbandoned  = "task_abandoned"
)

// ProgressEvent represents a single progress log entry.
type ProgressEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ProgressLogger writes progress events to a JSON Lines file in the
// workspace metadata directory.
type ProgressLogger struct {
	path string
}

// NewProgressLogger creates a progress logger for the given metadata directory.
func NewProgressLogger(dir string) *ProgressLogger {
	return &ProgressLogger{
		path: filepath.Join(dir, progressLogFileName),
	}
}

// Log appends a progress event to the log file.
func (p *ProgressLogger) Log(event string, data map[string]interface{}) error {
	entry := ProgressEvent{
		Timestamp: time.Now(),
		Event:     event,
		Data:      data,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	jsonBytes = append(jsonBytes, '\n')

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(jsonBytes)
	return err
}

// BatchCreated logs a batch_created event.
func (p *ProgressLogger) BatchCreated(request string, taskCount int) error {
	return p.Log(EventBatchCreated, map[string]interface{}{
		"request":    request,
		"task_count": taskCount,
	})
}

// TaskStarted logs a task_started event.
func (p *ProgressLogger) TaskStarted(taskID string, attempt int) error {
	return p.Log(EventTaskStarted, map[string]interface{}{
		"task_id": taskID,
		"attempt": attempt,
	})
}

// TaskCompleted logs a task_completed event.
func (p *ProgressLogger) TaskCompleted(taskID string) error {
	return p.Log(EventTaskCompleted, map[string]interface{}{
		"task_id": taskID,
	})
}

// TaskRequeued logs a task_requeued event with the validator's reason.
func (p *ProgressLogger) TaskRequeued(taskID, reason string, retryCount int) error {
	return p.Log(EventTaskRequeued, map[string]interface{}{
		"task_id":     taskID,
		"reason":      reason,
		"retry_count": retryCount,
	})
}

// TaskAbandoned logs a task_abandoned event.
func (p *ProgressLogger) TaskAbandoned(taskID, reason string, attempts int) error {
	return p.Log(EventTaskAbandoned, map[string]interface{}{
		"task_id":  taskID,
		"reason":   reason,
		"attempts": attempts,
	})
}

// BatchCompleted logs a batch_completed event with summary statistics.
func (p *ProgressLogger) BatchCompleted(totalTasks, succeeded, abandoned int, duration time.Duration) error {
	return p.Log(EventBatchCompleted, map[string]interface{}{
		"total_tasks": totalTasks,
		"succeeded":   succeeded,
		"abandoned":   abandoned,
		"duration_ms": duration.Milliseconds(),
	})
}

// BatchCancelled logs a batch_cancelled event.
func (p *ProgressLogger) BatchCancelled(lastTaskID string) error {
	return p.Log(EventBatchCancelled, map[string]interface{}{
		"last_task_id": lastTaskID,
	})
}
