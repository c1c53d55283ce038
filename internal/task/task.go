package task

import "time"

// Priority orders tasks within a batch. High-priority tasks are dispatched
// before medium, medium before low. Ties are broken by insertion order.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps a priority label (case-insensitive) to a Priority.
// Unknown labels default to medium, matching planner output handling.
func ParsePriority(s string) Priority {
	switch s {
	case "high", "HIGH", "High":
		return PriorityHigh
	case "low", "LOW", "Low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// rank returns the dispatch order for a priority (lower dispatches first).
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// MaxRetries bounds how many failed-validation retries a task gets before
// it is abandoned. The loop never spins forever on one task.
const MaxRetries = 3

// Task is one unit of planned work, created during planning and mutated
// only through Store methods.
type Task struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Priority      Priority  `json:"priority"`
	Status        Status    `json:"status"`
	RetryCount    int       `json:"retryCount"`
	ResultSummary string    `json:"resultSummary,omitempty"`
	Feedback      string    `json:"feedback,omitempty"`
	Abandoned     bool      `json:"abandoned,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Terminal reports whether the task has reached a final state.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}

// Draft is the planner's input to CreateBatch: a task description plus
// priority, before an ID or status is assigned.
type Draft struct {
	Content  string
	Priority Priority
}
