// Package domain holds the pure types shared by every layer.
// A Task is one prompt submitted to a session's on-chain queue:
// submitted → queued → resolved | expired. This system only observes the
// transitions; the queue and its miners drive them.
package domain

import "time"

// TaskState is the client-side view of a task's progress.
type TaskState string

const (
	TaskSubmitted TaskState = "SUBMITTED" // tx sent, queue id not yet known
	TaskQueued    TaskState = "QUEUED"    // id read from the TaskQueued event
	TaskResolved  TaskState = "RESOLVED"  // at least one result observed
	TaskExpired   TaskState = "EXPIRED"   // polling deadline reached
)

// Task is a unit of work recorded by the session queue.
type Task struct {
	ID        uint64    `json:"id"`
	SessionID uint64    `json:"session_id"`
	GlobalID  uint64    `json:"global_id"`
	Payload   string    `json:"payload"`
	Miners    []string  `json:"assigned_miners,omitempty"`
	Status    uint64    `json:"status"` // queue-defined code
	CreatedAt time.Time `json:"created_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// IsTerminal returns true if the queue reports the task as ended.
func (t *Task) IsTerminal() bool {
	return !t.EndedAt.IsZero()
}

// TaskResult is one miner's answer to a task.
type TaskResult struct {
	Miner     string    `json:"miner"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Submission identifies a task right after its transaction was included.
// TaskID 0 means the queue event was not found and the id is unknown.
type Submission struct {
	TaskID uint64 `json:"task_id"`
	TxHash string `json:"tx_hash"`
}

// Execution is the outcome of submitting a task and waiting for its result.
// Result is nil whenever Success is false.
type Execution struct {
	Success bool    `json:"success"`
	Result  *string `json:"result"`
	TaskID  uint64  `json:"task_id"`
	TxHash  string  `json:"tx_hash"`

	// State is the last observed state; empty when nothing was submitted.
	State TaskState `json:"state,omitempty"`
}
