package task

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task type constants
const (
	// TaskTypeNoteSummary represents the task type for summarizing notes
	TaskTypeNoteSummary = "note_summary"
)

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Status returns the current task status
	Status() TaskStatus

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// Hydrator reconstructs an executable task from its persisted form.
// The task runner uses it to turn recovered task rows back into tasks that
// can run, keeping the persisted row ID so status updates land on the same
// row.
type Hydrator interface {
	// Hydrate builds an executable task from a persisted id, type, and
	// payload. Returns an error for unknown task types or malformed
	// payloads.
	Hydrate(id uuid.UUID, taskType string, payload []byte) (Task, error)
}

// TaskRecord is the persisted form of a task, as loaded from the store.
type TaskRecord struct {
	ID        uuid.UUID
	Type      string
	Payload   []byte
	Status    TaskStatus
	ErrorMsg  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskStore defines the interface for persisting tasks
type TaskStore interface {
	// SaveTask persists a task to the database
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus updates the status of a task
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// GetPendingTasks retrieves the records of all tasks with "pending" status
	GetPendingTasks(ctx context.Context) ([]TaskRecord, error)

	// GetProcessingTasks retrieves the records of tasks with "processing"
	// status. If olderThan is non-zero, only returns tasks that have been in
	// this state longer than the specified duration.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]TaskRecord, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
