package concurrency

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQueueFull is returned when a task cannot be queued (backpressure).
	ErrQueueFull = errors.New("task queue is full")

	// ErrExecutorClosed is returned when submitting to a shut-down executor.
	ErrExecutorClosed = errors.New("executor is closed")
)

// ExecutorStats provides statistics about executor performance.
type ExecutorStats struct {
	QueuedTasks      int64   // Current number of queued tasks
	ActiveWorkers    int     // Number of worker goroutines
	CompletedTasks   int64   // Total completed tasks
	FailedTasks      int64   // Total tasks that returned an error or panicked
	RejectedTasks    int64   // Total rejected tasks (backpressure)
	QueueCapacity    int     // Maximum queue capacity
	QueueUtilization float64 // Queue utilization percentage
}

// Executor abstracts goroutine pool management and task execution.
// A task that returns an error or panics is counted as failed; it
// never terminates the worker that ran it.
type Executor interface {
	// Submit queues a task for execution.
	// Returns ErrQueueFull if the queue is full or ErrExecutorClosed
	// after shutdown.
	Submit(task Task) error

	// SubmitWithTimeout queues a task, waiting up to timeout for queue
	// space.
	SubmitWithTimeout(task Task, timeout time.Duration) error

	// Shutdown gracefully shuts down the executor.
	// Drains queued tasks up to ctx's deadline, then force-cancels the
	// remainder via the executor context.
	Shutdown(ctx context.Context) error

	// Workers returns the number of worker goroutines.
	Workers() int

	// IsRunning returns true until Shutdown is called.
	IsRunning() bool

	// Stats returns current executor statistics.
	Stats() ExecutorStats
}
