package concurrency

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// defaultExecutor implements Executor using channels and goroutines
// internally, hiding all concurrency primitives from the public API.
type defaultExecutor struct {
	taskChan  chan Task
	workers   int
	queueSize int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
	logger    simpleLogger

	// Metrics (atomic for thread-safety)
	queuedTasks    int64
	completedTasks int64
	failedTasks    int64
	rejectedTasks  int64
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Workers   int // Number of worker goroutines
	QueueSize int // Maximum queue size (bounded for backpressure)
}

// DefaultExecutorConfig returns default executor configuration.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Workers:   10,
		QueueSize: 1000,
	}
}

// NewExecutor creates a new Executor with the given configuration and
// starts its workers.
func NewExecutor(ctx context.Context, config ExecutorConfig) Executor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 100
	}

	ctx, cancel := context.WithCancel(ctx)

	exec := &defaultExecutor{
		taskChan:  make(chan Task, config.QueueSize),
		workers:   config.Workers,
		queueSize: config.QueueSize,
		ctx:       ctx,
		cancel:    cancel,
		logger:    newDefaultSimpleLogger(),
	}

	exec.wg.Add(exec.workers)
	for i := 0; i < exec.workers; i++ {
		go exec.worker(i)
	}

	return exec
}

// worker processes tasks from the queue.
func (e *defaultExecutor) worker(id int) {
	defer e.wg.Done()

	for {
		select {
		case task, ok := <-e.taskChan:
			if !ok {
				return
			}
			atomic.AddInt64(&e.queuedTasks, -1)
			e.run(id, task)

		case <-e.ctx.Done():
			return
		}
	}
}

// run executes one task, converting panics into failures so a bad
// task cannot take down the worker.
func (e *defaultExecutor) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&e.failedTasks, 1)
			e.logger.Errorf("worker %d: task %s panicked: %v", id, task.Name(), r)
		}
	}()

	if err := task.Execute(e.ctx); err != nil {
		atomic.AddInt64(&e.failedTasks, 1)
		e.logger.Errorf("worker %d: task %s failed: %v", id, task.Name(), err)
		return
	}
	atomic.AddInt64(&e.completedTasks, 1)
}

// trySend attempts one non-blocking enqueue. The read lock is held
// across the send so it cannot race the channel close in Shutdown,
// which happens under the write lock.
func (e *defaultExecutor) trySend(task Task) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrExecutorClosed
	}

	select {
	case e.taskChan <- task:
		atomic.AddInt64(&e.queuedTasks, 1)
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Submit implements Executor.
func (e *defaultExecutor) Submit(task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	err := e.trySend(task)
	if err == ErrQueueFull {
		atomic.AddInt64(&e.rejectedTasks, 1)
	}
	return err
}

// SubmitWithTimeout implements Executor.
// Retries non-blocking sends until timeout rather than holding the
// submit guard across a blocking send, which would stall Shutdown.
func (e *defaultExecutor) SubmitWithTimeout(task Task, timeout time.Duration) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	deadline := time.Now().Add(timeout)
	for {
		err := e.trySend(task)
		if err != ErrQueueFull {
			return err
		}
		if time.Now().After(deadline) {
			atomic.AddInt64(&e.rejectedTasks, 1)
			return fmt.Errorf("submit timeout after %v: %w", timeout, ErrQueueFull)
		}
		time.Sleep(time.Millisecond)
	}
}

// Shutdown implements Executor.
func (e *defaultExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	// Closed under the write lock so no trySend can be mid-send.
	close(e.taskChan)
	e.mu.Unlock()

	// Wait for in-flight tasks up to the grace period, then force-cancel.
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// Workers implements Executor.
func (e *defaultExecutor) Workers() int {
	return e.workers
}

// IsRunning implements Executor.
func (e *defaultExecutor) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Stats implements Executor.
func (e *defaultExecutor) Stats() ExecutorStats {
	queued := atomic.LoadInt64(&e.queuedTasks)
	if queued < 0 {
		queued = 0
	}
	utilization := float64(queued) / float64(e.queueSize) * 100.0
	if utilization > 100.0 {
		utilization = 100.0
	}

	return ExecutorStats{
		QueuedTasks:      queued,
		ActiveWorkers:    e.workers,
		CompletedTasks:   atomic.LoadInt64(&e.completedTasks),
		FailedTasks:      atomic.LoadInt64(&e.failedTasks),
		RejectedTasks:    atomic.LoadInt64(&e.rejectedTasks),
		QueueCapacity:    e.queueSize,
		QueueUtilization: utilization,
	}
}
