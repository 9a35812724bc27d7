package concurrency

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ScheduledHandle is a cancellable handle to a recurring task.
type ScheduledHandle struct {
	name      string
	cancel    context.CancelFunc
	cancelled int32
}

// Cancel stops future executions. An execution already in progress
// runs to completion.
func (h *ScheduledHandle) Cancel() {
	if atomic.CompareAndSwapInt32(&h.cancelled, 0, 1) {
		h.cancel()
	}
}

// IsCancelled returns true once Cancel has been called.
func (h *ScheduledHandle) IsCancelled() bool {
	return atomic.LoadInt32(&h.cancelled) == 1
}

// Name returns the scheduled task's name.
func (h *ScheduledHandle) Name() string {
	return h.name
}

// Scheduler runs deferred and periodic tasks.
// Each recurring task gets its own goroutine; task errors are logged
// and never stop the recurrence.
type Scheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	logger  simpleLogger
	fired   int64
	errored int64
}

// NewScheduler creates a scheduler bound to ctx.
func NewScheduler(ctx context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: newDefaultSimpleLogger(),
	}
}

// ScheduleAtFixedRate runs task every interval, measured start to
// start. A slow execution does not delay the next tick.
func (s *Scheduler) ScheduleAtFixedRate(task Task, interval time.Duration) (*ScheduledHandle, error) {
	return s.schedule(task, interval, true)
}

// ScheduleWithFixedDelay runs task repeatedly, waiting interval after
// each completion before the next run.
func (s *Scheduler) ScheduleWithFixedDelay(task Task, delay time.Duration) (*ScheduledHandle, error) {
	return s.schedule(task, delay, false)
}

// ScheduleOnce runs task once after delay.
func (s *Scheduler) ScheduleOnce(task Task, delay time.Duration) (*ScheduledHandle, error) {
	if err := s.check(task, delay); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	handle := &ScheduledHandle{name: task.Name(), cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		select {
		case <-time.After(delay):
			s.fire(runCtx, task)
		case <-runCtx.Done():
		}
	}()

	return handle, nil
}

func (s *Scheduler) schedule(task Task, interval time.Duration, fixedRate bool) (*ScheduledHandle, error) {
	if err := s.check(task, interval); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	handle := &ScheduledHandle{name: task.Name(), cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if fixedRate {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.fire(runCtx, task)
				case <-runCtx.Done():
					return
				}
			}
		}
		// Fixed delay: sleep restarts after each completed run.
		for {
			select {
			case <-time.After(interval):
				s.fire(runCtx, task)
			case <-runCtx.Done():
				return
			}
		}
	}()

	return handle, nil
}

func (s *Scheduler) check(task Task, interval time.Duration) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrExecutorClosed
	}
	return nil
}

func (s *Scheduler) fire(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&s.errored, 1)
			s.logger.Errorf("scheduled task %s panicked: %v", task.Name(), r)
		}
	}()

	atomic.AddInt64(&s.fired, 1)
	if err := task.Execute(ctx); err != nil {
		atomic.AddInt64(&s.errored, 1)
		s.logger.Errorf("scheduled task %s failed: %v", task.Name(), err)
	}
}

// SchedulerStats reports cumulative scheduler activity.
type SchedulerStats struct {
	Fired   int64 // Total executions started
	Errored int64 // Total executions that failed or panicked
}

// Stats returns cumulative scheduler statistics.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Fired:   atomic.LoadInt64(&s.fired),
		Errored: atomic.LoadInt64(&s.errored),
	}
}

// Shutdown cancels all recurring tasks and waits for in-flight
// executions up to ctx's deadline.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}
