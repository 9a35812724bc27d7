package concurrency

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/contentcoreio/contentcore/pkg/async"
)

// Workload classifies a task so the manager can route it to an
// appropriately sized pool.
type Workload int

const (
	// CPU routes to the compute-bound pool, sized near hardware
	// parallelism.
	CPU Workload = iota

	// IO routes to the blocking-work pool, sized larger than the CPU
	// count to absorb blocking waits.
	IO

	// Scheduled routes to the deferred/periodic scheduler.
	Scheduled
)

func (w Workload) String() string {
	switch w {
	case CPU:
		return "cpu"
	case IO:
		return "io"
	case Scheduled:
		return "scheduled"
	}
	return fmt.Sprintf("workload(%d)", int(w))
}

// ManagerConfig configures a PoolManager.
type ManagerConfig struct {
	CPUWorkers int // Compute pool size; defaults to runtime.NumCPU()
	IOWorkers  int // Blocking pool size; defaults to 2*NumCPU, min 4
	QueueSize  int // Per-pool queue capacity
}

// DefaultManagerConfig sizes the pools from the available hardware
// parallelism.
func DefaultManagerConfig() ManagerConfig {
	cpus := runtime.NumCPU()
	ioWorkers := cpus * 2
	if ioWorkers < 4 {
		ioWorkers = 4
	}
	return ManagerConfig{
		CPUWorkers: cpus,
		IOWorkers:  ioWorkers,
		QueueSize:  1000,
	}
}

// ManagerStats aggregates statistics across the managed pools.
type ManagerStats struct {
	Submitted int64
	Completed int64
	Failed    int64
	CPU       ExecutorStats
	IO        ExecutorStats
	Scheduler SchedulerStats
}

// PoolManager owns the three execution pools: a CPU-bound executor, an
// IO-bound executor and a scheduler for deferred work. It is always
// constructed and injected explicitly; there is no process-wide
// instance.
type PoolManager struct {
	cpu       Executor
	io        Executor
	scheduler *Scheduler
	submitted int64
}

// NewPoolManager creates a manager with pools sized per config.
func NewPoolManager(ctx context.Context, config ManagerConfig) *PoolManager {
	defaults := DefaultManagerConfig()
	if config.CPUWorkers < 1 {
		config.CPUWorkers = defaults.CPUWorkers
	}
	if config.IOWorkers < 1 {
		config.IOWorkers = defaults.IOWorkers
	}
	if config.QueueSize < 1 {
		config.QueueSize = defaults.QueueSize
	}

	return &PoolManager{
		cpu:       NewExecutor(ctx, ExecutorConfig{Workers: config.CPUWorkers, QueueSize: config.QueueSize}),
		io:        NewExecutor(ctx, ExecutorConfig{Workers: config.IOWorkers, QueueSize: config.QueueSize}),
		scheduler: NewScheduler(ctx),
	}
}

// Submit routes task to the pool for class.
// Scheduled tasks must go through the Schedule* methods.
func (m *PoolManager) Submit(class Workload, task Task) error {
	var err error
	switch class {
	case CPU:
		err = m.cpu.Submit(task)
	case IO:
		err = m.io.Submit(task)
	case Scheduled:
		return fmt.Errorf("scheduled tasks require an interval; use ScheduleAtFixedRate or ScheduleWithFixedDelay")
	default:
		return fmt.Errorf("unknown workload class %v", class)
	}
	if err == nil {
		atomic.AddInt64(&m.submitted, 1)
	}
	return err
}

// ScheduleAtFixedRate runs task every interval, start to start.
func (m *PoolManager) ScheduleAtFixedRate(task Task, interval time.Duration) (*ScheduledHandle, error) {
	return m.scheduler.ScheduleAtFixedRate(task, interval)
}

// ScheduleWithFixedDelay runs task with a fixed pause between runs.
func (m *PoolManager) ScheduleWithFixedDelay(task Task, delay time.Duration) (*ScheduledHandle, error) {
	return m.scheduler.ScheduleWithFixedDelay(task, delay)
}

// ScheduleOnce runs task once after delay.
func (m *PoolManager) ScheduleOnce(task Task, delay time.Duration) (*ScheduledHandle, error) {
	return m.scheduler.ScheduleOnce(task, delay)
}

// CPUWorkers returns the size of the compute pool.
func (m *PoolManager) CPUWorkers() int {
	return m.cpu.Workers()
}

// IOWorkers returns the size of the blocking pool.
func (m *PoolManager) IOWorkers() int {
	return m.io.Workers()
}

// Stats aggregates statistics across both pools and the scheduler.
func (m *PoolManager) Stats() ManagerStats {
	cpuStats := m.cpu.Stats()
	ioStats := m.io.Stats()
	return ManagerStats{
		Submitted: atomic.LoadInt64(&m.submitted),
		Completed: cpuStats.CompletedTasks + ioStats.CompletedTasks,
		Failed:    cpuStats.FailedTasks + ioStats.FailedTasks,
		CPU:       cpuStats,
		IO:        ioStats,
		Scheduler: m.scheduler.Stats(),
	}
}

// Shutdown drains all pools up to ctx's deadline.
func (m *PoolManager) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := m.scheduler.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := m.cpu.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.io.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Execute submits fn to the pool for class and returns a future that
// settles with fn's result. A panic in fn is captured into the future,
// never propagated to the pool's dispatch loop.
func Execute[T any](m *PoolManager, class Workload, name string, fn func(ctx context.Context) (T, error)) *async.Future[T] {
	future := async.NewFuture[T]()

	task := NewNamedTask(name, func(ctx context.Context) error {
		defer func() {
			if r := recover(); r != nil {
				future.TryFail(fmt.Errorf("task %s panicked: %v", name, r))
			}
		}()

		value, err := fn(ctx)
		if err != nil {
			future.Fail(err)
			return err
		}
		future.Complete(value)
		return nil
	})

	if err := m.Submit(class, task); err != nil {
		future.Fail(err)
	}
	return future
}
