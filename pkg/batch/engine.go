// Package batch executes large publish batches in parallel chunks
// with live progress tracking, cooperative cancellation and
// partial-failure recovery.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/contentcoreio/contentcore/pkg/async"
	"github.com/contentcoreio/contentcore/pkg/concurrency"
	"github.com/contentcoreio/contentcore/pkg/content"
	"github.com/contentcoreio/contentcore/pkg/core"
	"github.com/contentcoreio/contentcore/pkg/core/failfast"
	"github.com/contentcoreio/contentcore/pkg/notify"
	"github.com/contentcoreio/contentcore/pkg/pipeline"
)

// ResourceExhaustionError reports a batch rejected before starting
// because memory headroom or batch concurrency limits would be
// exceeded. Callers should retry later.
type ResourceExhaustionError struct {
	Reason string
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("batch rejected: %s", e.Reason)
}

const (
	// minHeadroomFraction is the free-memory fraction required to
	// start a batch.
	minHeadroomFraction = 0.25

	// DefaultMaxConcurrent bounds simultaneously active batches.
	DefaultMaxConcurrent = 10

	// DefaultMaxChunkSize caps the per-chunk item count.
	DefaultMaxChunkSize = 100

	// DefaultEvictionGrace keeps completed batches queryable.
	DefaultEvictionGrace = 5 * time.Minute
)

// Statistics is a snapshot of engine activity.
type Statistics struct {
	BatchesStarted   int64 `json:"batchesStarted"`
	BatchesCompleted int64 `json:"batchesCompleted"`
	BatchesCancelled int64 `json:"batchesCancelled"`
	BatchesRejected  int64 `json:"batchesRejected"`
	ItemsSucceeded   int64 `json:"itemsSucceeded"`
	ItemsFailed      int64 `json:"itemsFailed"`
	ActiveBatches    int64 `json:"activeBatches"`
}

// Options configures an Engine.
type Options struct {
	MaxConcurrent    int             // Active batch limit; defaults to DefaultMaxConcurrent
	MaxChunkSize     int             // Chunk size cap; defaults to DefaultMaxChunkSize
	MemoryLimitBytes uint64          // Heap budget for the headroom guard; defaults to 1 GiB
	EvictionGrace    time.Duration   // Completed-batch retention; defaults to DefaultEvictionGrace
	Notifier         notify.Notifier // Batch completion events; nil disables notification
	Logger           core.Logger
}

// Engine runs publish batches over the CPU pool.
type Engine struct {
	pools    *concurrency.PoolManager
	pipeline *pipeline.Pipeline
	notifier notify.Notifier
	logger   core.Logger

	maxConcurrent int
	maxChunkSize  int
	memoryLimit   uint64
	evictionGrace time.Duration

	operations  syncOperations
	activeCount int64

	started   int64
	completed int64
	cancelled int64
	rejected  int64
	itemsOK   int64
	itemsErr  int64

	sweep *concurrency.ScheduledHandle
}

// NewEngine creates a batch engine and starts its eviction sweep on
// the pool manager's scheduler.
func NewEngine(pools *concurrency.PoolManager, pipe *pipeline.Pipeline, opts Options) (*Engine, error) {
	failfast.NotNil(pools, "pools")
	failfast.NotNil(pipe, "pipe")

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.MemoryLimitBytes == 0 {
		opts.MemoryLimitBytes = 1 << 30
	}
	if opts.EvictionGrace <= 0 {
		opts.EvictionGrace = DefaultEvictionGrace
	}
	if opts.Logger == nil {
		opts.Logger = core.NewDefaultLogger()
	}

	e := &Engine{
		pools:         pools,
		pipeline:      pipe,
		notifier:      opts.Notifier,
		logger:        opts.Logger,
		maxConcurrent: opts.MaxConcurrent,
		maxChunkSize:  opts.MaxChunkSize,
		memoryLimit:   opts.MemoryLimitBytes,
		evictionGrace: opts.EvictionGrace,
	}

	sweepInterval := opts.EvictionGrace / 5
	if sweepInterval < 100*time.Millisecond {
		sweepInterval = 100 * time.Millisecond
	}
	if sweepInterval > time.Minute {
		sweepInterval = time.Minute
	}

	handle, err := pools.ScheduleWithFixedDelay(
		concurrency.NewNamedTask("batch:eviction-sweep", func(ctx context.Context) error {
			e.evictExpired()
			return nil
		}), sweepInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule eviction sweep: %w", err)
	}
	e.sweep = handle

	return e, nil
}

// Close stops the eviction sweep.
func (e *Engine) Close() {
	if e.sweep != nil {
		e.sweep.Cancel()
	}
}

// ProcessBatch publishes every record, partitioned into chunks run in
// parallel on the CPU pool. Blocks until every chunk completes and
// returns the terminal snapshot. Per-item failures never fail the
// call; guard violations return a *ResourceExhaustionError before any
// work starts.
func (e *Engine) ProcessBatch(ctx context.Context, records []*content.Record) (Snapshot, error) {
	if len(records) == 0 {
		return Snapshot{}, fmt.Errorf("batch is empty")
	}

	if err := e.admit(); err != nil {
		atomic.AddInt64(&e.rejected, 1)
		return Snapshot{}, err
	}

	contentIDs := make([]string, len(records))
	items := make([]*content.Record, len(records))
	for i, record := range records {
		if record == nil {
			atomic.AddInt64(&e.activeCount, -1)
			return Snapshot{}, fmt.Errorf("batch item %d is nil", i)
		}
		contentIDs[i] = record.ID
		items[i] = record.Clone()
	}

	op := newOperation(contentIDs)
	e.operations.store(op.id, op)
	atomic.AddInt64(&e.started, 1)

	op.setStatus(StatusRunning)
	e.logger.Infof("batch %s: publishing %d items", op.id, op.total)

	chunkSize := e.chunkSize(len(items))
	chunks := make([][]*content.Record, 0, (len(items)+chunkSize-1)/chunkSize)
	for lo := 0; lo < len(items); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(items) {
			hi = len(items)
		}
		chunks = append(chunks, items[lo:hi])
	}

	futures := make([]*async.Future[struct{}], len(chunks))
	for i, chunk := range chunks {
		chunk := chunk
		futures[i] = concurrency.Execute(e.pools, concurrency.CPU,
			fmt.Sprintf("batch:%s:chunk", op.id),
			func(taskCtx context.Context) (struct{}, error) {
				e.runChunk(taskCtx, op, chunk)
				return struct{}{}, nil
			})
	}

	// Block until every chunk settles. A failed chunk future means the
	// pool rejected the submission and the chunk never ran; process it
	// here, in the caller's goroutine, so every item is accounted for.
	settled, _ := async.AllSettled(ctx, futures...).Await(context.Background())
	for i, item := range settled {
		if item.Err != nil {
			e.logger.Warnf("batch %s: chunk %d rejected by pool (%v), running inline", op.id, i, item.Err)
			e.runChunk(ctx, op, chunks[i])
		}
	}

	status := op.finish()
	atomic.AddInt64(&e.activeCount, -1)
	switch status {
	case StatusCancelled:
		atomic.AddInt64(&e.cancelled, 1)
	default:
		atomic.AddInt64(&e.completed, 1)
	}

	snapshot := op.Snapshot()
	e.logger.Infof("batch %s: %s (%d succeeded, %d failed)", op.id, status, snapshot.Succeeded, snapshot.Failed)
	e.notifyCompletion(snapshot)
	return snapshot, nil
}

// admit enforces the resource-availability guard.
func (e *Engine) admit() error {
	for {
		active := atomic.LoadInt64(&e.activeCount)
		if active >= int64(e.maxConcurrent) {
			return &ResourceExhaustionError{
				Reason: fmt.Sprintf("%d batches already active (limit %d)", active, e.maxConcurrent),
			}
		}
		if atomic.CompareAndSwapInt64(&e.activeCount, active, active+1) {
			break
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapAlloc < e.memoryLimit {
		headroom := float64(e.memoryLimit-m.HeapAlloc) / float64(e.memoryLimit)
		if headroom >= minHeadroomFraction {
			return nil
		}
	}
	atomic.AddInt64(&e.activeCount, -1)
	return &ResourceExhaustionError{Reason: "insufficient memory headroom"}
}

// chunkSize sizes chunks so roughly two land on each CPU worker.
func (e *Engine) chunkSize(total int) int {
	size := total / (2 * e.pools.CPUWorkers())
	if size > e.maxChunkSize {
		size = e.maxChunkSize
	}
	if size < 1 {
		size = 1
	}
	return size
}

// runChunk publishes the chunk's items sequentially, polling the
// cancellation flag before each item.
func (e *Engine) runChunk(ctx context.Context, op *Operation, chunk []*content.Record) {
	for _, record := range chunk {
		if op.IsCancelled() {
			return
		}

		result := e.pipeline.ProcessSync(ctx, record)
		if result.Success {
			op.recordSuccess()
			atomic.AddInt64(&e.itemsOK, 1)
		} else {
			op.recordFailure(record.ID, result.Message)
			atomic.AddInt64(&e.itemsErr, 1)
		}
	}
}

func (e *Engine) notifyCompletion(snapshot Snapshot) {
	if e.notifier == nil {
		return
	}

	eventType := content.EventBatchCompleted
	if snapshot.Status == StatusCancelled {
		eventType = content.EventBatchCancelled
	}
	event := &content.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"batchId":   snapshot.ID,
			"status":    string(snapshot.Status),
			"succeeded": fmt.Sprintf("%d", snapshot.Succeeded),
			"failed":    fmt.Sprintf("%d", snapshot.Failed),
		},
	}
	notify.Dispatch(e.pools, e.notifier, e.logger, event)
}

// CancelBatch raises the cancellation flag on an active batch.
// Returns false if the batch is unknown or already terminal.
func (e *Engine) CancelBatch(batchID string) bool {
	op, ok := e.operations.load(batchID)
	if !ok {
		return false
	}
	if _, terminal := op.terminalSince(); terminal {
		return false
	}
	op.Cancel()
	return true
}

// GetBatchStatus returns a snapshot of the batch, if still retained.
// Completed batches stay queryable for the eviction grace period.
func (e *Engine) GetBatchStatus(batchID string) (Snapshot, bool) {
	op, ok := e.operations.load(batchID)
	if !ok {
		return Snapshot{}, false
	}
	return op.Snapshot(), true
}

// ActiveBatches returns snapshots of every retained batch, running
// or awaiting eviction.
func (e *Engine) ActiveBatches() []Snapshot {
	var out []Snapshot
	e.operations.forEach(func(id string, op *Operation) {
		out = append(out, op.Snapshot())
	})
	return out
}

// GetStatistics snapshots the engine counters.
func (e *Engine) GetStatistics() Statistics {
	return Statistics{
		BatchesStarted:   atomic.LoadInt64(&e.started),
		BatchesCompleted: atomic.LoadInt64(&e.completed),
		BatchesCancelled: atomic.LoadInt64(&e.cancelled),
		BatchesRejected:  atomic.LoadInt64(&e.rejected),
		ItemsSucceeded:   atomic.LoadInt64(&e.itemsOK),
		ItemsFailed:      atomic.LoadInt64(&e.itemsErr),
		ActiveBatches:    atomic.LoadInt64(&e.activeCount),
	}
}

// evictExpired drops terminal operations past the grace period.
func (e *Engine) evictExpired() {
	now := time.Now()
	e.operations.forEach(func(id string, op *Operation) {
		if completedAt, terminal := op.terminalSince(); terminal && now.Sub(completedAt) > e.evictionGrace {
			e.operations.delete(id)
		}
	})
}
