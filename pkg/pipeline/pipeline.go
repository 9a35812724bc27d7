// Package pipeline chains the five content-processing stages
// (validate, sanitize, transform, index, publish) over worker pools,
// with per-run timeouts and short-circuit on the first failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/contentcoreio/contentcore/pkg/async"
	"github.com/contentcoreio/contentcore/pkg/concurrency"
	"github.com/contentcoreio/contentcore/pkg/content"
	"github.com/contentcoreio/contentcore/pkg/core"
	"github.com/contentcoreio/contentcore/pkg/core/failfast"
	"github.com/contentcoreio/contentcore/pkg/notify"
	"github.com/contentcoreio/contentcore/pkg/store"
	"github.com/contentcoreio/contentcore/pkg/template"
)

const (
	// DefaultTimeout bounds a whole pipeline run.
	DefaultTimeout = 10 * time.Minute

	// DefaultChunkSize partitions ProcessBatch input.
	DefaultChunkSize = 50
)

// Run states. Failed is absorbing: reachable from every stage.
const (
	stateDone   = "done"
	stateFailed = "failed"
)

var stageStates = map[content.Stage]string{
	content.StageValidate:  "validating",
	content.StageSanitize:  "sanitizing",
	content.StageTransform: "transforming",
	content.StageIndex:     "indexing",
	content.StagePublish:   "publishing",
}

// Statistics is a snapshot of pipeline activity.
type Statistics struct {
	TotalRuns       int64                   `json:"totalRuns"`
	Succeeded       int64                   `json:"succeeded"`
	Failed          int64                   `json:"failed"`
	TimedOut        int64                   `json:"timedOut"`
	StageExecutions map[content.Stage]int64 `json:"stageExecutions"`
	StageFailures   map[content.Stage]int64 `json:"stageFailures"`
}

// StageObserver receives the wall-clock duration of every stage
// execution, successful or not.
type StageObserver func(stage content.Stage, duration time.Duration)

// Options configures a Pipeline.
type Options struct {
	Timeout       time.Duration     // Whole-run deadline; defaults to DefaultTimeout
	ChunkSize     int               // ProcessBatch partition size; defaults to DefaultChunkSize
	Renderer      template.Renderer // Template collaborator; nil disables template transforms
	Notifier      notify.Notifier   // Completion events; nil disables notification
	StageObserver StageObserver     // Per-stage duration sink; nil disables
	Logger        core.Logger
}

// Pipeline runs content through the five processing stages.
// Each stage is submitted to the pool manager; the pipeline awaits
// the stage future and only submits the next stage on success.
type Pipeline struct {
	pools    *concurrency.PoolManager
	store    *store.Store
	renderer template.Renderer
	notifier notify.Notifier
	observer StageObserver
	logger   core.Logger
	tracer   trace.Tracer

	timeout   time.Duration
	chunkSize int

	results sync.Map // processingID -> *content.ProcessingResult

	totalRuns int64
	succeeded int64
	failed    int64
	timedOut  int64

	stageExecutions [5]int64
	stageFailures   [5]int64
}

// New creates a pipeline over the given pools and store.
func New(pools *concurrency.PoolManager, contentStore *store.Store, opts Options) *Pipeline {
	failfast.NotNil(pools, "pools")
	failfast.NotNil(contentStore, "contentStore")

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = core.NewDefaultLogger()
	}

	return &Pipeline{
		pools:     pools,
		store:     contentStore,
		renderer:  opts.Renderer,
		notifier:  opts.Notifier,
		observer:  opts.StageObserver,
		logger:    opts.Logger,
		tracer:    otel.Tracer("contentcore/pipeline"),
		timeout:   opts.Timeout,
		chunkSize: opts.ChunkSize,
	}
}

func stageIndex(stage content.Stage) int {
	switch stage {
	case content.StageValidate:
		return 0
	case content.StageSanitize:
		return 1
	case content.StageTransform:
		return 2
	case content.StageIndex:
		return 3
	case content.StagePublish:
		return 4
	}
	return 0
}

// runStage executes one stage inline and updates the stage counters.
func (p *Pipeline) runStage(ctx context.Context, stage content.Stage, rec *content.Record, processingID string) (*content.Record, error) {
	atomic.AddInt64(&p.stageExecutions[stageIndex(stage)], 1)

	ctx, span := p.tracer.Start(ctx, "stage."+string(stage),
		trace.WithAttributes(attribute.String("content.id", rec.ID)))
	defer span.End()

	if p.observer != nil {
		start := time.Now()
		defer func() { p.observer(stage, time.Since(start)) }()
	}

	var (
		out *content.Record
		err error
	)
	switch stage {
	case content.StageValidate:
		out, err = p.validate(ctx, rec)
	case content.StageSanitize:
		out, err = p.sanitize(ctx, rec)
	case content.StageTransform:
		out, err = p.transform(ctx, rec)
	case content.StageIndex:
		out, err = p.index(ctx, rec)
	case content.StagePublish:
		out, err = p.publish(ctx, rec, processingID)
	default:
		err = fmt.Errorf("unknown stage %s", stage)
	}

	if err != nil {
		atomic.AddInt64(&p.stageFailures[stageIndex(stage)], 1)
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// stageClass picks the pool for a stage. Transform goes to the IO
// pool when it will touch the template collaborator.
func stageClass(stage content.Stage, rec *content.Record) concurrency.Workload {
	if stage == content.StageTransform && rec.Meta(templateRefKey) != "" {
		return concurrency.IO
	}
	return concurrency.CPU
}

// ProcessOne runs the full pipeline over a copy of record.
// The returned future always completes with a result: stage failures
// and timeouts are converted into failed results, never into future
// errors. A timed-out stage keeps running in the background; its
// outcome is discarded.
func (p *Pipeline) ProcessOne(ctx context.Context, record *content.Record) *async.Future[*content.ProcessingResult] {
	future := async.NewFuture[*content.ProcessingResult]()
	processingID := uuid.New().String()
	rec := record.Clone()

	go func() {
		ctx, span := p.tracer.Start(ctx, "pipeline.process",
			trace.WithAttributes(
				attribute.String("content.id", rec.ID),
				attribute.String("processing.id", processingID),
			))
		defer span.End()

		result := p.runAsync(ctx, processingID, rec)
		p.finishRun(processingID, rec, result)
		future.Complete(result.Clone())
	}()

	return future
}

// runAsync drives the per-run state machine, submitting each stage to
// the pool manager and awaiting its future before the next.
func (p *Pipeline) runAsync(ctx context.Context, processingID string, rec *content.Record) *content.ProcessingResult {
	start := time.Now()
	deadline := start.Add(p.timeout)

	transitions := make([]content.StageTransition, 0, len(stageStates)+1)
	prevState := ""
	prevAt := start

	enter := func(state string, stageErr error) {
		now := time.Now()
		transition := content.StageTransition{
			From:      prevState,
			To:        state,
			Timestamp: now,
			Duration:  now.Sub(prevAt),
		}
		if stageErr != nil {
			transition.Error = stageErr.Error()
		}
		transitions = append(transitions, transition)
		prevState = state
		prevAt = now
	}

	current := rec
	for _, stage := range content.Stages() {
		enter(stageStates[stage], nil)

		stage := stage
		stageInput := current
		stageFuture := concurrency.Execute(p.pools, stageClass(stage, current), "pipeline:"+string(stage),
			func(taskCtx context.Context) (*content.Record, error) {
				return p.runStage(taskCtx, stage, stageInput, processingID)
			})

		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = time.Nanosecond
		}

		next, err := stageFuture.AwaitTimeout(remaining)
		if err != nil {
			if errors.Is(err, async.ErrTimeout) {
				atomic.AddInt64(&p.timedOut, 1)
				err = &TimeoutError{Timeout: p.timeout, Stage: stage}
			}
			enter(stateFailed, err)
			result := content.FailureResult(processingID, stage, err.Error())
			result.Duration = time.Since(start)
			result.Transitions = transitions
			return result
		}
		current = next
	}

	enter(stateDone, nil)

	// The record's final state goes through the store.
	saved, err := p.store.Save(current)
	if err != nil {
		result := content.FailureResult(processingID, content.StagePublish, "failed to persist processed content")
		result.Duration = time.Since(start)
		result.Transitions = transitions
		p.logger.Errorf("pipeline %s: store save failed: %v", processingID, err)
		return result
	}
	*current = *saved

	result := content.SuccessResult(processingID, content.StagePublish, "content processed and published")
	result.Duration = time.Since(start)
	result.Transitions = transitions
	result.Metadata[keywordsMetaKey] = current.Meta(keywordsMetaKey)
	result.Metadata[summaryMetaKey] = current.Meta(summaryMetaKey)
	return result
}

// finishRun records the terminal result and emits the completion
// event.
func (p *Pipeline) finishRun(processingID string, rec *content.Record, result *content.ProcessingResult) {
	atomic.AddInt64(&p.totalRuns, 1)
	if result.Success {
		atomic.AddInt64(&p.succeeded, 1)
	} else {
		atomic.AddInt64(&p.failed, 1)
	}
	p.results.Store(processingID, result.Clone())

	if p.notifier != nil {
		eventType := content.EventContentProcessed
		if !result.Success {
			eventType = content.EventContentFailed
		}
		event := content.NewEvent(eventType, rec)
		event.Metadata[processingIDKey] = processingID
		notify.Dispatch(p.pools, p.notifier, p.logger, event)
	}
}

// ProcessSync runs every stage inline in the caller's goroutine.
// Used by the batch engine, whose chunk tasks already occupy pool
// workers. Same counters, results table and store write as
// ProcessOne, without per-run timeout enforcement.
func (p *Pipeline) ProcessSync(ctx context.Context, record *content.Record) *content.ProcessingResult {
	processingID := uuid.New().String()
	rec := record.Clone()
	start := time.Now()

	current := rec
	for _, stage := range content.Stages() {
		next, err := p.runStage(ctx, stage, current, processingID)
		if err != nil {
			result := content.FailureResult(processingID, stage, err.Error())
			result.Duration = time.Since(start)
			p.finishRun(processingID, current, result)
			return result.Clone()
		}
		current = next
	}

	saved, err := p.store.Save(current)
	if err != nil {
		result := content.FailureResult(processingID, content.StagePublish, "failed to persist processed content")
		result.Duration = time.Since(start)
		p.finishRun(processingID, current, result)
		return result.Clone()
	}
	*current = *saved

	result := content.SuccessResult(processingID, content.StagePublish, "content processed and published")
	result.Duration = time.Since(start)
	p.finishRun(processingID, current, result)
	return result.Clone()
}

// ProcessBatch partitions records into chunks and processes every
// item concurrently. The returned future never fails: per-item
// failures appear as failed results in the same order as the input.
func (p *Pipeline) ProcessBatch(ctx context.Context, records []*content.Record) *async.Future[[]*content.ProcessingResult] {
	combined := async.NewFuture[[]*content.ProcessingResult]()

	go func() {
		results := make([]*content.ProcessingResult, 0, len(records))
		for lo := 0; lo < len(records); lo += p.chunkSize {
			hi := lo + p.chunkSize
			if hi > len(records) {
				hi = len(records)
			}

			chunk := records[lo:hi]
			futures := make([]*async.Future[*content.ProcessingResult], len(chunk))
			for i, record := range chunk {
				futures[i] = p.ProcessOne(ctx, record)
			}

			// AllSettled always completes, so awaiting on the
			// background context cannot drop item results.
			settled, _ := async.AllSettled(ctx, futures...).Await(context.Background())
			for _, item := range settled {
				if item.Err != nil {
					// ProcessOne futures never fail, but guard anyway.
					results = append(results, content.FailureResult("", "", item.Err.Error()))
					continue
				}
				results = append(results, item.Value)
			}
		}
		combined.Complete(results)
	}()

	return combined
}

// GetProcessingResult returns the retained terminal result for a
// processing ID.
func (p *Pipeline) GetProcessingResult(processingID string) (*content.ProcessingResult, bool) {
	value, ok := p.results.Load(processingID)
	if !ok {
		return nil, false
	}
	return value.(*content.ProcessingResult).Clone(), true
}

// GetStatistics snapshots the pipeline counters.
func (p *Pipeline) GetStatistics() Statistics {
	stats := Statistics{
		TotalRuns:       atomic.LoadInt64(&p.totalRuns),
		Succeeded:       atomic.LoadInt64(&p.succeeded),
		Failed:          atomic.LoadInt64(&p.failed),
		TimedOut:        atomic.LoadInt64(&p.timedOut),
		StageExecutions: make(map[content.Stage]int64, 5),
		StageFailures:   make(map[content.Stage]int64, 5),
	}
	for _, stage := range content.Stages() {
		idx := stageIndex(stage)
		stats.StageExecutions[stage] = atomic.LoadInt64(&p.stageExecutions[idx])
		stats.StageFailures[stage] = atomic.LoadInt64(&p.stageFailures[idx])
	}
	return stats
}
