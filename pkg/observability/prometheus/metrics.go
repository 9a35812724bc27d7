// Package prometheus exposes the content core's statistics as
// Prometheus metrics. Each component keeps its own lock-free
// counters; the collectors here read a snapshot at scrape time.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/contentcoreio/contentcore/pkg/batch"
	"github.com/contentcoreio/contentcore/pkg/concurrency"
	"github.com/contentcoreio/contentcore/pkg/content"
	"github.com/contentcoreio/contentcore/pkg/pipeline"
	"github.com/contentcoreio/contentcore/pkg/store"
)

var (
	// DefaultRegistry is the default Prometheus registry.
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer labels every metric with the service name.
	DefaultRegisterer = prometheus.WrapRegistererWith(
		prometheus.Labels{"service": "contentcore"}, DefaultRegistry)
)

// RegisterAll registers collectors for every provided component.
// Nil components are skipped.
func RegisterAll(registerer prometheus.Registerer, pools *concurrency.PoolManager, contentStore *store.Store, pipe *pipeline.Pipeline, engine *batch.Engine) {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	if pools != nil {
		registerer.MustRegister(NewPoolCollector(pools))
	}
	if contentStore != nil {
		registerer.MustRegister(NewStoreCollector(contentStore))
	}
	if pipe != nil {
		registerer.MustRegister(NewPipelineCollector(pipe))
	}
	if engine != nil {
		registerer.MustRegister(NewBatchCollector(engine))
	}
}

// NewStageDurationObserver registers a per-stage duration histogram
// and returns the observer to plug into pipeline.Options.
func NewStageDurationObserver(registerer prometheus.Registerer) pipeline.StageObserver {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contentcore_pipeline_stage_duration_seconds",
		Help:    "Wall-clock duration of pipeline stage executions",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	registerer.MustRegister(histogram)

	return func(stage content.Stage, duration time.Duration) {
		histogram.WithLabelValues(string(stage)).Observe(duration.Seconds())
	}
}

// PoolCollector exports worker pool statistics.
type PoolCollector struct {
	pools *concurrency.PoolManager

	submitted   *prometheus.Desc
	completed   *prometheus.Desc
	failed      *prometheus.Desc
	queued      *prometheus.Desc
	rejected    *prometheus.Desc
	utilization *prometheus.Desc
	workers     *prometheus.Desc
}

// NewPoolCollector creates a collector over the pool manager.
func NewPoolCollector(pools *concurrency.PoolManager) *PoolCollector {
	return &PoolCollector{
		pools: pools,
		submitted: prometheus.NewDesc("contentcore_pool_tasks_submitted_total",
			"Total tasks submitted across all pools", nil, nil),
		completed: prometheus.NewDesc("contentcore_pool_tasks_completed_total",
			"Completed tasks per pool", []string{"pool"}, nil),
		failed: prometheus.NewDesc("contentcore_pool_tasks_failed_total",
			"Failed tasks per pool", []string{"pool"}, nil),
		queued: prometheus.NewDesc("contentcore_pool_queue_depth",
			"Currently queued tasks per pool", []string{"pool"}, nil),
		rejected: prometheus.NewDesc("contentcore_pool_tasks_rejected_total",
			"Rejected tasks per pool (backpressure)", []string{"pool"}, nil),
		utilization: prometheus.NewDesc("contentcore_pool_queue_utilization",
			"Queue utilization percentage per pool", []string{"pool"}, nil),
		workers: prometheus.NewDesc("contentcore_pool_workers",
			"Worker goroutines per pool", []string{"pool"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.completed
	ch <- c.failed
	ch <- c.queued
	ch <- c.rejected
	ch <- c.utilization
	ch <- c.workers
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pools.Stats()
	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(stats.Submitted))

	for pool, executor := range map[string]concurrency.ExecutorStats{"cpu": stats.CPU, "io": stats.IO} {
		ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(executor.CompletedTasks), pool)
		ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(executor.FailedTasks), pool)
		ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(executor.QueuedTasks), pool)
		ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(executor.RejectedTasks), pool)
		ch <- prometheus.MustNewConstMetric(c.utilization, prometheus.GaugeValue, executor.QueueUtilization, pool)
		ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(executor.ActiveWorkers), pool)
	}
}

// StoreCollector exports content store statistics.
type StoreCollector struct {
	store *store.Store

	records    *prometheus.Desc
	operations *prometheus.Desc
	readHits   *prometheus.Desc
	readMisses *prometheus.Desc
}

// NewStoreCollector creates a collector over the content store.
func NewStoreCollector(contentStore *store.Store) *StoreCollector {
	return &StoreCollector{
		store: contentStore,
		records: prometheus.NewDesc("contentcore_store_records",
			"Records currently held", nil, nil),
		operations: prometheus.NewDesc("contentcore_store_operations_total",
			"Store operations by kind", []string{"kind"}, nil),
		readHits: prometheus.NewDesc("contentcore_store_read_hits_total",
			"Reads that found a record", nil, nil),
		readMisses: prometheus.NewDesc("contentcore_store_read_misses_total",
			"Reads that missed", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.records
	ch <- c.operations
	ch <- c.readHits
	ch <- c.readMisses
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.store.Statistics()
	ch <- prometheus.MustNewConstMetric(c.records, prometheus.GaugeValue, float64(stats.Records))
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(stats.TotalReads), "read")
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(stats.TotalWrites), "write")
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(stats.TotalDeletes), "delete")
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(stats.TotalSearches), "search")
	ch <- prometheus.MustNewConstMetric(c.readHits, prometheus.CounterValue, float64(stats.ReadHits))
	ch <- prometheus.MustNewConstMetric(c.readMisses, prometheus.CounterValue, float64(stats.ReadMisses))
}

// PipelineCollector exports pipeline statistics.
type PipelineCollector struct {
	pipeline *pipeline.Pipeline

	runs            *prometheus.Desc
	stageExecutions *prometheus.Desc
	stageFailures   *prometheus.Desc
}

// NewPipelineCollector creates a collector over the pipeline.
func NewPipelineCollector(pipe *pipeline.Pipeline) *PipelineCollector {
	return &PipelineCollector{
		pipeline: pipe,
		runs: prometheus.NewDesc("contentcore_pipeline_runs_total",
			"Pipeline runs by outcome", []string{"outcome"}, nil),
		stageExecutions: prometheus.NewDesc("contentcore_pipeline_stage_executions_total",
			"Stage executions by stage", []string{"stage"}, nil),
		stageFailures: prometheus.NewDesc("contentcore_pipeline_stage_failures_total",
			"Stage failures by stage", []string{"stage"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.runs
	ch <- c.stageExecutions
	ch <- c.stageFailures
}

// Collect implements prometheus.Collector.
func (c *PipelineCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pipeline.GetStatistics()
	ch <- prometheus.MustNewConstMetric(c.runs, prometheus.CounterValue, float64(stats.Succeeded), "succeeded")
	ch <- prometheus.MustNewConstMetric(c.runs, prometheus.CounterValue, float64(stats.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(c.runs, prometheus.CounterValue, float64(stats.TimedOut), "timed_out")

	for stage, count := range stats.StageExecutions {
		ch <- prometheus.MustNewConstMetric(c.stageExecutions, prometheus.CounterValue, float64(count), string(stage))
	}
	for stage, count := range stats.StageFailures {
		ch <- prometheus.MustNewConstMetric(c.stageFailures, prometheus.CounterValue, float64(count), string(stage))
	}
}

// BatchCollector exports batch engine statistics.
type BatchCollector struct {
	engine *batch.Engine

	batches *prometheus.Desc
	items   *prometheus.Desc
	active  *prometheus.Desc
}

// NewBatchCollector creates a collector over the batch engine.
func NewBatchCollector(engine *batch.Engine) *BatchCollector {
	return &BatchCollector{
		engine: engine,
		batches: prometheus.NewDesc("contentcore_batches_total",
			"Batches by outcome", []string{"outcome"}, nil),
		items: prometheus.NewDesc("contentcore_batch_items_total",
			"Batch items by result", []string{"result"}, nil),
		active: prometheus.NewDesc("contentcore_batches_active",
			"Currently active batches", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *BatchCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.batches
	ch <- c.items
	ch <- c.active
}

// Collect implements prometheus.Collector.
func (c *BatchCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.engine.GetStatistics()
	ch <- prometheus.MustNewConstMetric(c.batches, prometheus.CounterValue, float64(stats.BatchesCompleted), "completed")
	ch <- prometheus.MustNewConstMetric(c.batches, prometheus.CounterValue, float64(stats.BatchesCancelled), "cancelled")
	ch <- prometheus.MustNewConstMetric(c.batches, prometheus.CounterValue, float64(stats.BatchesRejected), "rejected")
	ch <- prometheus.MustNewConstMetric(c.items, prometheus.CounterValue, float64(stats.ItemsSucceeded), "succeeded")
	ch <- prometheus.MustNewConstMetric(c.items, prometheus.CounterValue, float64(stats.ItemsFailed), "failed")
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(stats.ActiveBatches))
}
