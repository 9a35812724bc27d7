// Command contentcore wires the processing core together and runs a
// small demonstration: a single pipeline run, then a publish batch.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/contentcoreio/contentcore/pkg/batch"
	"github.com/contentcoreio/contentcore/pkg/concurrency"
	"github.com/contentcoreio/contentcore/pkg/config"
	"github.com/contentcoreio/contentcore/pkg/content"
	"github.com/contentcoreio/contentcore/pkg/core"
	appprom "github.com/contentcoreio/contentcore/pkg/observability/prometheus"
	"github.com/contentcoreio/contentcore/pkg/pipeline"
	"github.com/contentcoreio/contentcore/pkg/store"
	"github.com/contentcoreio/contentcore/pkg/template"
)

func main() {
	logger := core.NewDefaultLogger()

	cfg := config.DefaultConfig()
	if path := os.Getenv("CONTENTCORE_CONFIG"); path != "" {
		if err := config.LoadWithEnv(path, "CONTENTCORE", cfg); err != nil {
			logger.Errorf("failed to load config: %v", err)
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Errorf("invalid config: %v", err)
		os.Exit(1)
	}

	shutdownTracing, err := initTracing()
	if err != nil {
		logger.Warnf("tracing disabled: %v", err)
	}

	ctx := context.Background()
	pools := concurrency.NewPoolManager(ctx, concurrency.ManagerConfig{
		CPUWorkers: cfg.Pools.CPUWorkers,
		IOWorkers:  cfg.Pools.IOWorkers,
		QueueSize:  cfg.Pools.QueueSize,
	})

	contentStore := store.New(store.Options{HistoryCapacity: cfg.Store.HistoryCapacity})

	renderer := template.NewMapRenderer()
	renderer.Register("announcement", "Announcing: {{title}}\n\n{{body}}\n\n(created {{created}})")

	pipe := pipeline.New(pools, contentStore, pipeline.Options{
		Timeout:       cfg.Pipeline.Timeout,
		ChunkSize:     cfg.Pipeline.ChunkSize,
		Renderer:      renderer,
		StageObserver: appprom.NewStageDurationObserver(nil),
		Logger:        logger,
	})

	engine, err := batch.NewEngine(pools, pipe, batch.Options{
		MaxConcurrent:    cfg.Batch.MaxConcurrent,
		MaxChunkSize:     cfg.Batch.MaxChunkSize,
		MemoryLimitBytes: cfg.Batch.MemoryLimitBytes,
		EvictionGrace:    cfg.Batch.EvictionGrace,
		Logger:           logger,
	})
	if err != nil {
		logger.Errorf("failed to start batch engine: %v", err)
		os.Exit(1)
	}
	defer engine.Close()

	appprom.RegisterAll(nil, pools, contentStore, pipe, engine)

	// Single item through the pipeline.
	record := content.NewRecord("Welcome to the content core", "This is the first article processed by the pipeline.", "author-1")
	result, err := pipe.ProcessOne(ctx, record).Await(ctx)
	if err != nil {
		logger.Errorf("pipeline run failed: %v", err)
	} else {
		logger.Infof("pipeline run %s: success=%t (%v)", result.ProcessingID, result.Success, result.Duration)
	}

	// A publish batch.
	records := make([]*content.Record, 0, 20)
	for i := 0; i < 20; i++ {
		records = append(records, content.NewRecord(
			fmt.Sprintf("Article %d", i),
			fmt.Sprintf("Body of article number %d with enough words to index.", i),
			"author-2"))
	}
	snapshot, err := engine.ProcessBatch(ctx, records)
	if err != nil {
		logger.Errorf("batch failed: %v", err)
	} else {
		logger.Infof("batch %s: %s (%d/%d succeeded)", snapshot.ID, snapshot.Status, snapshot.Succeeded, snapshot.Total)
	}

	stats := contentStore.Statistics()
	logger.Infof("store: %d records, %d writes, %d reads", stats.Records, stats.TotalWrites, stats.TotalReads)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pools.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("pool shutdown: %v", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warnf("tracer shutdown: %v", err)
		}
	}
}

// initTracing installs a stdout span exporter so pipeline spans are
// visible without any tracing backend.
func initTracing() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(0.1)),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
