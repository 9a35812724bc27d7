package config

import (
	"time"
)

// PoolsConfig sizes the worker pools.
type PoolsConfig struct {
	CPUWorkers int `yaml:"cpuWorkers" json:"cpuWorkers"`
	IOWorkers  int `yaml:"ioWorkers" json:"ioWorkers"`
	QueueSize  int `yaml:"queueSize" json:"queueSize"`
}

// PipelineConfig controls processing pipeline behavior.
type PipelineConfig struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	ChunkSize int           `yaml:"chunkSize" json:"chunkSize"`
}

// BatchConfig controls the batch publishing engine.
type BatchConfig struct {
	MaxConcurrent    int           `yaml:"maxConcurrent" json:"maxConcurrent"`
	MaxChunkSize     int           `yaml:"maxChunkSize" json:"maxChunkSize"`
	MemoryLimitBytes uint64        `yaml:"memoryLimitBytes" json:"memoryLimitBytes"`
	EvictionGrace    time.Duration `yaml:"evictionGrace" json:"evictionGrace"`
}

// StoreConfig controls the indexed content store.
type StoreConfig struct {
	HistoryCapacity int `yaml:"historyCapacity" json:"historyCapacity"`
}

// Config is the root configuration for the content processing core.
type Config struct {
	Pools    PoolsConfig    `yaml:"pools" json:"pools"`
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`
	Batch    BatchConfig    `yaml:"batch" json:"batch"`
	Store    StoreConfig    `yaml:"store" json:"store"`
}

// DefaultConfig returns the production defaults. Zero-valued pool
// sizes mean "derive from hardware parallelism" downstream.
func DefaultConfig() *Config {
	return &Config{
		Pools: PoolsConfig{
			QueueSize: 1000,
		},
		Pipeline: PipelineConfig{
			Timeout:   10 * time.Minute,
			ChunkSize: 50,
		},
		Batch: BatchConfig{
			MaxConcurrent:    10,
			MaxChunkSize:     100,
			MemoryLimitBytes: 1 << 30, // 1 GiB
			EvictionGrace:    5 * time.Minute,
		},
		Store: StoreConfig{
			HistoryCapacity: 100,
		},
	}
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	return Validate(c,
		RangeValidator("Pools.QueueSize", 1, 1_000_000),
		RangeValidator("Pipeline.ChunkSize", 1, 10_000),
		RangeValidator("Batch.MaxConcurrent", 1, 1_000),
		RangeValidator("Batch.MaxChunkSize", 1, 100_000),
		RangeValidator("Store.HistoryCapacity", 1, 1_000_000),
	)
}
