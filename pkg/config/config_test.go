package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Pools.CPUWorkers = 8
	cfg.Pipeline.Timeout = 3 * time.Minute
	if err := SaveYAML(path, cfg); err != nil {
		t.Fatalf("SaveYAML() error = %v", err)
	}

	var loaded Config
	if err := Load(path, &loaded); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Pools.CPUWorkers != 8 {
		t.Errorf("Pools.CPUWorkers = %d, want 8", loaded.Pools.CPUWorkers)
	}
	if loaded.Pipeline.Timeout != 3*time.Minute {
		t.Errorf("Pipeline.Timeout = %v, want 3m", loaded.Pipeline.Timeout)
	}
}

func TestLoadJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.Batch.MaxConcurrent = 3
	if err := SaveJSON(path, cfg); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}

	var loaded Config
	if err := Load(path, &loaded); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Batch.MaxConcurrent != 3 {
		t.Errorf("Batch.MaxConcurrent = %d, want 3", loaded.Batch.MaxConcurrent)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg Config
	if err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err == nil {
		t.Error("Load() on a missing file should fail")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	os.Setenv("CONTENTCORE_POOLS_CPUWORKERS", "16")
	os.Setenv("CONTENTCORE_PIPELINE_TIMEOUT", "90s")
	os.Setenv("CONTENTCORE_BATCH_MEMORYLIMITBYTES", "1048576")
	defer func() {
		os.Unsetenv("CONTENTCORE_POOLS_CPUWORKERS")
		os.Unsetenv("CONTENTCORE_PIPELINE_TIMEOUT")
		os.Unsetenv("CONTENTCORE_BATCH_MEMORYLIMITBYTES")
	}()

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides("", cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides() error = %v", err)
	}

	if cfg.Pools.CPUWorkers != 16 {
		t.Errorf("Pools.CPUWorkers = %d, want 16", cfg.Pools.CPUWorkers)
	}
	if cfg.Pipeline.Timeout != 90*time.Second {
		t.Errorf("Pipeline.Timeout = %v, want 90s", cfg.Pipeline.Timeout)
	}
	if cfg.Batch.MemoryLimitBytes != 1048576 {
		t.Errorf("Batch.MemoryLimitBytes = %d, want 1048576", cfg.Batch.MemoryLimitBytes)
	}
}

func TestApplyEnvOverrides_InvalidValue(t *testing.T) {
	os.Setenv("CONTENTCORE_POOLS_QUEUESIZE", "not-a-number")
	defer os.Unsetenv("CONTENTCORE_POOLS_QUEUESIZE")

	cfg := DefaultConfig()
	if err := ApplyEnvOverrides("", cfg); err == nil {
		t.Error("ApplyEnvOverrides() should fail on a non-numeric override")
	}
}

func TestApplyEnvOverrides_RequiresStructPointer(t *testing.T) {
	if err := ApplyEnvOverrides("", Config{}); err == nil {
		t.Error("ApplyEnvOverrides() should reject a non-pointer target")
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch.MaxConcurrent = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject MaxConcurrent = 0")
	}

	cfg = DefaultConfig()
	cfg.Pipeline.ChunkSize = 100_000
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an oversized chunk size")
	}
}

func TestRangeValidator_MissingField(t *testing.T) {
	err := Validate(DefaultConfig(), RangeValidator("Pools.NoSuchField", 0, 1))
	if err == nil {
		t.Error("RangeValidator should fail for an unknown field")
	}
}
