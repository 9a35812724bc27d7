package concurrency

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *PoolManager {
	t.Helper()
	m := NewPoolManager(context.Background(), ManagerConfig{CPUWorkers: 2, IOWorkers: 4, QueueSize: 100})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

func TestPoolManager_Defaults(t *testing.T) {
	m := NewPoolManager(context.Background(), ManagerConfig{})
	defer m.Shutdown(context.Background())

	if m.CPUWorkers() < 1 {
		t.Errorf("CPUWorkers() = %d, want >= 1", m.CPUWorkers())
	}
	if m.IOWorkers() < 4 {
		t.Errorf("IOWorkers() = %d, want >= 4", m.IOWorkers())
	}
	if m.IOWorkers() < m.CPUWorkers() {
		t.Errorf("IO pool (%d) should not be smaller than CPU pool (%d)", m.IOWorkers(), m.CPUWorkers())
	}
}

func TestPoolManager_SubmitRouting(t *testing.T) {
	m := newTestManager(t)

	for _, class := range []Workload{CPU, IO} {
		done := make(chan struct{})
		err := m.Submit(class, NewNamedTask("routed", func(ctx context.Context) error {
			close(done)
			return nil
		}))
		if err != nil {
			t.Fatalf("Submit(%v) error = %v", class, err)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("task submitted to %v pool never ran", class)
		}
	}
}

func TestPoolManager_SubmitScheduledRejected(t *testing.T) {
	m := newTestManager(t)

	err := m.Submit(Scheduled, NewNamedTask("recurring", func(ctx context.Context) error {
		return nil
	}))
	if err == nil {
		t.Error("Submit(Scheduled) should fail; recurrence needs an interval")
	}
}

func TestExecute_CompletesFuture(t *testing.T) {
	m := newTestManager(t)

	future := Execute(m, CPU, "compute", func(ctx context.Context) (int, error) {
		return 42, nil
	})

	value, err := future.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if value != 42 {
		t.Errorf("Execute() result = %d, want 42", value)
	}
}

func TestExecute_FailsFuture(t *testing.T) {
	m := newTestManager(t)
	wantErr := errors.New("work failed")

	future := Execute(m, CPU, "failing", func(ctx context.Context) (int, error) {
		return 0, wantErr
	})

	_, err := future.Await(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Await() error = %v, want %v", err, wantErr)
	}
}

func TestExecute_CapturesPanic(t *testing.T) {
	m := newTestManager(t)

	future := Execute(m, CPU, "panicking", func(ctx context.Context) (int, error) {
		panic("boom")
	})

	_, err := future.Await(context.Background())
	if err == nil {
		t.Fatal("Await() should surface the panic as an error")
	}

	// The pool must survive.
	value, err := Execute(m, CPU, "after-panic", func(ctx context.Context) (int, error) {
		return 1, nil
	}).Await(context.Background())
	if err != nil || value != 1 {
		t.Errorf("pool did not survive panicking task: value=%d err=%v", value, err)
	}
}

func TestPoolManager_Stats(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 3; i++ {
		Execute(m, CPU, "counted", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, nil
		}).Await(context.Background())
	}

	stats := m.Stats()
	if stats.Submitted != 3 {
		t.Errorf("Stats().Submitted = %d, want 3", stats.Submitted)
	}
	if stats.CPU.ActiveWorkers != 2 {
		t.Errorf("Stats().CPU.ActiveWorkers = %d, want 2", stats.CPU.ActiveWorkers)
	}
}
