package async

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_CompleteOnce(t *testing.T) {
	f := NewFuture[int]()

	f.Complete(42)
	f.Complete(99)
	f.Fail(errors.New("too late"))

	value, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if value != 42 {
		t.Errorf("Await() = %d, want 42", value)
	}
}

func TestFuture_Fail(t *testing.T) {
	f := NewFuture[string]()
	wantErr := errors.New("boom")

	f.Fail(wantErr)

	_, err := f.Await(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Await() error = %v, want %v", err, wantErr)
	}
}

func TestFuture_TryComplete(t *testing.T) {
	f := NewFuture[int]()

	if !f.TryComplete(1) {
		t.Error("first TryComplete() should return true")
	}
	if f.TryComplete(2) {
		t.Error("second TryComplete() should return false")
	}
	if f.TryFail(errors.New("late")) {
		t.Error("TryFail() after completion should return false")
	}
}

func TestFuture_AwaitContextCancelled(t *testing.T) {
	f := NewFuture[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Await() error = %v, want context.Canceled", err)
	}
}

func TestFuture_AwaitTimeout(t *testing.T) {
	f := NewFuture[int]()

	start := time.Now()
	_, err := f.AwaitTimeout(50 * time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("AwaitTimeout() error = %v, want ErrTimeout", err)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("AwaitTimeout() returned after %v, want >= 50ms", elapsed)
	}
}

func TestFuture_MultipleAwaiters(t *testing.T) {
	f := NewFuture[int]()

	results := make(chan int, 3)
	for i := 0; i < 3; i++ {
		go func() {
			value, _ := f.Await(context.Background())
			results <- value
		}()
	}

	f.Complete(7)

	for i := 0; i < 3; i++ {
		select {
		case value := <-results:
			if value != 7 {
				t.Errorf("awaiter got %d, want 7", value)
			}
		case <-time.After(time.Second):
			t.Fatal("awaiter did not observe completion")
		}
	}
}

func TestFuture_HandlersAfterCompletion(t *testing.T) {
	f := NewFuture[int]()
	f.Complete(5)

	got := 0
	f.OnSuccess(func(value int) {
		got = value
	})
	if got != 5 {
		t.Errorf("late OnSuccess handler got %d, want 5", got)
	}

	called := false
	f.OnFailure(func(error) {
		called = true
	})
	if called {
		t.Error("OnFailure handler should not run for completed future")
	}
}

func TestThen(t *testing.T) {
	f := NewFuture[int]()
	doubled := Then(f, func(value int) (int, error) {
		return value * 2, nil
	})

	f.Complete(21)

	value, err := doubled.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if value != 42 {
		t.Errorf("Then() result = %d, want 42", value)
	}
}

func TestThen_PropagatesFailure(t *testing.T) {
	f := NewFuture[int]()
	wantErr := errors.New("upstream")
	mapped := Then(f, func(value int) (string, error) {
		t.Error("handler should not run on failure")
		return "", nil
	})

	f.Fail(wantErr)

	_, err := mapped.Await(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Await() error = %v, want %v", err, wantErr)
	}
}

func TestCatch(t *testing.T) {
	f := NewFuture[int]()
	recovered := Catch(f, func(error) (int, error) {
		return -1, nil
	})

	f.Fail(errors.New("boom"))

	value, err := recovered.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if value != -1 {
		t.Errorf("Catch() result = %d, want -1", value)
	}
}

func TestAll(t *testing.T) {
	futures := []*Future[int]{NewFuture[int](), NewFuture[int](), NewFuture[int]()}
	combined := All(context.Background(), futures...)

	for i, f := range futures {
		f.Complete(i + 1)
	}

	values, err := combined.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if len(values) != 3 || values[0] != 1 || values[1] != 2 || values[2] != 3 {
		t.Errorf("All() = %v, want [1 2 3]", values)
	}
}

func TestAllSettled_CarriesPerItemErrors(t *testing.T) {
	ok := Completed(10)
	bad := Failed[int](errors.New("item failed"))

	results, err := AllSettled(context.Background(), ok, bad).Await(context.Background())
	if err != nil {
		t.Fatalf("AllSettled() should never fail, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Err != nil || results[0].Value != 10 {
		t.Errorf("results[0] = %+v, want value 10", results[0])
	}
	if results[1].Err == nil {
		t.Error("results[1].Err should carry the item failure")
	}
}
