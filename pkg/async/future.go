// Package async provides futures and promises for composing
// asynchronous work submitted to worker pools.
package async

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by AwaitTimeout when the deadline passes
// before the future completes.
var ErrTimeout = errors.New("await timed out")

// Result pairs a value with an error, for callers that collect
// outcomes without failing on the first error.
type Result[T any] struct {
	Value T
	Err   error
}

// Future is a single-assignment asynchronous result.
// Complete and Fail may be called at most once in total; later calls
// are ignored. Handlers registered after completion run immediately.
type Future[T any] struct {
	done            chan struct{}
	once            sync.Once
	mu              sync.RWMutex
	completed       bool
	result          Result[T]
	successHandlers []func(T)
	failureHandlers []func(error)
}

// NewFuture creates an incomplete future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{
		done: make(chan struct{}),
	}
}

// Completed returns a future already completed with value.
func Completed[T any](value T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(value)
	return f
}

// Failed returns a future already failed with err.
func Failed[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Fail(err)
	return f
}

// Complete completes the future with a value.
func (f *Future[T]) Complete(value T) {
	f.settle(Result[T]{Value: value})
}

// Fail fails the future with an error.
func (f *Future[T]) Fail(err error) {
	f.settle(Result[T]{Err: err})
}

// TryComplete completes the future if it is not yet settled.
// Returns true if this call settled the future.
func (f *Future[T]) TryComplete(value T) bool {
	return f.trySettle(Result[T]{Value: value})
}

// TryFail fails the future if it is not yet settled.
func (f *Future[T]) TryFail(err error) bool {
	return f.trySettle(Result[T]{Err: err})
}

func (f *Future[T]) settle(r Result[T]) {
	f.trySettle(r)
}

func (f *Future[T]) trySettle(r Result[T]) bool {
	settled := false
	f.once.Do(func() {
		f.mu.Lock()
		f.completed = true
		f.result = r
		success := f.successHandlers
		failure := f.failureHandlers
		f.successHandlers = nil
		f.failureHandlers = nil
		f.mu.Unlock()

		close(f.done)

		if r.Err != nil {
			for _, handler := range failure {
				handler(r.Err)
			}
		} else {
			for _, handler := range success {
				handler(r.Value)
			}
		}
		settled = true
	})
	return settled
}

// IsComplete returns true once the future has settled.
func (f *Future[T]) IsComplete() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.completed
}

// Done returns a channel closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is cancelled.
// Safe to call from multiple goroutines; every caller observes the
// same result.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		if f.result.Err != nil {
			var zero T
			return zero, f.result.Err
		}
		return f.result.Value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitTimeout blocks until the future settles or timeout elapses.
// On timeout it returns ErrTimeout; the underlying work keeps running
// and its eventual result is discarded.
func (f *Future[T]) AwaitTimeout(timeout time.Duration) (T, error) {
	select {
	case <-f.done:
		if f.result.Err != nil {
			var zero T
			return zero, f.result.Err
		}
		return f.result.Value, nil
	case <-time.After(timeout):
		var zero T
		return zero, ErrTimeout
	}
}

// OnSuccess registers a callback invoked with the value when the
// future completes successfully. Runs immediately if already settled.
func (f *Future[T]) OnSuccess(handler func(T)) *Future[T] {
	f.mu.Lock()
	if f.completed {
		result := f.result
		f.mu.Unlock()
		if result.Err == nil {
			handler(result.Value)
		}
		return f
	}
	f.successHandlers = append(f.successHandlers, handler)
	f.mu.Unlock()
	return f
}

// OnFailure registers a callback invoked with the error when the
// future fails. Runs immediately if already settled.
func (f *Future[T]) OnFailure(handler func(error)) *Future[T] {
	f.mu.Lock()
	if f.completed {
		result := f.result
		f.mu.Unlock()
		if result.Err != nil {
			handler(result.Err)
		}
		return f
	}
	f.failureHandlers = append(f.failureHandlers, handler)
	f.mu.Unlock()
	return f
}
