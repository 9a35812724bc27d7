package async

import (
	"context"
)

// Then chains a handler onto f. The returned future completes with the
// handler's result, or fails with f's error or the handler's error.
func Then[T any, R any](f *Future[T], fn func(T) (R, error)) *Future[R] {
	mapped := NewFuture[R]()

	f.OnSuccess(func(value T) {
		result, err := fn(value)
		if err != nil {
			mapped.Fail(err)
		} else {
			mapped.Complete(result)
		}
	})
	f.OnFailure(func(err error) {
		mapped.Fail(err)
	})

	return mapped
}

// Map transforms the result synchronously.
func Map[T any, R any](f *Future[T], fn func(T) R) *Future[R] {
	return Then(f, func(value T) (R, error) {
		return fn(value), nil
	})
}

// Catch recovers from a failure. The returned future completes with
// f's value on success, or with the handler's result on failure.
func Catch[T any](f *Future[T], fn func(error) (T, error)) *Future[T] {
	mapped := NewFuture[T]()

	f.OnSuccess(func(value T) {
		mapped.Complete(value)
	})
	f.OnFailure(func(err error) {
		result, handlerErr := fn(err)
		if handlerErr != nil {
			mapped.Fail(handlerErr)
		} else {
			mapped.Complete(result)
		}
	})

	return mapped
}

// All waits for every future and completes with the values in order.
// Fails with the first error encountered.
func All[T any](ctx context.Context, futures ...*Future[T]) *Future[[]T] {
	combined := NewFuture[[]T]()

	go func() {
		values := make([]T, 0, len(futures))
		for _, f := range futures {
			value, err := f.Await(ctx)
			if err != nil {
				combined.Fail(err)
				return
			}
			values = append(values, value)
		}
		combined.Complete(values)
	}()

	return combined
}

// AllSettled waits for every future and completes with one Result per
// future, in order. It never fails: per-item errors are carried in the
// Results.
func AllSettled[T any](ctx context.Context, futures ...*Future[T]) *Future[[]Result[T]] {
	combined := NewFuture[[]Result[T]]()

	go func() {
		results := make([]Result[T], len(futures))
		for i, f := range futures {
			value, err := f.Await(ctx)
			results[i] = Result[T]{Value: value, Err: err}
		}
		combined.Complete(results)
	}()

	return combined
}
