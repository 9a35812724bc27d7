package store

import (
	"fmt"
)

// RepositoryError wraps a failed store mutation with a user-safe
// message. The original cause is reachable via Unwrap but never
// exposed in the message.
type RepositoryError struct {
	Op      string // Operation that failed (save, delete, ...)
	Key     string // Target content ID, if any
	Message string // User-safe description
	Err     error  // Underlying cause
}

func (e *RepositoryError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Key, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// wrapPanic converts a recovered panic into a RepositoryError.
func wrapPanic(op, key string, recovered interface{}) *RepositoryError {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("%v", recovered)
	}
	return &RepositoryError{
		Op:      op,
		Key:     key,
		Message: "internal store failure",
		Err:     err,
	}
}
