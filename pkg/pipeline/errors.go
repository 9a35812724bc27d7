package pipeline

import (
	"fmt"
	"time"

	"github.com/contentcoreio/contentcore/pkg/content"
)

// ValidationError reports content that fails structural rules.
// Not retried; surfaced to the caller inside a failed result.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// StageError reports a pipeline stage that failed outright
// (collaborator error or panic), as opposed to a rule violation.
type StageError struct {
	Stage content.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a pipeline run that exceeded its deadline.
// The underlying stage work is not cancelled; its result is dropped.
type TimeoutError struct {
	Timeout time.Duration
	Stage   content.Stage
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("processing timed out after %v in stage %s", e.Timeout, e.Stage)
}
