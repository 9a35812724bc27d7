package batch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a batch operation.
type Status string

const (
	StatusStarting            Status = "STARTING"
	StatusRunning             Status = "RUNNING"
	StatusCompleted           Status = "COMPLETED"
	StatusCompletedWithErrors Status = "COMPLETED_WITH_ERRORS"
	StatusFailed              Status = "FAILED"
	StatusCancelled           Status = "CANCELLED"
)

// IsTerminal returns true once the batch can no longer make progress.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Snapshot is an immutable view of a batch operation's progress.
// ContentIDs preserves the submission order so callers can correlate
// results with what they handed in.
type Snapshot struct {
	ID               string            `json:"id"`
	Status           Status            `json:"status"`
	Total            int               `json:"total"`
	ContentIDs       []string          `json:"contentIds,omitempty"`
	Processed        int               `json:"processed"`
	Succeeded        int               `json:"succeeded"`
	Failed           int               `json:"failed"`
	FailedContentIDs map[string]string `json:"failedContentIds,omitempty"`
	StartedAt        time.Time         `json:"startedAt"`
	CompletedAt      time.Time         `json:"completedAt,omitempty"`
}

// Operation tracks one batch of publish work. Counter updates go
// through the mutex so processed == succeeded + failed holds at every
// observable instant; the cancellation flag is a lock-free atomic
// polled between items.
type Operation struct {
	id         string
	contentIDs []string
	total      int
	startedAt  time.Time

	mu          sync.Mutex
	processed   int
	succeeded   int
	failed      int
	failures    map[string]string
	status      Status
	completedAt time.Time

	cancelled int32
}

func newOperation(contentIDs []string) *Operation {
	ids := make([]string, len(contentIDs))
	copy(ids, contentIDs)
	return &Operation{
		id:         uuid.New().String(),
		contentIDs: ids,
		total:      len(ids),
		startedAt:  time.Now(),
		failures:   make(map[string]string),
		status:     StatusStarting,
	}
}

// ID returns the batch identifier.
func (op *Operation) ID() string {
	return op.id
}

// Cancel raises the cooperative cancellation flag. Work units already
// started run to completion; the flag is checked before each item.
func (op *Operation) Cancel() {
	atomic.StoreInt32(&op.cancelled, 1)
}

// IsCancelled returns true once Cancel has been called.
func (op *Operation) IsCancelled() bool {
	return atomic.LoadInt32(&op.cancelled) == 1
}

func (op *Operation) setStatus(status Status) {
	op.mu.Lock()
	op.status = status
	if status.IsTerminal() {
		op.completedAt = time.Now()
	}
	op.mu.Unlock()
}

func (op *Operation) recordSuccess() {
	op.mu.Lock()
	op.processed++
	op.succeeded++
	op.mu.Unlock()
}

func (op *Operation) recordFailure(contentID, message string) {
	op.mu.Lock()
	op.processed++
	op.failed++
	op.failures[contentID] = message
	op.mu.Unlock()
}

// finish derives the terminal status from the counters, unless the
// batch was cancelled.
func (op *Operation) finish() Status {
	op.mu.Lock()
	defer op.mu.Unlock()

	var status Status
	switch {
	case op.IsCancelled():
		status = StatusCancelled
	case op.failed == 0:
		status = StatusCompleted
	case op.succeeded > 0:
		status = StatusCompletedWithErrors
	default:
		status = StatusFailed
	}
	op.status = status
	op.completedAt = time.Now()
	return status
}

// Snapshot returns a copy of the operation's current state.
func (op *Operation) Snapshot() Snapshot {
	op.mu.Lock()
	defer op.mu.Unlock()

	failures := make(map[string]string, len(op.failures))
	for id, msg := range op.failures {
		failures[id] = msg
	}
	contentIDs := make([]string, len(op.contentIDs))
	copy(contentIDs, op.contentIDs)

	return Snapshot{
		ID:               op.id,
		Status:           op.status,
		Total:            op.total,
		ContentIDs:       contentIDs,
		Processed:        op.processed,
		Succeeded:        op.succeeded,
		Failed:           op.failed,
		FailedContentIDs: failures,
		StartedAt:        op.startedAt,
		CompletedAt:      op.completedAt,
	}
}

// FailedContentIDs returns the IDs that failed, with their messages.
func (op *Operation) FailedContentIDs() map[string]string {
	op.mu.Lock()
	defer op.mu.Unlock()
	failures := make(map[string]string, len(op.failures))
	for id, msg := range op.failures {
		failures[id] = msg
	}
	return failures
}

func (op *Operation) terminalSince() (time.Time, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if !op.status.IsTerminal() {
		return time.Time{}, false
	}
	return op.completedAt, true
}
