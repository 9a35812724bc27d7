package store

import (
	"sync"
	"time"
)

// OperationKind identifies an audited store operation.
type OperationKind string

const (
	OpSave     OperationKind = "SAVE"
	OpRead     OperationKind = "READ"
	OpDelete   OperationKind = "DELETE"
	OpSearch   OperationKind = "SEARCH"
	OpBulkSave OperationKind = "BULK_SAVE"
	OpClear    OperationKind = "CLEAR"
)

// OperationRecord is an immutable audit entry appended on every store
// operation.
type OperationRecord struct {
	Kind      OperationKind `json:"kind"`
	Key       string        `json:"key,omitempty"`
	Result    string        `json:"result"`
	Timestamp time.Time     `json:"timestamp"`
}

// operationLog is a bounded FIFO of audit entries. It has its own
// mutex so readers never contend with the store's main lock.
type operationLog struct {
	mu       sync.Mutex
	entries  []OperationRecord
	capacity int
	start    int // Index of the oldest entry
	size     int
}

func newOperationLog(capacity int) *operationLog {
	if capacity < 1 {
		capacity = 100
	}
	return &operationLog{
		entries:  make([]OperationRecord, capacity),
		capacity: capacity,
	}
}

// append records an entry, evicting the oldest past capacity.
func (l *operationLog) append(kind OperationKind, key, result string) {
	entry := OperationRecord{
		Kind:      kind,
		Key:       key,
		Result:    result,
		Timestamp: time.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < l.capacity {
		l.entries[(l.start+l.size)%l.capacity] = entry
		l.size++
		return
	}
	// Full: overwrite the oldest slot.
	l.entries[l.start] = entry
	l.start = (l.start + 1) % l.capacity
}

// recent returns up to limit entries, newest first.
func (l *operationLog) recent(limit int) []OperationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > l.size {
		limit = l.size
	}

	out := make([]OperationRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (l.start + l.size - 1 - i + l.capacity) % l.capacity
		out = append(out, l.entries[idx])
	}
	return out
}

func (l *operationLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.start = 0
	l.size = 0
}
