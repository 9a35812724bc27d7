package content

import (
	"time"
)

// EventType categorizes notification events emitted by the pipeline
// and the batch engine.
type EventType string

const (
	EventContentProcessed EventType = "content.processed"
	EventContentFailed    EventType = "content.failed"
	EventBatchCompleted   EventType = "batch.completed"
	EventBatchCancelled   EventType = "batch.cancelled"
)

// Event is the payload handed to the notification collaborator.
// Record is a defensive copy; handlers may not reach back into the core.
type Event struct {
	Type      EventType         `json:"type"`
	Record    *Record           `json:"record,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(eventType EventType, record *Record) *Event {
	return &Event{
		Type:      eventType,
		Record:    record.Clone(),
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}
