// Package content defines the domain model shared by the store, the
// processing pipeline and the batch publishing engine.
package content

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a content record.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusReview    Status = "REVIEW"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

// Statuses lists every valid content status.
// Used by the store to build one index bucket per status.
func Statuses() []Status {
	return []Status{StatusDraft, StatusReview, StatusPublished, StatusArchived}
}

// IsValid returns true if s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusReview, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Record is a single content item.
// The ID is assigned at creation and never changes; it is the sole key
// into the store's primary map. Records are passed by value semantics:
// every boundary crossing goes through Clone.
type Record struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Status    Status            `json:"status"`
	AuthorID  string            `json:"authorId"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// NewRecord creates a draft record with a fresh ID and timestamps.
func NewRecord(title, body, authorID string) *Record {
	now := time.Now()
	return &Record{
		ID:        uuid.New().String(),
		Title:     title,
		Body:      body,
		Status:    StatusDraft,
		AuthorID:  authorID,
		Metadata:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns an independent deep copy of the record.
// Mutating the copy never affects the original.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Metadata != nil {
		clone.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// SetMeta sets a metadata entry, allocating the map if needed.
func (r *Record) SetMeta(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}

// Meta returns the metadata value for key, or "" if absent.
func (r *Record) Meta(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
