package content

import (
	"testing"
)

func TestNewRecord(t *testing.T) {
	rec := NewRecord("Title", "body", "alice")

	if rec.ID == "" {
		t.Error("NewRecord() should assign an ID")
	}
	if rec.Status != StatusDraft {
		t.Errorf("Status = %s, want %s", rec.Status, StatusDraft)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	other := NewRecord("Title", "body", "alice")
	if other.ID == rec.ID {
		t.Error("IDs must be unique per record")
	}
}

func TestRecordClone_Independence(t *testing.T) {
	rec := NewRecord("Original", "body", "alice")
	rec.SetMeta("key", "value")

	clone := rec.Clone()
	clone.Title = "Changed"
	clone.Metadata["key"] = "changed"
	clone.Metadata["added"] = "new"

	if rec.Title != "Original" {
		t.Errorf("original title mutated: %s", rec.Title)
	}
	if rec.Metadata["key"] != "value" {
		t.Errorf("original metadata mutated: %v", rec.Metadata)
	}
	if _, ok := rec.Metadata["added"]; ok {
		t.Error("entry added to clone leaked into original")
	}

	var nilRec *Record
	if nilRec.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestRecordMeta(t *testing.T) {
	rec := &Record{}
	if rec.Meta("absent") != "" {
		t.Error("Meta() on nil map should return empty string")
	}

	rec.SetMeta("k", "v")
	if rec.Meta("k") != "v" {
		t.Errorf("Meta(k) = %q, want v", rec.Meta("k"))
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, status := range Statuses() {
		if !status.IsValid() {
			t.Errorf("%s should be valid", status)
		}
	}
	if Status("BOGUS").IsValid() {
		t.Error("unknown status should be invalid")
	}
}

func TestProcessingResultClone(t *testing.T) {
	result := SuccessResult("pid", StagePublish, "done")
	result.Metadata["keywords"] = "a,b"
	result.Transitions = []StageTransition{{From: "", To: "validating"}}

	clone := result.Clone()
	clone.Metadata["keywords"] = "mutated"
	clone.Transitions[0].To = "mutated"

	if result.Metadata["keywords"] != "a,b" {
		t.Error("metadata shared between result and clone")
	}
	if result.Transitions[0].To != "validating" {
		t.Error("transitions shared between result and clone")
	}
}

func TestNewEventClonesRecord(t *testing.T) {
	rec := NewRecord("Title", "body", "alice")
	event := NewEvent(EventContentProcessed, rec)

	rec.Title = "changed afterwards"
	if event.Record.Title != "Title" {
		t.Error("event holds a live reference to the record")
	}
}
