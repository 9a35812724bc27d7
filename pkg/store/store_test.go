package store

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/contentcoreio/contentcore/pkg/content"
)

func newTestStore() *Store {
	return New(Options{HistoryCapacity: 50})
}

func makeRecord(id, title, author string, status content.Status) *content.Record {
	rec := content.NewRecord(title, "body of "+title, author)
	rec.ID = id
	rec.Status = status
	return rec
}

func TestStore_SaveAndFindByID(t *testing.T) {
	s := newTestStore()

	rec := makeRecord("c1", "Hello", "alice", content.StatusDraft)
	saved, err := s.Save(rec)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.ID != "c1" {
		t.Errorf("Save() returned ID %s, want c1", saved.ID)
	}

	found, ok := s.FindByID("c1")
	if !ok {
		t.Fatal("FindByID() should find the saved record")
	}
	if found.Title != "Hello" {
		t.Errorf("FindByID().Title = %s, want Hello", found.Title)
	}

	if _, ok := s.FindByID("missing"); ok {
		t.Error("FindByID() should miss for unknown ID")
	}

	stats := s.Statistics()
	if stats.ReadHits != 1 || stats.ReadMisses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.ReadHits, stats.ReadMisses)
	}
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	s := newTestStore()

	if _, err := s.Save(nil); err == nil {
		t.Error("Save(nil) should fail")
	}
	if _, err := s.Save(&content.Record{}); err == nil {
		t.Error("Save() without ID should fail")
	}
}

func TestStore_IdempotentSave(t *testing.T) {
	s := newTestStore()
	rec := makeRecord("c1", "Same Title", "alice", content.StatusDraft)

	if _, err := s.Save(rec); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	byStatus := len(s.FindByStatus(content.StatusDraft))
	byAuthor := len(s.FindByAuthor("alice"))
	byTitle := len(s.FindByTitle("same title"))

	if _, err := s.Save(rec); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	if got := len(s.FindByStatus(content.StatusDraft)); got != byStatus {
		t.Errorf("status index size changed %d -> %d on idempotent save", byStatus, got)
	}
	if got := len(s.FindByAuthor("alice")); got != byAuthor {
		t.Errorf("author index size changed %d -> %d on idempotent save", byAuthor, got)
	}
	if got := len(s.FindByTitle("same title")); got != byTitle {
		t.Errorf("title index size changed %d -> %d on idempotent save", byTitle, got)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestStore_UpdateMovesIndexEntries(t *testing.T) {
	s := newTestStore()

	rec := makeRecord("c1", "Old Title", "alice", content.StatusDraft)
	s.Save(rec)

	rec.Title = "New Title"
	rec.Status = content.StatusPublished
	rec.AuthorID = "bob"
	s.Save(rec)

	if got := len(s.FindByStatus(content.StatusDraft)); got != 0 {
		t.Errorf("stale status index entry: FindByStatus(draft) = %d records", got)
	}
	if got := len(s.FindByAuthor("alice")); got != 0 {
		t.Errorf("stale author index entry: FindByAuthor(alice) = %d records", got)
	}
	if got := len(s.FindByTitle("old title")); got != 0 {
		t.Errorf("stale title index entry: FindByTitle(old title) = %d records", got)
	}
	if got := len(s.FindByStatus(content.StatusPublished)); got != 1 {
		t.Errorf("FindByStatus(published) = %d records, want 1", got)
	}
	if got := len(s.FindByAuthor("bob")); got != 1 {
		t.Errorf("FindByAuthor(bob) = %d records, want 1", got)
	}
}

// Index consistency: the union of all status buckets must equal the
// primary key set exactly once each, after any save/delete sequence.
func TestStore_IndexConsistency(t *testing.T) {
	s := newTestStore()

	statuses := content.Statuses()
	for i := 0; i < 40; i++ {
		id := string(rune('a'+i%26)) + string(rune('0'+i/26))
		s.Save(makeRecord(id, "Title "+id, "author", statuses[i%len(statuses)]))
	}
	// Update some, delete some.
	for i := 0; i < 40; i += 3 {
		id := string(rune('a'+i%26)) + string(rune('0'+i/26))
		s.Save(makeRecord(id, "Updated "+id, "author", statuses[(i+1)%len(statuses)]))
	}
	for i := 0; i < 40; i += 5 {
		id := string(rune('a'+i%26)) + string(rune('0'+i/26))
		s.Delete(id)
	}

	seen := make(map[string]int)
	for _, status := range statuses {
		for _, rec := range s.FindByStatus(status) {
			seen[rec.ID]++
		}
	}

	keys := s.Keys()
	if len(seen) != len(keys) {
		t.Errorf("status indexes cover %d IDs, primary map has %d", len(seen), len(keys))
	}
	for _, id := range keys {
		if seen[id] != 1 {
			t.Errorf("ID %s appears %d times across status indexes, want exactly 1", id, seen[id])
		}
	}
}

func TestStore_DefensiveCopy(t *testing.T) {
	s := newTestStore()

	original := makeRecord("c1", "Immutable", "alice", content.StatusDraft)
	original.SetMeta("key", "value")
	s.Save(original)

	// Mutating what Save returned must not leak in.
	fetched, _ := s.FindByID("c1")
	fetched.Title = "Mutated"
	fetched.Metadata["key"] = "changed"
	fetched.Metadata["new"] = "entry"

	refetched, _ := s.FindByID("c1")
	if refetched.Title != "Immutable" {
		t.Errorf("internal record mutated through returned copy: Title = %s", refetched.Title)
	}
	if refetched.Metadata["key"] != "value" {
		t.Errorf("internal metadata mutated through returned copy: %v", refetched.Metadata)
	}
	if _, ok := refetched.Metadata["new"]; ok {
		t.Error("metadata entry added through returned copy leaked into store")
	}

	// Mutating the caller's record after Save must not leak either.
	original.Body = "changed afterwards"
	refetched, _ = s.FindByID("c1")
	if refetched.Body == "changed afterwards" {
		t.Error("store held a reference to the caller's record")
	}
}

func TestStore_ConcurrentWritersSerialize(t *testing.T) {
	s := newTestStore()

	// 100 concurrent inserts of distinct IDs.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "rec-" + string(rune('a'+n%26)) + string(rune('a'+n/26))
			if _, err := s.Save(makeRecord(id, "Title", "author", content.StatusDraft)); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	// 100 concurrent updates of the same IDs.
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "rec-" + string(rune('a'+n%26)) + string(rune('a'+n/26))
			if _, err := s.Save(makeRecord(id, "Updated", "author", content.StatusReview)); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if s.Count() != 100 {
		t.Errorf("Count() = %d, want 100", s.Count())
	}
	if got := s.Statistics().TotalWrites; got != 200 {
		t.Errorf("TotalWrites = %d, want 200", got)
	}
}

// A panic inside the critical section must surface as a
// RepositoryError and leave the lock released, never held.
func TestStore_PanicInCriticalSectionReleasesLock(t *testing.T) {
	s := newTestStore()

	// Force addToIndexesLocked to panic: assignment into a nil map.
	s.byStatus = nil

	_, err := s.Save(makeRecord("c1", "Boom", "alice", content.StatusDraft))
	if err == nil {
		t.Fatal("Save() should fail when an index update panics")
	}
	var repoErr *RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("error type = %T, want *RepositoryError", err)
	}

	// The store must still be usable: a held lock would block forever.
	done := make(chan int, 1)
	go func() { done <- s.Count() }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("store lock still held after recovered panic")
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore()
	s.Save(makeRecord("c1", "Doomed", "alice", content.StatusDraft))

	deleted, err := s.Delete("c1")
	if err != nil || !deleted {
		t.Fatalf("Delete() = %t, %v, want true, nil", deleted, err)
	}
	if _, ok := s.FindByID("c1"); ok {
		t.Error("record still present after delete")
	}
	if got := len(s.FindByStatus(content.StatusDraft)); got != 0 {
		t.Errorf("stale index entry after delete: %d", got)
	}

	deleted, err = s.Delete("c1")
	if err != nil || deleted {
		t.Errorf("second Delete() = %t, %v, want false, nil", deleted, err)
	}
}

func TestStore_SaveBatch(t *testing.T) {
	s := newTestStore()

	records := []*content.Record{
		makeRecord("b1", "One", "alice", content.StatusDraft),
		makeRecord("b2", "Two", "bob", content.StatusReview),
		makeRecord("b3", "Three", "alice", content.StatusDraft),
	}
	saved, err := s.SaveBatch(records)
	if err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}
	if len(saved) != 3 {
		t.Errorf("SaveBatch() returned %d records, want 3", len(saved))
	}
	if s.Count() != 3 {
		t.Errorf("Count() = %d, want 3", s.Count())
	}
	if got := s.Statistics().TotalWrites; got != 3 {
		t.Errorf("TotalWrites = %d, want 3", got)
	}

	if _, err := s.SaveBatch([]*content.Record{nil}); err == nil {
		t.Error("SaveBatch() with nil record should fail")
	}
}

func TestStore_Search(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 30; i++ {
		id := "s-" + string(rune('a'+i))
		rec := makeRecord(id, "Title "+id, "author", content.StatusDraft)
		if i%2 == 0 {
			rec.Body = "needle inside " + id
		}
		s.Save(rec)
	}

	matches := s.Search(func(rec *content.Record) bool {
		return strings.Contains(rec.Body, "needle")
	})
	if len(matches) != 15 {
		t.Errorf("Search() found %d records, want 15", len(matches))
	}
	if s.Statistics().TotalSearches != 1 {
		t.Errorf("TotalSearches = %d, want 1", s.Statistics().TotalSearches)
	}

	if got := s.Search(nil); got != nil {
		t.Errorf("Search(nil) = %v, want nil", got)
	}
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore()
	s.Save(makeRecord("c1", "One", "alice", content.StatusDraft))
	s.FindByID("c1")

	s.Clear()

	if s.Count() != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", s.Count())
	}
	stats := s.Statistics()
	if stats.TotalReads != 0 || stats.TotalWrites != 0 {
		t.Errorf("counters not reset: reads=%d writes=%d", stats.TotalReads, stats.TotalWrites)
	}
	if got := len(s.FindByStatus(content.StatusDraft)); got != 0 {
		t.Errorf("index not reinitialized: %d entries", got)
	}
}

func TestStore_RecentOperations(t *testing.T) {
	s := newTestStore()
	s.Save(makeRecord("c1", "One", "alice", content.StatusDraft))
	s.FindByID("c1")
	s.Delete("c1")

	ops := s.RecentOperations(10)
	if len(ops) != 3 {
		t.Fatalf("RecentOperations(10) = %d entries, want 3", len(ops))
	}
	// Newest first.
	if ops[0].Kind != OpDelete || ops[1].Kind != OpRead || ops[2].Kind != OpSave {
		t.Errorf("unexpected order: %v %v %v", ops[0].Kind, ops[1].Kind, ops[2].Kind)
	}

	if got := len(s.RecentOperations(2)); got != 2 {
		t.Errorf("RecentOperations(2) = %d entries, want 2", got)
	}
}

func TestOperationLog_EvictsOldest(t *testing.T) {
	l := newOperationLog(3)
	l.append(OpSave, "a", "ok")
	l.append(OpSave, "b", "ok")
	l.append(OpSave, "c", "ok")
	l.append(OpSave, "d", "ok")

	recent := l.recent(0)
	if len(recent) != 3 {
		t.Fatalf("recent(0) = %d entries, want 3", len(recent))
	}
	if recent[0].Key != "d" || recent[2].Key != "b" {
		t.Errorf("unexpected ring contents: %v", recent)
	}
	for _, op := range recent {
		if op.Key == "a" {
			t.Error("oldest entry should have been evicted")
		}
	}
}
