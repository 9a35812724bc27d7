// Package store provides a thread-safe, indexed in-memory content
// repository. A single read/write lock guards the primary map and all
// secondary indexes together, so readers always observe a record and
// its index entries as one consistent unit.
package store

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/contentcoreio/contentcore/pkg/content"
)

// Statistics is a point-in-time snapshot of store activity counters.
type Statistics struct {
	Records       int   `json:"records"`
	TotalReads    int64 `json:"totalReads"`
	TotalWrites   int64 `json:"totalWrites"`
	TotalDeletes  int64 `json:"totalDeletes"`
	TotalSearches int64 `json:"totalSearches"`
	ReadHits      int64 `json:"readHits"`
	ReadMisses    int64 `json:"readMisses"`
}

// Predicate selects records during a Search scan.
type Predicate func(record *content.Record) bool

// Store is the indexed concurrent content repository.
//
// Consistency model: one exclusive lock acquisition covers a whole
// mutation, including every secondary-index update, so no reader can
// observe a primary-map entry without its index entries. Concurrent
// updates to the same ID are last-writer-wins; there is no version
// check. Counters and the audit log sit outside the lock.
type Store struct {
	mu       sync.RWMutex
	records  map[string]*content.Record
	byStatus map[content.Status]map[string]struct{}
	byAuthor map[string]map[string]struct{}
	byTitle  map[string]map[string]struct{}

	history *operationLog

	totalReads    int64
	totalWrites   int64
	totalDeletes  int64
	totalSearches int64
	readHits      int64
	readMisses    int64
}

// Options configures a Store.
type Options struct {
	HistoryCapacity int // Audit log size; defaults to 100
}

// New creates an empty store.
func New(opts Options) *Store {
	s := &Store{
		history: newOperationLog(opts.HistoryCapacity),
	}
	s.initLocked()
	return s
}

// initLocked resets the primary map and all indexes.
// Callers must hold the exclusive lock (or have sole ownership).
func (s *Store) initLocked() {
	s.records = make(map[string]*content.Record)
	s.byStatus = make(map[content.Status]map[string]struct{})
	for _, status := range content.Statuses() {
		s.byStatus[status] = make(map[string]struct{})
	}
	s.byAuthor = make(map[string]map[string]struct{})
	s.byTitle = make(map[string]map[string]struct{})
}

// Save inserts or updates record, keyed by its ID. On update the old
// index entries are removed before the new ones are built, all inside
// one exclusive critical section. Returns a defensive copy of the
// stored value.
func (s *Store) Save(record *content.Record) (saved *content.Record, err error) {
	if record == nil {
		return nil, &RepositoryError{Op: "save", Message: "record is required"}
	}
	if record.ID == "" {
		return nil, &RepositoryError{Op: "save", Message: "record ID is required"}
	}

	defer func() {
		if r := recover(); r != nil {
			err = wrapPanic("save", record.ID, r)
			s.history.append(OpSave, record.ID, "error")
		}
	}()

	saved = s.saveCritical(record)

	atomic.AddInt64(&s.totalWrites, 1)
	s.history.append(OpSave, record.ID, "ok")
	return saved.Clone(), nil
}

// saveCritical holds the exclusive lock for exactly one save. The
// deferred unlock releases it even if an index update panics.
func (s *Store) saveCritical(record *content.Record) *content.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(record)
}

// saveLocked applies one save under the exclusive lock and returns
// the internally held value.
func (s *Store) saveLocked(record *content.Record) *content.Record {
	if old, exists := s.records[record.ID]; exists {
		s.removeFromIndexesLocked(old)
	}

	stored := record.Clone()
	s.records[stored.ID] = stored
	s.addToIndexesLocked(stored)
	return stored
}

func (s *Store) addToIndexesLocked(record *content.Record) {
	bucket, ok := s.byStatus[record.Status]
	if !ok {
		bucket = make(map[string]struct{})
		s.byStatus[record.Status] = bucket
	}
	bucket[record.ID] = struct{}{}

	authors, ok := s.byAuthor[record.AuthorID]
	if !ok {
		authors = make(map[string]struct{})
		s.byAuthor[record.AuthorID] = authors
	}
	authors[record.ID] = struct{}{}

	title := normalizeTitle(record.Title)
	titles, ok := s.byTitle[title]
	if !ok {
		titles = make(map[string]struct{})
		s.byTitle[title] = titles
	}
	titles[record.ID] = struct{}{}
}

func (s *Store) removeFromIndexesLocked(record *content.Record) {
	if bucket, ok := s.byStatus[record.Status]; ok {
		delete(bucket, record.ID)
	}
	if authors, ok := s.byAuthor[record.AuthorID]; ok {
		delete(authors, record.ID)
		if len(authors) == 0 {
			delete(s.byAuthor, record.AuthorID)
		}
	}
	title := normalizeTitle(record.Title)
	if titles, ok := s.byTitle[title]; ok {
		delete(titles, record.ID)
		if len(titles) == 0 {
			delete(s.byTitle, title)
		}
	}
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// FindByID returns a defensive copy of the record, or (nil, false).
func (s *Store) FindByID(id string) (*content.Record, bool) {
	s.mu.RLock()
	record, ok := s.records[id]
	var clone *content.Record
	if ok {
		clone = record.Clone()
	}
	s.mu.RUnlock()

	atomic.AddInt64(&s.totalReads, 1)
	if ok {
		atomic.AddInt64(&s.readHits, 1)
		s.history.append(OpRead, id, "hit")
		return clone, true
	}
	atomic.AddInt64(&s.readMisses, 1)
	s.history.append(OpRead, id, "miss")
	return nil, false
}

// FindByStatus returns copies of all records with the given status.
func (s *Store) FindByStatus(status content.Status) []*content.Record {
	s.mu.RLock()
	ids := s.byStatus[status]
	out := make([]*content.Record, 0, len(ids))
	for id := range ids {
		if record, ok := s.records[id]; ok {
			out = append(out, record.Clone())
		}
	}
	s.mu.RUnlock()

	atomic.AddInt64(&s.totalReads, 1)
	s.history.append(OpRead, string(status), fmt.Sprintf("%d", len(out)))
	return out
}

// FindByAuthor returns copies of all records by the given author.
func (s *Store) FindByAuthor(authorID string) []*content.Record {
	s.mu.RLock()
	ids := s.byAuthor[authorID]
	out := make([]*content.Record, 0, len(ids))
	for id := range ids {
		if record, ok := s.records[id]; ok {
			out = append(out, record.Clone())
		}
	}
	s.mu.RUnlock()

	atomic.AddInt64(&s.totalReads, 1)
	s.history.append(OpRead, authorID, fmt.Sprintf("%d", len(out)))
	return out
}

// FindByTitle returns copies of all records whose normalized title
// matches title exactly.
func (s *Store) FindByTitle(title string) []*content.Record {
	s.mu.RLock()
	ids := s.byTitle[normalizeTitle(title)]
	out := make([]*content.Record, 0, len(ids))
	for id := range ids {
		if record, ok := s.records[id]; ok {
			out = append(out, record.Clone())
		}
	}
	s.mu.RUnlock()

	atomic.AddInt64(&s.totalReads, 1)
	s.history.append(OpRead, normalizeTitle(title), fmt.Sprintf("%d", len(out)))
	return out
}

// Search scans every record under the shared lock, evaluating the
// predicate in parallel across CPU-count shards, and returns copies
// of the matches.
func (s *Store) Search(predicate Predicate) []*content.Record {
	if predicate == nil {
		return nil
	}

	s.mu.RLock()
	records := make([]*content.Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}

	shards := runtime.NumCPU()
	if shards > len(records) {
		shards = len(records)
	}

	var out []*content.Record
	if shards <= 1 {
		for _, record := range records {
			if predicate(record) {
				out = append(out, record.Clone())
			}
		}
	} else {
		matches := make([][]*content.Record, shards)
		var wg sync.WaitGroup
		chunk := (len(records) + shards - 1) / shards
		for i := 0; i < shards; i++ {
			lo := i * chunk
			hi := lo + chunk
			if hi > len(records) {
				hi = len(records)
			}
			wg.Add(1)
			go func(shard int, slice []*content.Record) {
				defer wg.Done()
				for _, record := range slice {
					if predicate(record) {
						matches[shard] = append(matches[shard], record.Clone())
					}
				}
			}(i, records[lo:hi])
		}
		wg.Wait()
		for _, m := range matches {
			out = append(out, m...)
		}
	}
	s.mu.RUnlock()

	atomic.AddInt64(&s.totalSearches, 1)
	s.history.append(OpSearch, "", fmt.Sprintf("%d", len(out)))
	return out
}

// Delete removes the record and all its index entries.
// Returns false if the ID is absent.
func (s *Store) Delete(id string) (deleted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = wrapPanic("delete", id, r)
			s.history.append(OpDelete, id, "error")
		}
	}()

	ok := s.deleteCritical(id)

	if !ok {
		s.history.append(OpDelete, id, "miss")
		return false, nil
	}

	atomic.AddInt64(&s.totalDeletes, 1)
	s.history.append(OpDelete, id, "ok")
	return true, nil
}

func (s *Store) deleteCritical(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if ok {
		s.removeFromIndexesLocked(record)
		delete(s.records, id)
	}
	return ok
}

// SaveBatch applies every save under one exclusive lock acquisition,
// so other goroutines observe the batch as a single consistent jump.
// Returns defensive copies of the stored values.
func (s *Store) SaveBatch(records []*content.Record) (saved []*content.Record, err error) {
	for _, record := range records {
		if record == nil || record.ID == "" {
			return nil, &RepositoryError{Op: "saveBatch", Message: "every record needs an ID"}
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = wrapPanic("saveBatch", "", r)
			s.history.append(OpBulkSave, "", "error")
		}
	}()

	saved = s.saveBatchCritical(records)

	atomic.AddInt64(&s.totalWrites, int64(len(records)))
	s.history.append(OpBulkSave, "", fmt.Sprintf("%d", len(records)))
	return saved, nil
}

func (s *Store) saveBatchCritical(records []*content.Record) []*content.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make([]*content.Record, 0, len(records))
	for _, record := range records {
		saved = append(saved, s.saveLocked(record).Clone())
	}
	return saved
}

// Clear removes everything and resets indexes and counters.
func (s *Store) Clear() {
	s.clearCritical()

	atomic.StoreInt64(&s.totalReads, 0)
	atomic.StoreInt64(&s.totalWrites, 0)
	atomic.StoreInt64(&s.totalDeletes, 0)
	atomic.StoreInt64(&s.totalSearches, 0)
	atomic.StoreInt64(&s.readHits, 0)
	atomic.StoreInt64(&s.readMisses, 0)
	s.history.reset()
	s.history.append(OpClear, "", "ok")
}

func (s *Store) clearCritical() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked()
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns all stored IDs.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for id := range s.records {
		keys = append(keys, id)
	}
	return keys
}

// Statistics returns a snapshot of the activity counters.
// Reads the counters lock-free; the record count takes the shared lock.
func (s *Store) Statistics() Statistics {
	return Statistics{
		Records:       s.Count(),
		TotalReads:    atomic.LoadInt64(&s.totalReads),
		TotalWrites:   atomic.LoadInt64(&s.totalWrites),
		TotalDeletes:  atomic.LoadInt64(&s.totalDeletes),
		TotalSearches: atomic.LoadInt64(&s.totalSearches),
		ReadHits:      atomic.LoadInt64(&s.readHits),
		ReadMisses:    atomic.LoadInt64(&s.readMisses),
	}
}

// RecentOperations returns up to limit audit entries, newest first.
func (s *Store) RecentOperations(limit int) []OperationRecord {
	return s.history.recent(limit)
}
