package batch

import (
	"sync"
)

// syncOperations is a typed wrapper over sync.Map for the
// active-batches table.
type syncOperations struct {
	m sync.Map
}

func (s *syncOperations) store(id string, op *Operation) {
	s.m.Store(id, op)
}

func (s *syncOperations) load(id string) (*Operation, bool) {
	value, ok := s.m.Load(id)
	if !ok {
		return nil, false
	}
	return value.(*Operation), true
}

func (s *syncOperations) delete(id string) {
	s.m.Delete(id)
}

func (s *syncOperations) forEach(fn func(id string, op *Operation)) {
	s.m.Range(func(key, value interface{}) bool {
		fn(key.(string), value.(*Operation))
		return true
	})
}
