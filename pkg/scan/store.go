package scan

import "sync"

// ResultStore accumulates share records in insertion order. It is safe for
// concurrent use.
type ResultStore struct {
	mu      sync.RWMutex
	records []ShareRecord
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) Append(r ShareRecord) {
	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
}

// Snapshot returns a copy of every record.
func (s *ResultStore) Snapshot() []ShareRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ShareRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Clear discards all records.
func (s *ResultStore) Clear() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}

func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
