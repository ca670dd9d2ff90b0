package devicetoken

import "sync"

// Store is the registry's backing storage. Implementations must apply Update
// atomically per token and return consistent snapshots; a persistent store
// can replace the in-memory one behind this interface.
type Store interface {
	// Update replaces the record for token with fn(previous, found) and
	// returns the stored value.
	Update(token string, fn func(prev Record, found bool) Record) Record
	Get(token string) (Record, bool)
	Delete(token string) bool
	// Snapshot returns copies of every record at a single point in time.
	Snapshot() []Record
	Len() int
}

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() Store {
	return &memoryStore{records: make(map[string]Record)}
}

func (s *memoryStore) Update(token string, fn func(prev Record, found bool) Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, found := s.records[token]
	next := fn(prev, found)
	s.records[token] = next
	return next
}

func (s *memoryStore) Get(token string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[token]
	return rec, ok
}

func (s *memoryStore) Delete(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[token]
	delete(s.records, token)
	return ok
}

func (s *memoryStore) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
