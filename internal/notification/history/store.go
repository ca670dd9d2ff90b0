package history

import "sync"

// DefaultCapacity bounds the in-memory store; the oldest entries go first.
const DefaultCapacity = 10000

// Store is the history's backing storage. Snapshot returns entries in append
// order.
type Store interface {
	Append(e Entry)
	Snapshot() []Entry
	Len() int
}

type memoryStore struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

// NewMemoryStore keeps at most capacity entries; a non-positive capacity
// means unbounded.
func NewMemoryStore(capacity int) Store {
	return &memoryStore{capacity: capacity}
}

func (s *memoryStore) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if s.capacity > 0 && len(s.entries) > s.capacity {
		s.entries = append([]Entry(nil), s.entries[len(s.entries)-s.capacity:]...)
	}
}

func (s *memoryStore) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
