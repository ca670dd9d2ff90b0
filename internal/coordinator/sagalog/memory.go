package sagalog

import (
	"context"
	"sync"
)

// MemoryRepository keeps entries in process. It backs tests and the "memory"
// driver.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []SagaLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Save(_ context.Context, entry *SagaLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MemoryRepository) GetLatest(_ context.Context, orderNumber string) (*SagaLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].OrderNumber == orderNumber {
			entry := m.entries[i]
			return &entry, nil
		}
	}
	return nil, ErrNotFound
}

// Entries returns a copy of every saved row in insertion order.
func (m *MemoryRepository) Entries() []SagaLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SagaLog(nil), m.entries...)
}
