package database

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity is how many outcomes the in-memory log keeps.
const DefaultMemoryCapacity = 1000

// MemoryStore is an audit log kept in process memory. The oldest entries
// are dropped once capacity is reached.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	nextID   int64
	items    []StoredOutcome // oldest first
}

// NewMemoryStore creates an in-memory audit log.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) SaveOutcome(ctx context.Context, outcome *StoredOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	outcome.ID = m.nextID
	m.items = append(m.items, *outcome)
	if over := len(m.items) - m.capacity; over > 0 {
		m.items = append([]StoredOutcome(nil), m.items[over:]...)
	}
	return nil
}

func (m *MemoryStore) ListOutcomes(ctx context.Context, opts ListOptions) ([]StoredOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []StoredOutcome
	for i := len(m.items) - 1; i >= 0; i-- {
		item := m.items[i]
		if opts.Type != "" && item.Type != opts.Type {
			continue
		}
		if opts.Result != "" && item.Result != opts.Result {
			continue
		}
		out = append(out, item)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) CountOutcomes(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

func (m *MemoryStore) Close() error {
	return nil
}
