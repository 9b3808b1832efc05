package checkpoint

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory checkpoint store. Useful for tests and
// single-process runs that don't need durability across restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]*Checkpoint // threadID -> checkpoints ordered by step
	closed  bool
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string][]*Checkpoint),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	history := m.threads[cp.ThreadID]
	for _, existing := range history {
		if existing.Step == cp.Step {
			return ErrDuplicateStep
		}
	}

	m.threads[cp.ThreadID] = append(history, cp.Clone())
	return nil
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	history := m.threads[cp.ThreadID]
	for i, existing := range history {
		if existing.Step == cp.Step {
			history[i] = cp.Clone()
			return nil
		}
	}
	return ErrNotFound
}

// Latest implements Store.
func (m *MemoryStore) Latest(_ context.Context, threadID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	history := m.threads[threadID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}

	latest := history[0]
	for _, cp := range history[1:] {
		if cp.Step > latest.Step {
			latest = cp
		}
	}
	return latest.Clone(), nil
}

// History implements Store.
func (m *MemoryStore) History(_ context.Context, threadID string) ([]*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	history := m.threads[threadID]
	out := make([]*Checkpoint, len(history))
	for i, cp := range history {
		out[i] = cp.Clone()
	}

	// Put appends in step order, but sort defensively for Update paths.
	sortBySteps(out)
	return out, nil
}

// DeleteThread implements Store.
func (m *MemoryStore) DeleteThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.threads, threadID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.threads = nil
	return nil
}

// Len returns the total number of checkpoints across all threads.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, history := range m.threads {
		count += len(history)
	}
	return count
}

// sortBySteps orders checkpoints by ascending step.
func sortBySteps(cps []*Checkpoint) {
	sort.Slice(cps, func(i, j int) bool {
		return cps[i].Step < cps[j].Step
	})
}
