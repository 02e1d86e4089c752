package storage

import "sync"

// MemoryStore keeps the persisted state in memory. Used in tests and in
// environments that must not write credentials to disk.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith creates an in-memory store pre-populated with state,
// for rehydration tests.
func NewMemoryStoreWith(state *State) *MemoryStore {
	return &MemoryStore{state: state}
}

func (ms *MemoryStore) Load() (*State, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.state == nil {
		return nil, nil
	}
	snapshot := *ms.state
	return &snapshot, nil
}

func (ms *MemoryStore) Save(state *State) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if state == nil {
		ms.state = nil
		return nil
	}
	snapshot := *state
	ms.state = &snapshot
	return nil
}

func (ms *MemoryStore) Clear() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.state = nil
	return nil
}

var _ Store = (*MemoryStore)(nil)
