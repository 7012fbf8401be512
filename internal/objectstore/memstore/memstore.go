package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/rohmanhakim/crawlcore/internal/objectstore"
)

// MemStore is an in-process objectstore.Store backing unit tests, the
// same "mutex-guarded map instead of a network call" fake the state
// store and queue packages use for their own test doubles.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func New() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp
	return nil
}

func (m *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("objectstore/memstore: key %q not found", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}
