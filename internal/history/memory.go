package history

import (
	"context"
	"sync"
)

// MemoryStore keeps transcripts in process memory. Used by tests and by
// deployments that do not need history to survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[int64]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[int64]string)}
}

func (m *MemoryStore) EnsureUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[userID]; !ok {
		m.blobs[userID] = ""
	}
	return nil
}

func (m *MemoryStore) AppendTurn(_ context.Context, userID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[userID]
	if !ok {
		return nil
	}
	m.blobs[userID] = Compose(blob, text)
	return nil
}

func (m *MemoryStore) ReadHistory(_ context.Context, userID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if blob := m.blobs[userID]; blob != "" {
		return blob, nil
	}
	return NoHistory, nil
}

func (m *MemoryStore) ClearHistory(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[userID]; !ok {
		return ErrUserNotFound
	}
	m.blobs[userID] = ""
	return nil
}

func (m *MemoryStore) Close() error { return nil }
