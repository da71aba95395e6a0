package session

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps encoded sessions in process memory. Every Get decodes a
// fresh copy, so callers never share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string][]byte{}}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	raw, err := Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[s.ID]; exists {
		return fmt.Errorf("session %q already exists", s.ID)
	}
	m.docs[s.ID] = raw
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	raw, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return Unmarshal(raw)
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	raw, err := Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[s.ID]; !ok {
		return ErrNotFound
	}
	m.docs[s.ID] = raw
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
