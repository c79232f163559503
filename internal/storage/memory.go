package storage

import (
	"context"
	"sync"

	"rentsplit/internal/household"
)

// MemoryStore keeps the encoded document in memory. It goes through the same
// codec as the durable stores, so it is a faithful stand-in for tests and
// dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	doc   []byte
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, s household.Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = data
	m.saves++
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (household.Snapshot, error) {
	m.mu.Lock()
	doc := m.doc
	m.mu.Unlock()
	if doc == nil {
		return household.Default(), nil
	}
	return Decode(doc)
}

// SetRaw replaces the stored document verbatim.
func (m *MemoryStore) SetRaw(doc []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = append([]byte(nil), doc...)
}

// Saves reports how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) Close() error { return nil }
