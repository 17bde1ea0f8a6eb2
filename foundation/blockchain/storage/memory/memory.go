// Package memory provides an in-memory store. It backs tests and the
// degraded mode the node falls into when the durable store will not open.
package memory

import (
	"encoding/json"
	"sync"

	"github.com/ekehi/blockchain/foundation/blockchain/storage"
)

// Memory represents the store implementation over a plain map. This
// implements the storage.Store interface.
type Memory struct {
	mu       sync.Mutex
	sections map[string][]byte
}

// New constructs an empty in-memory store.
func New() *Memory {
	return &Memory{
		sections: make(map[string][]byte),
	}
}

// Close has nothing to release.
func (m *Memory) Close() error {
	return nil
}

// Save serializes the value as JSON under the section key.
func (m *Memory) Save(section string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sections[section] = data

	return nil
}

// Load reads the section into the specified value.
func (m *Memory) Load(section string, value any) error {
	m.mu.Lock()
	data, exists := m.sections[section]
	m.mu.Unlock()

	if !exists {
		return storage.ErrNotFound
	}

	return json.Unmarshal(data, value)
}
