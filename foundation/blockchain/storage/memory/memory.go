// Package memory implements the ability to read and write documents to
// memory using maps.
package memory

import (
	"sort"
	"sync"

	"github.com/bitsim/node/foundation/blockchain/database"
)

// Memory represents the serialization implementation for reading and storing
// documents in memory. This implements the database.Storage interface.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// New constructs an Memory value for use.
func New() (*Memory, error) {
	return &Memory{
		collections: make(map[string]map[string][]byte),
	}, nil
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Put stores a copy of the document under the key in the collection.
func (m *Memory) Put(collection string, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, exists := m.collections[collection]
	if !exists {
		docs = make(map[string][]byte)
		m.collections[collection] = docs
	}

	docs[key] = append([]byte(nil), body...)

	return nil
}

// Get returns the document stored under the key in the collection.
func (m *Memory) Get(collection string, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	body, exists := m.collections[collection][key]
	if !exists {
		return nil, database.ErrNotFound
	}

	return append([]byte(nil), body...), nil
}

// Delete removes the documents with the specified keys. Missing keys are
// ignored.
func (m *Memory) Delete(collection string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collections[collection]
	for _, key := range keys {
		delete(docs, key)
	}

	return nil
}

// List returns every document in the collection ordered by key.
func (m *Memory) List(collection string) ([]database.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.collections[collection]

	keys := make([]string, 0, len(docs))
	for key := range docs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	list := make([]database.Document, len(keys))
	for i, key := range keys {
		list[i] = database.Document{
			Key:  key,
			Body: append([]byte(nil), docs[key]...),
		}
	}

	return list, nil
}

// Reset will clear out every collection.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collections = make(map[string]map[string][]byte)
	return nil
}
