// Package disk implements the ability to read and write documents to disk
// with a directory per collection and a json file per document.
package disk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bitsim/node/foundation/blockchain/database"
)

// Disk represents the serialization implementation for reading and storing
// documents in their own separate files on disk. This implements the
// database.Storage interface.
type Disk struct {
	mu     sync.RWMutex
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each document and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Put takes the specified document and stores it on disk in a file labeled
// with the key.
func (d *Disk) Put(collection string, key string, body []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(d.dbPath, collection), 0755); err != nil {
		return err
	}

	// Indent the document for writing to disk in a more human readable format.
	data := body
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err == nil {
		data = buf.Bytes()
	}

	// Write to a temp file first so a crash never leaves half a document.
	path := d.getPath(collection, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// Get searches the collection on disk to locate and return the contents
// of the specified document.
func (d *Disk) Get(collection string, key string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	data, err := os.ReadFile(d.getPath(collection, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}

	return data, nil
}

// Delete removes the files for the specified keys.
func (d *Disk) Delete(collection string, keys ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, key := range keys {
		if err := os.Remove(d.getPath(collection, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

// List reads every document in the collection ordered by key.
func (d *Disk) List(collection string) ([]database.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(d.dbPath, collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)

	docs := make([]database.Document, 0, len(keys))
	for _, key := range keys {
		data, err := os.ReadFile(d.getPath(collection, key))
		if err != nil {
			return nil, fmt.Errorf("reading %s/%s: %w", collection, key, err)
		}
		docs = append(docs, database.Document{Key: key, Body: data})
	}

	return docs, nil
}

// Reset will clear out every collection on disk.
func (d *Disk) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.RemoveAll(d.dbPath); err != nil {
		return err
	}

	return os.MkdirAll(d.dbPath, 0755)
}

// getPath forms the path to the specified document.
func (d *Disk) getPath(collection string, key string) string {
	return filepath.Join(d.dbPath, collection, fmt.Sprintf("%s.json", key))
}
