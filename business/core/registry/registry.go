// Package registry provides the identity support around the chain: the
// registered users and their public proofs, the tokens that can be minted,
// the miner and child principals managed by the admin, and the record of
// signature verifications.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bitsim/node/foundation/blockchain/database"
)

// Set of error variables for the registry.
var (
	ErrNotFound     = errors.New("not found")
	ErrExists       = errors.New("already exists")
	ErrDisabled     = errors.New("principal is disabled")
	ErrBadSecret    = errors.New("bad secret")
	ErrNoChallenge  = errors.New("no challenge")
	ErrBadSignature = errors.New("bad signature")
	ErrNotAdmitted  = errors.New("transaction not admitted")
	ErrInvalid      = errors.New("invalid payload")
)

// Set of collections the registry keeps in storage.
const (
	collUsers         = "users"
	collTokens        = "tokens"
	collMiners        = "miners"
	collChildren      = "children"
	collVerifications = "verifications"
)

// Core manages the set of APIs for registry access.
type Core struct {
	storage database.Storage

	mu         sync.Mutex
	challenges map[string]string
	lastSeq    int64
}

// NewCore constructs a core for registry api access.
func NewCore(storage database.Storage) (*Core, error) {
	c := Core{
		storage:    storage,
		challenges: make(map[string]string),
	}

	docs, err := storage.List(collVerifications)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}

	if len(docs) > 0 {
		seq, err := strconv.ParseInt(docs[len(docs)-1].Key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("verification key %q: %w", docs[len(docs)-1].Key, err)
		}
		c.lastSeq = seq
	}

	return &c, nil
}

// Close releases the underlying storage.
func (c *Core) Close() error {
	return c.storage.Close()
}

// =============================================================================

// docKey escapes an address or symbol so it is safe to use as a document key
// in every storage backend.
func docKey(id string) string {
	return url.PathEscape(id)
}

// nextSeq returns an id that sorts after every id handed out before. The
// caller must hold the mutex.
func (c *Core) nextSeq() string {
	seq := time.Now().UnixNano()
	if seq <= c.lastSeq {
		seq = c.lastSeq + 1
	}
	c.lastSeq = seq

	return fmt.Sprintf("%020d", seq)
}

func (c *Core) put(collection string, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.storage.Put(collection, docKey(key), data)
}

func (c *Core) get(collection string, key string, value any) error {
	data, err := c.storage.Get(collection, docKey(key))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	return json.Unmarshal(data, value)
}

// list decodes every document in the collection in key order.
func list[T any](s database.Storage, collection string) ([]T, error) {
	docs, err := s.List(collection)
	if err != nil {
		return nil, err
	}

	values := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc.Body, &v); err != nil {
			return nil, fmt.Errorf("document %s/%s: %w", collection, doc.Key, err)
		}
		values = append(values, v)
	}

	return values, nil
}
