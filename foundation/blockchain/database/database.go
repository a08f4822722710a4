// Package database handles all the lower level support for maintaining the
// blockchain, the pending transactions and the balance snapshot in storage.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bitsim/node/foundation/blockchain/signature"
)

// ErrNotFound is returned by storage when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Set of collections the database maintains in storage.
const (
	CollectionBlocks   = "blocks"
	CollectionMempool  = "mempool"
	CollectionBalances = "balances"
)

// snapshotKey is the key of the persisted balance snapshot document.
const snapshotKey = "latest"

// =============================================================================

// Document represents a single value stored in a collection.
type Document struct {
	Key  string
	Body []byte
}

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing documents in named collections.
// List must return the documents ordered by key.
type Storage interface {
	Put(collection string, key string, body []byte) error
	Get(collection string, key string) ([]byte, error)
	Delete(collection string, keys ...string) error
	List(collection string) ([]Document, error)
	Reset() error
	Close() error
}

// =============================================================================

// Database manages the chain of blocks, the pending transactions and the
// persisted balance snapshot.
type Database struct {
	mu sync.RWMutex

	variant     signature.Variant
	latestBlock Block
	lastSeq     int64

	storage Storage
}

// New constructs a new database over the specified storage. The existing
// chain is read and validated block by block.
func New(storage Storage, variant signature.Variant, evHandler func(v string, args ...any)) (*Database, error) {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	db := Database{
		variant:     variant,
		latestBlock: GenesisBlock(),
		storage:     storage,
	}

	blocks, err := db.Blocks()
	if err != nil {
		return nil, err
	}

	for _, block := range blocks {
		evHandler("database: New: validate: blk[%d]: hash[%s]", block.Header.Index, block.Hash)

		if err := block.ValidateBlock(db.latestBlock, variant); err != nil {
			return nil, fmt.Errorf("block %d: %w", block.Header.Index, err)
		}
		db.latestBlock = block
	}

	pending, err := db.Pending()
	if err != nil {
		return nil, err
	}
	for _, tx := range pending {
		seq, err := strconv.ParseInt(tx.ID, 10, 64)
		if err == nil && seq > db.lastSeq {
			db.lastSeq = seq
		}
	}

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Reset removes everything from storage and puts the chain back at genesis.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.storage.Reset(); err != nil {
		return err
	}

	db.latestBlock = GenesisBlock()

	return nil
}

// Variant returns the checksum variant used to hash blocks.
func (db *Database) Variant() signature.Variant {
	return db.variant
}

// =============================================================================

// LatestBlock returns the latest block, or the genesis block when the chain
// is empty.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// AppendBlock validates the block extends the current tail of the chain and
// writes it to storage. A block mined on top of a stale tail is rejected
// with ErrChainForked.
func (db *Database) AppendBlock(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := block.ValidateBlock(db.latestBlock, db.variant); err != nil {
		return err
	}

	data, err := json.Marshal(NewBlockData(block))
	if err != nil {
		return err
	}

	if err := db.storage.Put(CollectionBlocks, blockKey(block.Header.Index), data); err != nil {
		return err
	}

	db.latestBlock = block

	return nil
}

// Blocks returns the full chain ordered by index.
func (db *Database) Blocks() ([]Block, error) {
	docs, err := db.storage.List(CollectionBlocks)
	if err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, len(docs))
	for _, doc := range docs {
		var blockData BlockData
		if err := json.Unmarshal(doc.Body, &blockData); err != nil {
			return nil, fmt.Errorf("decoding block %s: %w", doc.Key, err)
		}
		blocks = append(blocks, ToBlock(blockData))
	}

	return blocks, nil
}

// BlockByIndex returns the block stored at the specified index.
func (db *Database) BlockByIndex(index uint64) (Block, error) {
	data, err := db.storage.Get(CollectionBlocks, blockKey(index))
	if err != nil {
		return Block{}, err
	}

	var blockData BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return Block{}, err
	}

	return ToBlock(blockData), nil
}

// =============================================================================

// AddPending stores a transaction in the mempool collection. The returned
// value carries the id and timestamp assigned to it.
func (db *Database) AddPending(tx Tx) (PendingTx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now().UTC()

	// Ids are sequence numbers seeded from the clock so they keep sorting
	// in enqueue order across restarts.
	seq := now.UnixNano()
	if seq <= db.lastSeq {
		seq = db.lastSeq + 1
	}

	ptx := PendingTx{
		ID:        pendingKey(seq),
		Tx:        tx,
		TimeStamp: now.UnixMilli(),
	}

	data, err := json.Marshal(ptx)
	if err != nil {
		return PendingTx{}, err
	}

	if err := db.storage.Put(CollectionMempool, ptx.ID, data); err != nil {
		return PendingTx{}, err
	}

	db.lastSeq = seq

	return ptx, nil
}

// Pending returns the pending transactions in the order they were added.
func (db *Database) Pending() ([]PendingTx, error) {
	docs, err := db.storage.List(CollectionMempool)
	if err != nil {
		return nil, err
	}

	pending := make([]PendingTx, 0, len(docs))
	for _, doc := range docs {
		var ptx PendingTx
		if err := json.Unmarshal(doc.Body, &ptx); err != nil {
			return nil, fmt.Errorf("decoding pending tx %s: %w", doc.Key, err)
		}
		pending = append(pending, ptx)
	}

	return pending, nil
}

// RestorePending writes the pending transactions back under their ids.
func (db *Database) RestorePending(txs ...PendingTx) error {
	for _, ptx := range txs {
		data, err := json.Marshal(ptx)
		if err != nil {
			return err
		}

		if err := db.storage.Put(CollectionMempool, ptx.ID, data); err != nil {
			return err
		}
	}

	return nil
}

// RemovePending deletes the specified pending transactions.
func (db *Database) RemovePending(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	return db.storage.Delete(CollectionMempool, ids...)
}

// =============================================================================

// BalanceSnapshot returns the persisted balance snapshot. An empty snapshot
// is returned when none has been persisted yet.
func (db *Database) BalanceSnapshot() (map[string]map[string]float64, error) {
	data, err := db.storage.Get(CollectionBalances, snapshotKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return map[string]map[string]float64{}, nil
		}
		return nil, err
	}

	snapshot := make(map[string]map[string]float64)
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// SetBalanceSnapshot persists the balance snapshot.
func (db *Database) SetBalanceSnapshot(snapshot map[string]map[string]float64) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	return db.storage.Put(CollectionBalances, snapshotKey, data)
}

// =============================================================================

// blockKey forms the storage key for a block so keys sort by index.
func blockKey(index uint64) string {
	return fmt.Sprintf("%020d", index)
}

// pendingKey forms the storage key for a pending transaction.
func pendingKey(seq int64) string {
	return fmt.Sprintf("%020d", seq)
}
