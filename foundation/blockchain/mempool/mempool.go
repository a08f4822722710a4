// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"sort"
	"sync"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/mempool/selector"
)

// Mempool represents a cache of pending transactions keyed by their id.
// There is no deduplication, no fee ordering and no expiry.
type Mempool struct {
	pool     map[string]database.PendingTx
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyOldest)
}

// NewWithStrategy constructs a new mempool with specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.PendingTx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction in the mempool.
func (mp *Mempool) Upsert(tx database.PendingTx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool[tx.ID] = tx

	return len(mp.pool)
}

// Delete removes the specified transactions from the mempool. Unknown ids
// are ignored.
func (mp *Mempool) Delete(ids ...string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, id := range ids {
		delete(mp.pool, id)
	}
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.PendingTx)
}

// Copy returns every transaction in the pool in enqueue order.
func (mp *Mempool) Copy() []database.PendingTx {
	txs := mp.snapshot()
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })

	return txs
}

// PickBest uses the configured sort strategy to return the next set
// of transactions for the next block. Receiving -1 returns them all.
func (mp *Mempool) PickBest(howMany int) []database.PendingTx {
	return mp.selectFn(mp.snapshot(), howMany)
}

func (mp *Mempool) snapshot() []database.PendingTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.PendingTx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		txs = append(txs, tx)
	}

	return txs
}
