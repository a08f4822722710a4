// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"fmt"
	"sync"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/genesis"
	"github.com/bitsim/node/foundation/blockchain/ledger"
	"github.com/bitsim/node/foundation/blockchain/mempool"
	"github.com/bitsim/node/foundation/blockchain/mempool/selector"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// Verifier interface represents the behavior required to decide if a
// transaction is properly authorized before it's admitted to the mempool.
type Verifier interface {
	AdmitTx(tx database.Tx) error
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerID        string
	Genesis        genesis.Genesis
	Storage        database.Storage
	SelectStrategy string
	Verifier       Verifier
	EvHandler      EventHandler
}

// State manages the blockchain database.
type State struct {
	minerID   string
	evHandler EventHandler

	// miningMu allows one mining round, import or reset at a time.
	miningMu sync.Mutex

	// mu protects the snapshot and the commit of a mined block.
	mu       sync.RWMutex
	snapshot ledger.Snapshot

	genesis  genesis.Genesis
	mempool  *mempool.Mempool
	db       *database.Database
	verifier Verifier

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	// Access the storage for the blockchain. The existing chain is
	// validated while it is loaded.
	db, err := database.New(cfg.Storage, cfg.Genesis.Variant(), ev)
	if err != nil {
		return nil, err
	}

	// Construct a mempool with the specified sort strategy.
	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = selector.StrategyOldest
	}
	mp, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		return nil, err
	}

	// Load the transactions still waiting to be mined.
	pending, err := db.Pending()
	if err != nil {
		return nil, err
	}
	for _, tx := range pending {
		mp.Upsert(tx)
	}

	state := State{
		minerID:   cfg.MinerID,
		evHandler: ev,

		genesis:  cfg.Genesis,
		mempool:  mp,
		db:       db,
		verifier: cfg.Verifier,
	}

	if err := state.loadSnapshot(); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Make sure the storage is properly closed.
	return s.db.Close()
}

// =============================================================================

// loadSnapshot replays the chain and compares the result with the persisted
// snapshot. The persisted copy is repaired when it has drifted.
func (s *State) loadSnapshot() error {
	blocks, err := s.db.Blocks()
	if err != nil {
		return err
	}

	replayed := ledger.Replay(s.genesis, blocks)

	persisted, err := s.db.BalanceSnapshot()
	if err != nil {
		return err
	}

	if !replayed.Equal(ledger.New(persisted)) {
		s.evHandler("state: loadSnapshot: WARNING: persisted balances drifted from the chain: repairing: blocks[%d]", len(blocks))

		if err := s.db.SetBalanceSnapshot(replayed); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = replayed

	return nil
}

// cancelMining stops a mining round in progress. The returned function must
// be called once the caller is done changing state.
func (s *State) cancelMining() func() {
	if s.Worker == nil {
		return func() {}
	}

	return s.Worker.SignalCancelMining()
}
