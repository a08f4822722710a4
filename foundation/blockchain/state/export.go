package state

import (
	"fmt"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/genesis"
	"github.com/bitsim/node/foundation/blockchain/ledger"
)

// Export represents everything needed to move the node's state to
// another node.
type Export struct {
	Genesis  genesis.Genesis      `json:"genesis"`
	Chain    []database.BlockData `json:"chain"`
	Mempool  []database.PendingTx `json:"mempool"`
	Balances ledger.Snapshot      `json:"balances"`
	MinerID  string               `json:"minerAddress"`
}

// Export returns a copy of the chain, the mempool and the balances.
func (s *State) Export() (Export, error) {
	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	blocks, err := s.db.Blocks()
	if err != nil {
		return Export{}, err
	}

	chain := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		chain[i] = database.NewBlockData(block)
	}

	exp := Export{
		Genesis:  s.genesis,
		Chain:    chain,
		Mempool:  s.mempool.Copy(),
		Balances: s.RetrieveBalances(),
		MinerID:  s.minerID,
	}

	return exp, nil
}

// Import replaces the node's chain and mempool with the exported state.
// The chain is validated and replayed first. The balances are derived from
// the chain and the exported balances are only compared against them.
func (s *State) Import(exp Export) error {
	s.evHandler("state: Import: started: blocks[%d]: mempool[%d]", len(exp.Chain), len(exp.Mempool))
	defer s.evHandler("state: Import: completed")

	done := s.cancelMining()
	defer done()

	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	variant := s.genesis.Variant()

	blocks := make([]database.Block, len(exp.Chain))
	prev := database.GenesisBlock()
	for i, blockData := range exp.Chain {
		block := database.ToBlock(blockData)
		if err := block.ValidateBlock(prev, variant); err != nil {
			return fmt.Errorf("import block %d: %w", block.Header.Index, err)
		}
		blocks[i] = block
		prev = block
	}

	for _, tx := range exp.Mempool {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("import pending %s: %w", tx.ID, err)
		}
	}

	replayed := ledger.Replay(s.genesis, blocks)
	if exp.Balances != nil && !replayed.Equal(exp.Balances) {
		s.evHandler("state: Import: WARNING: exported balances don't match the chain: using the chain")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The current chain is kept so a failed write can put it back.
	prevBlocks, err := s.db.Blocks()
	if err != nil {
		return err
	}
	prevSnapshot := s.snapshot
	prevPending := s.mempool.Copy()

	if err := s.importChain(blocks, replayed, exp.Mempool); err != nil {
		s.evHandler("state: Import: ERROR: %s: restoring the previous chain: blocks[%d]", err, len(prevBlocks))

		if rerr := s.replaceChain(prevBlocks, prevSnapshot); rerr != nil {
			return fmt.Errorf("%w: restoring previous chain: %v", err, rerr)
		}
		if rerr := s.db.RestorePending(prevPending...); rerr != nil {
			return fmt.Errorf("%w: restoring previous mempool: %v", err, rerr)
		}
		for _, ptx := range prevPending {
			s.mempool.Upsert(ptx)
		}

		return err
	}

	return nil
}

// importChain replaces the chain and queues the exported transactions as
// new pending transactions.
func (s *State) importChain(blocks []database.Block, snapshot ledger.Snapshot, pending []database.PendingTx) error {
	if err := s.replaceChain(blocks, snapshot); err != nil {
		return err
	}

	for _, tx := range pending {
		ptx, err := s.db.AddPending(tx.Tx)
		if err != nil {
			return fmt.Errorf("import pending %s: %w", tx.ID, err)
		}
		s.mempool.Upsert(ptx)
	}

	return nil
}

// replaceChain clears the storage and the mempool and writes the blocks and
// their balances. The caller must hold mu.
func (s *State) replaceChain(blocks []database.Block, snapshot ledger.Snapshot) error {
	if err := s.db.Reset(); err != nil {
		return err
	}
	s.mempool.Truncate()

	for _, block := range blocks {
		if err := s.db.AppendBlock(block); err != nil {
			return fmt.Errorf("import block %d: %w", block.Header.Index, err)
		}
	}

	if err := s.db.SetBalanceSnapshot(snapshot); err != nil {
		return err
	}
	s.snapshot = snapshot

	return nil
}

// Reset puts the node back at the genesis block with an empty mempool.
func (s *State) Reset() error {
	s.evHandler("state: Reset: started")
	defer s.evHandler("state: Reset: completed")

	done := s.cancelMining()
	defer done()

	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replaceChain(nil, ledger.New(s.genesis.Balances))
}
