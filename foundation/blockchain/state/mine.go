package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/ledger"
)

// ErrNoTransactions is returned when a block is requested to be created
// and there are not enough transactions.
var ErrNoTransactions = errors.New("no transactions in mempool")

// =============================================================================

// MiningResult represents the outcome of a mining round.
type MiningResult struct {
	Block    database.Block
	Snapshot ledger.Snapshot
	Removed  []string      // Ids of the transactions taken out of the mempool.
	Dropped  []database.Tx // Transfers included in the block that had no effect.
}

// MineNewBlock attempts to create a new block with a proper hash that can become
// the next block in the chain. An empty miner mines for the node's miner.
func (s *State) MineNewBlock(ctx context.Context, miner string) (MiningResult, error) {
	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	if miner == "" {
		miner = s.minerID
	}

	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	// Pull the oldest transactions waiting for a block.
	pending := s.mempool.PickBest(s.genesis.TransPerBlock)
	if len(pending) == 0 {
		return MiningResult{}, ErrNoTransactions
	}

	trans := make([]database.Tx, len(pending))
	for i, tx := range pending {
		trans[i] = tx.Tx
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: miner[%s]: txs[%d]", miner, len(trans))

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	args := database.POWArgs{
		Miner:       miner,
		Difficulty:  s.genesis.Difficulty,
		MaxAttempts: s.genesis.MaxAttempts,
		PrevBlock:   s.db.LatestBlock(),
		Trans:       trans,
		Variant:     s.genesis.Variant(),
		EvHandler:   s.evHandler,
	}

	block, err := database.POW(ctx, args)
	if err != nil {
		return MiningResult{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return MiningResult{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	return s.updateLocalState(block, pending)
}

// =============================================================================

// updateLocalState commits the block. The mined transactions leave the
// persisted mempool before the block is appended so a transaction is never
// stored both pending and mined. Once the append succeeds the in-memory
// balances and mempool always move forward. A failed balance write only
// leaves a stale snapshot behind, which is rebuilt from the chain on start.
func (s *State) updateLocalState(block database.Block, pending []database.PendingTx) (MiningResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(pending))
	for i, tx := range pending {
		ids[i] = tx.ID
	}

	s.evHandler("state: updateLocalState: remove from mempool: txs[%d]", len(ids))

	if err := s.db.RemovePending(ids...); err != nil {
		s.restorePending(pending)
		return MiningResult{}, fmt.Errorf("remove pending: %w", err)
	}

	s.evHandler("state: updateLocalState: write block to storage: blk[%d]", block.Header.Index)

	// The append fails if another block was appended since mining started.
	if err := s.db.AppendBlock(block); err != nil {
		s.restorePending(pending)
		return MiningResult{}, fmt.Errorf("append block: %w", err)
	}

	res := ledger.ApplyBlock(s.snapshot, s.genesis, block)
	s.snapshot = res.Snapshot
	s.mempool.Delete(ids...)

	s.evHandler("state: updateLocalState: persist balances")

	if err := s.db.SetBalanceSnapshot(res.Snapshot); err != nil {
		s.evHandler("state: updateLocalState: WARNING: persist balances: blk[%d]: %s", block.Header.Index, err)
	}

	for _, tx := range res.Dropped {
		s.evHandler("viewer: dropped: {\"reason\":\"insufficient balance\",\"tx\":%q}", tx.String())
	}

	s.blockEvent(block)

	result := MiningResult{
		Block:    block,
		Snapshot: res.Snapshot.Copy(),
		Removed:  ids,
		Dropped:  res.Dropped,
	}

	return result, nil
}

// restorePending puts the transactions back in the persisted mempool after
// a block failed to commit.
func (s *State) restorePending(pending []database.PendingTx) {
	if err := s.db.RestorePending(pending...); err != nil {
		s.evHandler("state: restorePending: ERROR: txs[%d]: %s", len(pending), err)
	}
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(database.NewBlockData(block))
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler("viewer: block: %s", string(blockJSON))
}
