package state

import (
	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/genesis"
	"github.com/bitsim/node/foundation/blockchain/ledger"
)

// RetrieveMinerID returns the identity credited when no miner is named.
func (s *State) RetrieveMinerID() string {
	return s.minerID
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveBlocks returns the full chain ordered by index.
func (s *State) RetrieveBlocks() ([]database.Block, error) {
	return s.db.Blocks()
}

// RetrieveBlock returns the block at the specified index.
func (s *State) RetrieveBlock(index uint64) (database.Block, error) {
	return s.db.BlockByIndex(index)
}

// RetrieveMempool returns a copy of the mempool in enqueue order.
func (s *State) RetrieveMempool() []database.PendingTx {
	return s.mempool.Copy()
}

// RetrieveBalances returns a copy of the current balances.
func (s *State) RetrieveBalances() ledger.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot.Copy()
}

// =============================================================================

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryBalance returns the balance of every token held by the address.
func (s *State) QueryBalance(address string) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make(map[string]float64, len(s.snapshot[address]))
	for token, amount := range s.snapshot[address] {
		tokens[token] = amount
	}

	return tokens
}

// QueryBlocksByAddress returns the blocks with a transaction involving the
// address, or mined by it. An empty address returns every block.
func (s *State) QueryBlocksByAddress(address string) ([]database.Block, error) {
	blocks, err := s.db.Blocks()
	if err != nil {
		return nil, err
	}

	if address == "" {
		return blocks, nil
	}

	var out []database.Block
	for _, block := range blocks {
		if block.Header.Miner == address {
			out = append(out, block)
			continue
		}

		for _, tx := range block.Trans {
			if tx.From == address || tx.To == address {
				out = append(out, block)
				break
			}
		}
	}

	return out, nil
}
