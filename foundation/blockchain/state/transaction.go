package state

import (
	"fmt"

	"github.com/bitsim/node/foundation/blockchain/database"
)

// SubmitTransaction accepts a transaction for inclusion in a future block.
// The transaction is persisted before it's added to the mempool.
func (s *State) SubmitTransaction(tx database.Tx) (database.PendingTx, error) {
	if err := s.validateTransaction(tx); err != nil {
		return database.PendingTx{}, err
	}

	ptx, err := s.db.AddPending(tx)
	if err != nil {
		return database.PendingTx{}, fmt.Errorf("add pending: %w", err)
	}

	n := s.mempool.Upsert(ptx)
	s.evHandler("state: SubmitTransaction: tx[%s]: id[%s]: mempool[%d]", tx, ptx.ID, n)

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return ptx, nil
}

// =============================================================================

// validateTransaction checks the transaction is well formed and, when a
// verifier is configured, properly authorized. Balances are not checked.
func (s *State) validateTransaction(tx database.Tx) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	if s.verifier != nil {
		if err := s.verifier.AdmitTx(tx); err != nil {
			return err
		}
	}

	return nil
}
