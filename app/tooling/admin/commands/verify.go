package commands

import (
	"errors"
	"io"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/genesis"
	"github.com/bitsim/node/foundation/blockchain/ledger"
)

// ErrIntegrity is returned when the stored balances don't match the chain.
var ErrIntegrity = errors.New("persisted balances do not match the chain")

// Verify checks every stored block links and hashes correctly, replays the
// chain and compares the result with the persisted balances. Nothing is
// repaired.
func Verify(w io.Writer, storage database.Storage, gen genesis.Genesis) error {
	db, err := database.New(storage, gen.Variant(), nil)
	if err != nil {
		fail.Fprintf(w, "chain: %s\n", err)
		return err
	}

	blocks, err := db.Blocks()
	if err != nil {
		return err
	}
	info.Fprintf(w, "chain: %d blocks valid\n", len(blocks))

	replayed := ledger.Replay(gen, blocks)

	persisted, err := db.BalanceSnapshot()
	if err != nil {
		return err
	}

	if !replayed.Equal(ledger.New(persisted)) {
		fail.Fprintln(w, "balances: persisted snapshot differs from replay")
		return ErrIntegrity
	}
	info.Fprintln(w, "balances: persisted snapshot matches replay")

	pending, err := db.Pending()
	if err != nil {
		return err
	}

	for _, ptx := range pending {
		if err := ptx.Validate(); err != nil {
			warn.Fprintf(w, "mempool: %s: %s\n", ptx.ID, err)
		}
	}
	info.Fprintf(w, "mempool: %d pending\n", len(pending))

	return nil
}
