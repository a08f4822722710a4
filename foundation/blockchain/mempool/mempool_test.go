package mempool_test

import (
	"fmt"
	"testing"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/mempool"
	"github.com/bitsim/node/foundation/blockchain/mempool/selector"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func pending(seq int, tx database.Tx) database.PendingTx {
	return database.PendingTx{
		ID:        fmt.Sprintf("%020d", seq),
		Tx:        tx,
		TimeStamp: int64(seq),
	}
}

func TestCRUD(t *testing.T) {
	type table struct {
		name     string
		strategy string
		txs      []database.PendingTx
		howMany  int
		best     []string
	}

	txs := []database.PendingTx{
		pending(3, database.NewTransfer("SIM", "Bob", "Carol", 10)),
		pending(1, database.NewMint("SIM", "Alice", 5, "")),
		pending(2, database.NewMint("SIM", "Alice", 5, "")),
		pending(4, database.NewMint("SIM", "Dave", 1, "")),
	}

	tt := []table{
		{
			name:     "oldest",
			strategy: selector.StrategyOldest,
			txs:      txs,
			howMany:  3,
			best:     []string{"Alice", "Alice", "Carol"},
		},
		{
			name:     "newest",
			strategy: selector.StrategyNewest,
			txs:      txs,
			howMany:  2,
			best:     []string{"Carol", "Dave"},
		},
	}

	t.Log("Given the need to validate mempool api.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
			{
				f := func(t *testing.T) {
					mp, err := mempool.NewWithStrategy(tst.strategy)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct the mempool: %v", failed, testID, err)
					}

					for _, tx := range tst.txs {
						mp.Upsert(tx)
						t.Logf("\t%s\tTest %d:\tShould be able to add new transaction: %s", success, testID, tx.ID)
					}

					if mp.Count() != len(tst.txs) {
						t.Fatalf("\t%s\tTest %d:\tShould keep duplicate transactions, got %d.", failed, testID, mp.Count())
					}
					t.Logf("\t%s\tTest %d:\tShould keep duplicate transactions.", success, testID)

					all := mp.Copy()
					for i := 1; i < len(all); i++ {
						if all[i-1].ID >= all[i].ID {
							t.Fatalf("\t%s\tTest %d:\tShould copy transactions in enqueue order.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould copy transactions in enqueue order.", success, testID)

					best := mp.PickBest(tst.howMany)
					if len(best) != len(tst.best) {
						t.Fatalf("\t%s\tTest %d:\tShould get back %d transactions, got %d.", failed, testID, len(tst.best), len(best))
					}
					for i, tx := range best {
						if tx.To != tst.best[i] {
							t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tx.To)
							t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.best[i])
							t.Fatalf("\t%s\tTest %d:\tShould get back the right transactions.", failed, testID)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right transactions.", success, testID)

					ids := make([]string, len(best))
					for i, tx := range best {
						ids[i] = tx.ID
					}
					mp.Delete(ids...)

					if exp := len(tst.txs) - len(best); mp.Count() != exp {
						t.Fatalf("\t%s\tTest %d:\tShould have %d transactions left, got %d.", failed, testID, exp, mp.Count())
					}
					t.Logf("\t%s\tTest %d:\tShould be able to delete the picked transactions.", success, testID)

					mp.Truncate()
					if mp.Count() != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould be able to truncate the mempool.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to truncate the mempool.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestUnknownStrategy(t *testing.T) {
	if _, err := mempool.NewWithStrategy("tip"); err == nil {
		t.Fatalf("Should not be able to construct a mempool with an unknown strategy.")
	}
}
