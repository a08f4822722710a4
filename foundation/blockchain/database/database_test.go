package database_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/signature"
	"github.com/bitsim/node/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_POW(t *testing.T) {
	type table struct {
		name       string
		difficulty uint
		variant    signature.Variant
		trans      []database.Tx
	}

	tt := []table{
		{
			name:       "mint",
			difficulty: 3,
			variant:    signature.Server,
			trans:      []database.Tx{database.NewMint("SIM", "Alice", 5, "")},
		},
		{
			name:       "browser",
			difficulty: 2,
			variant:    signature.Browser,
			trans:      []database.Tx{database.NewTransfer("SIM", "Bob", "Carol", 10)},
		},
		{
			name:       "empty",
			difficulty: 1,
			variant:    signature.Server,
		},
	}

	t.Log("Given the need to mine blocks.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s block.", testID, tst.name)
			{
				f := func(t *testing.T) {
					args := database.POWArgs{
						Miner:      "Miner1",
						Difficulty: tst.difficulty,
						PrevBlock:  database.GenesisBlock(),
						Trans:      tst.trans,
						Variant:    tst.variant,
					}

					block, err := database.POW(context.Background(), args)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to mine the block: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to mine the block.", success, testID)

					if block.Header.Index != 1 || block.Header.PrevHash != signature.ZeroHash {
						t.Fatalf("\t%s\tTest %d:\tShould link to the genesis block: idx[%d] prev[%s]", failed, testID, block.Header.Index, block.Header.PrevHash)
					}
					t.Logf("\t%s\tTest %d:\tShould link to the genesis block.", success, testID)

					zeros := "00000000"[:tst.difficulty]
					if block.Hash[:tst.difficulty] != zeros {
						t.Fatalf("\t%s\tTest %d:\tShould have a hash starting with %s, got %s.", failed, testID, zeros, block.Hash)
					}
					t.Logf("\t%s\tTest %d:\tShould have a hash starting with %s.", success, testID, zeros)

					base, err := database.HeaderBase(block.Header, block.Trans)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to build the header base: %v", failed, testID, err)
					}
					if exp := tst.variant.Checksum(base + strconv.FormatUint(block.Header.Nonce, 10)); exp != block.Hash {
						t.Fatalf("\t%s\tTest %d:\tShould hash the header base followed by the nonce, got %s, exp %s.", failed, testID, block.Hash, exp)
					}
					t.Logf("\t%s\tTest %d:\tShould hash the header base followed by the nonce.", success, testID)

					if err := block.ValidateBlock(database.GenesisBlock(), tst.variant); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to validate the block: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to validate the block.", success, testID)

					tampered := block
					tampered.Header.Nonce++
					if err := tampered.ValidateBlock(database.GenesisBlock(), tst.variant); err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould not validate a block with a changed nonce.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould not validate a block with a changed nonce.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_HeaderBase(t *testing.T) {
	header := database.BlockHeader{
		Index:     1,
		PrevHash:  signature.ZeroHash,
		TimeStamp: 1700000000000,
	}

	trans := []database.Tx{database.NewMint("SIM", "Alice", 5, "")}

	base, err := database.HeaderBase(header, trans)
	if err != nil {
		t.Fatalf("Should be able to build the header base: %s", err)
	}

	exp := `{"idx":1,"prevHash":"00000000","ts":1700000000000,"txs":[{"type":"MINT","token":"SIM","to":"Alice","amount":5}]}`
	if base != exp {
		t.Logf("got: %s", base)
		t.Logf("exp: %s", exp)
		t.Fatalf("Should serialize the header base in the wire format.")
	}

	base, _ = database.HeaderBase(header, nil)
	if exp := `{"idx":1,"prevHash":"00000000","ts":1700000000000,"txs":[]}`; base != exp {
		t.Fatalf("Should serialize missing transactions as an empty list, got %s.", base)
	}
}

func Test_POWLimits(t *testing.T) {
	t.Log("Given the need to bound the nonce search.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the difficulty can't be reached.", testID)
		{
			args := database.POWArgs{
				Difficulty:  8,
				MaxAttempts: 10,
				PrevBlock:   database.GenesisBlock(),
			}

			_, err := database.POW(context.Background(), args)
			if !errors.Is(err, database.ErrUnreachableDifficulty) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrUnreachableDifficulty: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrUnreachableDifficulty.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen mining is cancelled.", testID)
		{
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			args := database.POWArgs{
				Difficulty: 8,
				PrevBlock:  database.GenesisBlock(),
			}

			_, err := database.POW(ctx, args)
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("\t%s\tTest %d:\tShould stop with the context error: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould stop with the context error.", success, testID)
		}
	}
}

func Test_Database(t *testing.T) {
	t.Log("Given the need to persist the chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen appending blocks.", testID)
		{
			storage, _ := memory.New()

			db, err := database.New(storage, signature.Server, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open database: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to open database.", success, testID)

			if db.LatestBlock().Hash != signature.ZeroHash {
				t.Fatalf("\t%s\tTest %d:\tShould start at the genesis block.", failed, testID)
			}

			b1 := mine(t, db.LatestBlock(), database.NewMint("SIM", "Alice", 5, ""))
			b2 := mine(t, b1, database.NewTransfer("SIM", "Alice", "Bob", 2))

			// A block mined on the same parent as b2 but appended after it.
			stale := mine(t, b1, database.NewTransfer("SIM", "Alice", "Carol", 1))

			if err := db.AppendBlock(b2); !errors.Is(err, database.ErrChainForked) {
				t.Fatalf("\t%s\tTest %d:\tShould not append a block out of order: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not append a block out of order.", success, testID)

			for _, b := range []database.Block{b1, b2} {
				if err := db.AppendBlock(b); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to append block %d: %v", failed, testID, b.Header.Index, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to append blocks.", success, testID)

			if err := db.AppendBlock(stale); !errors.Is(err, database.ErrChainForked) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a block mined on a stale tail: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a block mined on a stale tail.", success, testID)

			blocks, err := db.Blocks()
			if err != nil || len(blocks) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould get back 2 blocks: %d %v", failed, testID, len(blocks), err)
			}
			if blocks[0].Hash != b1.Hash || blocks[1].Hash != b2.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould get back the blocks in index order.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the blocks in index order.", success, testID)

			got, err := db.BlockByIndex(2)
			if err != nil || got.Hash != b2.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould get back block 2 by index: %v", failed, testID, err)
			}
			if _, err := db.BlockByIndex(9); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrNotFound for an unknown index: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to look up blocks by index.", success, testID)

			reopened, err := database.New(storage, signature.Server, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reopen and validate the chain: %v", failed, testID, err)
			}
			if reopened.LatestBlock().Hash != b2.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould restore the latest block on reopen.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould restore the latest block on reopen.", success, testID)

			if _, err := database.New(storage, signature.Browser, nil); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould not validate the chain with another checksum variant.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not validate the chain with another checksum variant.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen handling pending transactions.", testID)
		{
			storage, _ := memory.New()
			db, _ := database.New(storage, signature.Server, nil)

			var ids []string
			for _, to := range []string{"Alice", "Bob", "Carol"} {
				ptx, err := db.AddPending(database.NewMint("SIM", to, 1, ""))
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to add a pending tx: %v", failed, testID, err)
				}
				ids = append(ids, ptx.ID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to add pending transactions.", success, testID)

			pending, err := db.Pending()
			if err != nil || len(pending) != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould get back 3 pending: %d %v", failed, testID, len(pending), err)
			}
			for i, to := range []string{"Alice", "Bob", "Carol"} {
				if pending[i].To != to || pending[i].ID != ids[i] {
					t.Fatalf("\t%s\tTest %d:\tShould get back pending in enqueue order, got %s at %d.", failed, testID, pending[i].To, i)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould get back pending in enqueue order.", success, testID)

			if err := db.RemovePending(ids[0], ids[2]); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to remove pending: %v", failed, testID, err)
			}
			pending, _ = db.Pending()
			if len(pending) != 1 || pending[0].To != "Bob" {
				t.Fatalf("\t%s\tTest %d:\tShould only have Bob's transaction left.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to remove pending.", success, testID)

			reopened, _ := database.New(storage, signature.Server, nil)
			ptx, _ := reopened.AddPending(database.NewMint("SIM", "Dave", 1, ""))
			if ptx.ID <= ids[1] {
				t.Fatalf("\t%s\tTest %d:\tShould keep ids increasing across a reopen: %s <= %s", failed, testID, ptx.ID, ids[1])
			}
			t.Logf("\t%s\tTest %d:\tShould keep ids increasing across a reopen.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen handling the balance snapshot.", testID)
		{
			storage, _ := memory.New()
			db, _ := database.New(storage, signature.Server, nil)

			snapshot, err := db.BalanceSnapshot()
			if err != nil || len(snapshot) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould get back an empty snapshot: %v", failed, testID, err)
			}

			exp := map[string]map[string]float64{"Alice": {"SIM": 5}, "Miner1": {"POW": 1}}
			if err := db.SetBalanceSnapshot(exp); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to persist the snapshot: %v", failed, testID, err)
			}

			snapshot, _ = db.BalanceSnapshot()
			if snapshot["Alice"]["SIM"] != 5 || snapshot["Miner1"]["POW"] != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould get back the persisted snapshot: %v", failed, testID, snapshot)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the persisted snapshot.", success, testID)

			if err := db.Reset(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reset: %v", failed, testID, err)
			}
			snapshot, _ = db.BalanceSnapshot()
			if len(snapshot) != 0 || db.LatestBlock().Header.Index != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould be back at genesis after reset.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be back at genesis after reset.", success, testID)
		}
	}
}

func Test_TxValidate(t *testing.T) {
	tt := []struct {
		name string
		tx   database.Tx
		err  error
	}{
		{name: "mint", tx: database.NewMint("SIM", "Alice", 5, "")},
		{name: "transfer", tx: database.NewTransfer("SIM", "Bob", "Carol", 0.5)},
		{name: "zero", tx: database.NewMint("SIM", "Alice", 0, ""), err: database.ErrInvalidAmount},
		{name: "negative", tx: database.NewTransfer("SIM", "Bob", "Carol", -1), err: database.ErrInvalidAmount},
		{name: "token", tx: database.NewMint("", "Alice", 1, ""), err: database.ErrInvalidTx},
		{name: "from", tx: database.NewTransfer("SIM", "", "Carol", 1), err: database.ErrInvalidTx},
		{name: "type", tx: database.Tx{Type: "BURN", Token: "SIM", To: "Alice", Amount: 1}, err: database.ErrInvalidTx},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			err := tst.tx.Validate()
			if tst.err == nil && err != nil {
				t.Fatalf("Should be a valid transaction: %s", err)
			}
			if tst.err != nil && !errors.Is(err, tst.err) {
				t.Fatalf("Should get %v, got %v.", tst.err, err)
			}
		}

		t.Run(tst.name, f)
	}
}

// =============================================================================

func mine(t *testing.T, prev database.Block, trans ...database.Tx) database.Block {
	t.Helper()

	args := database.POWArgs{
		Miner:      "Miner1",
		Difficulty: 2,
		PrevBlock:  prev,
		Trans:      trans,
	}

	block, err := database.POW(context.Background(), args)
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	return block
}
