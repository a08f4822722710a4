package state_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/genesis"
	"github.com/bitsim/node/foundation/blockchain/ledger"
	"github.com/bitsim/node/foundation/blockchain/signature"
	"github.com/bitsim/node/foundation/blockchain/state"
	"github.com/bitsim/node/foundation/blockchain/storage/memory"
	"github.com/bitsim/node/foundation/events"
	"github.com/bitsim/node/foundation/logger"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func ifErrFailNow(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func newState(t *testing.T, storage database.Storage, gen genesis.Genesis, verifier state.Verifier) *state.State {
	t.Helper()

	log, err := logger.New("TEST")
	ifErrFailNow(t, err)
	t.Cleanup(func() { log.Sync() })

	evts := events.New()

	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Debugw(s, "traceid", "00000000-0000-0000-0000-000000000000")
		if strings.HasPrefix(s, events.Prefix) {
			evts.Send(s)
		}
	}

	st, err := state.New(state.Config{
		MinerID:   "Miner1",
		Genesis:   gen,
		Storage:   storage,
		Verifier:  verifier,
		EvHandler: ev,
	})
	ifErrFailNow(t, err)

	return st
}

// quickGenesis returns a genesis whose blocks solve within a few nonces.
func quickGenesis() genesis.Genesis {
	gen := genesis.Default()
	gen.Difficulty = 1
	gen.MaxAttempts = 0
	return gen
}

// =============================================================================

func Test_MiningRound(t *testing.T) {
	t.Log("Given the need to mine blocks from the mempool.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen Alice mints 5 SIM under the default genesis.", testID)
		{
			storage, err := memory.New()
			ifErrFailNow(t, err)
			st := newState(t, storage, genesis.Default(), nil)

			if _, err := st.SubmitTransaction(database.NewMint("SIM", "Alice", 5, "")); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit the mint: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to submit the mint.", success, testID)

			res, err := st.MineNewBlock(context.Background(), "Miner1")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine a block.", success, testID)

			blocks, err := st.RetrieveBlocks()
			ifErrFailNow(t, err)
			if len(blocks) != 1 || blocks[0].Hash != res.Block.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould have a chain of 1 block, got %d.", failed, testID, len(blocks))
			}
			t.Logf("\t%s\tTest %d:\tShould have a chain of 1 block.", success, testID)

			if !strings.HasPrefix(res.Block.Hash, "000") || res.Block.Header.PrevHash != signature.ZeroHash || res.Block.Header.Index != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould mine block 1 on the genesis block with a 000 hash: %+v", failed, testID, res.Block.Header)
			}
			t.Logf("\t%s\tTest %d:\tShould mine block 1 on the genesis block with a 000 hash.", success, testID)

			if got := st.QueryBalance("Alice")["SIM"]; got != 5 {
				t.Fatalf("\t%s\tTest %d:\tShould give Alice 5 SIM, got %v.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould give Alice 5 SIM.", success, testID)

			if got := st.QueryBalance("Miner1")["POW"]; got != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould give Miner1 1 POW, got %v.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould give Miner1 1 POW.", success, testID)

			if st.QueryMempoolLength() != 0 || len(res.Removed) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have an empty mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have an empty mempool.", success, testID)

			if !res.Snapshot.Equal(st.RetrieveBalances()) {
				t.Fatalf("\t%s\tTest %d:\tShould return the updated balances.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould return the updated balances.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen Bob transfers SIM he doesn't have.", testID)
		{
			storage, err := memory.New()
			ifErrFailNow(t, err)
			st := newState(t, storage, quickGenesis(), nil)

			if _, err := st.SubmitTransaction(database.NewTransfer("SIM", "Bob", "Carol", 10)); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit the transfer: %v", failed, testID, err)
			}

			res, err := st.MineNewBlock(context.Background(), "")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine a block.", success, testID)

			if st.QueryBalance("Bob")["SIM"] != 0 || st.QueryBalance("Carol")["SIM"] != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave Bob and Carol at 0.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave Bob and Carol at 0.", success, testID)

			if len(res.Dropped) != 1 || len(res.Block.Trans) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould include and report the dropped transfer: %v", failed, testID, res.Dropped)
			}
			t.Logf("\t%s\tTest %d:\tShould include and report the dropped transfer.", success, testID)

			if res.Block.Header.Miner != "Miner1" || st.QueryBalance("Miner1")["POW"] != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould reward the node's miner when none is named.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reward the node's miner when none is named.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the mempool is empty.", testID)
		{
			storage, err := memory.New()
			ifErrFailNow(t, err)
			st := newState(t, storage, quickGenesis(), nil)

			if _, err := st.MineNewBlock(context.Background(), "Miner1"); !errors.Is(err, state.ErrNoTransactions) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrNoTransactions: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrNoTransactions.", success, testID)

			if st.RetrieveLatestBlock().Header.Index != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould not append a block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not append a block.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen there are more transactions than fit in a block.", testID)
		{
			storage, err := memory.New()
			ifErrFailNow(t, err)
			st := newState(t, storage, quickGenesis(), nil)

			for i := 0; i < 12; i++ {
				_, err := st.SubmitTransaction(database.NewMint("SIM", fmt.Sprintf("User%02d", i), 1, ""))
				ifErrFailNow(t, err)
			}

			res, err := st.MineNewBlock(context.Background(), "Miner1")
			ifErrFailNow(t, err)

			if len(res.Block.Trans) != 10 || res.Block.Trans[0].To != "User00" || res.Block.Trans[9].To != "User09" {
				t.Fatalf("\t%s\tTest %d:\tShould mine the 10 oldest transactions in order.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould mine the 10 oldest transactions in order.", success, testID)

			left := st.RetrieveMempool()
			if len(left) != 2 || left[0].To != "User10" {
				t.Fatalf("\t%s\tTest %d:\tShould leave the 2 newest transactions in the mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the 2 newest transactions in the mempool.", success, testID)

			res, err = st.MineNewBlock(context.Background(), "Miner2")
			ifErrFailNow(t, err)

			if res.Block.Header.Index != 2 || len(res.Block.Trans) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould mine the rest into block 2.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould mine the rest into block 2.", success, testID)

			blocks, _ := st.RetrieveBlocks()
			if blocks[1].Header.PrevHash != blocks[0].Hash {
				t.Fatalf("\t%s\tTest %d:\tShould link block 2 to block 1.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould link block 2 to block 1.", success, testID)

			if !ledger.Replay(st.RetrieveGenesis(), blocks).Equal(st.RetrieveBalances()) {
				t.Fatalf("\t%s\tTest %d:\tShould replay the chain to the current balances.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould replay the chain to the current balances.", success, testID)
		}
	}
}

func Test_Submit(t *testing.T) {
	storage, err := memory.New()
	ifErrFailNow(t, err)

	reject := verifierFunc(func(tx database.Tx) error {
		if tx.Sig == "" {
			return errors.New("signature required")
		}
		return nil
	})

	st := newState(t, storage, genesis.Default(), reject)

	if _, err := st.SubmitTransaction(database.NewMint("SIM", "Alice", 0, "")); !errors.Is(err, database.ErrInvalidAmount) {
		t.Fatalf("Should reject a zero amount: %v", err)
	}

	if _, err := st.SubmitTransaction(database.NewMint("SIM", "Alice", 1, "")); err == nil {
		t.Fatalf("Should reject a transaction the verifier refuses.")
	}

	tx := database.NewMint("SIM", "Alice", 1, "")
	tx.Sig = "2f17ea53"
	ptx, err := st.SubmitTransaction(tx)
	if err != nil {
		t.Fatalf("Should accept a transaction the verifier admits: %s", err)
	}

	if ptx.ID == "" || ptx.TimeStamp == 0 {
		t.Fatalf("Should assign an id and a timestamp: %+v", ptx)
	}

	if st.QueryMempoolLength() != 1 {
		t.Fatalf("Should only have the admitted transaction in the mempool.")
	}
}

func Test_Restart(t *testing.T) {
	storage, err := memory.New()
	ifErrFailNow(t, err)

	gen := quickGenesis()
	gen.Balances = map[string]map[string]float64{"Bob": {"SIM": 20}}

	st := newState(t, storage, gen, nil)

	_, err = st.SubmitTransaction(database.NewTransfer("SIM", "Bob", "Carol", 10))
	ifErrFailNow(t, err)
	_, err = st.MineNewBlock(context.Background(), "Miner1")
	ifErrFailNow(t, err)
	_, err = st.SubmitTransaction(database.NewMint("SIM", "Alice", 3, ""))
	ifErrFailNow(t, err)

	exp := st.RetrieveBalances()

	// Corrupt the persisted balances so the restart has to repair them.
	ifErrFailNow(t, storage.Put(database.CollectionBalances, "latest", []byte(`{"Bob":{"SIM":1000}}`)))

	st = newState(t, storage, gen, nil)

	if !st.RetrieveBalances().Equal(exp) {
		t.Fatalf("Should rebuild the balances from the chain: %v", st.RetrieveBalances())
	}

	if st.QueryMempoolLength() != 1 {
		t.Fatalf("Should reload the pending transactions.")
	}

	if st.RetrieveLatestBlock().Header.Index != 1 {
		t.Fatalf("Should reload the chain.")
	}
}

func Test_ExportImport(t *testing.T) {
	src, err := memory.New()
	ifErrFailNow(t, err)

	st := newState(t, src, quickGenesis(), nil)

	_, err = st.SubmitTransaction(database.NewMint("SIM", "Alice", 5, ""))
	ifErrFailNow(t, err)
	_, err = st.MineNewBlock(context.Background(), "Miner1")
	ifErrFailNow(t, err)
	_, err = st.SubmitTransaction(database.NewTransfer("SIM", "Alice", "Bob", 2))
	ifErrFailNow(t, err)

	exp, err := st.Export()
	ifErrFailNow(t, err)

	if len(exp.Chain) != 1 || len(exp.Mempool) != 1 {
		t.Fatalf("Should export the chain and the mempool: %d %d", len(exp.Chain), len(exp.Mempool))
	}

	dst, err := memory.New()
	ifErrFailNow(t, err)
	other := newState(t, dst, quickGenesis(), nil)

	ifErrFailNow(t, other.Import(exp))

	if other.RetrieveLatestBlock().Hash != st.RetrieveLatestBlock().Hash {
		t.Fatalf("Should import the chain.")
	}
	if !other.RetrieveBalances().Equal(st.RetrieveBalances()) {
		t.Fatalf("Should import the balances.")
	}
	if other.QueryMempoolLength() != 1 {
		t.Fatalf("Should import the mempool.")
	}

	tampered := exp
	tampered.Chain = append([]database.BlockData(nil), exp.Chain...)
	tampered.Chain[0].Nonce++
	if err := other.Import(tampered); err == nil {
		t.Fatalf("Should not import a chain that doesn't validate.")
	}

	ifErrFailNow(t, other.Reset())

	if other.RetrieveLatestBlock().Header.Index != 0 || other.QueryMempoolLength() != 0 || len(other.RetrieveBalances()) != 0 {
		t.Fatalf("Should be back at genesis after a reset.")
	}
}

func Test_CommitFailures(t *testing.T) {
	t.Log("Given the need to commit each mined transaction exactly once.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the balances can't be persisted after the append.", testID)
		{
			mem, err := memory.New()
			ifErrFailNow(t, err)
			storage := &faultyStorage{Storage: mem}

			gen := quickGenesis()
			st := newState(t, storage, gen, nil)

			_, err = st.SubmitTransaction(database.NewMint("SIM", "Alice", 5, ""))
			ifErrFailNow(t, err)

			storage.failOn = database.CollectionBalances
			if _, err := st.MineNewBlock(context.Background(), "Miner1"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould commit the appended block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould commit the appended block.", success, testID)

			if st.QueryMempoolLength() != 0 || st.QueryBalance("Alice")["SIM"] != 5 {
				t.Fatalf("\t%s\tTest %d:\tShould move the mempool and balances forward: %v", failed, testID, st.RetrieveBalances())
			}
			t.Logf("\t%s\tTest %d:\tShould move the mempool and balances forward.", success, testID)

			storage.failOn = ""
			_, err = st.SubmitTransaction(database.NewTransfer("SIM", "Alice", "Bob", 5))
			ifErrFailNow(t, err)

			res, err := st.MineNewBlock(context.Background(), "Miner1")
			ifErrFailNow(t, err)

			if len(res.Block.Trans) != 1 || res.Block.Trans[0].Type != database.TxTransfer {
				t.Fatalf("\t%s\tTest %d:\tShould only mine the transfer into block 2: %v", failed, testID, res.Block.Trans)
			}
			t.Logf("\t%s\tTest %d:\tShould only mine the transfer into block 2.", success, testID)

			blocks, err := st.RetrieveBlocks()
			ifErrFailNow(t, err)
			if !ledger.Replay(gen, blocks).Equal(st.RetrieveBalances()) {
				t.Fatalf("\t%s\tTest %d:\tShould replay the chain to the live balances: %v", failed, testID, st.RetrieveBalances())
			}
			t.Logf("\t%s\tTest %d:\tShould replay the chain to the live balances.", success, testID)

			restarted := newState(t, storage, gen, nil)
			if restarted.QueryMempoolLength() != 0 || !restarted.RetrieveBalances().Equal(st.RetrieveBalances()) {
				t.Fatalf("\t%s\tTest %d:\tShould restart with the same balances and an empty mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould restart with the same balances and an empty mempool.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the block can't be appended.", testID)
		{
			mem, err := memory.New()
			ifErrFailNow(t, err)
			storage := &faultyStorage{Storage: mem}

			gen := quickGenesis()
			st := newState(t, storage, gen, nil)

			_, err = st.SubmitTransaction(database.NewMint("SIM", "Alice", 5, ""))
			ifErrFailNow(t, err)

			storage.failOn = database.CollectionBlocks
			if _, err := st.MineNewBlock(context.Background(), "Miner1"); !errors.Is(err, errDiskFull) {
				t.Fatalf("\t%s\tTest %d:\tShould report the failed append: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the failed append.", success, testID)

			if st.QueryMempoolLength() != 1 || st.RetrieveLatestBlock().Header.Index != 0 || len(st.RetrieveBalances()) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the state untouched.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the state untouched.", success, testID)

			storage.failOn = ""
			restarted := newState(t, storage, gen, nil)
			if restarted.QueryMempoolLength() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the transaction pending across a restart.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the transaction pending across a restart.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen an import fails partway through the chain.", testID)
		{
			src, err := memory.New()
			ifErrFailNow(t, err)

			gen := quickGenesis()
			st := newState(t, src, gen, nil)
			for _, to := range []string{"Alice", "Bob"} {
				_, err = st.SubmitTransaction(database.NewMint("SIM", to, 5, ""))
				ifErrFailNow(t, err)
				_, err = st.MineNewBlock(context.Background(), "Miner1")
				ifErrFailNow(t, err)
			}

			exp, err := st.Export()
			ifErrFailNow(t, err)

			mem, err := memory.New()
			ifErrFailNow(t, err)
			storage := &faultyStorage{Storage: mem}
			other := newState(t, storage, gen, nil)

			_, err = other.SubmitTransaction(database.NewMint("SIM", "Carol", 7, ""))
			ifErrFailNow(t, err)
			_, err = other.MineNewBlock(context.Background(), "Miner2")
			ifErrFailNow(t, err)
			_, err = other.SubmitTransaction(database.NewMint("SIM", "Dave", 1, ""))
			ifErrFailNow(t, err)

			latest := other.RetrieveLatestBlock()
			balances := other.RetrieveBalances()

			storage.failOn = database.CollectionBlocks
			storage.failKey = fmt.Sprintf("%020d", 2)
			if err := other.Import(exp); !errors.Is(err, errDiskFull) {
				t.Fatalf("\t%s\tTest %d:\tShould report the failed import: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the failed import.", success, testID)

			if other.RetrieveLatestBlock().Hash != latest.Hash || !other.RetrieveBalances().Equal(balances) || other.QueryMempoolLength() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the previous chain, balances and mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the previous chain, balances and mempool.", success, testID)

			storage.failOn = ""
			restarted := newState(t, storage, gen, nil)
			if restarted.RetrieveLatestBlock().Hash != latest.Hash || restarted.QueryMempoolLength() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the previous chain in storage.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the previous chain in storage.", success, testID)
		}
	}
}

// =============================================================================

var errDiskFull = errors.New("disk full")

// faultyStorage fails writes to the failOn collection, or only to failKey
// within it when failKey is set.
type faultyStorage struct {
	database.Storage
	failOn  string
	failKey string
}

func (fs *faultyStorage) Put(collection string, key string, body []byte) error {
	if collection == fs.failOn && (fs.failKey == "" || key == fs.failKey) {
		return errDiskFull
	}
	return fs.Storage.Put(collection, key, body)
}

type verifierFunc func(tx database.Tx) error

func (f verifierFunc) AdmitTx(tx database.Tx) error {
	return f(tx)
}
