// Package ledger derives account balances from the transactions recorded in
// the chain. Every function is pure: a new snapshot is returned and the
// input is never modified.
package ledger

import (
	"math"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/genesis"
)

// Snapshot represents the balance of every token held by every address.
type Snapshot map[string]map[string]float64

// New constructs a snapshot from raw balances, usually from a genesis file
// or storage.
func New(balances map[string]map[string]float64) Snapshot {
	return Snapshot(balances).Copy()
}

// Copy makes a deep copy of the snapshot.
func (s Snapshot) Copy() Snapshot {
	cp := make(Snapshot, len(s))
	for address, tokens := range s {
		t := make(map[string]float64, len(tokens))
		for token, amount := range tokens {
			t[token] = amount
		}
		cp[address] = t
	}

	return cp
}

// Balance returns the amount of the token held by the address.
func (s Snapshot) Balance(address string, token string) float64 {
	return s[address][token]
}

// Total returns the amount of the token held across every address.
func (s Snapshot) Total(token string) float64 {
	var total float64
	for _, tokens := range s {
		total += tokens[token]
	}

	return total
}

// Equal reports whether both snapshots hold the same balances. A missing
// balance and a zero balance are the same thing.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.covers(other) && other.covers(s)
}

func (s Snapshot) covers(other Snapshot) bool {
	for address, tokens := range s {
		for token, amount := range tokens {
			if other[address][token] != amount {
				return false
			}
		}
	}

	return true
}

// credit must only be called on a snapshot owned by the caller.
func (s Snapshot) credit(address string, token string, amount float64) {
	tokens, exists := s[address]
	if !exists {
		tokens = make(map[string]float64)
		s[address] = tokens
	}

	tokens[token] += amount
}

// =============================================================================

// Apply performs the business logic for applying a transaction to the
// snapshot. A transaction with an invalid amount or token, or a transfer the
// sender can't cover, leaves the snapshot unchanged.
func Apply(s Snapshot, tx database.Tx) Snapshot {
	next, _ := apply(s, tx)
	return next
}

// apply also reports whether the transaction took effect, which a snapshot
// comparison can't tell for a transfer to self.
func apply(s Snapshot, tx database.Tx) (Snapshot, bool) {
	if !validAmount(tx.Amount) || tx.Token == "" || tx.To == "" {
		return s, false
	}

	switch tx.Type {
	case database.TxMint:
		next := s.Copy()
		next.credit(tx.To, tx.Token, tx.Amount)
		return next, true

	case database.TxTransfer:
		if tx.From == "" || s.Balance(tx.From, tx.Token) < tx.Amount {
			return s, false
		}

		next := s.Copy()
		next.credit(tx.From, tx.Token, -tx.Amount)
		next.credit(tx.To, tx.Token, tx.Amount)
		return next, true
	}

	return s, false
}

// Applied reports whether applying a transaction changed the snapshot.
func Applied(before Snapshot, after Snapshot) bool {
	return !before.Equal(after)
}

// ApplyFee moves the flat transfer fee from the sender to the miner in the
// token being transferred. The fee is only charged when the sender holds
// enough to pay it, whether or not the transfer itself went through.
func ApplyFee(s Snapshot, tx database.Tx, miner string, fee float64) Snapshot {
	if tx.Type != database.TxTransfer || !validAmount(fee) || tx.Token == "" || tx.From == "" {
		return s
	}

	if s.Balance(tx.From, tx.Token) < fee {
		return s
	}

	next := s.Copy()
	next.credit(tx.From, tx.Token, -fee)
	next.credit(miner, tx.Token, fee)
	return next
}

// Reward credits the miner with the block reward.
func Reward(s Snapshot, miner string, token string, amount float64) Snapshot {
	if !validAmount(amount) || token == "" || miner == "" {
		return s
	}

	next := s.Copy()
	next.credit(miner, token, amount)
	return next
}

// =============================================================================

// Result captures what happened when a block was applied.
type Result struct {
	Snapshot Snapshot
	Dropped  []database.Tx
}

// ApplyBlock applies the transactions of the block in order, then the fees
// and the block reward, using the rules in the genesis.
func ApplyBlock(s Snapshot, gen genesis.Genesis, block database.Block) Result {
	miner := block.Header.Miner

	var dropped []database.Tx
	for _, tx := range block.Trans {
		next, ok := apply(s, tx)
		if !ok {
			dropped = append(dropped, tx)
		}

		if gen.FlatFee > 0 {
			next = ApplyFee(next, tx, miner, gen.FlatFee)
		}

		s = next
	}

	s = Reward(s, miner, gen.RewardToken, gen.MiningReward)

	return Result{
		Snapshot: s,
		Dropped:  dropped,
	}
}

// Replay rebuilds the snapshot from the genesis balances and every block in
// the chain, in order.
func Replay(gen genesis.Genesis, blocks []database.Block) Snapshot {
	s := New(gen.Balances)
	for _, block := range blocks {
		s = ApplyBlock(s, gen, block).Snapshot
	}

	return s
}

func validAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount > 0
}
