package public

import (
	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/nameservice"
)

type tx struct {
	Type     database.TxType `json:"type"`
	Token    string          `json:"token"`
	From     string          `json:"from,omitempty"`
	FromName string          `json:"fromName,omitempty"`
	To       string          `json:"to"`
	ToName   string          `json:"toName"`
	Amount   float64         `json:"amount"`
	Sig      string          `json:"sig,omitempty"`
	Owner    string          `json:"owner,omitempty"`
}

type pendingTx struct {
	ID string `json:"id"`
	tx
	TimeStamp int64 `json:"ts"`
}

type block struct {
	Index      uint64 `json:"index"`
	PrevHash   string `json:"prevHash"`
	TimeStamp  int64  `json:"ts"`
	Nonce      uint64 `json:"nonce"`
	Miner      string `json:"miner"`
	MinerName  string `json:"minerName"`
	Difficulty uint   `json:"difficulty"`
	Hash       string `json:"hash"`
	Trans      []tx   `json:"txs"`
}

type balance struct {
	Address string             `json:"address"`
	Name    string             `json:"name"`
	Tokens  map[string]float64 `json:"tokens"`
}

type balances struct {
	LatestBlock string    `json:"latestBlock"`
	Uncommitted int       `json:"uncommitted"`
	Balances    []balance `json:"balances"`
}

type mined struct {
	Block   block              `json:"block"`
	Removed []string           `json:"removed"`
	Dropped []tx               `json:"dropped"`
	Miner   map[string]float64 `json:"minerBalance"`
}

// NewTx is what a client submits to the mempool.
type NewTx struct {
	Type   database.TxType `json:"type" validate:"required,oneof=MINT TRANSFER"`
	Token  string          `json:"token" validate:"required"`
	From   string          `json:"from" validate:"required_if=Type TRANSFER"`
	To     string          `json:"to" validate:"required"`
	Amount float64         `json:"amount" validate:"gt=0"`
	Sig    string          `json:"sig"`
	Owner  string          `json:"owner"`
}

// MineRequest names the account to credit with the block reward.
type MineRequest struct {
	MinerAddress string `json:"minerAddress"`
}

// =============================================================================

func toTx(ns *nameservice.NameService, t database.Tx) tx {
	out := tx{
		Type:   t.Type,
		Token:  t.Token,
		From:   t.From,
		To:     t.To,
		ToName: ns.Lookup(t.To),
		Amount: t.Amount,
		Sig:    t.Sig,
		Owner:  t.Owner,
	}

	if t.From != "" {
		out.FromName = ns.Lookup(t.From)
	}

	return out
}

func toTxs(ns *nameservice.NameService, trans []database.Tx) []tx {
	out := make([]tx, len(trans))
	for i, t := range trans {
		out[i] = toTx(ns, t)
	}
	return out
}

func toPendingTx(ns *nameservice.NameService, ptx database.PendingTx) pendingTx {
	return pendingTx{
		ID:        ptx.ID,
		tx:        toTx(ns, ptx.Tx),
		TimeStamp: ptx.TimeStamp,
	}
}

func toBlock(ns *nameservice.NameService, blk database.Block) block {
	return block{
		Index:      blk.Header.Index,
		PrevHash:   blk.Header.PrevHash,
		TimeStamp:  blk.Header.TimeStamp,
		Nonce:      blk.Header.Nonce,
		Miner:      blk.Header.Miner,
		MinerName:  ns.Lookup(blk.Header.Miner),
		Difficulty: blk.Header.Difficulty,
		Hash:       blk.Hash,
		Trans:      toTxs(ns, blk.Trans),
	}
}
