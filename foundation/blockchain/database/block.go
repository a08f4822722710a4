package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bitsim/node/foundation/blockchain/signature"
)

// ErrChainForked is returned when a block does not extend the current tail
// of the chain. Another block was appended after this one was mined.
var ErrChainForked = errors.New("block does not extend the current chain")

// ErrUnreachableDifficulty is returned when the nonce search exceeds the
// configured number of attempts.
var ErrUnreachableDifficulty = errors.New("difficulty not reached within max attempts")

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Index      uint64 `json:"index"`      // Block number in the chain, the first mined block is 1.
	PrevHash   string `json:"prevHash"`   // Hash of the previous block in the chain.
	TimeStamp  int64  `json:"ts"`         // Milliseconds since epoch the block was mined.
	Nonce      uint64 `json:"nonce"`      // Value identified to solve the hash solution.
	Miner      string `json:"miner"`      // The account who receives the mining reward.
	Difficulty uint   `json:"difficulty"` // Number of 0's needed to solve the hash solution.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header BlockHeader
	Trans  []Tx
	Hash   string
}

// GenesisBlock returns the virtual block every chain starts from. It is
// never stored.
func GenesisBlock() Block {
	return Block{
		Hash: signature.ZeroHash,
	}
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Miner       string
	Difficulty  uint
	MaxAttempts uint64
	PrevBlock   Block
	Trans       []Tx
	Variant     signature.Variant
	EvHandler   func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the POW puzzle.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	if args.Variant == 0 {
		args.Variant = signature.Server
	}

	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	// The timestamp can't go backwards from the parent block.
	ts := time.Now().UTC().UnixMilli()
	if ts < args.PrevBlock.Header.TimeStamp {
		ts = args.PrevBlock.Header.TimeStamp
	}

	trans := args.Trans
	if trans == nil {
		trans = []Tx{}
	}

	nb := Block{
		Header: BlockHeader{
			Index:      args.PrevBlock.Header.Index + 1,
			PrevHash:   args.PrevBlock.Hash,
			TimeStamp:  ts,
			Nonce:      0, // Will be identified by the POW algorithm.
			Miner:      args.Miner,
			Difficulty: args.Difficulty,
		},
		Trans: trans,
	}

	if err := nb.performPOW(ctx, args.Variant, args.MaxAttempts, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, variant signature.Variant, maxAttempts uint64, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]", b.Header.Index)
	defer ev("database: PerformPOW: MINING: completed: blk[%d]", b.Header.Index)

	for _, tx := range b.Trans {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	base, err := HeaderBase(b.Header, b.Trans)
	if err != nil {
		return err
	}

	// The header never changes during the search so it is only fed
	// into the checksum once.
	prefix := variant.New()
	prefix.Write(base)

	for nonce := uint64(1); ; nonce++ {
		if nonce%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", nonce)
		}

		if maxAttempts > 0 && nonce > maxAttempts {
			ev("database: PerformPOW: MINING: GAVE UP: attempts[%d]", maxAttempts)
			return fmt.Errorf("%w: %d", ErrUnreachableDifficulty, maxAttempts)
		}

		// Did we get cancelled trying to solve the problem.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		d := prefix.Clone()
		d.Write(strconv.FormatUint(nonce, 10))
		hash := d.Sum()

		if !isHashSolved(b.Header.Difficulty, hash) {
			continue
		}

		b.Header.Nonce = nonce
		b.Hash = hash

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.Header.PrevHash, hash, nonce)

		return nil
	}
}

// ComputeHash recalculates the hash of the block from its header,
// transactions and nonce.
func (b Block) ComputeHash(variant signature.Variant) (string, error) {
	base, err := HeaderBase(b.Header, b.Trans)
	if err != nil {
		return "", err
	}

	return variant.Checksum(base + strconv.FormatUint(b.Header.Nonce, 10)), nil
}

// ValidateBlock takes a block and validates it to be the next block after
// the previous block.
func (b Block) ValidateBlock(previousBlock Block, variant signature.Variant) error {
	nextIndex := previousBlock.Header.Index + 1
	if b.Header.Index != nextIndex {
		return fmt.Errorf("%w: got index %d, exp %d", ErrChainForked, b.Header.Index, nextIndex)
	}

	if b.Header.PrevHash != previousBlock.Hash {
		return fmt.Errorf("%w: parent hash doesn't match, got %s, exp %s", ErrChainForked, b.Header.PrevHash, previousBlock.Hash)
	}

	if b.Header.Difficulty == 0 || !isHashSolved(b.Header.Difficulty, b.Hash) {
		return fmt.Errorf("%s invalid block hash for difficulty %d", b.Hash, b.Header.Difficulty)
	}

	hash, err := b.ComputeHash(variant)
	if err != nil {
		return err
	}

	if hash != b.Hash {
		return fmt.Errorf("block hash doesn't match its contents, got %s, exp %s", b.Hash, hash)
	}

	if b.Header.TimeStamp < previousBlock.Header.TimeStamp {
		return fmt.Errorf("block timestamp is before parent block, parent %d, block %d", previousBlock.Header.TimeStamp, b.Header.TimeStamp)
	}

	return nil
}

// HeaderBase returns the serialized header the nonce gets appended to when
// hashing a block.
func HeaderBase(header BlockHeader, trans []Tx) (string, error) {
	if trans == nil {
		trans = []Tx{}
	}

	hb := struct {
		Index     uint64 `json:"idx"`
		PrevHash  string `json:"prevHash"`
		TimeStamp int64  `json:"ts"`
		Trans     []Tx   `json:"txs"`
	}{
		Index:     header.Index,
		PrevHash:  header.PrevHash,
		TimeStamp: header.TimeStamp,
		Trans:     trans,
	}

	data, err := signature.Marshal(hb)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// isHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func isHashSolved(difficulty uint, hash string) bool {
	const match = "00000000"

	if len(hash) != len(match) || difficulty > uint(len(match)) {
		return false
	}

	return hash[:difficulty] == match[:difficulty]
}

// =============================================================================

// BlockData represents what is serialized to storage and over the network.
type BlockData struct {
	Index      uint64 `json:"index"`
	PrevHash   string `json:"prevHash"`
	TimeStamp  int64  `json:"ts"`
	Nonce      uint64 `json:"nonce"`
	Trans      []Tx   `json:"txs"`
	Hash       string `json:"hash"`
	Miner      string `json:"miner"`
	Difficulty uint   `json:"difficulty"`
}

// NewBlockData constructs block data from a block.
func NewBlockData(block Block) BlockData {
	trans := block.Trans
	if trans == nil {
		trans = []Tx{}
	}

	return BlockData{
		Index:      block.Header.Index,
		PrevHash:   block.Header.PrevHash,
		TimeStamp:  block.Header.TimeStamp,
		Nonce:      block.Header.Nonce,
		Trans:      trans,
		Hash:       block.Hash,
		Miner:      block.Header.Miner,
		Difficulty: block.Header.Difficulty,
	}
}

// ToBlock converts block data into a block.
func ToBlock(blockData BlockData) Block {
	return Block{
		Header: BlockHeader{
			Index:      blockData.Index,
			PrevHash:   blockData.PrevHash,
			TimeStamp:  blockData.TimeStamp,
			Nonce:      blockData.Nonce,
			Miner:      blockData.Miner,
			Difficulty: blockData.Difficulty,
		},
		Trans: blockData.Trans,
		Hash:  blockData.Hash,
	}
}
