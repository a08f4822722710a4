// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bitsim/node/foundation/blockchain/signature"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date          time.Time                     `json:"date"`
	ChainID       uint16                        `json:"chain_id"`        // The chain id represents an unique id for this running instance.
	TransPerBlock int                           `json:"trans_per_block"` // The maximum number of transactions that can be in a block.
	Difficulty    uint                          `json:"difficulty"`      // Number of leading 0's the block hash needs.
	MaxAttempts   uint64                        `json:"max_attempts"`    // Nonce search bound, 0 means unbounded.
	MiningReward  float64                       `json:"mining_reward"`   // Reward for mining a block.
	RewardToken   string                        `json:"reward_token"`    // Token the mining reward is paid in.
	FlatFee       float64                       `json:"flat_fee"`        // Fee paid to the miner for each transfer.
	Checksum      string                        `json:"checksum"`        // Checksum variant used for block hashes.
	Balances      map[string]map[string]float64 `json:"balances"`
}

// Default returns the genesis used when no genesis file is provided.
func Default() Genesis {
	return Genesis{
		Date:          time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       1,
		TransPerBlock: 10,
		Difficulty:    3,
		MaxAttempts:   100_000_000,
		MiningReward:  1,
		RewardToken:   "POW",
		Checksum:      signature.Server.String(),
		Balances:      map[string]map[string]float64{},
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Values missing from the file
// keep their defaults.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}

	return genesis, nil
}

// Validate checks the genesis values can drive the chain.
func (g Genesis) Validate() error {
	if g.Difficulty == 0 || g.Difficulty > 8 {
		return fmt.Errorf("difficulty must be between 1 and 8, got %d", g.Difficulty)
	}

	if g.TransPerBlock <= 0 {
		return fmt.Errorf("trans per block must be positive, got %d", g.TransPerBlock)
	}

	if g.RewardToken == "" {
		return errors.New("reward token is required")
	}

	if g.MiningReward < 0 || g.FlatFee < 0 {
		return errors.New("mining reward and flat fee can't be negative")
	}

	if _, err := signature.ParseVariant(g.Checksum); err != nil {
		return err
	}

	return nil
}

// Variant returns the checksum variant configured for the chain.
func (g Genesis) Variant() signature.Variant {
	v, err := signature.ParseVariant(g.Checksum)
	if err != nil {
		return signature.Server
	}

	return v
}
