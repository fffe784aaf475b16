// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/chainlite/node/foundation/blockchain/database"
)

// Default values used when there is no genesis file or a field is not set.
const (
	DefaultMiningReward = 1.0
)

// DefaultDate is the genesis date used when the file doesn't provide one.
var DefaultDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Genesis represents the genesis file.
type Genesis struct {
	Date         time.Time `json:"date"`          // Timestamp recorded in block 1.
	Difficulty   int       `json:"difficulty"`    // How difficult it needs to be to solve the work problem.
	MiningReward float64   `json:"mining_reward"` // Reward for mining a block.
}

// Default returns the genesis settings used without a genesis file.
func Default() Genesis {
	return Genesis{
		Date:         DefaultDate,
		Difficulty:   database.DefaultDifficulty,
		MiningReward: DefaultMiningReward,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. A missing file results in the
// default settings and fields left out of the file take their defaults.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Default(), nil
	case err != nil:
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	if genesis.Date.IsZero() {
		genesis.Date = DefaultDate
	}
	if genesis.Difficulty <= 0 {
		genesis.Difficulty = database.DefaultDifficulty
	}
	if genesis.MiningReward <= 0 {
		genesis.MiningReward = DefaultMiningReward
	}

	return genesis, nil
}

// Block mines the genesis block described by these settings.
func (g Genesis) Block(ev func(v string, args ...any)) (database.Block, error) {
	return database.NewGenesisBlock(g.Date, g.Difficulty, ev)
}
