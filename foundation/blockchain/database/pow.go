package database

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultDifficulty is the number of leading zero hex characters required
// when no difficulty is configured.
const DefaultDifficulty = 4

// ErrProofNotFound is returned when the nonce search is bounded and the
// bound is reached without solving the puzzle.
var ErrProofNotFound = errors.New("proof of work not found")

// =============================================================================

// SatisfiesTarget checks the hash to make sure it complies with the POW
// rules. The first difficulty characters of the hex hash must be '0'.
func SatisfiesTarget(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}

	if len(hash) < difficulty {
		return false
	}

	return strings.Count(hash[:difficulty], "0") == difficulty
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Index       uint64
	PrevHash    *string
	TimeStamp   time.Time
	Trans       []Tx
	Difficulty  int
	MaxAttempts uint64
	EvHandler   func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. The search starts at nonce zero and
// increments by one, so the same content always produces the same proof.
// A MaxAttempts of zero means the search runs until it is solved.
func POW(args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	trans := args.Trans
	if trans == nil {
		trans = []Tx{}
	}

	nb := Block{
		Index:        args.Index,
		TimeStamp:    args.TimeStamp.UnixMilli(),
		Transactions: trans,
		Proof:        0,
		PrevHash:     args.PrevHash,
	}

	if err := nb.performPOW(args.Difficulty, args.MaxAttempts, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(difficulty int, maxAttempts uint64, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]: txs[%d]", b.Index, len(b.Transactions))
	defer ev("database: PerformPOW: MINING: completed: blk[%d]", b.Index)

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		hash := b.ComputeHash()
		if SatisfiesTarget(hash, difficulty) {
			b.Hash = hash
			ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.PreviousHash(), hash, attempts)
			return nil
		}

		if maxAttempts > 0 && attempts >= maxAttempts {
			ev("database: PerformPOW: MINING: GAVE UP: attempts[%d]", attempts)
			return fmt.Errorf("blk[%d] after %d attempts: %w", b.Index, attempts, ErrProofNotFound)
		}

		b.Proof++
	}
}

// NewGenesisBlock mines the first block of a chain. Nodes started from the
// same genesis time and difficulty produce the same block.
func NewGenesisBlock(genesisTime time.Time, difficulty int, ev func(v string, args ...any)) (Block, error) {
	return POW(POWArgs{
		Index:      1,
		PrevHash:   nil,
		TimeStamp:  genesisTime,
		Difficulty: difficulty,
		EvHandler:  ev,
	})
}
