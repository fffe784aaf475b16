package database

import (
	"errors"
	"fmt"
)

// ErrChainValidation is the error kind wrapped by every failure
// reported by ValidateChain.
var ErrChainValidation = errors.New("chain validation failure")

// =============================================================================

// ValidateChain checks the structure and proof of work of a whole chain. It
// is used for the blocks this node mines and for chains offered by peers.
func ValidateChain(blocks []Block, difficulty int) error {
	if len(blocks) == 0 {
		return fmt.Errorf("%w: chain is empty", ErrChainValidation)
	}

	for i, block := range blocks {
		if block.Index != uint64(i+1) {
			return fmt.Errorf("%w: position %d: block number is not the next number, got %d, exp %d", ErrChainValidation, i, block.Index, i+1)
		}

		switch i {
		case 0:
			if block.PrevHash != nil {
				return fmt.Errorf("%w: blk[1]: genesis block has a parent hash %q", ErrChainValidation, *block.PrevHash)
			}

		default:
			parentHash := blocks[i-1].ComputeHash()
			if block.PrevHash == nil || *block.PrevHash != parentHash {
				return fmt.Errorf("%w: blk[%d]: parent hash doesn't match parent block, got %q, exp %q", ErrChainValidation, block.Index, block.PreviousHash(), parentHash)
			}
		}

		for _, tx := range block.Transactions {
			if tx.Hash != tx.ComputeHash() {
				return fmt.Errorf("%w: blk[%d]: transaction hash %q doesn't match its content", ErrChainValidation, block.Index, tx.Hash)
			}
		}

		hash := block.ComputeHash()
		if block.Hash != hash {
			return fmt.Errorf("%w: blk[%d]: block hash doesn't match its content, got %q, exp %q", ErrChainValidation, block.Index, block.Hash, hash)
		}

		if !SatisfiesTarget(hash, difficulty) {
			return fmt.Errorf("%w: blk[%d]: %s invalid block hash", ErrChainValidation, block.Index, hash)
		}
	}

	return nil
}

// IsValidChain is the boolean form of ValidateChain.
func IsValidChain(blocks []Block, difficulty int) bool {
	return ValidateChain(blocks, difficulty) == nil
}

// TotalTransactions counts the transactions recorded across all blocks.
func TotalTransactions(blocks []Block) int {
	var total int
	for _, block := range blocks {
		total += len(block.Transactions)
	}
	return total
}

// Balance computes the confirmed balance of an address: everything it
// received minus everything it sent. The reward sender is never debited.
func Balance(blocks []Block, address string) float64 {
	var balance float64
	for _, block := range blocks {
		for _, tx := range block.Transactions {
			if tx.Recipient == address {
				balance += tx.Amount
			}
			if tx.Sender == address && !tx.IsReward() {
				balance -= tx.Amount
			}
		}
	}
	return balance
}
