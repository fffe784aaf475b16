package database

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// =============================================================================

// Block represents a group of transactions batched together and sealed
// with a proof of work.
type Block struct {
	Index        uint64  `json:"index"`         // Position in the chain starting at 1.
	TimeStamp    int64   `json:"timestamp"`     // Epoch milliseconds the block was built.
	Transactions []Tx    `json:"transactions"`  // Ordered as they were drained from the mempool.
	Proof        uint64  `json:"proof"`         // Nonce that solves the hash puzzle.
	PrevHash     *string `json:"previous_hash"` // Hash of the parent block, nil for genesis.
	Hash         string  `json:"hash"`          // Hash of this block.
}

// IsGenesis reports whether the block is shaped like the first block.
func (b Block) IsGenesis() bool {
	return b.Index == 1 && b.PrevHash == nil
}

// PreviousHash returns the parent hash or an empty string for genesis.
func (b Block) PreviousHash() string {
	if b.PrevHash == nil {
		return ""
	}
	return *b.PrevHash
}

// ComputeHash returns the hash of the block content. The hash carried by the
// block itself is not part of the input. Keys are marshaled in lexical order.
func (b Block) ComputeHash() string {
	trans := b.Transactions
	if trans == nil {
		trans = []Tx{}
	}

	hd := struct {
		Index        uint64  `json:"index"`
		PrevHash     *string `json:"previous_hash"`
		Proof        uint64  `json:"proof"`
		TimeStamp    int64   `json:"timestamp"`
		Transactions []Tx    `json:"transactions"`
	}{
		Index:        b.Index,
		PrevHash:     b.PrevHash,
		Proof:        b.Proof,
		TimeStamp:    b.TimeStamp,
		Transactions: trans,
	}

	return hash(hd)
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("%d:%s", b.Index, b.Hash)
}

// =============================================================================

// hash returns the hex encoded SHA-256 of the JSON form of the value.
func hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
