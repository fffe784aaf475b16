// Package database handles the block and transaction model for the
// blockchain, the proof of work puzzle, chain validation and the contract
// for durable storage of the chain.
package database

import "errors"

// ErrNotFound is returned when a lookup by height, hash or address
// matches nothing.
var ErrNotFound = errors.New("not found")

// Storage interface represents the behavior required to be implemented by any
// package providing durable storage of the blockchain. The chain held in
// memory by the node is authoritative; storage is a mirror of it.
type Storage interface {
	LoadChain() ([]Block, error)
	AppendBlock(block Block) error
	ReplaceChain(blocks []Block) error
	QueryBlockByHeight(index uint64) (Block, error)
	QueryBlockByHash(hash string) (Block, error)
	QueryTransactionsByAddress(address string, limit int, before int64) ([]BlockTx, error)
	Close() error
}
