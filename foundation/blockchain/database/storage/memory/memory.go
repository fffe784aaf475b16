// Package memory implements the ability to read and write blocks to memory
// using a slice.
package memory

import (
	"fmt"
	"sync"

	"github.com/chainlite/node/foundation/blockchain/database"
)

// Memory represents the storage implementation for reading and storing
// blocks in memory using a slice. This implements the database.Storage
// interface.
type Memory struct {
	mu     sync.RWMutex
	blocks []database.Block
}

// New constructs an Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// LoadChain returns a copy of all the blocks held in memory.
func (m *Memory) LoadChain() ([]database.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocks := make([]database.Block, len(m.blocks))
	copy(blocks, m.blocks)

	return blocks, nil
}

// AppendBlock takes the specified block and stores it in memory.
func (m *Memory) AppendBlock(block database.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := uint64(len(m.blocks))
	if l+1 != block.Index {
		return fmt.Errorf("block is out of order, got %d, exp %d", block.Index, l+1)
	}

	m.blocks = append(m.blocks, block)

	return nil
}

// ReplaceChain swaps the whole chain held in memory.
func (m *Memory) ReplaceChain(blocks []database.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = make([]database.Block, len(blocks))
	copy(m.blocks, blocks)

	return nil
}

// QueryBlockByHeight returns the block at the specified index.
func (m *Memory) QueryBlockByHeight(index uint64) (database.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index == 0 || index > uint64(len(m.blocks)) {
		return database.Block{}, database.ErrNotFound
	}

	return m.blocks[index-1], nil
}

// QueryBlockByHash returns the block with the specified hash.
func (m *Memory) QueryBlockByHash(hash string) (database.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, block := range m.blocks {
		if block.Hash == hash {
			return block, nil
		}
	}

	return database.Block{}, database.ErrNotFound
}

// QueryTransactionsByAddress returns the confirmed transactions for the
// address, newest first. ErrNotFound is returned when nothing matches.
func (m *Memory) QueryTransactionsByAddress(address string, limit int, before int64) ([]database.BlockTx, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := database.FilterTransactions(m.blocks, address, limit, before)
	if len(txs) == 0 {
		return nil, database.ErrNotFound
	}

	return txs, nil
}
