package state

import (
	"github.com/chainlite/node/foundation/blockchain/database"
)

// QueryChain returns a copy of the full chain.
func (s *State) QueryChain() []database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyChain()
}

// QueryLatestBlock returns the block at the tip of the chain.
func (s *State) QueryLatestBlock() database.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.chain[len(s.chain)-1]
}

// QueryBlockByHeight returns the block at the specified index.
func (s *State) QueryBlockByHeight(index uint64) (database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.storage.QueryBlockByHeight(index)
}

// QueryBlockByHash returns the block with the specified hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.storage.QueryBlockByHash(hash)
}

// QueryTransactionsByAddress returns the confirmed transactions where the
// address is the sender or recipient, newest first.
func (s *State) QueryTransactionsByAddress(address string, limit int, before int64) ([]database.BlockTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.storage.QueryTransactionsByAddress(address, limit, before)
}

// QueryBalance returns the confirmed balance of the address.
func (s *State) QueryBalance(address string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return database.Balance(s.chain, address)
}

// QueryMempool returns a copy of the pending transactions in mining order.
func (s *State) QueryMempool() []database.Tx {
	return s.mempool.Copy()
}

// QueryMempoolLength returns the number of pending transactions.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// copyChain returns a copy of the chain. The caller must hold the lock.
func (s *State) copyChain() []database.Block {
	blocks := make([]database.Block, len(s.chain))
	copy(blocks, s.chain)
	return blocks
}
