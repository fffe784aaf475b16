// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"sync"

	"github.com/chainlite/node/foundation/blockchain/database"
)

// ErrDuplicateTransaction is returned when a transaction with the same hash
// is already pending or is part of a block being mined.
var ErrDuplicateTransaction = errors.New("transaction already pending")

// Mempool represents a cache of transactions keyed by their hash. The order
// transactions arrived in is the order they are mined in.
type Mempool struct {
	mu       sync.RWMutex
	pool     map[string]database.Tx
	order    []string
	inFlight map[string]struct{}
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool:     make(map[string]database.Tx),
		inFlight: make(map[string]struct{}),
	}
}

// Count returns the current number of pending transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.order)
}

// Submit validates the transaction, recomputes its hash and adds it to the
// end of the pool. Any hash provided by the caller is replaced.
func (mp *Mempool) Submit(tx database.Tx) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	tx.Hash = tx.ComputeHash()

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.exists(tx.Hash) {
		return "", ErrDuplicateTransaction
	}

	mp.pool[tx.Hash] = tx
	mp.order = append(mp.order, tx.Hash)

	return tx.Hash, nil
}

// Drain removes and returns every pending transaction in arrival order.
// The drained transactions remain known to the pool for duplicate
// detection until they are committed or restored.
func (mp *Mempool) Drain() []database.Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	txs := make([]database.Tx, 0, len(mp.order))
	for _, hash := range mp.order {
		txs = append(txs, mp.pool[hash])
		mp.inFlight[hash] = struct{}{}
	}

	mp.pool = make(map[string]database.Tx)
	mp.order = nil

	return txs
}

// Commit forgets the drained transactions once they are part of the chain.
func (mp *Mempool) Commit(txs []database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, tx := range txs {
		delete(mp.inFlight, tx.Hash)
	}
}

// Restore puts drained transactions back at the front of the pool in their
// original order, ahead of anything submitted since the drain.
func (mp *Mempool) Restore(txs []database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	order := make([]string, 0, len(txs)+len(mp.order))
	for _, tx := range txs {
		if _, exists := mp.inFlight[tx.Hash]; !exists {
			continue
		}
		delete(mp.inFlight, tx.Hash)

		mp.pool[tx.Hash] = tx
		order = append(order, tx.Hash)
	}

	mp.order = append(order, mp.order...)
}

// Remove drops the specified transactions from the pool. This is used when
// a chain from a peer already contains them.
func (mp *Mempool) Remove(hashes []string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	drop := make(map[string]struct{}, len(hashes))
	for _, hash := range hashes {
		if _, exists := mp.pool[hash]; exists {
			drop[hash] = struct{}{}
			delete(mp.pool, hash)
		}
	}

	if len(drop) == 0 {
		return
	}

	order := mp.order[:0]
	for _, hash := range mp.order {
		if _, exists := drop[hash]; !exists {
			order = append(order, hash)
		}
	}
	mp.order = order
}

// Truncate clears all the pending transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
	mp.order = nil
}

// Copy returns the pending transactions in arrival order.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.Tx, 0, len(mp.order))
	for _, hash := range mp.order {
		txs = append(txs, mp.pool[hash])
	}

	return txs
}

// =============================================================================

// exists reports whether the hash is pending or in flight. The caller
// must hold the lock.
func (mp *Mempool) exists(hash string) bool {
	if _, exists := mp.pool[hash]; exists {
		return true
	}

	_, exists := mp.inFlight[hash]
	return exists
}
