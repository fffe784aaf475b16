package state

import (
	"github.com/chainlite/node/foundation/blockchain/database"
)

// SubmitTransaction validates the transaction and adds it to the mempool.
// The returned transaction carries the hash computed by the node.
func (s *State) SubmitTransaction(tx database.Tx) (database.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := s.mempool.Submit(tx)
	if err != nil {
		return database.Tx{}, err
	}
	tx.Hash = hash

	s.evHandler("state: SubmitTransaction: added: tx[%s]: %s", hash, tx)

	return tx, nil
}
