package state

import (
	"context"
	"fmt"

	"github.com/chainlite/node/foundation/blockchain/consensus"
	"github.com/chainlite/node/foundation/blockchain/database"
)

// Resolve asks the known peers for their chains and adopts the longest valid
// one when it is strictly longer than the local chain. Peer failures are
// reported in the result and never fail the call.
func (s *State) Resolve(ctx context.Context) (consensus.Result, error) {
	local := s.QueryChain()
	peers := s.knownPeers.Copy()

	res := s.resolver.Resolve(ctx, local, peers)
	if !res.Replaced {
		return res, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A block may have been mined while the peers were queried.
	if len(res.Chain) <= len(s.chain) {
		s.evHandler("state: Resolve: local chain grew to [%d], keeping it", len(s.chain))

		res.Chain = s.copyChain()
		res.Replaced = false
		return res, nil
	}

	if err := s.storage.ReplaceChain(res.Chain); err != nil {
		return consensus.Result{}, fmt.Errorf("replacing chain: %w", err)
	}

	s.chain = make([]database.Block, len(res.Chain))
	copy(s.chain, res.Chain)

	confirmed := confirmedHashes(s.chain)
	var remove []string
	for _, tx := range s.mempool.Copy() {
		if _, exists := confirmed[tx.Hash]; exists {
			remove = append(remove, tx.Hash)
		}
	}
	s.mempool.Remove(remove)

	s.evHandler("viewer: chain replaced: length[%d]: latest[%s]: mempool removed[%d]", len(s.chain), s.chain[len(s.chain)-1].Hash, len(remove))

	return res, nil
}
