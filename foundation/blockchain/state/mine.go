package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/validate"
)

// Set of error variables for mining.
var (
	ErrInvalidMinerAddress = errors.New("invalid miner address")
	ErrChainChanged        = errors.New("chain changed while mining")
)

// =============================================================================

// MineNewBlock drains the mempool, adds the mining reward for the miner and
// performs the POW to create the next block in the chain. An empty miner
// address credits the node's own address. The POW runs without holding the
// state lock. If the chain was replaced in the meantime, or the block can't
// be stored, the drained transactions go back to the mempool.
func (s *State) MineNewBlock(minerAddress string) (database.Block, error) {
	switch {
	case minerAddress == "":
		minerAddress = s.minerAddress
	case !validate.IsAddress(minerAddress):
		return database.Block{}, fmt.Errorf("%q: %w", minerAddress, ErrInvalidMinerAddress)
	}

	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	s.evHandler("state: MineNewBlock: MINING: drain mempool")

	// Snapshot the tip and take the pending transactions together.
	s.mu.Lock()
	trans := s.mempool.Drain()
	tip := s.chain[len(s.chain)-1]
	s.mu.Unlock()

	now := time.Now()

	txs := make([]database.Tx, 0, len(trans)+1)
	txs = append(txs, trans...)
	txs = append(txs, database.NewRewardTx(minerAddress, s.genesis.MiningReward, now.UnixMilli()))

	s.evHandler("state: MineNewBlock: MINING: perform POW: blk[%d]: txs[%d]", tip.Index+1, len(txs))

	prevHash := tip.Hash
	block, err := database.POW(database.POWArgs{
		Index:       tip.Index + 1,
		PrevHash:    &prevHash,
		TimeStamp:   now,
		Trans:       txs,
		Difficulty:  s.genesis.Difficulty,
		MaxAttempts: s.maxAttempts,
		EvHandler:   s.evHandler,
	})
	if err != nil {
		s.mempool.Restore(trans)
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	s.mu.Lock()
	defer s.mu.Unlock()

	if latest := s.chain[len(s.chain)-1]; latest.Hash != tip.Hash {
		s.restorePending(trans)
		s.evHandler("state: MineNewBlock: MINING: chain changed: tip[%s]: mined on[%s]", latest.Hash, tip.Hash)
		return database.Block{}, ErrChainChanged
	}

	if err := s.storage.AppendBlock(block); err != nil {
		s.mempool.Restore(trans)
		return database.Block{}, fmt.Errorf("writing block: %w", err)
	}

	s.chain = append(s.chain, block)
	s.mempool.Commit(trans)

	s.evHandler("viewer: block mined: blk[%d]: hash[%s]: txs[%d]", block.Index, block.Hash, len(block.Transactions))

	return block, nil
}

// restorePending returns drained transactions to the mempool except the
// ones the current chain already holds. The caller must hold the lock.
func (s *State) restorePending(trans []database.Tx) {
	confirmed := confirmedHashes(s.chain)

	var restore []database.Tx
	var done []database.Tx
	for _, tx := range trans {
		if _, exists := confirmed[tx.Hash]; exists {
			done = append(done, tx)
			continue
		}
		restore = append(restore, tx)
	}

	s.mempool.Commit(done)
	s.mempool.Restore(restore)
}

// confirmedHashes returns the set of transaction hashes held by the chain.
func confirmedHashes(blocks []database.Block) map[string]struct{} {
	hashes := make(map[string]struct{})
	for _, block := range blocks {
		for _, tx := range block.Transactions {
			hashes[tx.Hash] = struct{}{}
		}
	}
	return hashes
}
