// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chainlite/node/foundation/blockchain/consensus"
	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/blockchain/genesis"
	"github.com/chainlite/node/foundation/blockchain/mempool"
	"github.com/chainlite/node/foundation/blockchain/peer"
	"github.com/chainlite/node/foundation/validate"
	"github.com/google/uuid"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background chain resolution.
type Worker interface {
	Shutdown()
	SignalResolve()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerAddress string
	Storage      database.Storage
	Genesis      genesis.Genesis
	KnownPeers   *peer.PeerSet
	Transport    consensus.Transport
	PeerTimeout  time.Duration
	MaxAttempts  uint64
	EvHandler    EventHandler
}

// State manages the blockchain database.
type State struct {
	mu       sync.RWMutex
	miningMu sync.Mutex

	minerAddress string
	maxAttempts  uint64
	evHandler    EventHandler
	genesis      genesis.Genesis
	chain        []database.Block

	knownPeers *peer.PeerSet
	mempool    *mempool.Mempool
	storage    database.Storage
	resolver   *consensus.Resolver

	Worker Worker
}

// New constructs a new blockchain for data management. The chain is loaded
// from storage and validated. An empty storage gets the genesis block.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	minerAddress := cfg.MinerAddress
	switch {
	case minerAddress == "":
		minerAddress = "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
		ev("state: New: generated miner address[%s]", minerAddress)
	case !validate.IsAddress(minerAddress):
		return nil, fmt.Errorf("miner address %q: %w", minerAddress, ErrInvalidMinerAddress)
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet("")
	}

	// Load all existing blocks from storage into memory for processing.
	blocks, err := cfg.Storage.LoadChain()
	if err != nil {
		return nil, fmt.Errorf("loading chain: %w", err)
	}

	switch len(blocks) {
	case 0:
		ev("state: New: mining genesis block: difficulty[%d]", cfg.Genesis.Difficulty)

		block, err := cfg.Genesis.Block(ev)
		if err != nil {
			return nil, fmt.Errorf("mining genesis: %w", err)
		}

		if err := cfg.Storage.AppendBlock(block); err != nil {
			return nil, fmt.Errorf("writing genesis: %w", err)
		}
		blocks = []database.Block{block}

	default:
		if err := database.ValidateChain(blocks, cfg.Genesis.Difficulty); err != nil {
			return nil, fmt.Errorf("stored chain: %w", err)
		}
	}

	ev("state: New: chain loaded: length[%d]: latest[%s]", len(blocks), blocks[len(blocks)-1].Hash)

	state := State{
		minerAddress: minerAddress,
		maxAttempts:  cfg.MaxAttempts,
		evHandler:    ev,
		genesis:      cfg.Genesis,
		chain:        blocks,

		knownPeers: knownPeers,
		mempool:    mempool.New(),
		storage:    cfg.Storage,
		resolver:   consensus.NewResolver(cfg.Transport, cfg.Genesis.Difficulty, cfg.PeerTimeout, ev),
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Wait for a mining operation in progress to finish.
	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	return s.storage.Close()
}

// MinerAddress returns the address this node credits mining rewards to.
func (s *State) MinerAddress() string {
	return s.minerAddress
}

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// Host returns the normalized address of this node.
func (s *State) Host() string {
	return s.knownPeers.Self()
}
