package state_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/blockchain/database/storage/memory"
	"github.com/chainlite/node/foundation/blockchain/database/storage/sqlite"
	"github.com/chainlite/node/foundation/blockchain/genesis"
	"github.com/chainlite/node/foundation/blockchain/peer"
	"github.com/chainlite/node/foundation/blockchain/state"
	"github.com/chainlite/node/foundation/validate"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var testGenesis = genesis.Genesis{
	Date:         time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	Difficulty:   2,
	MiningReward: 1.0,
}

func sampleTx(amount float64) database.Tx {
	return database.Tx{
		Sender:    "0xabc123456789",
		Recipient: "0xdef987654321",
		Amount:    amount,
		Signature: "sig",
		TimeStamp: 1712345678901,
	}
}

// nodes is a transport that serves the chains of in-process nodes.
type nodes map[string]*state.State

func (n nodes) FetchChain(ctx context.Context, p peer.Peer) ([]database.Block, int, error) {
	s, exists := n[p.Host]
	if !exists {
		return nil, 0, errors.New("connection refused")
	}

	chain := s.QueryChain()
	return chain, len(chain), nil
}

type options struct {
	host      string
	transport nodes
	storage   database.Storage
	ev        state.EventHandler
}

func newState(t *testing.T, opts options) *state.State {
	t.Helper()

	if opts.storage == nil {
		opts.storage = memory.New()
	}
	if opts.transport == nil {
		opts.transport = nodes{}
	}

	s, err := state.New(state.Config{
		Storage:     opts.storage,
		Genesis:     testGenesis,
		KnownPeers:  peer.NewPeerSet(opts.host),
		Transport:   opts.transport,
		PeerTimeout: time.Second,
		EvHandler:   opts.ev,
	})
	if err != nil {
		t.Fatalf("constructing state: %s", err)
	}

	return s
}

func mine(t *testing.T, s *state.State, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		if _, err := s.MineNewBlock(""); err != nil {
			t.Fatalf("mining: %s", err)
		}
	}
}

// =============================================================================

func Test_Transactions(t *testing.T) {
	t.Log("Given the need to submit transactions to the node.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen submitting a valid transaction.", testID)
		{
			s := newState(t, options{})

			tx, err := s.SubmitTransaction(sampleTx(10.5))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit: %s", failed, testID, err)
			}
			if len(tx.Hash) != 64 {
				t.Fatalf("\t%s\tTest %d:\tShould get a 64 character hash, got %q.", failed, testID, tx.Hash)
			}
			t.Logf("\t%s\tTest %d:\tShould get a 64 character hash.", success, testID)

			if s.QueryMempoolLength() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have exactly one pending entry.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have exactly one pending entry.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen submitting a zero amount.", testID)
		{
			s := newState(t, options{})

			_, err := s.SubmitTransaction(sampleTx(0))
			if !validate.IsFieldErrors(err) {
				t.Fatalf("\t%s\tTest %d:\tShould get a validation error: %v", failed, testID, err)
			}
			if s.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the mempool unchanged.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be rejected with the mempool unchanged.", success, testID)
		}
	}
}

func Test_Mining(t *testing.T) {
	t.Log("Given the need to mine blocks.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining with no miner address on a genesis only chain.", testID)
		{
			s := newState(t, options{})
			genesisBlock := s.QueryLatestBlock()

			block, err := s.MineNewBlock("")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine: %s", failed, testID, err)
			}

			chain := s.QueryChain()
			if len(chain) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould have a chain of length 2, got %d.", failed, testID, len(chain))
			}
			t.Logf("\t%s\tTest %d:\tShould have a chain of length 2.", success, testID)

			if block.PreviousHash() != genesisBlock.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould link to the genesis hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould link to the genesis hash.", success, testID)

			if len(block.Transactions) != 1 || !block.Transactions[0].IsReward() || block.Transactions[0].Recipient != s.MinerAddress() {
				t.Fatalf("\t%s\tTest %d:\tShould hold only the reward for the node: %v", failed, testID, block.Transactions)
			}
			t.Logf("\t%s\tTest %d:\tShould hold only the reward for the node.", success, testID)

			if !database.SatisfiesTarget(block.Hash, testGenesis.Difficulty) || !database.IsValidChain(chain, testGenesis.Difficulty) {
				t.Fatalf("\t%s\tTest %d:\tShould produce a valid chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould produce a valid chain.", success, testID)

			if s.QueryBalance(s.MinerAddress()) != testGenesis.MiningReward {
				t.Fatalf("\t%s\tTest %d:\tShould credit the reward.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould credit the reward.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen mining pending transactions.", testID)
		{
			s := newState(t, options{})

			tx1, _ := s.SubmitTransaction(sampleTx(1))
			tx2, _ := s.SubmitTransaction(sampleTx(2))

			block, err := s.MineNewBlock("0x3141592653")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine: %s", failed, testID, err)
			}

			if len(block.Transactions) != 3 || block.Transactions[0].Hash != tx1.Hash || block.Transactions[1].Hash != tx2.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould include the pending transactions in order.", failed, testID)
			}
			if block.Transactions[2].Recipient != "0x3141592653" {
				t.Fatalf("\t%s\tTest %d:\tShould reward the supplied miner.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould include the pending transactions then the reward.", success, testID)

			if s.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould empty the mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould empty the mempool.", success, testID)

			txs, err := s.QueryTransactionsByAddress("0xdef987654321", 0, 0)
			if err != nil || len(txs) != 2 || txs[0].Hash != tx2.Hash || txs[0].BlockIndex != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould find the confirmed transactions: %v %v", failed, testID, txs, err)
			}
			t.Logf("\t%s\tTest %d:\tShould find the confirmed transactions.", success, testID)

			if _, err := s.QueryBlockByHash(block.Hash); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould find the block by hash: %s", failed, testID, err)
			}
			if _, err := s.QueryBlockByHeight(3); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould not find a block past the tip: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould query blocks.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen mining with an invalid miner address.", testID)
		{
			s := newState(t, options{})
			s.SubmitTransaction(sampleTx(1))

			_, err := s.MineNewBlock("miner-1")
			if !errors.Is(err, state.ErrInvalidMinerAddress) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrInvalidMinerAddress: %v", failed, testID, err)
			}
			if s.QueryMempoolLength() != 1 || len(s.QueryChain()) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the mempool and chain untouched.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail before the search with nothing changed.", success, testID)
		}
	}
}

func Test_ChainChanged(t *testing.T) {
	t.Log("Given the need to mine while the chain is replaced.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a longer chain is adopted during the search.", testID)
		{
			b := newState(t, options{host: "http://node-b:80"})
			b.SubmitTransaction(sampleTx(7))
			mine(t, b, 3)

			started := make(chan struct{})
			resume := make(chan struct{})
			var once sync.Once
			var armed atomic.Bool

			// Hold the search of the next block until the chain is replaced.
			ev := func(v string, args ...any) {
				if armed.Load() && strings.HasPrefix(v, "database: PerformPOW: MINING: started") {
					once.Do(func() {
						close(started)
						<-resume
					})
				}
			}

			a := newState(t, options{host: "http://node-a:80", transport: nodes{"http://node-b:80": b}, ev: ev})
			a.RegisterNodes([]string{"node-b"}, "")
			a.SubmitTransaction(sampleTx(7))
			pending, _ := a.SubmitTransaction(sampleTx(8))
			armed.Store(true)

			type result struct {
				block database.Block
				err   error
			}
			done := make(chan result, 1)
			go func() {
				block, err := a.MineNewBlock("")
				done <- result{block, err}
			}()

			<-started
			res, err := a.Resolve(context.Background())
			close(resume)

			if err != nil || !res.Replaced {
				t.Fatalf("\t%s\tTest %d:\tShould adopt the longer chain: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould adopt the longer chain while the search runs.", success, testID)

			mined := <-done
			if !errors.Is(mined.err, state.ErrChainChanged) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrChainChanged: %v", failed, testID, mined.err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrChainChanged.", success, testID)

			pool := a.QueryMempool()
			if len(pool) != 1 || pool[0].Hash != pending.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould restore only the transactions the new chain lacks: %v", failed, testID, pool)
			}
			t.Logf("\t%s\tTest %d:\tShould restore only the transactions the new chain lacks.", success, testID)

			if a.QueryLatestBlock().Hash != b.QueryLatestBlock().Hash {
				t.Fatalf("\t%s\tTest %d:\tShould hold the adopted chain.", failed, testID)
			}
			if _, err := a.QueryBlockByHeight(4); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould store the adopted chain: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould hold and store the adopted chain.", success, testID)
		}
	}
}

func Test_Resolve(t *testing.T) {
	t.Log("Given the need to resolve the chain with peers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen node A has 3 blocks and node B has 5.", testID)
		{
			b := newState(t, options{host: "http://node-b:80"})
			shared, _ := b.SubmitTransaction(sampleTx(3))
			mine(t, b, 4)

			a := newState(t, options{host: "http://node-a:80", transport: nodes{"http://node-b:80": b}})
			mine(t, a, 2)
			a.SubmitTransaction(sampleTx(3))

			if _, err := a.RegisterNodes([]string{"node-b:80"}, ""); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould register node B: %s", failed, testID, err)
			}

			res, err := a.Resolve(context.Background())
			if err != nil || !res.Replaced {
				t.Fatalf("\t%s\tTest %d:\tShould replace the chain: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould replace the chain.", success, testID)

			if len(a.QueryChain()) != 5 || a.QueryLatestBlock().Hash != b.QueryLatestBlock().Hash {
				t.Fatalf("\t%s\tTest %d:\tShould hold node B's chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould hold node B's chain.", success, testID)

			if a.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould drop pending transactions confirmed by the new chain: %s", failed, testID, shared.Hash)
			}
			t.Logf("\t%s\tTest %d:\tShould drop pending transactions confirmed by the new chain.", success, testID)

			res, _ = a.Resolve(context.Background())
			if res.Replaced || len(a.QueryChain()) != 5 {
				t.Fatalf("\t%s\tTest %d:\tShould not change the chain when resolving again.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not change the chain when resolving again.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the peer has a chain of the same length.", testID)
		{
			b := newState(t, options{host: "http://node-b:80"})
			mine(t, b, 2)

			a := newState(t, options{host: "http://node-a:80", transport: nodes{"http://node-b:80": b}})
			mine(t, a, 2)
			local := a.QueryLatestBlock()

			a.RegisterNodes([]string{"node-b"}, "")
			res, _ := a.Resolve(context.Background())
			if res.Replaced || a.QueryLatestBlock().Hash != local.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould keep the local chain on a tie.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the local chain on a tie.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen peers are unreachable.", testID)
		{
			a := newState(t, options{host: "http://node-a:80"})
			a.RegisterNodes([]string{"node-x", "node-y"}, "")

			res, err := a.Resolve(context.Background())
			if err != nil || res.Replaced || len(res.Reports) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould tolerate the failures: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould tolerate the failures.", success, testID)
		}
	}
}

func Test_Nodes(t *testing.T) {
	t.Log("Given the need to manage the known peers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen registering and unregistering.", testID)
		{
			s := newState(t, options{host: "localhost:9080"})

			if _, err := s.RegisterNodes(nil, "192.168.0.10:9080"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould register the fallback: %s", failed, testID, err)
			}
			if _, err := s.RegisterNodes([]string{"good:1", "ftp://bad"}, ""); !errors.Is(err, peer.ErrInvalidAddress) {
				t.Fatalf("\t%s\tTest %d:\tShould reject an invalid list: %v", failed, testID, err)
			}
			if peers := s.KnownPeers(); len(peers) != 1 || peers[0].Host != "http://192.168.0.10:9080" {
				t.Fatalf("\t%s\tTest %d:\tShould hold only the fallback: %v", failed, testID, peers)
			}
			t.Logf("\t%s\tTest %d:\tShould register all or nothing.", success, testID)

			s.UnregisterNodes([]string{"192.168.0.10:9080", "missing:1"})
			if len(s.KnownPeers()) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould unregister the peer.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould unregister the peer.", success, testID)
		}
	}
}

func Test_Reload(t *testing.T) {
	t.Log("Given the need to restart a node.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen reopening a SQLite chain.", testID)
		{
			path := filepath.Join(t.TempDir(), "chain.db")

			db, err := sqlite.New(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould open the database: %s", failed, testID, err)
			}

			s := newState(t, options{storage: db})
			mine(t, s, 2)
			latest := s.QueryLatestBlock()
			s.Shutdown()

			db, err = sqlite.New(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould reopen the database: %s", failed, testID, err)
			}

			s = newState(t, options{storage: db})
			defer s.Shutdown()

			if len(s.QueryChain()) != 3 || s.QueryLatestBlock().Hash != latest.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould load the stored chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould load the stored chain.", success, testID)
		}
	}
}
