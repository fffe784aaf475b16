// Package consensus implements the longest valid chain rule used to
// reconcile the local chain with the chains of known peers.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/blockchain/peer"
)

// DefaultPeerTimeout is how long a single peer has to return its chain.
const DefaultPeerTimeout = 5 * time.Second

// Set of error variables for classifying peer failures.
var (
	ErrPeerUnreachable = errors.New("peer unreachable")
	ErrPeerTimeout     = errors.New("peer timed out")
)

// Transport fetches the chain of a remote node. The reported length is the
// length the peer claims for the chain it returned.
type Transport interface {
	FetchChain(ctx context.Context, p peer.Peer) ([]database.Block, int, error)
}

// Outcome describes what happened with the chain of a single peer.
type Outcome string

// Set of outcomes a peer can end up with.
const (
	OutcomeAdopted   Outcome = "adopted"
	OutcomeNotLonger Outcome = "not_longer"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeFailed    Outcome = "failed"
)

// Report is the result of evaluating a single peer.
type Report struct {
	Peer   peer.Peer `json:"peer"`
	Length int       `json:"length"`
	Status Outcome   `json:"status"`
	Err    error     `json:"-"`
}

// Result is the outcome of a resolution. Chain is the chain that should be
// authoritative, which is the local chain when Replaced is false.
type Result struct {
	Chain    []database.Block
	Replaced bool
	Reports  []Report
}

// =============================================================================

// Resolver asks peers for their chains and selects the longest valid one.
type Resolver struct {
	transport  Transport
	difficulty int
	timeout    time.Duration
	evHandler  func(v string, args ...any)
}

// NewResolver constructs a resolver for chains mined at the specified
// difficulty. A timeout of zero uses DefaultPeerTimeout.
func NewResolver(transport Transport, difficulty int, timeout time.Duration, ev func(v string, args ...any)) *Resolver {
	if timeout <= 0 {
		timeout = DefaultPeerTimeout
	}
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	return &Resolver{
		transport:  transport,
		difficulty: difficulty,
		timeout:    timeout,
		evHandler:  ev,
	}
}

// Resolve fetches the chain of every peer concurrently, each call bounded by
// its own timeout. Candidates are considered in the order of the peers. A
// candidate becomes the best only if it is longer than the best so far and
// valid. The best candidate replaces the local chain only when it is
// strictly longer, so the local chain wins ties.
func (r *Resolver) Resolve(ctx context.Context, local []database.Block, peers []peer.Peer) Result {
	r.evHandler("consensus: Resolve: started: local[%d]: peers[%d]", len(local), len(peers))

	type fetched struct {
		blocks []database.Block
		length int
		err    error
	}

	results := make([]fetched, len(peers))

	var wg sync.WaitGroup
	wg.Add(len(peers))

	for i, p := range peers {
		go func(i int, p peer.Peer) {
			defer wg.Done()

			blocks, length, err := r.fetch(ctx, p)
			results[i] = fetched{blocks: blocks, length: length, err: err}
		}(i, p)
	}

	wg.Wait()

	best := local
	bestPeer := -1
	reports := make([]Report, len(peers))

	for i, p := range peers {
		res := results[i]
		reports[i] = Report{Peer: p, Length: len(res.blocks)}

		switch {
		case res.err != nil:
			reports[i].Status = OutcomeFailed
			reports[i].Err = res.err
			r.evHandler("consensus: Resolve: peer[%s]: ERROR: %s", p.Host, res.err)
			continue

		case res.length != len(res.blocks):
			reports[i].Status = OutcomeInvalid
			reports[i].Err = fmt.Errorf("%w: reported length %d, got %d blocks", database.ErrChainValidation, res.length, len(res.blocks))
			r.evHandler("consensus: Resolve: peer[%s]: INVALID: %s", p.Host, reports[i].Err)
			continue

		case len(res.blocks) <= len(best):
			reports[i].Status = OutcomeNotLonger
			continue
		}

		if err := database.ValidateChain(res.blocks, r.difficulty); err != nil {
			reports[i].Status = OutcomeInvalid
			reports[i].Err = err
			r.evHandler("consensus: Resolve: peer[%s]: INVALID: %s", p.Host, err)
			continue
		}

		if bestPeer >= 0 {
			reports[bestPeer].Status = OutcomeNotLonger
		}
		best = res.blocks
		bestPeer = i
		reports[i].Status = OutcomeAdopted
	}

	if bestPeer < 0 {
		r.evHandler("consensus: Resolve: completed: local chain authoritative: length[%d]", len(local))
		return Result{Chain: local, Replaced: false, Reports: reports}
	}

	r.evHandler("consensus: Resolve: completed: chain replaced: peer[%s]: length[%d]", peers[bestPeer].Host, len(best))
	return Result{Chain: best, Replaced: true, Reports: reports}
}

// fetch performs a single bounded call to a peer and classifies a failure
// as a timeout or the peer being unreachable.
func (r *Resolver) fetch(ctx context.Context, p peer.Peer) ([]database.Block, int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	blocks, length, err := r.transport.FetchChain(ctx, p)
	if err == nil {
		return blocks, length, nil
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return nil, 0, fmt.Errorf("%w: %s: %w", ErrPeerTimeout, p.Host, err)
	}

	return nil, 0, fmt.Errorf("%w: %s: %w", ErrPeerUnreachable, p.Host, err)
}
