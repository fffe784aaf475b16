// Package worker implements the background chain resolution for the
// blockchain.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/chainlite/node/foundation/blockchain/state"
)

// Worker manages the resolve workflow for the blockchain.
type Worker struct {
	state     *state.State
	wg        sync.WaitGroup
	ticker    *time.Ticker
	shut      chan struct{}
	resolve   chan bool
	evHandler state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes. The chain is resolved against the
// known peers every interval. An interval of zero or less only resolves on
// startup and when signaled.
func Run(st *state.State, interval time.Duration, evHandler state.EventHandler) {
	w := Worker{
		state:     st,
		shut:      make(chan struct{}),
		resolve:   make(chan bool, 1),
		evHandler: evHandler,
	}

	if interval > 0 {
		w.ticker = time.NewTicker(interval)
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Update this node before starting any support G's.
	w.Sync()

	// Load the set of operations we need to run.
	operations := []func(){
		w.resolveOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	if w.ticker != nil {
		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()
	}

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalResolve starts a resolve operation. If there is already a signal
// pending in the channel, just return since a resolve operation will start.
func (w *Worker) SignalResolve() {
	select {
	case w.resolve <- true:
		w.evHandler("worker: SignalResolve: resolve signaled")
	default:
	}
}

// =============================================================================

// Sync resolves the chain against the known peers.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	if len(w.state.KnownPeers()) == 0 {
		w.evHandler("worker: sync: no known peers")
		return
	}

	w.runResolveOperation()
}

// resolveOperations handles resolving the chain on the ticker or a signal.
func (w *Worker) resolveOperations() {
	w.evHandler("worker: resolveOperations: G started")
	defer w.evHandler("worker: resolveOperations: G completed")

	// A nil channel blocks forever, which disables the ticker case.
	var tick <-chan time.Time
	if w.ticker != nil {
		tick = w.ticker.C
	}

	for {
		select {
		case <-w.resolve:
			if !w.isShutdown() {
				w.runResolveOperation()
			}
		case <-tick:
			if !w.isShutdown() {
				w.runResolveOperation()
			}
		case <-w.shut:
			w.evHandler("worker: resolveOperations: received shut signal")
			return
		}
	}
}

// runResolveOperation asks the state to resolve the chain and logs the
// outcome for each peer.
func (w *Worker) runResolveOperation() {
	w.evHandler("worker: runResolveOperation: started")
	defer w.evHandler("worker: runResolveOperation: completed")

	res, err := w.state.Resolve(context.Background())
	if err != nil {
		w.evHandler("worker: runResolveOperation: ERROR: %s", err)
		return
	}

	for _, report := range res.Reports {
		w.evHandler("worker: runResolveOperation: peer[%s]: length[%d]: status[%s]", report.Peer.Host, report.Length, report.Status)
	}

	w.evHandler("worker: runResolveOperation: replaced[%v]: length[%d]", res.Replaced, len(res.Chain))
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
