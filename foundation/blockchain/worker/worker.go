// Package worker implements mining for the blockchain. One goroutine performs
// every mining round so only one is ever in flight.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/bitsim/node/foundation/blockchain/state"
)

// Set of errors returned by mining requests.
var (
	ErrMiningBusy = errors.New("a mining request is already queued")
	ErrShutdown   = errors.New("worker is shutting down")
)

// maxMiningRequests represents the number of mining requests that can wait
// behind the one being worked on.
const maxMiningRequests = 1

// =============================================================================

// miningRequest represents a caller waiting on the outcome of a mining round.
type miningRequest struct {
	ctx   context.Context
	miner string
	reply chan miningReply
}

type miningReply struct {
	result state.MiningResult
	err    error
}

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	shut         chan struct{}
	autoMine     bool
	startMining  chan bool
	cancelMining chan chan struct{}
	requests     chan miningRequest
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes. When autoMine is set a mining
// round starts whenever transactions are waiting.
func Run(st *state.State, evHandler state.EventHandler, autoMine bool) *Worker {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	w := Worker{
		state:        st,
		shut:         make(chan struct{}),
		autoMine:     autoMine,
		startMining:  make(chan bool, 1),
		cancelMining: make(chan chan struct{}, 1),
		requests:     make(chan miningRequest, maxMiningRequests),
		evHandler:    evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.miningOperations,
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

	// Mine anything left over from the last run.
	if autoMine && st.QueryMempoolLength() > 0 {
		w.SignalStartMining()
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: signal cancel mining")
	done := w.SignalCancelMining()
	done()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation when auto mining is on. If
// there is already a signal pending in the channel, just return since a
// mining operation will start.
func (w *Worker) SignalStartMining() {
	if !w.autoMine {
		return
	}

	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately. That G will not return from the function until done
// is called. This allows the caller to complete any state changes before a
// new mining operation takes place.
func (w *Worker) SignalCancelMining() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelMining <- wait:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")

	return func() { close(wait) }
}

// =============================================================================

// RequestMining queues a mining round for the miner and waits for its
// outcome. ErrMiningBusy is returned when a request is already queued.
func (w *Worker) RequestMining(ctx context.Context, miner string) (state.MiningResult, error) {
	req := miningRequest{
		ctx:   ctx,
		miner: miner,
		reply: make(chan miningReply, 1),
	}

	select {
	case <-w.shut:
		return state.MiningResult{}, ErrShutdown
	default:
	}

	select {
	case w.requests <- req:
		w.evHandler("worker: RequestMining: queued: miner[%s]", miner)
	default:
		return state.MiningResult{}, ErrMiningBusy
	}

	select {
	case reply := <-req.reply:
		return reply.result, reply.err
	case <-ctx.Done():
		return state.MiningResult{}, ctx.Err()
	case <-w.shut:
		return state.MiningResult{}, ErrShutdown
	}
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
