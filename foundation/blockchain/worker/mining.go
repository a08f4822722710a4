package worker

import (
	"context"
	"errors"
	"time"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/state"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation(context.Background(), "", nil)
			}
		case req := <-w.requests:
			if !w.isShutdown() {
				w.runMiningOperation(req.ctx, req.miner, req.reply)
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation runs one mining round. A round started by the auto
// mining signal has no reply channel and is skipped when nothing is waiting.
func (w *Worker) runMiningOperation(parent context.Context, miner string, reply chan<- miningReply) {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	if reply == nil && w.state.QueryMempoolLength() == 0 {
		w.evHandler("worker: runMiningOperation: MINING: no transactions to mine")
		return
	}

	// A cancel signal sent while no round was running is stale.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// The watcher hands back the canceller's wait channel so the round can
	// hold off the next one until the canceller has finished.
	watched := make(chan chan struct{}, 1)
	go func() {
		select {
		case wait := <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
			cancel()
			watched <- wait
		case <-ctx.Done():
			watched <- nil
		}
	}()

	result, err := w.mine(ctx, miner)
	if reply != nil {
		reply <- miningReply{result: result, err: err}
	}

	cancel()
	if wait := <-watched; wait != nil {
		w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
		<-wait
		w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
	}

	if err == nil && w.autoMine {
		if length := w.state.QueryMempoolLength(); length > 0 {
			w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Txs[%d]", length)
			w.SignalStartMining()
		}
	}
}

// mine performs the proof of work for the next block and logs the outcome.
func (w *Worker) mine(ctx context.Context, miner string) (state.MiningResult, error) {
	start := time.Now()
	result, err := w.state.MineNewBlock(ctx, miner)
	w.evHandler("worker: mine: MINING: duration[%v]", time.Since(start))

	switch {
	case err == nil:
		w.evHandler("worker: mine: MINING: SOLVED: blk[%d]: hash[%s]: dropped[%d]", result.Block.Header.Index, result.Block.Hash, len(result.Dropped))
	case errors.Is(err, state.ErrNoTransactions):
		w.evHandler("worker: mine: MINING: WARNING: no transactions in mempool")
	case errors.Is(err, database.ErrUnreachableDifficulty):
		w.evHandler("worker: mine: MINING: WARNING: %s", err)
	case ctx.Err() != nil:
		w.evHandler("worker: mine: MINING: CANCEL: complete")
	default:
		w.evHandler("worker: mine: MINING: ERROR: %s", err)
	}

	return result, err
}
