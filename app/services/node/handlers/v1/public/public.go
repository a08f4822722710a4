// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/bitsim/node/business/core/registry"
	"github.com/bitsim/node/business/sys/validate"
	"github.com/bitsim/node/business/web/errs"
	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/state"
	"github.com/bitsim/node/foundation/blockchain/worker"
	"github.com/bitsim/node/foundation/events"
	"github.com/bitsim/node/foundation/nameservice"
	"github.com/bitsim/node/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of chain endpoints.
type Handlers struct {
	Build  string
	Log    *zap.SugaredLogger
	State  *state.State
	Worker *worker.Worker
	NS     *nameservice.NameService
	WS     websocket.Upgrader
	Evts   *events.Events
}

// Health reports the node is up along with the tip of the chain.
func (h Handlers) Health(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.RetrieveLatestBlock()

	resp := struct {
		Status      string `json:"status"`
		Name        string `json:"name"`
		Build       string `json:"build"`
		LatestIndex uint64 `json:"latestIndex"`
		LatestHash  string `json:"latestHash"`
		Uncommitted int    `json:"uncommitted"`
	}{
		Status:      "ok",
		Name:        "bitsim-node",
		Build:       h.Build,
		LatestIndex: latest.Header.Index,
		LatestHash:  latest.Hash,
		Uncommitted: h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events handles a web socket to provide events to a client. Repeated topic
// query parameters, such as block or dropped, limit the events sent.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID, r.URL.Query()["topic"]...)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions in enqueue order.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := r.URL.Query().Get("address")

	mempool := h.State.RetrieveMempool()

	trans := make([]pendingTx, 0, len(mempool))
	for _, ptx := range mempool {
		if address != "" && address != ptx.From && address != ptx.To {
			continue
		}
		trans = append(trans, toPendingTx(h.NS, ptx))
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// SubmitTransaction adds a new transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var ntx NewTx
	if err := web.Decode(r, &ntx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(ntx); err != nil {
		return err
	}

	tran := database.Tx{
		Type:   ntx.Type,
		Token:  ntx.Token,
		From:   ntx.From,
		To:     ntx.To,
		Amount: ntx.Amount,
		Sig:    ntx.Sig,
		Owner:  ntx.Owner,
	}

	h.Log.Infow("submit tran", "traceid", v.TraceID, "tx", tran)

	ptx, err := h.State.SubmitTransaction(tran)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrInvalidAmount), errors.Is(err, database.ErrInvalidTx):
			return errs.NewTrusted(err, http.StatusBadRequest)
		case errors.Is(err, registry.ErrNotAdmitted):
			return errs.NewTrusted(err, http.StatusForbidden)
		}
		return err
	}

	return web.Respond(ctx, w, toPendingTx(h.NS, ptx), http.StatusCreated)
}

// Mine runs a mining round over the oldest waiting transactions and returns
// the new block. The request waits for the round to complete.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req MineRequest
	if r.ContentLength != 0 {
		if err := web.Decode(r, &req); err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
	}

	res, err := h.Worker.RequestMining(ctx, req.MinerAddress)
	if err != nil {
		switch {
		case errors.Is(err, state.ErrNoTransactions):
			return errs.NewTrusted(err, http.StatusBadRequest)
		case errors.Is(err, worker.ErrMiningBusy), errors.Is(err, database.ErrChainForked):
			return errs.NewTrusted(err, http.StatusConflict)
		case errors.Is(err, database.ErrUnreachableDifficulty), errors.Is(err, worker.ErrShutdown):
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	resp := mined{
		Block:   toBlock(h.NS, res.Block),
		Removed: res.Removed,
		Dropped: toTxs(h.NS, res.Dropped),
		Miner:   res.Snapshot[res.Block.Header.Miner],
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Chain returns the blocks ordered by index. An address query parameter
// limits the blocks to those involving the address.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blks, err := h.State.QueryBlocksByAddress(r.URL.Query().Get("address"))
	if err != nil {
		return err
	}

	resp := make([]block, len(blks))
	for i, blk := range blks {
		resp[i] = toBlock(h.NS, blk)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Block returns the block at the index.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return errs.NewTrustedf(http.StatusBadRequest, "invalid block index %q", web.Param(r, "index"))
	}

	blk, err := h.State.RetrieveBlock(index)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrustedf(http.StatusNotFound, "block %d not found", index)
		}
		return err
	}

	return web.Respond(ctx, w, toBlock(h.NS, blk), http.StatusOK)
}

// Balances returns the current balances for every address, or for the
// address named in the path.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	var bals []balance
	switch address {
	case "":
		snapshot := h.State.RetrieveBalances()
		bals = make([]balance, 0, len(snapshot))
		for addr, tokens := range snapshot {
			bals = append(bals, balance{Address: addr, Name: h.NS.Lookup(addr), Tokens: tokens})
		}
		sort.Slice(bals, func(i, j int) bool { return bals[i].Address < bals[j].Address })

	default:
		bals = []balance{
			{Address: address, Name: h.NS.Lookup(address), Tokens: h.State.QueryBalance(address)},
		}
	}

	resp := balances{
		LatestBlock: h.State.RetrieveLatestBlock().Hash,
		Uncommitted: h.State.QueryMempoolLength(),
		Balances:    bals,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
