// Package private maintains the group of handlers for node operators. These
// routes are served on the private host only.
package private

import (
	"context"
	"net/http"

	"github.com/bitsim/node/business/web/errs"
	"github.com/bitsim/node/foundation/blockchain/state"
	"github.com/bitsim/node/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.RetrieveLatestBlock()
	gen := h.State.RetrieveGenesis()

	status := struct {
		MinerID     string `json:"minerAddress"`
		LatestIndex uint64 `json:"latestIndex"`
		LatestHash  string `json:"latestHash"`
		Uncommitted int    `json:"uncommitted"`
		Difficulty  uint   `json:"difficulty"`
		Checksum    string `json:"checksum"`
	}{
		MinerID:     h.State.RetrieveMinerID(),
		LatestIndex: latest.Header.Index,
		LatestHash:  latest.Hash,
		Uncommitted: h.State.QueryMempoolLength(),
		Difficulty:  gen.Difficulty,
		Checksum:    gen.Checksum,
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Export returns the chain, mempool and balances as one document.
func (h Handlers) Export(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	exp, err := h.State.Export()
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, exp, http.StatusOK)
}

// Import replaces the node's state with an exported document.
func (h Handlers) Import(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var exp state.Export
	if err := web.Decode(r, &exp); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := h.State.Import(exp); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("import", "traceid", web.GetTraceID(ctx), "blocks", len(exp.Chain), "mempool", len(exp.Mempool))

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Reset puts the node back at genesis with an empty mempool.
func (h Handlers) Reset(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.Reset(); err != nil {
		return err
	}

	h.Log.Infow("reset", "traceid", web.GetTraceID(ctx))

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}
