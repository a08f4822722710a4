package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/bitsim/node/foundation/blockchain/state"
)

// Chain prints every block with its transactions.
func Chain(w io.Writer, st *state.State) error {
	blocks, err := st.RetrieveBlocks()
	if err != nil {
		return err
	}

	if len(blocks) == 0 {
		warn.Fprintln(w, "chain is empty")
		return nil
	}

	for _, block := range blocks {
		header.Fprintf(w, "Block %d  %s\n", block.Header.Index, block.Hash)
		fmt.Fprintf(w, "  prev:   %s\n", block.Header.PrevHash)
		fmt.Fprintf(w, "  time:   %s\n", time.UnixMilli(block.Header.TimeStamp).UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "  nonce:  %d\n", block.Header.Nonce)
		fmt.Fprintf(w, "  miner:  %s\n", block.Header.Miner)
		for _, tx := range block.Trans {
			info.Fprintf(w, "  tx:     %s\n", tx)
		}
	}

	return nil
}
