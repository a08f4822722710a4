package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/bitsim/node/foundation/blockchain/state"
)

// Balances prints the current balances, optionally for a single address.
func Balances(w io.Writer, args []string, st *state.State) error {
	var onlyAddress string
	if len(args) > 0 {
		onlyAddress = args[0]
	}

	latest := st.RetrieveLatestBlock()
	header.Fprintf(w, "Latest Block: %d  Hash: %s\n\n", latest.Header.Index, latest.Hash)

	snapshot := st.RetrieveBalances()
	if onlyAddress != "" {
		snapshot = map[string]map[string]float64{onlyAddress: st.QueryBalance(onlyAddress)}
	}

	addresses := make([]string, 0, len(snapshot))
	for address := range snapshot {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	for _, address := range addresses {
		tokens := make([]string, 0, len(snapshot[address]))
		for token := range snapshot[address] {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)

		fmt.Fprintf(w, "Address: %s\n", address)
		if len(tokens) == 0 {
			warn.Fprintln(w, "  no balances")
		}
		for _, token := range tokens {
			info.Fprintf(w, "  %-8s %v\n", token, snapshot[address][token])
		}
	}

	return nil
}
