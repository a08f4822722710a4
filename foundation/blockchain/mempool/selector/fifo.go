package selector

import (
	"sort"

	"github.com/bitsim/node/foundation/blockchain/database"
)

// oldestSelect returns the transactions that have been waiting the longest.
var oldestSelect = func(txs []database.PendingTx, howMany int) []database.PendingTx {
	sort.Sort(byID(txs))

	if howMany < 0 || howMany > len(txs) {
		howMany = len(txs)
	}

	return txs[:howMany]
}

// newestSelect returns the most recently enqueued transactions, still in
// enqueue order.
var newestSelect = func(txs []database.PendingTx, howMany int) []database.PendingTx {
	sort.Sort(byID(txs))

	if howMany < 0 || howMany > len(txs) {
		howMany = len(txs)
	}

	return txs[len(txs)-howMany:]
}
