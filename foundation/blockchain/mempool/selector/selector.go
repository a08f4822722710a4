// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"

	"github.com/bitsim/node/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyOldest = "oldest"
	StrategyNewest = "newest"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyOldest: oldestSelect,
	StrategyNewest: newestSelect,
}

// Func defines a function that takes the pending transactions and selects
// howMany of them based on the functions strategy. The selected transactions
// MUST be returned in enqueue order. Receiving -1 for howMany must return all
// the transactions.
type Func func(transactions []database.PendingTx, howMany int) []database.PendingTx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byID provides sorting support by the transaction id value, which is the
// enqueue order.
type byID []database.PendingTx

// Len returns the number of transactions in the list.
func (bi byID) Len() int {
	return len(bi)
}

// Less helps to sort the list by id in ascending order.
func (bi byID) Less(i, j int) bool {
	return bi[i].ID < bi[j].ID
}

// Swap moves transactions in the order of the id value.
func (bi byID) Swap(i, j int) {
	bi[i], bi[j] = bi[j], bi[i]
}
