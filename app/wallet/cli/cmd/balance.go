package cmd

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"
)

type balance struct {
	Address string             `json:"address"`
	Name    string             `json:"name"`
	Tokens  map[string]float64 `json:"tokens"`
}

type balances struct {
	LatestBlock string    `json:"latestBlock"`
	Uncommitted int       `json:"uncommitted"`
	Balances    []balance `json:"balances"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	s, err := loadSigner()
	if err != nil {
		return err
	}
	fmt.Println("For Account:", s.address)

	var bals balances
	if err := call(http.MethodGet, "/v1/balances/"+s.address, nil, &bals); err != nil {
		return err
	}

	if len(bals.Balances) == 0 {
		return nil
	}

	tokens := bals.Balances[0].Tokens
	symbols := make([]string, 0, len(tokens))
	for symbol := range tokens {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		fmt.Printf("%-8s %v\n", symbol, tokens[symbol])
	}

	return nil
}
