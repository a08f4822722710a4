package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var minerAddress string

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Ask the node to mine the pending transactions",
	RunE:  mineRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().StringVar(&minerAddress, "miner", "", "Address to credit with the reward, defaults to the node's miner.")
}

func mineRun(cmd *cobra.Command, args []string) error {
	req := struct {
		MinerAddress string `json:"minerAddress,omitempty"`
	}{
		MinerAddress: minerAddress,
	}

	var result map[string]any
	if err := call(http.MethodPost, "/v1/mine", req, &result); err != nil {
		return err
	}

	return printJSON(result)
}
