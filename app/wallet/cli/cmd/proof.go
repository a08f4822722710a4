package cmd

import (
	"errors"
	"fmt"

	"github.com/bitsim/node/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var proofCmd = &cobra.Command{
	Use:   "proof",
	Short: "Print the public proof for the secret",
	RunE:  proofRun,
}

func init() {
	rootCmd.AddCommand(proofCmd)
}

func proofRun(cmd *cobra.Command, args []string) error {
	if secret == "" {
		return errors.New("--secret is required")
	}

	fmt.Println(signature.Proof(secret))
	return nil
}
