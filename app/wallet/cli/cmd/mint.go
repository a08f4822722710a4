package cmd

import (
	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint tokens you own to an account",
	RunE:  mintRun,
}

func init() {
	rootCmd.AddCommand(mintCmd)
	mintCmd.Flags().StringVarP(&token, "token", "t", "", "Symbol of the token to mint.")
	mintCmd.Flags().StringVar(&to, "to", "", "Address receiving the tokens, defaults to your own.")
	mintCmd.Flags().Float64VarP(&amount, "amount", "v", 0, "Amount to mint.")
	mintCmd.MarkFlagRequired("token")
}

func mintRun(cmd *cobra.Command, args []string) error {
	s, err := loadSigner()
	if err != nil {
		return err
	}

	recipient := to
	if recipient == "" {
		recipient = s.address
	}

	tx, err := s.signTx(database.NewMint(token, recipient, amount, s.address))
	if err != nil {
		return err
	}

	return submit(tx)
}
