package cmd

import (
	"net/http"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	token  string
	to     string
	amount float64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send tokens to another account",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&token, "token", "t", "", "Symbol of the token to send.")
	sendCmd.Flags().StringVar(&to, "to", "", "Address receiving the tokens.")
	sendCmd.Flags().Float64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.MarkFlagRequired("token")
	sendCmd.MarkFlagRequired("to")
}

func sendRun(cmd *cobra.Command, args []string) error {
	s, err := loadSigner()
	if err != nil {
		return err
	}

	tx, err := s.signTx(database.NewTransfer(token, s.address, to, amount))
	if err != nil {
		return err
	}

	return submit(tx)
}

// submit posts the transaction to the mempool and prints the pending entry.
func submit(tx database.Tx) error {
	var pending map[string]any
	if err := call(http.MethodPost, "/v1/mempool", tx, &pending); err != nil {
		return err
	}

	return printJSON(pending)
}
