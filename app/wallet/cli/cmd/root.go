// Package cmd contains the wallet commands.
package cmd

import (
	"crypto/ecdsa"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
	nodeURL     string
	secret      string
	address     string
)

const (
	keyExtension = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&nodeURL, "url", "u", "http://localhost:8080", "Url of the node.")
	rootCmd.PersistentFlags().StringVarP(&secret, "secret", "s", "", "Sign with a proof derived from this secret instead of the private key.")
	rootCmd.PersistentFlags().StringVar(&address, "address", "", "Address to act as when signing with a secret.")
}

var rootCmd = &cobra.Command{
	Use:          "wallet",
	Short:        "Wallet for the bitsim node",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	name := accountName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(accountPath, name)
}

// =============================================================================

// signer knows the address the wallet acts as and how to sign for it.
type signer struct {
	address    string
	proof      string
	privateKey *ecdsa.PrivateKey
}

// loadSigner uses the secret when one is given, otherwise the private key.
func loadSigner() (signer, error) {
	if secret != "" {
		if address == "" {
			return signer{}, errors.New("--address is required when signing with a secret")
		}
		return signer{address: address, proof: signature.Proof(secret)}, nil
	}

	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		return signer{}, err
	}

	return signer{
		address:    signature.PublicKeyToAddress(privateKey.PublicKey),
		privateKey: privateKey,
	}, nil
}

// signTx signs the transaction with the proof or the private key.
func (s signer) signTx(tx database.Tx) (database.Tx, error) {
	if s.privateKey != nil {
		return tx.SignECDSA(s.privateKey)
	}

	return tx.SignProof(s.proof)
}

// sign signs an arbitrary payload such as a login challenge.
func (s signer) sign(payload any) (string, error) {
	if s.privateKey != nil {
		return signature.Sign(payload, s.privateKey)
	}

	return signature.SignProof(payload, s.proof)
}
