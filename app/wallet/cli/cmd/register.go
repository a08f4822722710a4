package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var username string

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the account with the node using the secret's public proof",
	RunE:  registerRun,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Answer a challenge from the node to prove you hold the account",
	RunE:  loginRun,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	registerCmd.Flags().StringVar(&username, "username", "", "Name to register under.")
	registerCmd.MarkFlagRequired("username")
}

func registerRun(cmd *cobra.Command, args []string) error {
	if secret == "" {
		return errors.New("--secret is required to derive the public proof")
	}

	s, err := loadSigner()
	if err != nil {
		return err
	}

	req := struct {
		Address     string `json:"address"`
		Username    string `json:"username"`
		PublicProof string `json:"publicProof"`
	}{
		Address:     s.address,
		Username:    username,
		PublicProof: s.proof,
	}

	var usr map[string]any
	if err := call(http.MethodPost, "/v1/users/register", req, &usr); err != nil {
		return err
	}

	return printJSON(usr)
}

func loginRun(cmd *cobra.Command, args []string) error {
	s, err := loadSigner()
	if err != nil {
		return err
	}

	var chal struct {
		Challenge string `json:"challenge"`
	}
	if err := call(http.MethodPost, "/v1/users/challenge", map[string]string{"address": s.address}, &chal); err != nil {
		return err
	}

	sig, err := s.sign(chal.Challenge)
	if err != nil {
		return err
	}

	req := map[string]string{"address": s.address, "signature": sig}

	var usr struct {
		Address  string `json:"address"`
		Username string `json:"username"`
	}
	if err := call(http.MethodPost, "/v1/users/verify", req, &usr); err != nil {
		return err
	}

	fmt.Printf("verified %s as %s\n", usr.Address, usr.Username)
	return nil
}
