package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bitsim/node/foundation/blockchain/state"
)

// Export writes the node's state as JSON to the named file, or to the
// writer when no file is named.
func Export(w io.Writer, args []string, st *state.State) error {
	exp, err := st.Export()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return err
	}

	if len(args) == 0 {
		_, err := fmt.Fprintln(w, string(data))
		return err
	}

	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return err
	}
	info.Fprintf(w, "exported %d blocks and %d pending transactions to %s\n", len(exp.Chain), len(exp.Mempool), args[0])

	return nil
}

// Import replaces the node's state with the export in the named file.
func Import(w io.Writer, args []string, st *state.State) error {
	if len(args) == 0 {
		return errors.New("import requires the export file")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var exp state.Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return fmt.Errorf("decoding %s: %w", args[0], err)
	}

	if err := st.Import(exp); err != nil {
		fail.Fprintf(w, "import rejected: %s\n", err)
		return err
	}
	info.Fprintf(w, "imported %d blocks and %d pending transactions\n", len(exp.Chain), len(exp.Mempool))

	return nil
}

// Reset puts the chain back at genesis with an empty mempool.
func Reset(w io.Writer, st *state.State) error {
	if err := st.Reset(); err != nil {
		return err
	}
	warn.Fprintln(w, "chain reset to genesis")

	return nil
}
