// This program performs offline administrative tasks against a node's
// storage. The node should be stopped while it runs.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/bitsim/node/app/tooling/admin/commands"
	"github.com/bitsim/node/business/sys/store"
	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/genesis"
	"github.com/bitsim/node/foundation/blockchain/state"
	"github.com/bitsim/node/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger. The command output owns stdout.
	log, err := logger.New("ADMIN", "stderr")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("admin", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg := struct {
		conf.Version
		Args    conf.Args
		Storage struct {
			Type string `conf:"default:disk"`
			Path string `conf:"default:zblock/data"`
			DSN  string `conf:"mask"`
		}
		State struct {
			GenesisFile string
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "offline administration of a bitsim node: bals [address] | chain | verify | export [file] | import <file> | reset",
		},
	}

	// The node's prefix so the same environment opens the same storage.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Args.Num(0) == "" {
		return errors.New("missing command, run with --help for the list")
	}

	gen := genesis.Default()
	if cfg.State.GenesisFile != "" {
		if gen, err = genesis.Load(cfg.State.GenesisFile); err != nil {
			return fmt.Errorf("loading genesis: %w", err)
		}
	}

	storage, err := store.Open(store.Config{Type: cfg.Storage.Type, Path: cfg.Storage.Path, DSN: cfg.Storage.DSN}, "chain")
	if err != nil {
		return fmt.Errorf("opening chain storage: %w", err)
	}

	ev := func(v string, args ...any) {
		log.Debugw(fmt.Sprintf(v, args...))
	}

	return processCommands(cfg.Args, storage, gen, ev)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args conf.Args, storage database.Storage, gen genesis.Genesis, ev state.EventHandler) error {
	cmd := args.Num(0)
	rest := []string(args)[1:]

	// Verify reads the storage directly so drift is reported, not repaired.
	if cmd == "verify" {
		defer storage.Close()
		if err := commands.Verify(os.Stdout, storage, gen); err != nil {
			return fmt.Errorf("verifying chain: %w", err)
		}
		return nil
	}

	st, err := state.New(state.Config{
		Genesis:   gen,
		Storage:   storage,
		EvHandler: ev,
	})
	if err != nil {
		storage.Close()
		return fmt.Errorf("loading state: %w", err)
	}
	defer st.Shutdown()

	switch cmd {
	case "bals":
		if err := commands.Balances(os.Stdout, rest, st); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}
	case "chain":
		if err := commands.Chain(os.Stdout, st); err != nil {
			return fmt.Errorf("getting chain: %w", err)
		}
	case "export":
		if err := commands.Export(os.Stdout, rest, st); err != nil {
			return fmt.Errorf("exporting state: %w", err)
		}
	case "import":
		if err := commands.Import(os.Stdout, rest, st); err != nil {
			return fmt.Errorf("importing state: %w", err)
		}
	case "reset":
		if err := commands.Reset(os.Stdout, st); err != nil {
			return fmt.Errorf("resetting chain: %w", err)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	return nil
}
