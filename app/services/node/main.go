package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/bitsim/node/app/services/node/handlers"
	"github.com/bitsim/node/business/core/registry"
	"github.com/bitsim/node/business/sys/store"
	"github.com/bitsim/node/business/web/auth"
	"github.com/bitsim/node/foundation/blockchain/genesis"
	"github.com/bitsim/node/foundation/blockchain/signature"
	"github.com/bitsim/node/foundation/blockchain/state"
	"github.com/bitsim/node/foundation/blockchain/worker"
	"github.com/bitsim/node/foundation/events"
	"github.com/bitsim/node/foundation/logger"
	"github.com/bitsim/node/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:30s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:127.0.0.1:9080"`
			CorsOrigin      string        `conf:"default:*"`
		}
		State struct {
			MinerName      string `conf:"default:miner"`
			GenesisFile    string
			SelectStrategy string `conf:"default:oldest"`
			AutoMine       bool   `conf:"default:false"`
			VerifyTx       bool   `conf:"default:false"`
		}
		Storage struct {
			Type string `conf:"default:disk"`
			Path string `conf:"default:zblock/data"`
			DSN  string `conf:"mask"`
		}
		Admin struct {
			Username string        `conf:"default:admin"`
			Password string        `conf:"mask"`
			TokenTTL time.Duration `conf:"default:12h"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "educational bitcoin simulator node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	fmt.Println(`  ____ ___ _____ ____ ___ __  __ `)
	fmt.Println(` | __ )_ _|_   _/ ___|_ _|  \/  |`)
	fmt.Println(` |  _ \| |  | | \___ \| || |\/| |`)
	fmt.Println(` | |_) | |  | |  ___) | || |  | |`)
	fmt.Println(` |____/___| |_| |____/___|_|  |_|`)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for account addresses.
	// The names come from the file names in the accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	// Logging the accounts for documentation in the logs.
	for address, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "address", address)
	}

	// =========================================================================
	// Blockchain Support

	// The miner is credited with the block reward when a mining request
	// doesn't name one. A key file for the miner name gives the node a wallet
	// address, otherwise the name itself is the address.
	minerID := cfg.State.MinerName
	keyFile := filepath.Join(cfg.NameService.Folder, cfg.State.MinerName+".ecdsa")
	if privateKey, err := crypto.LoadECDSA(keyFile); err == nil {
		minerID = signature.PublicKeyToAddress(privateKey.PublicKey)
	}

	gen := genesis.Default()
	if cfg.State.GenesisFile != "" {
		if gen, err = genesis.Load(cfg.State.GenesisFile); err != nil {
			return fmt.Errorf("loading genesis: %w", err)
		}
	}

	storeCfg := store.Config{
		Type: cfg.Storage.Type,
		Path: cfg.Storage.Path,
		DSN:  cfg.Storage.DSN,
	}

	chainStorage, err := store.Open(storeCfg, "chain")
	if err != nil {
		return fmt.Errorf("opening chain storage: %w", err)
	}

	registryStorage, err := store.Open(storeCfg, "registry")
	if err != nil {
		chainStorage.Close()
		return fmt.Errorf("opening registry storage: %w", err)
	}

	reg, err := registry.NewCore(registryStorage)
	if err != nil {
		chainStorage.Close()
		registryStorage.Close()
		return fmt.Errorf("constructing registry: %w", err)
	}
	defer reg.Close()

	// Registered users are named by their username where no key file names them.
	usrs, err := reg.Users()
	if err != nil {
		chainStorage.Close()
		return fmt.Errorf("loading users: %w", err)
	}
	for _, usr := range usrs {
		ns.Add(usr.Address, usr.Username)
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. Messages starting with the viewer prefix are also
	// sent to any websocket client that is connected through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		if strings.HasPrefix(s, events.Prefix) {
			evts.Send(s)
		}
	}

	stateCfg := state.Config{
		MinerID:        minerID,
		Genesis:        gen,
		Storage:        chainStorage,
		SelectStrategy: cfg.State.SelectStrategy,
		EvHandler:      ev,
	}

	// Transactions are only checked against the registry when asked, since
	// the simulator accepts unsigned transactions by default.
	if cfg.State.VerifyTx {
		stateCfg.Verifier = reg
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(stateCfg)
	if err != nil {
		chainStorage.Close()
		return err
	}
	defer st.Shutdown()

	// The worker package performs every mining round on a single goroutine.
	// The worker will register itself with the state.
	wrk := worker.Run(st, ev, cfg.State.AutoMine)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, store.StatusCheck(chainStorage))

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Build:    build,
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Worker:   wrk,
		Registry: reg,
		Auth: auth.New(auth.Config{
			Username: cfg.Admin.Username,
			Password: cfg.Admin.Password,
			TokenTTL: cfg.Admin.TokenTTL,
		}),
		NS:         ns,
		Evts:       evts,
		CorsOrigin: cfg.Web.CorsOrigin,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct the mux for the private API calls.
	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
	})

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
