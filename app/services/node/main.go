package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/chainlite/node/app/services/node/handlers"
	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/blockchain/database/storage/disk"
	"github.com/chainlite/node/foundation/blockchain/database/storage/memory"
	"github.com/chainlite/node/foundation/blockchain/database/storage/sqlite"
	"github.com/chainlite/node/foundation/blockchain/genesis"
	"github.com/chainlite/node/foundation/blockchain/peer"
	"github.com/chainlite/node/foundation/blockchain/state"
	"github.com/chainlite/node/foundation/blockchain/worker"
	"github.com/chainlite/node/foundation/events"
	"github.com/chainlite/node/foundation/logger"
	"github.com/chainlite/node/foundation/nameservice"
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
			WriteTimeout    time.Duration `conf:"default:120s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PublicURL       string        `conf:"help:address other nodes reach this node on, defaults to the public host"`
		}
		State struct {
			MinerAddress    string        `conf:"help:address credited with mining rewards, generated when empty"`
			DBKind          string        `conf:"default:disk,help:memory|disk|sqlite"`
			DBPath          string        `conf:"default:zblock/blocks"`
			GenesisPath     string        `conf:"default:zblock/genesis.json"`
			KnownPeers      []string      `conf:"help:peers resolved against on startup"`
			PeerTimeout     time.Duration `conf:"default:5s"`
			ResolveInterval time.Duration `conf:"default:0s,help:zero resolves only on startup and when peers are registered"`
			MaxAttempts     uint64        `conf:"default:0,help:proof of work attempts before giving up, zero is unbounded"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "chainlite proof of work ledger node",
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

	fmt.Println(`   ____ _           _       _     _ _       `)
	fmt.Println(`  / ___| |__   __ _(_)_ __ | |   (_) |_ ___ `)
	fmt.Println(` | |   | '_ \ / _` + "`" + ` | | '_ \| |   | | __/ _ \`)
	fmt.Println(` | |___| | | | (_| | | | | | |___| | ||  __/`)
	fmt.Println(`  \____|_| |_|\__,_|_|_| |_|_____|_|\__\___|`)
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

	// The nameservice package provides name resolution for addresses.
	// The names come from the file names in the zblock/accounts folder.
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

	gen, err := genesis.Load(cfg.State.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	strg, err := newStorage(cfg.State.DBKind, cfg.State.DBPath)
	if err != nil {
		return fmt.Errorf("unable to open storage: %w", err)
	}

	// A peer set is a collection of known nodes in the network whose chains
	// are used to resolve conflicts. The node's own address is kept out of it.
	self := cfg.Web.PublicURL
	if self == "" {
		self = cfg.Web.PublicHost
	}
	peerSet := peer.NewPeerSet(self)
	if len(cfg.State.KnownPeers) > 0 {
		if _, err := peerSet.Register(cfg.State.KnownPeers, ""); err != nil {
			return fmt.Errorf("unable to register known peers: %w", err)
		}
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. Messages for viewers are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		if strings.HasPrefix(s, "viewer:") {
			evts.Send(events.Parse(strings.TrimPrefix(s, "viewer:")))
		}
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	state, err := state.New(state.Config{
		MinerAddress: cfg.State.MinerAddress,
		Storage:      strg,
		Genesis:      gen,
		KnownPeers:   peerSet,
		Transport:    peer.NewClient(),
		PeerTimeout:  cfg.State.PeerTimeout,
		MaxAttempts:  cfg.State.MaxAttempts,
		EvHandler:    ev,
	})
	if err != nil {
		strg.Close()
		return err
	}
	defer state.Shutdown()

	log.Infow("startup", "status", "node ready", "miner", state.MinerAddress(), "host", state.Host())

	// The worker package implements the background chain resolution. The
	// worker will register itself with the state.
	worker.Run(state, cfg.State.ResolveInterval, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, state)

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
		Shutdown: shutdown,
		Log:      log,
		State:    state,
		NS:       ns,
		Evts:     evts,
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
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// newStorage opens the storage backend of the specified kind.
func newStorage(kind string, path string) (database.Storage, error) {
	switch kind {
	case "memory":
		return memory.New(), nil
	case "disk":
		return disk.New(path)
	case "sqlite":
		return sqlite.New(path)
	}

	return nil, fmt.Errorf("unknown storage kind %q", kind)
}
