// This program performs administrative tasks against the storage of a node.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ardanlabs/conf/v3"
	"github.com/chainlite/node/app/tooling/admin/commands"
	"github.com/chainlite/node/foundation/blockchain/database"
	"github.com/chainlite/node/foundation/blockchain/database/storage/disk"
	"github.com/chainlite/node/foundation/blockchain/database/storage/sqlite"
	"github.com/chainlite/node/foundation/blockchain/genesis"
	"github.com/chainlite/node/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

type config struct {
	conf.Version
	Args conf.Args
	DB   struct {
		Kind string `conf:"default:disk,help:disk|sqlite"`
		Path string `conf:"default:zblock/blocks"`
	}
	GenesisPath string `conf:"default:zblock/genesis.json"`
}

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		if !errors.Is(err, commands.ErrHelp) {
			log.Errorw("startup", "ERROR", err)
		}
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg := config{
		Version: conf.Version{
			Build: build,
			Desc:  "chainlite storage administration",
		},
	}

	const prefix = "ADMIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	gen, err := genesis.Load(cfg.GenesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	strg, err := openStorage(cfg.DB.Kind, cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer strg.Close()

	log.Infow("admin", "kind", cfg.DB.Kind, "path", cfg.DB.Path, "command", cfg.Args.Num(0))

	return processCommands(cfg.Args, strg, gen)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args conf.Args, strg database.Storage, gen genesis.Genesis) error {
	switch args.Num(0) {
	case "chain":
		if err := commands.Chain(os.Stdout, strg, gen.Difficulty); err != nil {
			return fmt.Errorf("printing chain: %w", err)
		}

	case "txs":
		limit, _ := strconv.Atoi(args.Num(2))
		if err := commands.Transactions(os.Stdout, strg, args.Num(1), limit); err != nil {
			return fmt.Errorf("printing transactions: %w", err)
		}

	default:
		fmt.Println("chain:                 print every block in storage and validate the chain")
		fmt.Println("txs <address> [limit]: print the confirmed transactions of an address")
		fmt.Println("provide a command to get more help.")
		return commands.ErrHelp
	}

	return nil
}

func openStorage(kind string, path string) (database.Storage, error) {
	switch kind {
	case "disk":
		return disk.New(path)
	case "sqlite":
		return sqlite.New(path)
	}

	return nil, fmt.Errorf("unknown storage kind %q", kind)
}
