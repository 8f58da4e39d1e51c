package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
)

const defaultRPCListen = "127.0.0.1:9736"

var defaultDataDir = filepath.Join(btcutil.AppDataDir("lndcore", false), "data")

// config holds every daemon-wide option named in §9's design notes: where
// the channeldb lives, what address the JSON-RPC dispatcher listens on, and
// a starting chain height for the static chainquery stand-in, following the
// teacher's go-flags-driven config struct.
type config struct {
	DataDir    string `long:"datadir" description:"directory holding the channeldb"`
	RPCListen  string `long:"rpclisten" description:"host:port for the JSON-RPC control plane"`
	DebugLevel string `long:"debuglevel" description:"btclog level name: trace, debug, info, warn, error, critical, off"`
	ChainHeight uint32 `long:"chainheight" description:"starting block height for the static chain-height stand-in"`
}

func defaultConfig() config {
	return config{
		DataDir:    defaultDataDir,
		RPCListen:  defaultRPCListen,
		DebugLevel: "info",
	}
}

// loadConfig parses the command line into a config, starting from
// defaultConfig, mirroring the teacher's loadConfig/flags.Parse idiom.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if cfg.RPCListen == "" {
		return nil, fmt.Errorf("rpclisten must not be empty")
	}

	return &cfg, nil
}
