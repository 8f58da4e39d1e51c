package main

import (
	"os"

	"github.com/btcsuite/btclog"

	"github.com/lightningnetwork/lndcore/channeldb"
	"github.com/lightningnetwork/lndcore/htlcswitch"
	"github.com/lightningnetwork/lndcore/lnwallet"
	"github.com/lightningnetwork/lndcore/routing"
	"github.com/lightningnetwork/lndcore/rpc"
)

var backendLog = btclog.NewBackend(os.Stdout)

// subsystemLoggers lists every package carrying a package-wide log var, the
// same per-subsystem registration lnd's log.go performs for its own
// subsystems.
var subsystemLoggers = map[string]func(btclog.Logger){
	"LWLT": lnwallet.UseLogger,
	"CHDB": channeldb.UseLogger,
	"HSWC": htlcswitch.UseLogger,
	"RTNG": routing.UseLogger,
	"RPCS": rpc.UseLogger,
}

// initLogging creates one subsystem logger per entry in subsystemLoggers at
// the requested level and plugs each into its package.
func initLogging(level string) {
	for subsystem, setter := range subsystemLoggers {
		logger := backendLog.Logger(subsystem)
		logger.SetLevel(btclog.LevelFromString(level))
		setter(logger)
	}
}
