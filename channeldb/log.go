package channeldb

import "github.com/btcsuite/btclog"

var log btclog.Logger = btclog.Disabled

// UseLogger plugs in a new logger for the channeldb package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
