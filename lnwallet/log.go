package lnwallet

import "github.com/btcsuite/btclog"

// log is the package-wide logger used by lnwallet. It is disabled by
// default and set by the daemon via UseLogger during startup, matching the
// convention used across the lnd subpackages this module descends from.
var log btclog.Logger = btclog.Disabled

// UseLogger plugs in a new logger for this package. The default logger
// discards all log output.
func UseLogger(logger btclog.Logger) {
	log = logger
}
