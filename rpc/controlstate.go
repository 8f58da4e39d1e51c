package rpc

import (
	"sync"
)

// controlState is the process-wide RPC operator-toggle state named in §9's
// design notes: auto-reconnect, debug bitmask, fee override. The last
// payment error and retry bookkeeping now live on routing.Driver, which owns
// the routepay/routepay_cont retry loop. It is mutated only from the RPC
// worker goroutine handling a request, guarded by a mutex since concurrent
// requests are still possible.
type controlState struct {
	mu sync.Mutex

	autoConnect     bool
	debugBitmask    uint64
	feerateOverride uint32
}

func newControlState() *controlState {
	return &controlState{
		autoConnect: true,
	}
}

func (c *controlState) setAutoConnect(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoConnect = enabled
}

func (c *controlState) setDebugBitmask(mask uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debugBitmask = mask
}

func (c *controlState) setFeerateOverride(feerate uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feerateOverride = feerate
}
