// Package chainquery names the external blockchain-RPC client contract
// this core consumes but does not implement (§1, §6): a single call to
// learn the current chain tip, used by the payment driver to compute a
// route's final CLTV expiry.
package chainquery

import "context"

// Query is the external collaborator interface for chain.get_block_count.
// The daemon wires a real client (e.g. bitcoind's JSON-RPC) behind this at
// startup; tests and the routing package's own tests use an in-memory
// stand-in.
type Query interface {
	// GetBlockCount returns the current best-chain height.
	GetBlockCount(ctx context.Context) (int32, error)
}

// Static is a fixed-height Query, useful as a test double and as the
// degenerate case before a real chain client is wired in.
type Static int32

// GetBlockCount returns the fixed height s was constructed with.
func (s Static) GetBlockCount(context.Context) (int32, error) {
	return int32(s), nil
}
