package main

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lndcore/peerlink"
	"github.com/lightningnetwork/lndcore/routeoracle"
)

// noopOracle and noopPeers are placeholder external collaborators: §6 names
// route.calculate and peer.connect/disconnect/send/is_inited/search as
// contracts this core only consumes, never implements. A real deployment
// plugs in the actual gossip-routing and peer-transport subsystems here;
// this binary wires in refusing stand-ins so the RPC surface and the
// payment driver are fully runnable and testable end-to-end without them.
type noopOracle struct{}

func (noopOracle) Calculate(ctx context.Context, source, dest [33]byte, finalCLTV uint32,
	amountMsat uint64, hints []routeoracle.Hop, skip routeoracle.SkipPredicate) ([]routeoracle.Hop, error) {
	return nil, routeoracle.ErrNotFound
}

type noopPeers struct{}

func (noopPeers) Connect(context.Context, peerlink.PeerID, string, uint16) error {
	return fmt.Errorf("peer transport not configured")
}
func (noopPeers) Disconnect(context.Context, peerlink.PeerID) error { return nil }
func (noopPeers) Send(context.Context, peerlink.PeerID, []byte) error {
	return fmt.Errorf("peer transport not configured")
}
func (noopPeers) IsInited(peerlink.PeerID) bool { return false }
func (noopPeers) Search(peerlink.PeerID) bool   { return false }
