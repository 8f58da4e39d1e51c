// Package peerlink names the external peer-to-peer transport contract this
// core consumes but does not implement (§1, §6): wire framing and the noise
// handshake are explicitly out of scope, so the RPC dispatcher and payment
// driver address peers only through this narrow interface.
package peerlink

import "context"

// PeerID identifies a peer by its compressed public key.
type PeerID [33]byte

// Link is the external collaborator interface for peer.connect/disconnect/
// send/is_inited/search (§6).
type Link interface {
	// Connect initiates an outbound handshake to id at host:port,
	// returning an error if the peer is unreachable. The RPC dispatcher
	// checks Search/IsInited itself before calling it to report an
	// already-connected peer.
	Connect(ctx context.Context, id PeerID, host string, port uint16) error

	// Disconnect tears down any live connection to id. It is a no-op,
	// not an error, if no connection exists.
	Disconnect(ctx context.Context, id PeerID) error

	// Send transmits a raw wire message to id. The caller must already
	// know the peer is connected and initialized.
	Send(ctx context.Context, id PeerID, msg []byte) error

	// IsInited reports whether id's BOLT init handshake has completed.
	IsInited(id PeerID) bool

	// Search reports whether a connection record for id exists at all
	// (connected or not), distinguishing NOCONN from a peer this node has
	// simply never heard of.
	Search(id PeerID) bool
}
