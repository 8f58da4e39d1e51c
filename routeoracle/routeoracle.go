// Package routeoracle names the external routing-graph contract this core
// consumes but does not implement (§1, §6): gossip-graph maintenance is an
// explicit Non-goal, so route computation is always delegated to a
// precomputed oracle the driver calls with a skip predicate.
package routeoracle

import (
	"context"
	"errors"
	"fmt"
)

// Hop is one hop of a computed route, matching the tuple ucoind's PAY RPC
// accepts directly: [pubkey, short_channel_id, amount_to_forward, cltv_expiry_delta].
type Hop struct {
	PubKey       [33]byte
	ShortChanID  uint64
	AmtToForward uint64
	CLTVDelta    uint32
}

// SkipPredicate reports whether a short_channel_id must be excluded from
// consideration, backed by the combination of the permanent and temporary
// skip sets (§4.G step 4).
type SkipPredicate func(shortChanID uint64) bool

// Oracle is the external collaborator interface for route.calculate.
type Oracle interface {
	// Calculate computes a route from source to dest carrying amountMsat,
	// honoring finalCLTV and any r_field routing hints, excluding any
	// short_channel_id for which skip returns true.
	Calculate(ctx context.Context, source, dest [33]byte, finalCLTV uint32,
		amountMsat uint64, hints []Hop, skip SkipPredicate) ([]Hop, error)
}

// ErrNotFound and ErrTooManyHops are sentinel causes an Oracle implementation
// can wrap; CodeForOracleErr maps them to this package's own Code, which the
// rpc package in turn maps to the stable §7 taxonomy at its boundary.
var (
	ErrNotFound    = fmt.Errorf("no route found")
	ErrTooManyHops = fmt.Errorf("route exceeds max hop count")
)

// Code is routeoracle's own small error classification, kept independent of
// package rpc so the driver (which imports routeoracle) and the RPC
// dispatcher (which imports both) don't form an import cycle.
type Code int

const (
	ErrCodeInternal Code = iota
	ErrCodeNotFound
	ErrCodeTooManyHops
	ErrCodePayStop
)

// Error is a routing-driver failure carrying a Code the rpc package
// translates to the matching §7 RPC error code at the dispatcher boundary.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// CodeForOracleErr maps an Oracle failure to this package's Code.
func CodeForOracleErr(err error) Code {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrTooManyHops):
		return ErrCodeTooManyHops
	default:
		return ErrCodeInternal
	}
}
