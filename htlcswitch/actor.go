// Package htlcswitch implements the channel-actor concurrency model named
// in §5: one long-lived goroutine per channel owns that channel's Channel
// value exclusively, serializing every commitment-signed/revoke-and-ack
// round through a single command channel, the same way the teacher's
// Switch serializes link commands through linkControl/htlcPlex.
package htlcswitch

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btclog"

	"github.com/lightningnetwork/lndcore/channeldb"
	"github.com/lightningnetwork/lndcore/lnwallet"
)

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// AddHTLCCmd requests a new HTLC be added to the channel.
type AddHTLCCmd struct {
	Index uint64
	HTLC  *lnwallet.HTLCInfo
	Resp  chan error
}

// SettleHTLCCmd requests a pending HTLC be settled.
type SettleHTLCCmd struct {
	Index uint64
	Resp  chan error
}

// FailHTLCCmd requests a pending HTLC be failed back.
type FailHTLCCmd struct {
	Index uint64
	Resp  chan error
}

// CommitmentSignedCmd advances the local commitment index, the actor's
// reaction to receiving and validating a peer's commitment_signed (§4.C/§4.D
// own the actual transaction construction and signature check upstream of
// this command).
type CommitmentSignedCmd struct {
	Resp chan CommitmentNumberResult
}

// RevokeAndAckCmd advances the remote commitment index and is the point at
// which the actor would release the now-revoked per-commitment secret to
// the revocation store (§4.D).
type RevokeAndAckCmd struct {
	Resp chan CommitmentNumberResult
}

// CommitmentNumberResult carries the post-advance commitment number or an
// error back to the caller of CommitmentSignedCmd/RevokeAndAckCmd.
type CommitmentNumberResult struct {
	Number lnwallet.CommitmentNumber
	Err    error
}

// SnapshotCmd requests a race-free read of the channel's current state.
type SnapshotCmd struct {
	Resp chan lnwallet.ChannelSnapshot
}

// ChannelActor owns exclusive mutation rights over a single Channel,
// processing one command at a time off its command channel -- the
// per-channel analogue of the teacher's per-link goroutine reading off
// linkControl.
type ChannelActor struct {
	channel  *lnwallet.Channel
	registry *channeldb.ChannelRegistry

	cmds chan interface{}
	quit chan struct{}
	wg   sync.WaitGroup
}

// NewChannelActor constructs an actor for channel, persisting through
// registry after every state-mutating command so a crash never loses a
// committed round.
func NewChannelActor(channel *lnwallet.Channel, registry *channeldb.ChannelRegistry) *ChannelActor {
	return &ChannelActor{
		channel:  channel,
		registry: registry,
		cmds:     make(chan interface{}),
		quit:     make(chan struct{}),
	}
}

// Start launches the actor's command loop.
func (a *ChannelActor) Start() {
	a.wg.Add(1)
	go a.run()
}

// Stop cancels the actor's command loop and waits for it to exit, per §5's
// "peer disconnection cancels outstanding per-peer work" cancellation rule.
func (a *ChannelActor) Stop() {
	close(a.quit)
	a.wg.Wait()
}

func (a *ChannelActor) run() {
	defer a.wg.Done()

	for {
		select {
		case cmd := <-a.cmds:
			a.dispatch(cmd)
		case <-a.quit:
			return
		}
	}
}

func (a *ChannelActor) dispatch(cmd interface{}) {
	switch c := cmd.(type) {
	case *AddHTLCCmd:
		err := a.channel.AddHTLC(c.Index, c.HTLC)
		if err == nil {
			err = a.persist()
		}
		c.Resp <- err

	case *SettleHTLCCmd:
		err := a.channel.SettleHTLC(c.Index)
		if err == nil {
			err = a.persist()
		}
		c.Resp <- err

	case *FailHTLCCmd:
		err := a.channel.FailHTLC(c.Index)
		if err == nil {
			err = a.persist()
		}
		c.Resp <- err

	case *CommitmentSignedCmd:
		num := a.channel.AdvanceLocalCommit()
		err := a.persist()
		c.Resp <- CommitmentNumberResult{Number: num, Err: err}

	case *RevokeAndAckCmd:
		num := a.channel.AdvanceRemoteCommit()
		err := a.persist()
		c.Resp <- CommitmentNumberResult{Number: num, Err: err}

	case *SnapshotCmd:
		c.Resp <- a.channel.Snapshot()

	default:
		log.Errorf("channel actor: unknown command %T", cmd)
	}
}

func (a *ChannelActor) persist() error {
	if a.registry == nil {
		return nil
	}
	if err := a.registry.Persist(a.channel); err != nil {
		return fmt.Errorf("persisting channel %x: %w", a.channel.ID, err)
	}
	return nil
}

// AddHTLC submits an AddHTLCCmd and blocks for its result.
func (a *ChannelActor) AddHTLC(index uint64, htlc *lnwallet.HTLCInfo) error {
	resp := make(chan error, 1)
	select {
	case a.cmds <- &AddHTLCCmd{Index: index, HTLC: htlc, Resp: resp}:
	case <-a.quit:
		return fmt.Errorf("channel actor stopped")
	}
	return <-resp
}

// SettleHTLC submits a SettleHTLCCmd and blocks for its result.
func (a *ChannelActor) SettleHTLC(index uint64) error {
	resp := make(chan error, 1)
	select {
	case a.cmds <- &SettleHTLCCmd{Index: index, Resp: resp}:
	case <-a.quit:
		return fmt.Errorf("channel actor stopped")
	}
	return <-resp
}

// FailHTLC submits a FailHTLCCmd and blocks for its result.
func (a *ChannelActor) FailHTLC(index uint64) error {
	resp := make(chan error, 1)
	select {
	case a.cmds <- &FailHTLCCmd{Index: index, Resp: resp}:
	case <-a.quit:
		return fmt.Errorf("channel actor stopped")
	}
	return <-resp
}

// CommitmentSigned submits a CommitmentSignedCmd and blocks for its result.
func (a *ChannelActor) CommitmentSigned() (lnwallet.CommitmentNumber, error) {
	resp := make(chan CommitmentNumberResult, 1)
	select {
	case a.cmds <- &CommitmentSignedCmd{Resp: resp}:
	case <-a.quit:
		return 0, fmt.Errorf("channel actor stopped")
	}
	r := <-resp
	return r.Number, r.Err
}

// RevokeAndAck submits a RevokeAndAckCmd and blocks for its result.
func (a *ChannelActor) RevokeAndAck() (lnwallet.CommitmentNumber, error) {
	resp := make(chan CommitmentNumberResult, 1)
	select {
	case a.cmds <- &RevokeAndAckCmd{Resp: resp}:
	case <-a.quit:
		return 0, fmt.Errorf("channel actor stopped")
	}
	r := <-resp
	return r.Number, r.Err
}

// Snapshot returns a race-free copy of the channel's current state.
func (a *ChannelActor) Snapshot() lnwallet.ChannelSnapshot {
	resp := make(chan lnwallet.ChannelSnapshot, 1)
	select {
	case a.cmds <- &SnapshotCmd{Resp: resp}:
	case <-a.quit:
		return lnwallet.ChannelSnapshot{}
	}
	return <-resp
}
