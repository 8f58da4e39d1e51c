package lnwallet

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrChanClosing is returned when a caller attempts to mutate a
	// channel that has already been marked closed or closing.
	ErrChanClosing = fmt.Errorf("channel is being closed, operation disallowed")

	// ErrInsufficientBalance is returned when a proposed HTLC would
	// exceed the available local balance.
	ErrInsufficientBalance = fmt.Errorf("insufficient local balance")

	// ErrMaxHTLCNumber is returned when adding a new HTLC would exceed
	// MaxHTLCNumber HTLCs live on the commitment transaction.
	ErrMaxHTLCNumber = fmt.Errorf("commitment transaction would exceed " +
		"max htlc number")

	// ErrHTLCNotFound is returned when settling or failing an HTLC whose
	// index is not present in the pending set.
	ErrHTLCNotFound = fmt.Errorf("htlc not found in pending set")

	// ErrInvalidLastCommitSecret is returned when the commitment secret
	// sent by the remote party during channel re-establishment doesn't
	// match the last secret we sent them.
	ErrInvalidLastCommitSecret = fmt.Errorf("commit secret is incorrect")
)

// ChannelState is the lifecycle state of a Channel.
type ChannelState uint8

const (
	// ChannelPending indicates the channel is still going through the
	// funding workflow and isn't yet open.
	ChannelPending ChannelState = iota

	// ChannelOpen represents an open, active channel capable of
	// sending/receiving HTLCs.
	ChannelOpen

	// ChannelClosing represents a channel which is in the process of
	// being closed, cooperatively or unilaterally.
	ChannelClosing

	// ChannelClosed represents a channel whose closing transaction has
	// confirmed on-chain.
	ChannelClosed
)

// PaymentHash is the SHA-256 of an HTLC's preimage.
type PaymentHash [32]byte

// ChannelID uniquely identifies a channel: the funding outpoint's txid
// XOR'd with its output index, per §3.
type ChannelID [32]byte

// NewChannelID derives a ChannelID from a funding outpoint.
func NewChannelID(fundingTxid [32]byte, fundingIndex uint16) ChannelID {
	var id ChannelID
	copy(id[:], fundingTxid[:])
	id[30] ^= byte(fundingIndex >> 8)
	id[31] ^= byte(fundingIndex)
	return id
}

// HTLCInfo describes a single pending HTLC as named in §3. The witness
// script is cached the first time it is built by the script builder so that
// repeated commitment constructions don't recompute it.
type HTLCInfo struct {
	// Direction is Offered if the owner of this view added the HTLC,
	// Received otherwise.
	Direction HTLCDirection

	// CltvExpiry is the absolute block height at which an offered HTLC
	// may be timed out, or a received HTLC refunded.
	CltvExpiry uint32

	// Amount is the HTLC value in millisatoshi.
	Amount MilliSatoshi

	// PaymentHash is the SHA-256 of the HTLC's preimage.
	PaymentHash PaymentHash

	// witnessScript caches the serialized witness script for this HTLC's
	// commitment output, built lazily by the script builder.
	witnessScript []byte
}

// MilliSatoshi represents a thousandth of a satoshi, the native unit of
// value exchanged over HTLCs.
type MilliSatoshi uint64

// ToSatoshis rounds the millisatoshi value down to the nearest whole
// satoshi.
func (m MilliSatoshi) ToSatoshis() btcutil.Amount {
	return btcutil.Amount(m / 1000)
}

// ChannelBasePoints bundles the four static, per-channel base points a side
// of a channel commits to at funding time. Per-commitment keys are derived
// from these plus a fresh per-commitment point for every new commitment
// (§4.D).
type ChannelBasePoints struct {
	Payment        *btcec.PublicKey
	DelayedPayment *btcec.PublicKey
	HTLC           *btcec.PublicKey
	Revocation     *btcec.PublicKey
}

// Channel is the in-memory representation of one bidirectional payment
// channel, per §3. All mutating access must go through the methods below,
// which hold the embedded mutex for the duration of the mutation; a channel
// actor (see package htlcswitch) is expected to be the sole owner of a given
// Channel's mutations, with the registry handing out pointers for reads.
type Channel struct {
	mu sync.RWMutex

	ID ChannelID

	FundingOutpoint wire.OutPoint
	FundingAmount   btcutil.Amount

	LocalBalance  MilliSatoshi
	RemoteBalance MilliSatoshi

	LocalFeePerKw  btcutil.Amount
	RemoteFeePerKw btcutil.Amount

	LocalDustLimit  btcutil.Amount
	RemoteDustLimit btcutil.Amount

	LocalCSVDelay  uint32
	RemoteCSVDelay uint32

	LocalBasePoints  ChannelBasePoints
	RemoteBasePoints ChannelBasePoints

	// LocalCommitIndex/RemoteCommitIndex track the commitment index each
	// side is currently on. Per §3 this must be strictly monotonic; per
	// §9's Open Question, the direction of travel is an implementation
	// detail internal to the signer and is never compared directly
	// against BOLT-3's wire-level commitment number.
	LocalCommitIndex  CommitmentNumber
	RemoteCommitIndex CommitmentNumber

	// Htlcs is the pending HTLC set, keyed by the HTLC index both sides
	// agree on (the running counter from the update log). An HTLC stays
	// here from update_add_htlc until it is fulfilled, failed, or timed
	// out on-chain.
	Htlcs map[uint64]*HTLCInfo

	state ChannelState
}

// NewChannel constructs a Channel in the Pending state with an empty HTLC
// set and the given static parameters.
func NewChannel(id ChannelID, fundingPoint wire.OutPoint, fundingAmt btcutil.Amount,
	localBalance, remoteBalance MilliSatoshi) *Channel {

	return &Channel{
		ID:              id,
		FundingOutpoint: fundingPoint,
		FundingAmount:   fundingAmt,
		LocalBalance:    localBalance,
		RemoteBalance:   remoteBalance,
		Htlcs:           make(map[uint64]*HTLCInfo),
		state:           ChannelPending,
	}
}

// MarkOpen transitions the channel into the Open state, following a
// successful funding handshake.
func (c *Channel) MarkOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = ChannelOpen
}

// State returns the channel's current lifecycle state.
func (c *Channel) State() ChannelState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AddHTLC inserts a new pending HTLC, debiting the offering side's balance.
// It enforces the balance-conservation and max-HTLC-count invariants from
// §3 and §4.B.
func (c *Channel) AddHTLC(htlcIndex uint64, htlc *HTLCInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ChannelClosing || c.state == ChannelClosed {
		return ErrChanClosing
	}
	if len(c.Htlcs) >= MaxHTLCNumber {
		return ErrMaxHTLCNumber
	}
	if _, ok := c.Htlcs[htlcIndex]; ok {
		return fmt.Errorf("htlc index %d already present", htlcIndex)
	}

	if htlc.Direction == Offered {
		if htlc.Amount > c.LocalBalance {
			return ErrInsufficientBalance
		}
		c.LocalBalance -= htlc.Amount
	} else {
		if htlc.Amount > c.RemoteBalance {
			return ErrInsufficientBalance
		}
		c.RemoteBalance -= htlc.Amount
	}

	c.Htlcs[htlcIndex] = htlc

	return nil
}

// SettleHTLC removes a pending HTLC and credits its amount to the receiving
// side's balance.
func (c *Channel) SettleHTLC(htlcIndex uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	htlc, ok := c.Htlcs[htlcIndex]
	if !ok {
		return ErrHTLCNotFound
	}

	if htlc.Direction == Offered {
		// The remote side receives an offered HTLC's value.
		c.RemoteBalance += htlc.Amount
	} else {
		c.LocalBalance += htlc.Amount
	}

	delete(c.Htlcs, htlcIndex)

	return nil
}

// FailHTLC removes a pending HTLC and returns its amount to the side that
// offered it.
func (c *Channel) FailHTLC(htlcIndex uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	htlc, ok := c.Htlcs[htlcIndex]
	if !ok {
		return ErrHTLCNotFound
	}

	if htlc.Direction == Offered {
		c.LocalBalance += htlc.Amount
	} else {
		c.RemoteBalance += htlc.Amount
	}

	delete(c.Htlcs, htlcIndex)

	return nil
}

// CheckBalanceConservation verifies the invariant from §3: local + remote +
// Σ(pending HTLC amounts) must equal the channel capacity exactly.
func (c *Channel) CheckBalanceConservation(capacity MilliSatoshi) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.LocalBalance + c.RemoteBalance
	for _, htlc := range c.Htlcs {
		total += htlc.Amount
	}

	if total != capacity {
		return fmt.Errorf("balance conservation violated: "+
			"local=%d remote=%d pending=%d capacity=%d",
			c.LocalBalance, c.RemoteBalance, total-c.LocalBalance-c.RemoteBalance,
			capacity)
	}

	return nil
}

// AdvanceLocalCommit bumps the local commitment index after a
// commitment_signed round is accepted, enforcing that it only ever moves
// forward (§3's monotonic-commitment-number invariant).
func (c *Channel) AdvanceLocalCommit() CommitmentNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LocalCommitIndex++
	return c.LocalCommitIndex
}

// AdvanceRemoteCommit bumps the remote commitment index after a
// revoke_and_ack round is accepted.
func (c *Channel) AdvanceRemoteCommit() CommitmentNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RemoteCommitIndex++
	return c.RemoteCommitIndex
}

// Snapshot returns a defensive value copy of the channel's current static
// and balance state, for external readers that must not race the owning
// actor's mutations (§5: "external code reads via snapshot operations").
func (c *Channel) Snapshot() ChannelSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return ChannelSnapshot{
		ID:                c.ID,
		LocalBalance:      c.LocalBalance,
		RemoteBalance:     c.RemoteBalance,
		LocalCommitIndex:  c.LocalCommitIndex,
		RemoteCommitIndex: c.RemoteCommitIndex,
		NumHTLCs:          len(c.Htlcs),
		State:             c.state,
	}
}

// ChannelSnapshot is a point-in-time, race-free copy of a Channel's state
// for readers outside the owning channel actor.
type ChannelSnapshot struct {
	ID                ChannelID
	LocalBalance      MilliSatoshi
	RemoteBalance     MilliSatoshi
	LocalCommitIndex  CommitmentNumber
	RemoteCommitIndex CommitmentNumber
	NumHTLCs          int
	State             ChannelState
}

// SnapshotHTLCs returns a defensive copy of the currently pending HTLC set,
// suitable for handing to external code that must not observe subsequent
// mutation (the commitment engine uses this for CommitContext assembly).
func (c *Channel) SnapshotHTLCs() map[uint64]HTLCInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[uint64]HTLCInfo, len(c.Htlcs))
	for idx, htlc := range c.Htlcs {
		out[idx] = *htlc
	}

	return out
}

// Sha256Hash is a small helper used throughout the package to compute the
// payment hash of a preimage.
func Sha256Hash(preimage [32]byte) PaymentHash {
	return PaymentHash(sha256.Sum256(preimage[:]))
}
