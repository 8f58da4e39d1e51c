package lnwallet

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// CommitmentNumber is the opaque, strictly monotonic identifier of a single
// commitment transaction within a channel. It is always treated as an
// internal counter; the single point where it is mixed with the obscuring
// mask and split across nSequence/nLockTime is the wire boundary implemented
// by EncodeObscuredCommitNum/DecodeObscuredCommitNum. Callers must not infer
// an up/down counting direction from this type: see the Open Question in
// DESIGN.md regarding the teacher's down-counting convention.
type CommitmentNumber uint64

// maxCommitmentNumber is the largest value representable in the 48 bits the
// obscured commitment number occupies on the wire.
const maxCommitmentNumber = (1 << 48) - 1

// obscuringMask derives the 48-bit value used to XOR the commitment number
// before it is split across the funding input's nSequence and the
// transaction's nLockTime fields. It is computed once per channel from both
// parties' payment basepoints and is otherwise opaque.
//
//	obs = SHA256(local_payment_basepoint || remote_payment_basepoint)[26:32]
func obscuringMask(localPaymentBasePoint, remotePaymentBasePoint *btcec.PublicKey) uint64 {
	h := sha256.New()
	h.Write(localPaymentBasePoint.SerializeCompressed())
	h.Write(remotePaymentBasePoint.SerializeCompressed())
	digest := h.Sum(nil)

	// The mask occupies the low 48 bits (6 bytes) of the digest, taken
	// from the tail in big-endian order.
	var mask uint64
	for _, b := range digest[26:32] {
		mask = (mask << 8) | uint64(b)
	}

	return mask
}

// ObscuringMask exports obscuringMask for use by callers outside this
// package that need to pre-compute the mask once per channel (e.g. the
// commitment engine caches it inside a CommitContext).
func ObscuringMask(localPaymentBasePoint, remotePaymentBasePoint *btcec.PublicKey) uint64 {
	return obscuringMask(localPaymentBasePoint, remotePaymentBasePoint)
}

// EncodeObscuredCommitNum obscures the passed commitment number with the
// given mask and splits the resulting 48 bits across a commitment
// transaction's nSequence and nLockTime fields, following the funding input
// sequence prefix 0x80 and locktime prefix 0x20 required by BOLT-3.
func EncodeObscuredCommitNum(commitNum CommitmentNumber, obscureMask uint64) (sequence, locktime uint32) {
	obscured := (uint64(commitNum) ^ obscureMask) & maxCommitmentNumber

	sequence = 0x80000000 | uint32(obscured>>24)
	locktime = 0x20000000 | uint32(obscured&0xffffff)

	return sequence, locktime
}

// DecodeObscuredCommitNum reverses EncodeObscuredCommitNum, recovering the
// original commitment number from a transaction's nSequence/nLockTime pair
// and the channel's obscuring mask. An error is returned if the prefix bits
// don't match the expected commitment-transaction encoding.
func DecodeObscuredCommitNum(sequence, locktime uint32, obscureMask uint64) (CommitmentNumber, error) {
	if sequence&0xff000000 != 0x80000000 {
		return 0, fmt.Errorf("sequence %x does not carry the "+
			"commitment-number prefix 0x80", sequence)
	}
	if locktime&0xff000000 != 0x20000000 {
		return 0, fmt.Errorf("locktime %x does not carry the "+
			"commitment-number prefix 0x20", locktime)
	}

	obscured := (uint64(sequence&0x00ffffff) << 24) | uint64(locktime&0x00ffffff)

	return CommitmentNumber(obscured ^ obscureMask), nil
}
