package lnwallet

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// maxPerCommitmentIndex is the largest internal index the per-commitment
// secret ladder will derive: 2^48 - 1, the all-bits-set starting point.
const maxPerCommitmentIndex = (1 << 48) - 1

// DerivePerCommitmentSecret implements the BOLT-3 per-commitment secret
// generation algorithm (§4.D):
//
//	s(I) = derive(seed, I)
//
// starting from the seed, for every bit of (2^48 - 1 - I) that is set
// (scanned from bit 47 down to bit 0), the working buffer is replaced with
// SHA-256 of itself with that bit toggled.
func DerivePerCommitmentSecret(seed [32]byte, index uint64) [32]byte {
	buf := seed
	flips := maxPerCommitmentIndex - index

	for bit := 47; bit >= 0; bit-- {
		if flips&(1<<uint(bit)) == 0 {
			continue
		}

		byteIdx := bit / 8
		bitIdx := uint(bit % 8)
		buf[byteIdx] ^= 1 << (7 - bitIdx)
		buf = sha256.Sum256(buf[:])
	}

	return buf
}

// PerCommitmentPoint returns the elliptic-curve point P(I) = s(I)*G
// corresponding to a per-commitment secret.
func PerCommitmentPoint(secret [32]byte) *btcec.PublicKey {
	_, pub := btcec.PrivKeyFromBytes(secret[:])
	return pub
}

// scalarFromHash reduces a 32-byte hash into a curve scalar, taken modulo
// the group order as BOLT-3's tweak arithmetic requires.
func scalarFromHash(h [32]byte) secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	s.SetBytes(&h)
	return s
}

// jacobianOf converts a btcec public key into its Jacobian representation.
func jacobianOf(pub *btcec.PublicKey) secp256k1.JacobianPoint {
	var p secp256k1.JacobianPoint
	pub.AsJacobian(&p)
	return p
}

// addScaled computes basePoint + scalar*G and returns it as a btcec public
// key. It backs the additive tweak shared by the payment, delayed payment,
// and HTLC per-commitment keys.
func addScaled(basePoint *btcec.PublicKey, scalar secp256k1.ModNScalar) *btcec.PublicKey {
	var tweakPoint, result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&scalar, &tweakPoint)

	base := jacobianOf(basePoint)
	secp256k1.AddNonConst(&base, &tweakPoint, &result)
	result.ToAffine()

	return btcec.NewPublicKey(&result.X, &result.Y)
}

// tweakPubKey implements the additive tweak shared by the payment, delayed
// payment, and HTLC per-commitment keys:
//
//	key = basepoint + SHA256(per_commitment_point || basepoint)*G
func tweakPubKey(basePoint, perCommitmentPoint *btcec.PublicKey) *btcec.PublicKey {
	tweak := singleTweakHash(perCommitmentPoint, basePoint)
	return addScaled(basePoint, scalarFromHash(tweak))
}

// tweakPrivKey computes the private-key counterpart of tweakPubKey, used
// when the local node owns basePriv.
func tweakPrivKey(basePriv *btcec.PrivateKey, perCommitmentPoint *btcec.PublicKey) *btcec.PrivateKey {
	tweak := singleTweakHash(perCommitmentPoint, basePriv.PubKey())

	tweakScalar := scalarFromHash(tweak)
	sum := new(secp256k1.ModNScalar).Set(&basePriv.Key)
	sum.Add(&tweakScalar)

	return secp256k1.NewPrivateKey(sum)
}

// singleTweakHash computes SHA256(perCommitmentPoint || basePoint),
// the tweak shared by the payment/delayed/htlc key derivations.
func singleTweakHash(perCommitmentPoint, basePoint *btcec.PublicKey) [32]byte {
	h := sha256.New()
	h.Write(perCommitmentPoint.SerializeCompressed())
	h.Write(basePoint.SerializeCompressed())

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// revocationTweakHash computes SHA256(a || b), used twice (with arguments
// swapped) by the revocation pubkey/privkey dual-hash construction.
func revocationTweakHash(a, b *btcec.PublicKey) [32]byte {
	h := sha256.New()
	h.Write(a.SerializeCompressed())
	h.Write(b.SerializeCompressed())

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// DeriveRevocationPubkey implements BOLT-3's dual-hash revocation key
// construction (§4.D):
//
//	revocationpubkey = revocation_basepoint*SHA256(revocation_basepoint || per_commitment_point)
//	                 + per_commitment_point*SHA256(per_commitment_point || revocation_basepoint)
func DeriveRevocationPubkey(revocationBasePoint, perCommitmentPoint *btcec.PublicKey) *btcec.PublicKey {
	baseTweak := scalarFromHash(revocationTweakHash(revocationBasePoint, perCommitmentPoint))
	pointTweak := scalarFromHash(revocationTweakHash(perCommitmentPoint, revocationBasePoint))

	var baseScaled, pointScaled, sum secp256k1.JacobianPoint
	base := jacobianOf(revocationBasePoint)
	point := jacobianOf(perCommitmentPoint)

	secp256k1.ScalarMultNonConst(&baseTweak, &base, &baseScaled)
	secp256k1.ScalarMultNonConst(&pointTweak, &point, &pointScaled)
	secp256k1.AddNonConst(&baseScaled, &pointScaled, &sum)
	sum.ToAffine()

	return btcec.NewPublicKey(&sum.X, &sum.Y)
}

// DeriveRevocationPrivkey derives the private key corresponding to
// DeriveRevocationPubkey, usable once both the revocation base private key
// and the per-commitment secret are known (i.e. after the counterparty has
// revoked the commitment in question).
func DeriveRevocationPrivkey(revocationBasePriv *btcec.PrivateKey, perCommitmentSecret [32]byte) *btcec.PrivateKey {
	perCommitmentPriv, perCommitmentPoint := btcec.PrivKeyFromBytes(perCommitmentSecret[:])

	baseTweak := scalarFromHash(revocationTweakHash(revocationBasePriv.PubKey(), perCommitmentPoint))
	pointTweak := scalarFromHash(revocationTweakHash(perCommitmentPoint, revocationBasePriv.PubKey()))

	baseTerm := new(secp256k1.ModNScalar).Set(&revocationBasePriv.Key)
	baseTerm.Mul(&baseTweak)

	pointTerm := new(secp256k1.ModNScalar).Set(&perCommitmentPriv.Key)
	pointTerm.Mul(&pointTweak)

	baseTerm.Add(pointTerm)

	return secp256k1.NewPrivateKey(baseTerm)
}

// PerCommitmentKeys bundles the four derived per-commitment public keys a
// side of the channel uses for one commitment transaction (§4.D).
type PerCommitmentKeys struct {
	Payment        *btcec.PublicKey
	DelayedPayment *btcec.PublicKey
	HTLC           *btcec.PublicKey
	Revocation     *btcec.PublicKey
}

// DerivePerCommitmentKeys derives all four per-commitment keys for one side
// of the channel, given that side's per-commitment point for the
// commitment in question and its own base points plus the counterparty's
// revocation base point (which is needed to compute the revocation key the
// counterparty will learn once this commitment is revoked).
func DerivePerCommitmentKeys(perCommitmentPoint *btcec.PublicKey,
	base ChannelBasePoints, counterpartyRevocationBase *btcec.PublicKey) PerCommitmentKeys {

	return PerCommitmentKeys{
		Payment:        tweakPubKey(base.Payment, perCommitmentPoint),
		DelayedPayment: tweakPubKey(base.DelayedPayment, perCommitmentPoint),
		HTLC:           tweakPubKey(base.HTLC, perCommitmentPoint),
		Revocation:     DeriveRevocationPubkey(counterpartyRevocationBase, perCommitmentPoint),
	}
}

// Signer implements §4.D's per-commitment-secret ladder controls: a single
// 32-byte seed plus an internal 48-bit index that the owning channel actor
// advances as commitments are revoked.
type Signer struct {
	seed  [32]byte
	index uint64
}

// Init sets the signer's seed and resets its index to the ladder's starting
// point, 2^48 - 1.
func (s *Signer) Init(seed [32]byte) {
	s.seed = seed
	s.index = maxPerCommitmentIndex
}

// Advance moves the internal index by a signed offset. The sign convention
// of offset is internal to this engine (see DESIGN.md's Open Question on
// the teacher's down-counting convention) and is never compared directly
// against a BOLT-3 wire commitment number.
func (s *Signer) Advance(offset int64) {
	s.index = uint64(int64(s.index) + offset)
}

// Force sets the internal index directly, used when resynchronizing with a
// counterparty after a restart.
func (s *Signer) Force(index uint64) {
	s.index = index
}

// Rewind moves the index back by one step, used to roll back a signing
// attempt that failed after the index had already been advanced.
func (s *Signer) Rewind() {
	s.index--
}

// Index returns the signer's current internal index.
func (s *Signer) Index() uint64 {
	return s.index
}

// Secret returns the per-commitment secret for the current index.
func (s *Signer) Secret() [32]byte {
	return DerivePerCommitmentSecret(s.seed, s.index)
}

// PreviousSecret returns s(I+1), the secret for the commitment the local
// side most recently revoked by advancing past it.
func (s *Signer) PreviousSecret() ([32]byte, error) {
	if s.index == maxPerCommitmentIndex {
		return [32]byte{}, fmt.Errorf("no previous commitment to reveal")
	}
	return DerivePerCommitmentSecret(s.seed, s.index+1), nil
}
