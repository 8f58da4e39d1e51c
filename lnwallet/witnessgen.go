package lnwallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
)

// WitnessType determines how an output's witness is generated. Each value
// names one of the spend paths enumerated across §4.A and §4.C.
type WitnessType uint16

const (
	// CommitmentTimeLock spends a to-local output after its CSV delay
	// has matured.
	CommitmentTimeLock WitnessType = iota

	// CommitmentToRemote spends a to-remote P2WKH output immediately.
	CommitmentToRemote

	// CommitmentRevoke sweeps a to-local output using the revocation
	// key, following a breach.
	CommitmentRevoke

	// HTLCSecondStageTimeLock is a second-stage HTLC transaction's own
	// to-local output, spent by its owner after to_self_delay.
	HTLCSecondStageTimeLock

	// HTLCSecondStageRevoke sweeps a second-stage HTLC transaction's
	// output using the revocation key, following a breach.
	HTLCSecondStageRevoke

	// HTLCOfferedTimeout spends an offered-HTLC commitment output via
	// the HTLC-timeout path, after cltv_expiry.
	HTLCOfferedTimeout

	// HTLCOfferedRevoke sweeps an offered-HTLC commitment output with
	// the revocation key, following a breach.
	HTLCOfferedRevoke

	// HTLCReceivedSuccess spends a received-HTLC commitment output via
	// the HTLC-success path, with the payment preimage.
	HTLCReceivedSuccess

	// HTLCReceivedRevoke sweeps a received-HTLC commitment output with
	// the revocation key, following a breach.
	HTLCReceivedRevoke
)

// SignDescriptor bundles everything a WitnessGenerator needs to produce a
// spending witness for one output: the witness script it commits to, the
// counterparty signature when the path requires two, and whatever extra
// material (preimage) the path needs.
type SignDescriptor struct {
	WitnessScript []byte

	// CounterpartySig is required by the HTLC success/timeout paths and
	// the funding multisig, which need a signature from both parties.
	CounterpartySig []byte

	// Preimage is required only by HTLCReceivedSuccess.
	Preimage [32]byte

	// PubKey is required by CommitmentToRemote (the payment key) and by
	// HTLCOfferedRevoke/HTLCReceivedRevoke (the revocation key), whose
	// witnesses must include the spending public key alongside the
	// signature.
	PubKey *btcec.PublicKey
}

// WitnessGenerator produces the final witness stack for a sweep
// transaction's sole input, given a signature already computed under the
// owning key and the descriptor of the output being spent.
type WitnessGenerator func(sig []byte, desc *SignDescriptor) (wire.TxWitness, error)

// GenWitnessFunc returns the WitnessGenerator appropriate for this witness
// type.
func (wt WitnessType) GenWitnessFunc() (WitnessGenerator, error) {
	switch wt {
	case CommitmentTimeLock, HTLCSecondStageTimeLock:
		return func(sig []byte, desc *SignDescriptor) (wire.TxWitness, error) {
			return SecondStageSpendWitness(desc.WitnessScript, sig, false), nil
		}, nil

	case CommitmentRevoke, HTLCSecondStageRevoke:
		return func(sig []byte, desc *SignDescriptor) (wire.TxWitness, error) {
			return SecondStageSpendWitness(desc.WitnessScript, sig, true), nil
		}, nil

	case HTLCOfferedTimeout:
		return func(sig []byte, desc *SignDescriptor) (wire.TxWitness, error) {
			if desc.CounterpartySig == nil {
				return nil, fmt.Errorf("htlc timeout requires counterparty signature")
			}
			return HTLCTimeoutWitness(
				desc.WitnessScript, desc.CounterpartySig, sig,
			), nil
		}, nil

	case HTLCOfferedRevoke, HTLCReceivedRevoke:
		return func(sig []byte, desc *SignDescriptor) (wire.TxWitness, error) {
			if desc.PubKey == nil {
				return nil, fmt.Errorf("htlc revocation sweep requires the revocation public key")
			}
			return wire.TxWitness{
				append(sig, 0x01), // SigHashAll
				desc.PubKey.SerializeCompressed(),
				desc.WitnessScript,
			}, nil
		}, nil

	case HTLCReceivedSuccess:
		return func(sig []byte, desc *SignDescriptor) (wire.TxWitness, error) {
			if desc.CounterpartySig == nil {
				return nil, fmt.Errorf("htlc success requires counterparty signature")
			}
			return HTLCSuccessWitness(
				desc.WitnessScript, desc.CounterpartySig, sig, desc.Preimage,
			), nil
		}, nil

	case CommitmentToRemote:
		return func(sig []byte, desc *SignDescriptor) (wire.TxWitness, error) {
			if desc.PubKey == nil {
				return nil, fmt.Errorf("to-remote spend requires a public key")
			}
			return wire.TxWitness{
				append(sig, 0x01), // SigHashAll
				desc.PubKey.SerializeCompressed(),
			}, nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown witness type: %v", wt)
	}
}
