package lnwallet

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// OutputRole identifies what a commitment output pays to, surviving the
// BIP-69 sort so HTLC-tx builders can find their output again after the
// commitment transaction's outputs have been reordered (§4.C).
type OutputRole struct {
	// Kind is one of the roleTo* constants below.
	Kind uint8

	// HTLCIndex is meaningful only when Kind == roleHTLC; it is the index
	// into the HTLC table the output corresponds to.
	HTLCIndex uint64

	// WitnessScript is the script committed to by this output's P2WSH
	// (nil for the to-remote P2WKH output).
	WitnessScript []byte
}

const (
	roleToLocal uint8 = iota
	roleToRemote
	roleHTLC
)

// taggedOutput pairs a transaction output with the role tag describing what
// it pays to, so the pair can be permuted together by the BIP-69 sort.
type taggedOutput struct {
	txOut *wire.TxOut
	role  OutputRole
}

// sortOutputs performs the BIP-69 output sort: ascending by value, with
// ties broken by the lexicographic order of the output script. The role
// tags travel with their outputs through the sort.
func sortOutputs(outputs []taggedOutput) {
	sort.SliceStable(outputs, func(i, j int) bool {
		if outputs[i].txOut.Value != outputs[j].txOut.Value {
			return outputs[i].txOut.Value < outputs[j].txOut.Value
		}
		return bytes.Compare(
			outputs[i].txOut.PkScript, outputs[j].txOut.PkScript,
		) < 0
	})
}

// CommitmentKeys bundles the four per-commitment keys of both channel
// parties needed to build one party's view of a commitment transaction.
type CommitmentKeys struct {
	Local  PerCommitmentKeys
	Remote PerCommitmentKeys
}

// CommitmentView describes the fully-resolved state one side's commitment
// transaction must encode: the two balances before the commitment fee
// (BuildCommitmentTx deducts it from the commitment owner's side), the
// HTLC set, and the parameters needed to reconstruct every output script.
type CommitmentView struct {
	CommitNum CommitmentNumber

	LocalBalance  MilliSatoshi
	RemoteBalance MilliSatoshi

	// IsOurCommit is true when this view is of our own broadcastable
	// commitment transaction (its to-local output uses our delayed key
	// and CSV delay), false when it's our view of the remote party's
	// commitment (used only to countersign).
	IsOurCommit bool

	CSVDelay uint32

	Keys CommitmentKeys

	HTLCs map[uint64]HTLCInfo

	DustLimit btcutil.Amount
	FeePerKw  btcutil.Amount
}

// BuiltCommitment is the output of BuildCommitmentTx: the assembled
// transaction plus enough bookkeeping to locate every output by role after
// the BIP-69 sort has permuted them.
type BuiltCommitment struct {
	Tx *wire.MsgTx

	// Outputs maps each surviving output's post-sort index to its role
	// tag.
	Outputs map[int]OutputRole

	Fee           btcutil.Amount
	ToLocalIndex  int
	ToRemoteIndex int
	HTLCIndex     map[uint64]int
}

// BuildCommitmentTx assembles one side's version of a commitment
// transaction per §4.C's construction order: to-remote output, to-local
// output, one output per surviving (non-dust) HTLC, then the BIP-69 sort,
// then the obscured sequence/locktime encoding.
func BuildCommitmentTx(view CommitmentView, fundingOutpoint wire.OutPoint,
	obscureMask uint64) (*BuiltCommitment, error) {

	htlcViews := make([]HTLCView, 0, len(view.HTLCs))
	indexOrder := make([]uint64, 0, len(view.HTLCs))
	for idx, htlc := range view.HTLCs {
		htlcViews = append(htlcViews, HTLCView{
			Direction: htlc.Direction,
			Amount:    htlc.Amount.ToSatoshis(),
		})
		indexOrder = append(indexOrder, idx)
	}

	baseWeight := commitWeight(view.IsOurCommit)
	feeResult := CalcCommitFee(baseWeight, htlcViews, view.DustLimit, view.FeePerKw)

	tx := wire.NewMsgTx(2)

	sequence, locktime := EncodeObscuredCommitNum(view.CommitNum, obscureMask)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: fundingOutpoint,
		Sequence:         sequence,
	})
	tx.LockTime = locktime

	var outputs []taggedOutput

	remoteAmt := view.RemoteBalance.ToSatoshis()
	localAmt := view.LocalBalance.ToSatoshis()
	if view.IsOurCommit {
		localAmt -= feeResult.CommitFee
	} else {
		remoteAmt -= feeResult.CommitFee
	}

	if remoteAmt >= view.DustLimit {
		script, err := CommitScriptToRemote(view.Keys.Remote.Payment)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, taggedOutput{
			txOut: wire.NewTxOut(int64(remoteAmt), script),
			role:  OutputRole{Kind: roleToRemote},
		})
	}

	if localAmt >= view.DustLimit {
		script, err := CommitScriptToLocal(
			view.CSVDelay, view.Keys.Local.DelayedPayment,
			view.Keys.Local.Revocation,
		)
		if err != nil {
			return nil, err
		}
		pkScript, err := WitnessScriptHash(script)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, taggedOutput{
			txOut: wire.NewTxOut(int64(localAmt), pkScript),
			role:  OutputRole{Kind: roleToLocal, WitnessScript: script},
		})
	}

	survivors := make(map[int]bool, len(feeResult.Surviving))
	for _, i := range feeResult.Surviving {
		survivors[i] = true
	}

	for i, idx := range indexOrder {
		if !survivors[i] {
			continue
		}
		htlc := view.HTLCs[idx]

		script, err := HTLCScriptForDirection(
			htlc.Direction, view.Keys.Local.Revocation,
			view.Keys.Remote.HTLC, view.Keys.Local.HTLC,
			htlc.PaymentHash, htlc.CltvExpiry,
		)
		if err != nil {
			return nil, err
		}
		pkScript, err := WitnessScriptHash(script)
		if err != nil {
			return nil, err
		}

		outputs = append(outputs, taggedOutput{
			txOut: wire.NewTxOut(int64(htlc.Amount.ToSatoshis()), pkScript),
			role: OutputRole{
				Kind: roleHTLC, HTLCIndex: idx, WitnessScript: script,
			},
		})
	}

	sortOutputs(outputs)

	built := &BuiltCommitment{
		Tx:            tx,
		Outputs:       make(map[int]OutputRole, len(outputs)),
		Fee:           feeResult.CommitFee,
		ToLocalIndex:  -1,
		ToRemoteIndex: -1,
		HTLCIndex:     make(map[uint64]int),
	}

	for i, out := range outputs {
		tx.AddTxOut(out.txOut)
		built.Outputs[i] = out.role

		switch out.role.Kind {
		case roleToLocal:
			built.ToLocalIndex = i
		case roleToRemote:
			built.ToRemoteIndex = i
		case roleHTLC:
			built.HTLCIndex[out.role.HTLCIndex] = i
		}
	}

	return built, nil
}

// commitWeight returns the base (no-HTLC) weight of a commitment
// transaction: one funding input plus up to two outputs (to-local,
// to-remote), a constant independent of which side's view is being built.
func commitWeight(isOurs bool) int64 {
	const baseCommitmentTxWeight = 724
	return baseCommitmentTxWeight
}

// CommitSigHash computes the BIP-143 sighash for the commitment
// transaction's sole input, spending the funding 2-of-2 witness script at
// the funding amount.
func CommitSigHash(tx *wire.MsgTx, fundingWitnessScript []byte,
	fundingAmt btcutil.Amount) ([]byte, error) {

	fetcher := txscript.NewCannedPrevOutputFetcher(
		nil, int64(fundingAmt),
	)
	hashCache := txscript.NewTxSigHashes(tx, fetcher)

	return txscript.CalcWitnessSigHash(
		fundingWitnessScript, hashCache, txscript.SigHashAll, tx, 0,
		int64(fundingAmt),
	)
}

// SignCommitTx signs the commitment transaction's funding input on behalf
// of one party, returning a raw (non-DER-witness-wrapped) signature of the
// form exchanged over the wire in commitment_signed.
func SignCommitTx(tx *wire.MsgTx, fundingWitnessScript []byte,
	fundingAmt btcutil.Amount, signingKey *btcec.PrivateKey) ([]byte, error) {

	fetcher := txscript.NewCannedPrevOutputFetcher(nil, int64(fundingAmt))
	hashCache := txscript.NewTxSigHashes(tx, fetcher)

	sig, err := txscript.RawTxInWitnessSignature(
		tx, hashCache, 0, int64(fundingAmt), fundingWitnessScript,
		txscript.SigHashAll, signingKey,
	)
	if err != nil {
		return nil, err
	}

	// Drop the trailing sighash-type byte; it is re-appended by the
	// multisig witness assembler, which needs to place it after both
	// signatures are known.
	return sig[:len(sig)-1], nil
}

// VerifyCommitSig checks a counterparty-supplied commitment signature
// against the expected public key and sighash. Any failure here is a fatal
// protocol violation per §4.C.
func VerifyCommitSig(tx *wire.MsgTx, fundingWitnessScript []byte,
	fundingAmt btcutil.Amount, sig []byte, pubKey *btcec.PublicKey) error {

	sigHash, err := CommitSigHash(tx, fundingWitnessScript, fundingAmt)
	if err != nil {
		return err
	}

	parsedSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return fmt.Errorf("invalid commitment signature encoding: %w", err)
	}

	if !parsedSig.Verify(sigHash, pubKey) {
		return fmt.Errorf("invalid commitment signature")
	}

	return nil
}

// AssembleFundingWitness builds the final witness stack for the
// commitment transaction's funding input, given both parties' signatures
// (ordered per the lexicographic key order the funding script was built
// with).
func AssembleFundingWitness(fundingWitnessScript []byte,
	localPub, remotePub *btcec.PublicKey, localSig, remoteSig []byte) wire.TxWitness {

	return spendMultiSig(
		fundingWitnessScript,
		localPub.SerializeCompressed(), append(localSig, byte(txscript.SigHashAll)),
		remotePub.SerializeCompressed(), append(remoteSig, byte(txscript.SigHashAll)),
	)
}

// BuildHTLCTx constructs the second-stage HTLC-success or HTLC-timeout
// transaction spending a commitment transaction's HTLC output (§4.C): a
// single input, a single P2WSH output re-encumbered by the to-local script
// with the channel's to_self_delay.
func BuildHTLCTx(direction HTLCDirection, commitOutpoint wire.OutPoint,
	htlcAmt btcutil.Amount, cltvExpiry, csvDelay uint32, feePerKw btcutil.Amount,
	delayedKey, revocationKey *btcec.PublicKey) (*wire.MsgTx, error) {

	fee := HtlcFeeForDirection(direction, feePerKw)

	outScript, err := CommitScriptToLocal(csvDelay, delayedKey, revocationKey)
	if err != nil {
		return nil, err
	}
	pkScript, err := WitnessScriptHash(outScript)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: commitOutpoint})
	tx.AddTxOut(wire.NewTxOut(int64(htlcAmt-fee), pkScript))

	if direction == Offered {
		// HTLC-timeout: the absolute CLTV expiry is enforced via
		// nLockTime.
		tx.LockTime = cltvExpiry
	}

	return tx, nil
}

// HTLCSuccessWitness assembles the witness stack for the HTLC-success path
// (receiver of an offered HTLC claiming it with the preimage):
// [empty, remote_sig, local_sig, preimage, script].
func HTLCSuccessWitness(commitScript []byte, remoteSig, localSig []byte,
	preimage [32]byte) wire.TxWitness {

	return wire.TxWitness{
		nil,
		append(remoteSig, byte(txscript.SigHashAll)),
		append(localSig, byte(txscript.SigHashAll)),
		preimage[:],
		commitScript,
	}
}

// HTLCTimeoutWitness assembles the witness stack for the HTLC-timeout path
// (sender of an offered HTLC reclaiming it after cltv_expiry):
// [empty, remote_sig, local_sig, empty, script].
func HTLCTimeoutWitness(commitScript []byte, remoteSig, localSig []byte) wire.TxWitness {
	return wire.TxWitness{
		nil,
		append(remoteSig, byte(txscript.SigHashAll)),
		append(localSig, byte(txscript.SigHashAll)),
		nil,
		commitScript,
	}
}

// SecondStageSpendWitness assembles the witness for sweeping an HTLC-tx's
// (or the main commitment's) to-local output: either the normal path after
// to_self_delay, or the penalty path with the revocation key, per §4.C's
// "[sig, 0|1, script]" layout.
func SecondStageSpendWitness(commitScript []byte, sig []byte, isRevocation bool) wire.TxWitness {
	// An empty element is the minimal encoding of false, which segwit's
	// MINIMALIF rule requires for an OP_IF argument.
	var selector []byte
	if isRevocation {
		selector = []byte{1}
	}

	return wire.TxWitness{
		append(sig, byte(txscript.SigHashAll)),
		selector,
		commitScript,
	}
}

