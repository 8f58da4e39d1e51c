package lnwallet

import (
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// randKeyPair returns a fresh secp256k1 key pair for use as a test fixture.
func randKeyPair(t *testing.T) (*btcec.PrivateKey, *btcec.PublicKey) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv, priv.PubKey()
}

// randOutpoint returns an arbitrary outpoint for use as a spend's prevout;
// its contents are never checked on-chain by the script engine.
func randOutpoint(t *testing.T) wire.OutPoint {
	var h chainhash.Hash
	_, err := rand.Read(h[:])
	require.NoError(t, err)
	return wire.OutPoint{Hash: h, Index: 0}
}

// execWitness runs the witness program validation for a single-input
// spending transaction against the output it claims to spend, the same
// check a full node performs at broadcast time.
func execWitness(t *testing.T, pkScript []byte, amt int64, spendTx *wire.MsgTx, witness wire.TxWitness) error {
	t.Helper()

	spendTx.TxIn[0].Witness = witness

	prevOut := wire.NewTxOut(amt, pkScript)
	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, amt)
	hashCache := txscript.NewTxSigHashes(spendTx, fetcher)

	vm, err := txscript.NewEngine(
		prevOut.PkScript, spendTx, 0, txscript.StandardVerifyFlags, nil,
		hashCache, prevOut.Value, fetcher,
	)
	require.NoError(t, err)

	return vm.Execute()
}

// newSpendTx builds a single-input, single-output transaction spending the
// given outpoint, for use as the sweep transaction under test.
func newSpendTx(prevOut wire.OutPoint, sequence uint32, lockTime uint32) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: prevOut, Sequence: sequence})
	tx.AddTxOut(wire.NewTxOut(1000, []byte{txscript.OP_TRUE}))
	tx.LockTime = lockTime
	return tx
}

// TestGenFundingScriptSpend exercises the 2-of-2 funding multisig end to
// end: script construction, BIP-143 signing by both parties in either key
// order, and witness assembly via AssembleFundingWitness (§4.A).
func TestGenFundingScriptSpend(t *testing.T) {
	t.Parallel()

	localPriv, localPub := randKeyPair(t)
	remotePriv, remotePub := randKeyPair(t)

	const capacity = 1_000_000

	redeemScript, fundingOut, err := GenFundingScript(localPub, remotePub, capacity)
	require.NoError(t, err)

	prevOut := randOutpoint(t)
	spendTx := newSpendTx(prevOut, wire.MaxTxInSequenceNum, 0)

	localSig, err := SignCommitTx(spendTx, redeemScript, capacity, localPriv)
	require.NoError(t, err)
	remoteSig, err := SignCommitTx(spendTx, redeemScript, capacity, remotePriv)
	require.NoError(t, err)

	witness := AssembleFundingWitness(redeemScript, localPub, remotePub, localSig, remoteSig)

	err = execWitness(t, fundingOut.PkScript, fundingOut.Value, spendTx, witness)
	require.NoError(t, err)
}

// TestCommitScriptToLocalDelayedSpend exercises the to-local output's
// default path: the delayed-payment key after the CSV delay has matured.
func TestCommitScriptToLocalDelayedSpend(t *testing.T) {
	t.Parallel()

	delayedPriv, delayedPub := randKeyPair(t)
	_, revocationPub := randKeyPair(t)

	const csvDelay = uint32(144)
	const amt = 500_000

	script, err := CommitScriptToLocal(csvDelay, delayedPub, revocationPub)
	require.NoError(t, err)
	pkScript, err := WitnessScriptHash(script)
	require.NoError(t, err)

	prevOut := randOutpoint(t)
	spendTx := newSpendTx(prevOut, csvDelay, 0)

	sig, err := SignCommitTx(spendTx, script, amt, delayedPriv)
	require.NoError(t, err)

	witness := SecondStageSpendWitness(script, sig, false)

	err = execWitness(t, pkScript, amt, spendTx, witness)
	require.NoError(t, err)
}

// TestCommitScriptToLocalRevocationSpend exercises the to-local output's
// penalty path: the revocation key sweeping the output after a breach,
// unconstrained by the CSV delay.
func TestCommitScriptToLocalRevocationSpend(t *testing.T) {
	t.Parallel()

	_, delayedPub := randKeyPair(t)
	revocationPriv, revocationPub := randKeyPair(t)

	const csvDelay = uint32(144)
	const amt = 500_000

	script, err := CommitScriptToLocal(csvDelay, delayedPub, revocationPub)
	require.NoError(t, err)
	pkScript, err := WitnessScriptHash(script)
	require.NoError(t, err)

	prevOut := randOutpoint(t)
	spendTx := newSpendTx(prevOut, wire.MaxTxInSequenceNum, 0)

	sig, err := SignCommitTx(spendTx, script, amt, revocationPriv)
	require.NoError(t, err)

	witness := SecondStageSpendWitness(script, sig, true)

	err = execWitness(t, pkScript, amt, spendTx, witness)
	require.NoError(t, err)
}

// TestCommitScriptToRemoteSpend exercises the to-remote output, a plain
// P2WKH script spendable immediately by the counterparty's payment key.
func TestCommitScriptToRemoteSpend(t *testing.T) {
	t.Parallel()

	remotePriv, remotePub := randKeyPair(t)
	const amt = 250_000

	pkScript, err := CommitScriptToRemote(remotePub)
	require.NoError(t, err)

	prevOut := randOutpoint(t)
	spendTx := newSpendTx(prevOut, wire.MaxTxInSequenceNum, 0)

	// P2WKH signs over the classic pay-to-pubkey-hash template, not the
	// witness program itself; the engine derives the same template
	// internally from the witness's public key to check our signature.
	sigScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(remotePub.SerializeCompressed())).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	sig, err := SignCommitTx(spendTx, sigScript, amt, remotePriv)
	require.NoError(t, err)

	witness := wire.TxWitness{
		append(sig, byte(txscript.SigHashAll)),
		remotePub.SerializeCompressed(),
	}

	err = execWitness(t, pkScript, amt, spendTx, witness)
	require.NoError(t, err)
}

// TestOfferedHTLCScriptRevocationSpend exercises an offered HTLC's penalty
// path: the revocation key sweeps the output following a breach, with no
// cltv_expiry constraint (the outer OP_IF returns before the tail check).
func TestOfferedHTLCScriptRevocationSpend(t *testing.T) {
	t.Parallel()

	revocationPriv, revocationPub := randKeyPair(t)
	_, remoteHTLCPub := randKeyPair(t)
	_, localHTLCPub := randKeyPair(t)

	var paymentHash [32]byte
	_, err := rand.Read(paymentHash[:])
	require.NoError(t, err)

	const cltvExpiry = uint32(500_000)
	const amt = 100_000

	script, err := OfferedHTLCScript(
		revocationPub, remoteHTLCPub, localHTLCPub, paymentHash, cltvExpiry,
	)
	require.NoError(t, err)
	pkScript, err := WitnessScriptHash(script)
	require.NoError(t, err)

	prevOut := randOutpoint(t)
	spendTx := newSpendTx(prevOut, wire.MaxTxInSequenceNum, 0)

	sig, err := SignCommitTx(spendTx, script, amt, revocationPriv)
	require.NoError(t, err)

	witness := wire.TxWitness{
		append(sig, byte(txscript.SigHashAll)),
		revocationPub.SerializeCompressed(),
		script,
	}

	err = execWitness(t, pkScript, amt, spendTx, witness)
	require.NoError(t, err)
}

// TestOfferedHTLCScriptPreimageSpend exercises an offered HTLC's preimage
// path: the remote party (the HTLC's ultimate recipient along the route)
// claims the output directly with their own signature plus the preimage.
func TestOfferedHTLCScriptPreimageSpend(t *testing.T) {
	t.Parallel()

	_, revocationPub := randKeyPair(t)
	remoteHTLCPriv, remoteHTLCPub := randKeyPair(t)
	_, localHTLCPub := randKeyPair(t)

	var preimage [32]byte
	_, err := rand.Read(preimage[:])
	require.NoError(t, err)
	paymentHash := sha256.Sum256(preimage[:])

	const cltvExpiry = uint32(500_000)
	const amt = 100_000

	script, err := OfferedHTLCScript(
		revocationPub, remoteHTLCPub, localHTLCPub, paymentHash, cltvExpiry,
	)
	require.NoError(t, err)
	pkScript, err := WitnessScriptHash(script)
	require.NoError(t, err)

	prevOut := randOutpoint(t)
	// The tail cltv_expiry check applies to this branch too, so the
	// sweep must present a non-final sequence and a satisfying locktime.
	spendTx := newSpendTx(prevOut, 0, cltvExpiry)

	sig, err := SignCommitTx(spendTx, script, amt, remoteHTLCPriv)
	require.NoError(t, err)

	witness := wire.TxWitness{
		append(sig, byte(txscript.SigHashAll)),
		preimage[:],
		script,
	}

	err = execWitness(t, pkScript, amt, spendTx, witness)
	require.NoError(t, err)
}

// TestReceivedHTLCScriptTimeoutSpend exercises a received HTLC's timeout
// path: the remote party reclaims the output after cltv_expiry with a
// single signature, no preimage required.
func TestReceivedHTLCScriptTimeoutSpend(t *testing.T) {
	t.Parallel()

	_, revocationPub := randKeyPair(t)
	remoteHTLCPriv, remoteHTLCPub := randKeyPair(t)
	_, localHTLCPub := randKeyPair(t)

	var paymentHash [32]byte
	_, err := rand.Read(paymentHash[:])
	require.NoError(t, err)

	const cltvExpiry = uint32(500_000)
	const amt = 100_000

	script, err := ReceivedHTLCScript(
		revocationPub, remoteHTLCPub, localHTLCPub, paymentHash, cltvExpiry,
	)
	require.NoError(t, err)
	pkScript, err := WitnessScriptHash(script)
	require.NoError(t, err)

	prevOut := randOutpoint(t)
	spendTx := newSpendTx(prevOut, 0, cltvExpiry)

	sig, err := SignCommitTx(spendTx, script, amt, remoteHTLCPriv)
	require.NoError(t, err)

	witness := wire.TxWitness{
		append(sig, byte(txscript.SigHashAll)),
		nil,
		script,
	}

	err = execWitness(t, pkScript, amt, spendTx, witness)
	require.NoError(t, err)
}

// TestHTLCScriptForDirectionDispatch confirms the direction dispatcher
// delegates to the exact same scripts as calling each builder directly.
func TestHTLCScriptForDirectionDispatch(t *testing.T) {
	t.Parallel()

	_, revocationPub := randKeyPair(t)
	_, remoteHTLCPub := randKeyPair(t)
	_, localHTLCPub := randKeyPair(t)

	var paymentHash [32]byte
	_, err := rand.Read(paymentHash[:])
	require.NoError(t, err)
	const cltvExpiry = uint32(200_000)

	offeredWant, err := OfferedHTLCScript(
		revocationPub, remoteHTLCPub, localHTLCPub, paymentHash, cltvExpiry,
	)
	require.NoError(t, err)
	offeredGot, err := HTLCScriptForDirection(
		Offered, revocationPub, remoteHTLCPub, localHTLCPub, paymentHash, cltvExpiry,
	)
	require.NoError(t, err)
	require.Equal(t, offeredWant, offeredGot)

	receivedWant, err := ReceivedHTLCScript(
		revocationPub, remoteHTLCPub, localHTLCPub, paymentHash, cltvExpiry,
	)
	require.NoError(t, err)
	receivedGot, err := HTLCScriptForDirection(
		Received, revocationPub, remoteHTLCPub, localHTLCPub, paymentHash, cltvExpiry,
	)
	require.NoError(t, err)
	require.Equal(t, receivedWant, receivedGot)

	require.NotEqual(t, offeredWant, receivedWant)
}

// TestGenFundingScriptRejectsZeroCapacity checks the funding script
// builder's input validation.
func TestGenFundingScriptRejectsZeroCapacity(t *testing.T) {
	t.Parallel()

	_, localPub := randKeyPair(t)
	_, remotePub := randKeyPair(t)

	_, _, err := GenFundingScript(localPub, remotePub, 0)
	require.Error(t, err)
}
