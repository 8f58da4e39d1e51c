package lnwallet

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/crypto/ripemd160"
)

// WitnessScriptHash generates a pay-to-witness-script-hash public key script
// paying to a version 0 witness program committing to the passed redeem
// script.
func WitnessScriptHash(redeemScript []byte) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)

	scriptHash := sha256.Sum256(redeemScript)
	bldr.AddData(scriptHash[:])
	return bldr.Script()
}

// P2WKHScript builds the native segwit pay-to-pubkey-hash script for a
// compressed public key, used for the remote party's no-delay commitment
// output.
func P2WKHScript(pubKey *btcec.PublicKey) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	bldr.AddData(btcutil.Hash160(pubKey.SerializeCompressed()))
	return bldr.Script()
}

// GenFundingScript builds the 2-of-2 multisig redeem script for a channel's
// funding output, along with its matching P2WSH output, given the two
// funding public keys (sorted per BIP-69-style lexicographic ordering so
// both sides derive the identical script) and the channel capacity.
func GenFundingScript(localFundingKey, remoteFundingKey *btcec.PublicKey,
	capacity btcutil.Amount) ([]byte, *wire.TxOut, error) {

	if capacity <= 0 {
		return nil, nil, fmt.Errorf("funding output amount must be positive")
	}

	redeemScript, err := genMultiSigScript(
		localFundingKey.SerializeCompressed(),
		remoteFundingKey.SerializeCompressed(),
	)
	if err != nil {
		return nil, nil, err
	}

	pkScript, err := WitnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}

	return redeemScript, wire.NewTxOut(int64(capacity), pkScript), nil
}

// genMultiSigScript generates the bare (non-P2SH) 2-of-2 multisig script for
// two compressed public keys, sorted lexicographically so either party
// derives the same script independent of funder/fundee role.
func genMultiSigScript(aPub, bPub []byte) ([]byte, error) {
	if len(aPub) != 33 || len(bPub) != 33 {
		return nil, fmt.Errorf("compressed pubkeys only")
	}

	if bytes.Compare(aPub, bPub) == -1 {
		aPub, bPub = bPub, aPub
	}

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_2)
	bldr.AddData(aPub)
	bldr.AddData(bPub)
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	return bldr.Script()
}

// ripemd160Hash computes RIPEMD160(b), used directly on the payment hash by
// the BOLT-3 HTLC scripts (as opposed to btcutil.Hash160, which additionally
// pre-hashes with SHA-256).
func ripemd160Hash(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}

// CommitScriptToLocal constructs the to-local output witness script (§4.A),
// paying to one side's own delayed-payment key after the channel's CSV
// delay, or immediately to the revocation key if the commitment was
// revoked:
//
//	OP_IF
//	    <revocationkey>
//	OP_ELSE
//	    <to_self_delay>
//	    OP_CHECKSEQUENCEVERIFY
//	    OP_DROP
//	    <local_delayedkey>
//	OP_ENDIF
//	OP_CHECKSIG
func CommitScriptToLocal(csvDelay uint32, delayedKey, revocationKey *btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)
	builder.AddData(revocationKey.SerializeCompressed())
	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(csvDelay))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(delayedKey.SerializeCompressed())
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// CommitScriptToRemote builds the to-remote output script: a plain P2WKH
// paid directly to the counterparty's payment key, spendable immediately
// with no contestation period (§4.A).
func CommitScriptToRemote(remotePaymentKey *btcec.PublicKey) ([]byte, error) {
	return P2WKHScript(remotePaymentKey)
}

// OfferedHTLCScript constructs the witness script for an offered (outgoing)
// HTLC output on the owner's commitment transaction (§4.A):
//
//	OP_DUP OP_HASH160 <RIPEMD160(SHA256(revocationkey))> OP_EQUAL
//	OP_IF
//	    OP_CHECKSIG
//	OP_ELSE
//	    <remote_htlcpubkey> OP_SWAP OP_SIZE 32 OP_EQUAL
//	    OP_NOTIF
//	        OP_DROP 2 OP_SWAP <local_htlcpubkey> 2 OP_CHECKMULTISIG
//	    OP_ELSE
//	        OP_HASH160 <RIPEMD160(payment_hash)> OP_EQUALVERIFY
//	        OP_CHECKSIG
//	    OP_ENDIF
//	    <cltv_expiry> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	OP_ENDIF
//
// This mirrors BOLT-3's offered-HTLC script: the remote party can claim the
// output immediately with the payment preimage, the local party can
// reclaim it after cltv_expiry, and either a revocation-key signature
// sweeps it at any time following a breach.
func OfferedHTLCScript(revocationKey, remoteHTLCKey, localHTLCKey *btcec.PublicKey,
	paymentHash [32]byte, cltvExpiry uint32) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(btcutil.Hash160(revocationKey.SerializeCompressed()))
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)

	builder.AddData(remoteHTLCKey.SerializeCompressed())
	builder.AddOp(txscript.OP_SWAP)
	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(32)
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_NOTIF)

	builder.AddOp(txscript.OP_DROP)
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_SWAP)
	builder.AddData(localHTLCKey.SerializeCompressed())
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)

	builder.AddOp(txscript.OP_ELSE)

	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(ripemd160Hash(paymentHash[:]))
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_CHECKSIG)

	builder.AddOp(txscript.OP_ENDIF)

	builder.AddInt64(int64(cltvExpiry))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)

	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// ReceivedHTLCScript constructs the witness script for a received
// (incoming) HTLC output on the owner's commitment transaction (§4.A):
//
//	OP_DUP OP_HASH160 <RIPEMD160(SHA256(revocationkey))> OP_EQUAL
//	OP_IF
//	    OP_CHECKSIG
//	OP_ELSE
//	    <remote_htlcpubkey> OP_SWAP OP_SIZE 32 OP_EQUAL
//	    OP_IF
//	        OP_HASH160 <RIPEMD160(payment_hash)> OP_EQUALVERIFY
//	        2 OP_SWAP <local_htlcpubkey> 2 OP_CHECKMULTISIG
//	    OP_ELSE
//	        OP_DROP <cltv_expiry> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	        OP_CHECKSIG
//	    OP_ENDIF
//	OP_ENDIF
//
// The local party (the HTLC's recipient) can claim the output immediately
// with the payment preimage, the remote party can reclaim it after
// cltv_expiry, and a revocation-key signature sweeps it following a breach.
func ReceivedHTLCScript(revocationKey, remoteHTLCKey, localHTLCKey *btcec.PublicKey,
	paymentHash [32]byte, cltvExpiry uint32) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(btcutil.Hash160(revocationKey.SerializeCompressed()))
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)

	builder.AddData(remoteHTLCKey.SerializeCompressed())
	builder.AddOp(txscript.OP_SWAP)
	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(32)
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)

	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(ripemd160Hash(paymentHash[:]))
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_SWAP)
	builder.AddData(localHTLCKey.SerializeCompressed())
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)

	builder.AddOp(txscript.OP_ELSE)

	builder.AddOp(txscript.OP_DROP)
	builder.AddInt64(int64(cltvExpiry))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddOp(txscript.OP_CHECKSIG)

	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// HTLCScriptForDirection builds the appropriate HTLC witness script for the
// given direction from the commitment owner's point of view.
func HTLCScriptForDirection(direction HTLCDirection, revocationKey, remoteHTLCKey,
	localHTLCKey *btcec.PublicKey, paymentHash [32]byte, cltvExpiry uint32) ([]byte, error) {

	if direction == Offered {
		return OfferedHTLCScript(
			revocationKey, remoteHTLCKey, localHTLCKey, paymentHash,
			cltvExpiry,
		)
	}
	return ReceivedHTLCScript(
		revocationKey, remoteHTLCKey, localHTLCKey, paymentHash, cltvExpiry,
	)
}

// spendMultiSig assembles the witness stack required to redeem the bare
// 2-of-2 funding multisig, ordering the two signatures to match the
// lexicographic key order genMultiSigScript used to build the script.
func spendMultiSig(redeemScript []byte, pubA, sigA, pubB, sigB []byte) wire.TxWitness {
	witness := make(wire.TxWitness, 4)
	witness[0] = nil

	if bytes.Compare(pubA, pubB) == -1 {
		witness[1] = sigB
		witness[2] = sigA
	} else {
		witness[1] = sigA
		witness[2] = sigB
	}

	witness[3] = redeemScript
	return witness
}
