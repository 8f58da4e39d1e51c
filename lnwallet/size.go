package lnwallet

import "github.com/btcsuite/btcd/btcutil"

const (
	// witnessScaleFactor is the factor by which the witness size of a
	// transaction is discounted when calculating its weight, as defined
	// by BIP-141. We keep our own copy rather than importing btcd's
	// blockchain package so that this file has no dependency beyond the
	// constants it actually needs.
	witnessScaleFactor = 4

	// P2WSHSize 34 bytes
	//	- OP_0: 1 byte
	//	- OP_DATA: 1 byte (WitnessScriptSHA256 length)
	//	- WitnessScriptSHA256: 32 bytes
	P2WSHSize = 1 + 1 + 32

	// P2WKHOutputSize 31 bytes
	//      - value: 8 bytes
	//      - var_int: 1 byte (pkscript_length)
	//      - pkscript (p2wpkh): 22 bytes
	P2WKHOutputSize = 8 + 1 + 22

	// P2WSHOutputSize 43 bytes
	//      - value: 8 bytes
	//      - var_int: 1 byte (pkscript_length)
	//      - pkscript (p2wsh): 34 bytes
	P2WSHOutputSize = 8 + 1 + 34

	// FundingInputSize 41 bytes, a standard segwit input.
	FundingInputSize = 32 + 4 + 1 + 4

	// HTLCWeight is the per-HTLC weight contribution of an HTLC output on
	// the commitment transaction (§4.B's "per-HTLC commitment
	// contribution").
	HTLCWeight = 172

	// HtlcTimeoutWeight is the weight of the HTLC-timeout second-stage
	// transaction.
	HtlcTimeoutWeight = 663

	// HtlcSuccessWeight is the weight of the HTLC-success second-stage
	// transaction.
	HtlcSuccessWeight = 703

	// MaxHTLCNumber is the maximum number of HTLCs that may be live on a
	// commitment transaction at once.
	MaxHTLCNumber = 966
)

// HTLCDirection describes which side of the channel offered an HTLC.
type HTLCDirection uint8

const (
	// Offered means the owner of this commitment transaction is the one
	// who sent the update_add_htlc.
	Offered HTLCDirection = iota

	// Received means the owner of this commitment transaction is the
	// recipient of the HTLC.
	Received
)

// String implements fmt.Stringer.
func (d HTLCDirection) String() string {
	switch d {
	case Offered:
		return "offered"
	case Received:
		return "received"
	default:
		return "unknown"
	}
}

// htlcTimeoutFee returns the fee, in satoshis, that the second-stage
// HTLC-timeout transaction will need to pay at the given feerate.
func htlcTimeoutFee(feePerKw btcutil.Amount) btcutil.Amount {
	return btcutil.Amount(HtlcTimeoutWeight) * feePerKw / 1000
}

// htlcSuccessFee returns the fee, in satoshis, that the second-stage
// HTLC-success transaction will need to pay at the given feerate.
func htlcSuccessFee(feePerKw btcutil.Amount) btcutil.Amount {
	return btcutil.Amount(HtlcSuccessWeight) * feePerKw / 1000
}

// HtlcFeeForDirection returns the second-stage fee an HTLC of the given
// direction must cover, from the point of view of the commitment's owner:
// an offered (outgoing) HTLC is swept with an HTLC-timeout transaction,
// while a received (incoming) HTLC is swept with an HTLC-success
// transaction.
func HtlcFeeForDirection(direction HTLCDirection, feePerKw btcutil.Amount) btcutil.Amount {
	if direction == Offered {
		return htlcTimeoutFee(feePerKw)
	}
	return htlcSuccessFee(feePerKw)
}

// estimateCommitTxWeight estimates the weight of a commitment transaction
// carrying numHTLCs surviving (non-trimmed) HTLC outputs.
func estimateCommitTxWeight(numHTLCs int, baseWeight int64) int64 {
	return baseWeight + int64(numHTLCs)*HTLCWeight
}
