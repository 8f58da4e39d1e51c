package lnwallet

import "github.com/btcsuite/btcd/btcutil"

// HTLCView is the minimal per-HTLC information the fee calculator needs: its
// direction and amount. It mirrors the fields of HTLCInfo relevant to dust
// filtering without requiring the caller to hand over the full struct (and,
// in particular, without forcing the witness script to have been built yet).
type HTLCView struct {
	Direction HTLCDirection
	Amount    btcutil.Amount
}

// FeeResult is the outcome of CalcCommitFee: the fee the commitment
// transaction itself must pay, and the set of HTLCs trimmed into that fee
// because they fell below dust.
type FeeResult struct {
	// CommitFee is the fee, in satoshis, owed by the commitment
	// transaction given its base weight plus one HTLCWeight contribution
	// per surviving HTLC.
	CommitFee btcutil.Amount

	// TrimmedDustSum is the sum, in satoshis, of every HTLC amount that
	// was absorbed into the fee instead of materialized as an output.
	TrimmedDustSum btcutil.Amount

	// Surviving holds the indexes (into the HTLCs slice passed to
	// CalcCommitFee) of the HTLCs that clear dust and must be
	// materialized as outputs.
	Surviving []int
}

// IsDust reports whether an HTLC of the given amount and direction falls
// below the dust threshold for a commitment transaction with the passed
// dust limit and feerate. An HTLC is dust when its amount can't cover both
// the dust limit and the fee its own second-stage sweep transaction would
// need to pay.
func IsDust(direction HTLCDirection, amount, dustLimit btcutil.Amount, feePerKw btcutil.Amount) bool {
	return amount < dustLimit+HtlcFeeForDirection(direction, feePerKw)
}

// CalcCommitFee computes the commitment transaction's fee and the dust
// trimmed from the HTLC set, per §4.B:
//
//	htlc_fee     = weight(direction) * feerate_per_kw / 1000
//	trimmed      = amount_sat < dust_limit + htlc_fee
//	commit_fee   = (base_weight + 172*surviving_htlcs) * feerate_per_kw / 1000
//
// The base commitment weight is a channel parameter (no-HTLC, two-output
// weight) supplied by the caller so this function stays agnostic to the
// exact output layout chosen by the commitment engine.
func CalcCommitFee(baseWeight int64, htlcs []HTLCView, dustLimit, feePerKw btcutil.Amount) FeeResult {
	var result FeeResult

	for i, htlc := range htlcs {
		if IsDust(htlc.Direction, htlc.Amount, dustLimit, feePerKw) {
			result.TrimmedDustSum += htlc.Amount
			continue
		}
		result.Surviving = append(result.Surviving, i)
	}

	weight := estimateCommitTxWeight(len(result.Surviving), baseWeight)
	result.CommitFee = btcutil.Amount(weight) * feePerKw / 1000

	return result
}
