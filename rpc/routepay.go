package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/lightningnetwork/lndcore/routeoracle"
	"github.com/lightningnetwork/lndcore/routing"
)

// handleRoutePay implements routepay: [hash, amt_msat, payee, payer,
// min_final_cltv, r_field_count, [r_field...]] (§4.F, §4.G). It clears the
// driver's retry state for this hash before the first attempt. Only the
// first five parameters are read: r_field_count and the r_field entries are
// ignored, and the oracle is called with no routing hints.
func (s *Server) handleRoutePay(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	a, perr := parseRoutePayAttempt(params)
	if perr != nil {
		return nil, perr
	}

	outcome, oerr := s.Driver.RoutePay(ctx, a)
	return routePayResult(outcome, oerr)
}

// handleRoutePayCont implements routepay_cont: same params, but retries
// without clearing the skip set or try-counter.
func (s *Server) handleRoutePayCont(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	a, perr := parseRoutePayAttempt(params)
	if perr != nil {
		return nil, perr
	}

	outcome, oerr := s.Driver.Continue(ctx, a)
	return routePayResult(outcome, oerr)
}

func parseRoutePayAttempt(params []json.RawMessage) (*routing.Attempt, *Error) {
	hashHex, perr := paramString(params, 0)
	if perr != nil {
		return nil, perr
	}
	hashRaw, err := hex.DecodeString(hashHex)
	if err != nil || len(hashRaw) != 32 {
		return nil, NewError(CodeParse, "invalid payment hash")
	}

	amountMsat, perr := paramUint64(params, 1)
	if perr != nil {
		return nil, perr
	}

	payeeHex, perr := paramString(params, 2)
	if perr != nil {
		return nil, perr
	}
	payerHex, perr := paramString(params, 3)
	if perr != nil {
		return nil, perr
	}
	minFinalCLTV, perr := paramUint64(params, 4)
	if perr != nil {
		return nil, perr
	}

	payeeRaw, err := hex.DecodeString(payeeHex)
	if err != nil || len(payeeRaw) != 33 {
		return nil, NewError(CodeParse, "invalid payee pubkey")
	}
	payerRaw, err := hex.DecodeString(payerHex)
	if err != nil || len(payerRaw) != 33 {
		return nil, NewError(CodeParse, "invalid payer pubkey")
	}

	a := &routing.Attempt{
		AmountMsat:   amountMsat,
		MinFinalCLTV: uint32(minFinalCLTV),
	}
	copy(a.PaymentHash[:], hashRaw)
	copy(a.Payee[:], payeeRaw)
	copy(a.Payer[:], payerRaw)

	return a, nil
}

// codeForOracleCode maps routeoracle's independent error classification to
// the stable §7 RPC taxonomy, at the one boundary where both packages meet.
func codeForOracleCode(c routeoracle.Code) Code {
	switch c {
	case routeoracle.ErrCodeNotFound:
		return CodeRouteNotFound
	case routeoracle.ErrCodeTooManyHops:
		return CodeRouteTooManyHops
	case routeoracle.ErrCodePayStop:
		return CodePayStop
	default:
		return CodeRouteError
	}
}

func routePayResult(outcome *routing.Outcome, oerr *routeoracle.Error) (interface{}, *Error) {
	if oerr != nil {
		return nil, NewError(codeForOracleCode(oerr.Code), "%s", oerr.Message)
	}

	return map[string]interface{}{
		"hops": len(outcome.Hops),
	}, nil
}
