package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lightningnetwork/lndcore/channeldb"
	"github.com/lightningnetwork/lndcore/peerlink"
	"github.com/lightningnetwork/lndcore/routeoracle"
	"github.com/lightningnetwork/lndcore/routing"
)

// fakeChain and fakePeers give the rpc package tests the same small,
// scripted test doubles the routing package uses for its own driver tests.
type fakeChain int32

func (c fakeChain) GetBlockCount(context.Context) (int32, error) { return int32(c), nil }

type fakePeers struct {
	reachable map[peerlink.PeerID]bool
}

func (p *fakePeers) Connect(context.Context, peerlink.PeerID, string, uint16) error { return nil }
func (p *fakePeers) Disconnect(context.Context, peerlink.PeerID) error              { return nil }
func (p *fakePeers) Send(context.Context, peerlink.PeerID, []byte) error            { return nil }
func (p *fakePeers) IsInited(id peerlink.PeerID) bool                              { return p.reachable[id] }
func (p *fakePeers) Search(id peerlink.PeerID) bool                                { return p.reachable[id] }

type fakeOracle struct{}

func (fakeOracle) Calculate(ctx context.Context, source, dest [33]byte, finalCLTV uint32,
	amountMsat uint64, hints []routeoracle.Hop, skip routeoracle.SkipPredicate) ([]routeoracle.Hop, error) {
	return nil, routeoracle.ErrNotFound
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	tempDir, err := ioutil.TempDir("", "rpctest")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	db, err := channeldb.Open(tempDir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	registry, err := channeldb.NewChannelRegistry(db)
	require.NoError(t, err)

	preimages := channeldb.NewPreimageStore(db)
	skips := channeldb.NewSkipSet(db)
	peers := &fakePeers{reachable: map[peerlink.PeerID]bool{}}
	driver := routing.NewDriver(skips, fakeChain(100), fakeOracle{}, peers)

	return NewServer(registry, preimages, skips, peers, driver)
}

func rawParams(vals ...interface{}) []json.RawMessage {
	out := make([]json.RawMessage, len(vals))
	for i, v := range vals {
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		out[i] = b
	}
	return out
}

func TestRegisterHandlersBindsEveryMethod(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{
		"connect", "disconnect", "getinfo", "fund", "invoice", "eraseinvoice",
		"listinvoice", "PAY", "routepay", "routepay_cont", "close",
		"getlasterror", "debug", "getcommittx", "disautoconn",
		"removechannel", "setfeerate",
	} {
		s.mu.RLock()
		_, ok := s.handlers[method]
		s.mu.RUnlock()
		require.True(t, ok, "method %q not registered", method)
	}

	s.mu.RLock()
	_, ok := s.handlers["bogus-method"]
	s.mu.RUnlock()
	require.False(t, ok)
}

func TestInvoiceLifecycle(t *testing.T) {
	s := newTestServer(t)

	res, rerr := s.handleInvoice(context.Background(), rawParams(uint64(50000)))
	require.Nil(t, rerr)

	m := res.(map[string]interface{})
	hashHex := m["hash"].(string)
	require.Len(t, hashHex, 64)

	list, rerr := s.handleListInvoice(context.Background(), nil)
	require.Nil(t, rerr)
	require.Equal(t, []string{hashHex}, list)

	_, rerr = s.handleEraseInvoice(context.Background(), rawParams(hashHex))
	require.Nil(t, rerr)

	list, rerr = s.handleListInvoice(context.Background(), nil)
	require.Nil(t, rerr)
	require.Empty(t, list)
}

func TestEraseInvoiceEmptyHashErasesAll(t *testing.T) {
	s := newTestServer(t)

	_, rerr := s.handleInvoice(context.Background(), rawParams(uint64(1000)))
	require.Nil(t, rerr)
	_, rerr = s.handleInvoice(context.Background(), rawParams(uint64(2000)))
	require.Nil(t, rerr)

	_, rerr = s.handleEraseInvoice(context.Background(), rawParams(""))
	require.Nil(t, rerr)

	list, rerr := s.handleListInvoice(context.Background(), nil)
	require.Nil(t, rerr)
	require.Empty(t, list)
}

func TestHandleConnectRejectsAlreadyConnectedPeer(t *testing.T) {
	s := newTestServer(t)

	var nodeID peerlink.PeerID
	nodeID[0] = 0xAB
	s.Peers.(*fakePeers).reachable[nodeID] = true

	_, rerr := s.handleConnect(context.Background(), rawParams(
		hex.EncodeToString(nodeID[:]), "127.0.0.1", uint16(9735)))
	require.NotNil(t, rerr)
	require.Equal(t, CodeAlreadyConn, rerr.Code)
}

func TestHandleCloseFallsBackToUnilateralWhenPeerUnreachable(t *testing.T) {
	s := newTestServer(t)

	var nodeID peerlink.PeerID
	nodeID[0] = 0xCD

	res, rerr := s.handleClose(context.Background(), rawParams(
		hex.EncodeToString(nodeID[:]), "127.0.0.1", uint16(9735)))
	require.Nil(t, rerr)
	require.Equal(t, "unilateral close", res)
}

func TestHandleGetInfoReflectsDriverLastPayErr(t *testing.T) {
	s := newTestServer(t)

	res, rerr := s.handleGetInfo(context.Background(), nil)
	require.Nil(t, rerr)
	info := res.(getInfoResult)
	require.Equal(t, "", info.LastPayErr)
	require.Equal(t, 0, info.ChannelCount)
}

func TestHandleRoutePaySurfacesRouteNotFound(t *testing.T) {
	s := newTestServer(t)

	var hash [32]byte
	var payee, payer [33]byte
	payee[0] = 1
	payer[0] = 2

	_, rerr := s.handleRoutePay(context.Background(), rawParams(
		hex.EncodeToString(hash[:]), uint64(1000),
		hex.EncodeToString(payee[:]), hex.EncodeToString(payer[:]), uint64(40)))
	require.NotNil(t, rerr)
	require.Equal(t, CodeRouteNotFound, rerr.Code)
}
